// Package diag implements the closed diagnostic taxonomy of the FasterBASIC
// pipeline (spec §7): lexer and semantic analyzer accumulate Diagnostics
// and keep going rather than aborting on the first error, so a caller can
// report everything wrong with a program in one pass.
package diag

import (
	"fmt"
	"sort"

	"fasterbasic/pkg/token"
)

// Kind is the closed set of diagnostic kinds spec §7 enumerates.
type Kind string

const (
	// Lexical
	UnexpectedCharacter Kind = "unexpected_character"
	UnterminatedString  Kind = "unterminated_string"
	InvalidNumber       Kind = "invalid_number"

	// Semantic — references
	UndefinedLine     Kind = "undefined_line"
	UndefinedLabel    Kind = "undefined_label"
	UndefinedVariable Kind = "undefined_variable"
	UndefinedArray    Kind = "undefined_array"
	UndefinedFunction Kind = "undefined_function"
	UndefinedType     Kind = "undefined_type"
	UndefinedClass    Kind = "undefined_class"
	UndefinedField    Kind = "undefined_field"

	// Semantic — duplicates
	DuplicateLabel      Kind = "duplicate_label"
	DuplicateLineNumber Kind = "duplicate_line_number"
	DuplicateType       Kind = "duplicate_type"
	DuplicateField      Kind = "duplicate_field"
	DuplicateClass      Kind = "duplicate_class"
	FunctionRedeclared  Kind = "function_redeclared"
	ArrayRedeclared     Kind = "array_redeclared"

	// Semantic — control flow
	NextWithoutFor      Kind = "next_without_for"
	WendWithoutWhile    Kind = "wend_without_while"
	UntilWithoutRepeat  Kind = "until_without_repeat"
	LoopWithoutDo       Kind = "loop_without_do"
	ForWithoutNext      Kind = "for_without_next"
	WhileWithoutWend    Kind = "while_without_wend"
	DoWithoutLoop       Kind = "do_without_loop"
	RepeatWithoutUntil  Kind = "repeat_without_until"
	ReturnWithoutGosub  Kind = "return_without_gosub"
	ControlFlowMismatch Kind = "control_flow_mismatch"

	// Semantic — types
	TypeMismatch           Kind = "type_mismatch"
	TypeError              Kind = "type_error"
	InvalidTypeField       Kind = "invalid_type_field"
	CircularTypeDependency Kind = "circular_type_dependency"
	ArgumentCountMismatch  Kind = "argument_count_mismatch"
	WrongDimensionCount    Kind = "wrong_dimension_count"
	InvalidArrayIndex      Kind = "invalid_array_index"
	CircularInheritance    Kind = "circular_inheritance"
	ClassError             Kind = "class_error"
)

// Diagnostic is a single accumulated error or warning. Severity is carried
// by which Bag slice it lives in rather than a field, matching spec §7's
// split between "errors" (kind+message+location) and "warnings"
// (message+location).
type Diagnostic struct {
	Kind    Kind
	Message string
	Loc     token.Location
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Loc, d.Kind, d.Message)
}

// Bag accumulates diagnostics across a compilation stage. It never aborts;
// callers check HasErrors() before moving to the next stage (spec §7).
type Bag struct {
	errors   []Diagnostic
	warnings []Diagnostic
}

func (b *Bag) Error(kind Kind, loc token.Location, format string, args ...any) {
	b.errors = append(b.errors, Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Loc: loc})
}

func (b *Bag) Warning(loc token.Location, format string, args ...any) {
	b.warnings = append(b.warnings, Diagnostic{Message: fmt.Sprintf(format, args...), Loc: loc})
}

func (b *Bag) HasErrors() bool { return len(b.errors) > 0 }

func (b *Bag) Errors() []Diagnostic   { return b.errors }
func (b *Bag) Warnings() []Diagnostic { return b.warnings }

// Sorted returns the error diagnostics ordered by (line, column), giving a
// deterministic report regardless of the order in which passes discovered
// them.
func (b *Bag) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(b.errors))
	copy(out, b.errors)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Loc.Line != out[j].Loc.Line {
			return out[i].Loc.Line < out[j].Loc.Line
		}
		return out[i].Loc.Column < out[j].Loc.Column
	})
	return out
}

// Merge appends another Bag's diagnostics into b.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.errors = append(b.errors, other.errors...)
	b.warnings = append(b.warnings, other.warnings...)
}
