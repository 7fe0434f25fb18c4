// Package semantic implements the two-pass analyzer of spec §4.2: pass 1
// collects declarations (and defers class-parent resolution), pass 2
// validates control flow, references, and types. The analyzer never
// rewrites the AST; it only populates a symtable.SymbolTable and a
// diag.Bag.
package semantic

import (
	"fasterbasic/pkg/ast"
	"fasterbasic/pkg/diag"
	"fasterbasic/pkg/symtable"
	"fasterbasic/pkg/types"
)

// Analyzer holds the mutable state threaded through both passes.
type Analyzer struct {
	Syms *symtable.SymbolTable
	Bag  *diag.Bag

	inFunction      bool
	currentFunction string

	forStack    []loopCtx
	whileStack  []loopCtx
	repeatStack []loopCtx
	doStack     []loopCtx

	nextTypeID int
}

type loopCtx struct {
	label string // synthetic identity used by CFG exit resolution; empty for anonymous loops
}

// New creates an Analyzer over a fresh symbol table.
func New() *Analyzer {
	return &Analyzer{Syms: symtable.New(), Bag: &diag.Bag{}}
}

// Analyze runs both passes over program (the Program-kind root node's
// Kids are the top-level statement list) and returns the populated symbol
// table and diagnostics. Callers must check Bag.HasErrors() before moving
// on to CFG construction (spec §7).
func Analyze(program *ast.Node) (*symtable.SymbolTable, *diag.Bag) {
	a := New()
	a.collect(program.Kids, symtable.GlobalScope())
	if unresolved := a.Syms.FixUpClassParents(); len(unresolved) > 0 {
		for _, name := range unresolved {
			a.Bag.Error(diag.UndefinedClass, program.Loc(), "class %q extends an undefined parent class", name)
		}
	}
	for _, key := range a.Syms.ClassNames() {
		if c, ok := a.Syms.LookupClass(key); ok {
			LayoutClass(c, a.Syms)
		}
	}
	a.validate(program.Kids, symtable.GlobalScope())
	return a.Syms, a.Bag
}

func (a *Analyzer) curScope() symtable.Scope {
	if a.inFunction {
		return symtable.FuncScope(a.currentFunction)
	}
	return symtable.GlobalScope()
}

// defaultSuffixType maps the trailing sigil on a name (if any) to its
// implicit BaseType, or types.Double when there is none (spec §4.2 / §9).
func defaultSuffixType(name string) types.Descriptor {
	if len(name) == 0 {
		return types.NewScalar(types.Double)
	}
	switch name[len(name)-1] {
	case '%':
		return types.NewScalar(types.Integer)
	case '!':
		return types.NewScalar(types.Single)
	case '#':
		return types.NewScalar(types.Double)
	case '&':
		return types.NewScalar(types.Long)
	case '$':
		return types.NewScalar(types.String)
	default:
		return types.NewScalar(types.Double)
	}
}
