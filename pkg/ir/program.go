package ir

import (
	"fmt"
	"sort"
	"strings"

	"fasterbasic/pkg/cfg"
	"fasterbasic/pkg/symtable"
	"fasterbasic/pkg/types"
)

// EmitProgram assembles the complete textual IR for one compiled source
// file, in this sequence: header comment, global variables, global array
// descriptors, runtime declarations, main (prologue, statements, jump to
// program_exit, exit block), function/sub definitions, then the string
// pool. No string pool is written after the header; every literal the
// translator interned, in main or in a function, is declared once in the
// single flush at the end.
//
// A single Translator (and so a single Builder) threads through every
// call: Builder.String() is cumulative across EmitFunction calls, so this
// function reads it exactly once at the end rather than concatenating each
// call's return value.
func EmitProgram(prog *cfg.Program, syms *symtable.SymbolTable) string {
	var header strings.Builder
	header.WriteString("# FasterBASIC generated IR\n\n")

	for _, key := range syms.VariableNames() {
		v := syms.Variable(key)
		if v == nil || !v.IsGlobal {
			continue
		}
		fmt.Fprintf(&header, "data $%s = { %s %s }\n", VarName(v.Name), v.Type.Base.MemWidth(), zeroInit(v.Type))
	}
	header.WriteString("\n")

	arrNames := make([]string, 0, len(syms.Arrays()))
	for k := range syms.Arrays() {
		arrNames = append(arrNames, k)
	}
	sort.Strings(arrNames)
	for _, k := range arrNames {
		a := syms.Arrays()[k]
		fmt.Fprintf(&header, "data $%s = { l 0 }  # array descriptor for %s\n", ArrayDescName(a.Name), a.Name)
	}
	header.WriteString("\n")

	header.WriteString(DeclareRuntime())
	header.WriteString("\n")

	t := NewTranslator(syms)

	mainGraph := prog.Graphs["main"]
	if mainGraph != nil {
		emitMainPrologue(t)
		t.EmitFunction("main", nil, "", symtable.GlobalScope(), mainGraph)
		emitMainEpilogue(t)
	}

	for _, name := range prog.Order {
		if name == "main" {
			continue
		}
		g := prog.Graphs[name]
		emitOne(t, syms, name, g)
	}

	var out strings.Builder
	out.WriteString(header.String())
	out.WriteString(t.b.String())
	out.WriteString(t.b.FlushStringPool())
	return out.String()
}

// emitMainPrologue writes a "program entry" marker comment ahead of main's
// function header. The _samm_init/_samm_scope_enter prologue calls
// themselves are emitted by EmitFunction for the "main" graph.
func emitMainPrologue(t *Translator) {
	t.b.EmitComment("program entry")
}

// emitMainEpilogue writes a "program_exit: shutdown" marker comment after
// main's closing brace. The _samm_scope_exit call and the final ret are
// emitted by EmitFunction's exit-block handling, not here.
func emitMainEpilogue(t *Translator) {
	t.b.EmitComment("program_exit: shutdown")
}

func emitOne(t *Translator, syms *symtable.SymbolTable, name string, g *cfg.Graph) {
	if class, member, ok := strings.Cut(name, "."); ok {
		emitMember(t, syms, class, member, g)
		return
	}

	scope := symtable.FuncScope(name)
	fn, isFunc := syms.LookupFunction(name)
	mangled := SubName(name)
	rettype := ""
	var params []symtable.Param
	if isFunc {
		params = fn.Params
		if fn.Return.Base != types.Void {
			rettype = Widen(fn.Return.Base)
			mangled = FuncName(name)
		}
	}
	t.EmitFunction(mangled, params, rettype, scope, g)
}

// emitMember lowers a CLASS.METHOD / CLASS.CONSTRUCTOR / CLASS.DESTRUCTOR
// graph (buildNestedFunctions' naming scheme for class bodies) into one IR
// function, resolving its mangled name and parameter list from the class's
// registered Method/ConstructorParams entry rather than the flat function
// table a plain FUNCTION/SUB looks up.
func emitMember(t *Translator, syms *symtable.SymbolTable, class, member string, g *cfg.Graph) {
	scope := symtable.FuncScope(class + "." + member)
	c, ok := syms.LookupClass(class)
	if !ok {
		t.EmitFunction(SubName(class+"__"+member), nil, "", scope, g)
		return
	}

	switch member {
	case "CONSTRUCTOR":
		t.EmitFunction(ConstructorName(class), c.ConstructorParams, "", scope, g)
	case "DESTRUCTOR":
		t.EmitFunction(DestructorName(class), nil, "", scope, g)
	default:
		m, ok := c.MethodByName(member)
		if !ok {
			t.EmitFunction(MethodName(class, member), nil, "", scope, g)
			return
		}
		rettype := ""
		if m.Return.Base != types.Void {
			rettype = Widen(m.Return.Base)
		}
		t.EmitFunction(MethodName(class, member), m.Params, rettype, scope, g)
	}
}

// zeroInit renders the IR literal used to zero-initialize a global of type
// d at program load (spec §6's data-segment grammar).
func zeroInit(d types.Descriptor) string {
	if d.Base.IsFloat() {
		return "0"
	}
	if d.Base == types.String || d.Base == types.Unicode {
		return "0"
	}
	return "0"
}
