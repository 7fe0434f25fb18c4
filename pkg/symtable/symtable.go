// Package symtable implements the process-local symbol registry of spec
// §3.3: variables, arrays, functions/subs, UDTs, classes, labels,
// constants, line numbers, and the DATA segment, all keyed by the
// uppercased source name for case-insensitive lookup.
package symtable

import (
	"sort"
	"strings"

	"fasterbasic/pkg/token"
	"fasterbasic/pkg/types"
)

// Scope identifies where a variable lives: the global scope, or a named
// function/sub scope (keyed "FUNC.NAME" per spec §3.3).
type Scope struct {
	IsGlobal bool
	FuncName string
}

func GlobalScope() Scope { return Scope{IsGlobal: true} }

func FuncScope(name string) Scope { return Scope{FuncName: strings.ToUpper(name)} }

func (s Scope) key(name string) string {
	if s.IsGlobal {
		return Key(name)
	}
	return "FUNC." + s.FuncName + "." + Key(name)
}

// Key uppercases name the same way every registry keys its entries.
func Key(name string) string { return strings.ToUpper(name) }

// Variable is a declared or implicitly-created scalar.
type Variable struct {
	Name       string
	Type       types.Descriptor
	Declared   bool // explicit DIM/GLOBAL vs. implicit first-use
	Used       bool
	FirstUse   token.Location
	Scope      Scope
	IsGlobal   bool
}

// Array is a declared array variable.
type Array struct {
	Name       string
	Element    types.Descriptor
	Dims       []int
	DeclSite   token.Location
	ElemCount  int
	AsTypeName string
}

// Param describes one function/sub parameter.
type Param struct {
	Name     string
	Type     types.Descriptor
	ByRef    bool
}

// Function is a FUNCTION or SUB signature (Sub has Return.Base == types.Void).
type Function struct {
	Name       string
	Params     []Param
	Return     types.Descriptor
	DefSite    token.Location
	InlineBody bool // single-expression function body
}

// Label is a GOTO/GOSUB target.
type Label struct {
	Name    string
	ID      int
	DefSite token.Location
}

// ConstKind tags which payload a Constant carries.
type ConstKind int

const (
	IntegerConst ConstKind = iota
	DoubleConst
	StringConst
)

type Constant struct {
	Name string
	Kind ConstKind
	I    int64
	D    float64
	S    string
}

// SymbolTable is the registry described in spec §3.3. It is mutated only
// during pass 1 (collection + the deferred class parent fix-up) and to set
// Used flags in pass 2; it is read-only thereafter.
type SymbolTable struct {
	variables map[string]*Variable
	arrays    map[string]*Array
	functions map[string]*Function
	types     map[string]*UDT
	classes   map[string]*Class
	classOrd  []string // insertion order, for deterministic fix-up iteration
	labels    map[string]*Label
	nextLabel int
	constants map[string]*Constant
	lineToAST map[int]int // line number -> AST statement index

	Data *DataSegment
}

func New() *SymbolTable {
	return &SymbolTable{
		variables: make(map[string]*Variable),
		arrays:    make(map[string]*Array),
		functions: make(map[string]*Function),
		types:     make(map[string]*UDT),
		classes:   make(map[string]*Class),
		labels:    make(map[string]*Label),
		constants: make(map[string]*Constant),
		lineToAST: make(map[int]int),
		Data:      NewDataSegment(),
	}
}

// DeclareVariable registers name in scope if absent, returning the existing
// symbol when it is already present (implicit-declaration semantics live
// here: callers pass declared=false for first-use registration).
func (st *SymbolTable) DeclareVariable(name string, scope Scope, t types.Descriptor, declared bool, loc token.Location) *Variable {
	key := scope.key(name)
	if v, ok := st.variables[key]; ok {
		return v
	}
	v := &Variable{Name: name, Type: t, Declared: declared, Scope: scope, IsGlobal: scope.IsGlobal, FirstUse: loc}
	st.variables[key] = v
	return v
}

func (st *SymbolTable) LookupVariable(name string, scope Scope) (*Variable, bool) {
	if !scope.IsGlobal {
		if v, ok := st.variables[scope.key(name)]; ok {
			return v, true
		}
	}
	v, ok := st.variables[Key(name)]
	return v, ok
}

func (st *SymbolTable) MarkUsed(name string, scope Scope) {
	if v, ok := st.LookupVariable(name, scope); ok {
		v.Used = true
	}
}

func (st *SymbolTable) DeclareArray(a *Array) bool {
	key := Key(a.Name)
	if _, exists := st.arrays[key]; exists {
		return false
	}
	st.arrays[key] = a
	return true
}

func (st *SymbolTable) LookupArray(name string) (*Array, bool) {
	a, ok := st.arrays[Key(name)]
	return a, ok
}

func (st *SymbolTable) DeclareFunction(f *Function) bool {
	key := Key(f.Name)
	if _, exists := st.functions[key]; exists {
		return false
	}
	st.functions[key] = f
	return true
}

func (st *SymbolTable) LookupFunction(name string) (*Function, bool) {
	f, ok := st.functions[Key(name)]
	return f, ok
}

func (st *SymbolTable) DeclareLabel(name string, loc token.Location) (*Label, bool) {
	key := Key(name)
	if existing, ok := st.labels[key]; ok {
		return existing, false
	}
	l := &Label{Name: name, ID: st.nextLabel, DefSite: loc}
	st.nextLabel++
	st.labels[key] = l
	return l, true
}

func (st *SymbolTable) LookupLabel(name string) (*Label, bool) {
	l, ok := st.labels[Key(name)]
	return l, ok
}

func (st *SymbolTable) DeclareConstant(c *Constant) bool {
	key := Key(c.Name)
	if _, exists := st.constants[key]; exists {
		return false
	}
	st.constants[key] = c
	return true
}

func (st *SymbolTable) LookupConstant(name string) (*Constant, bool) {
	c, ok := st.constants[Key(name)]
	return c, ok
}

func (st *SymbolTable) MapLine(lineNumber, astIndex int) bool {
	if _, exists := st.lineToAST[lineNumber]; exists {
		return false
	}
	st.lineToAST[lineNumber] = astIndex
	return true
}

func (st *SymbolTable) LineIndex(lineNumber int) (int, bool) {
	idx, ok := st.lineToAST[lineNumber]
	return idx, ok
}

// VariableNames returns every registered variable key in sorted order, for
// deterministic iteration (spec §5's ordering guarantee).
func (st *SymbolTable) VariableNames() []string {
	names := make([]string, 0, len(st.variables))
	for k := range st.variables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (st *SymbolTable) Variable(key string) *Variable { return st.variables[key] }

func (st *SymbolTable) Functions() map[string]*Function { return st.functions }
func (st *SymbolTable) Arrays() map[string]*Array       { return st.arrays }
