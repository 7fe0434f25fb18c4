package ir

import "strings"

// VarName mangles a global/local variable name into its IR symbol (spec
// §4.4 #3): "var_<NAME>" with the type suffix sigil stripped.
func VarName(name string) string {
	return "var_" + stripSuffix(strings.ToUpper(name))
}

// FuncName mangles a FUNCTION name.
func FuncName(name string) string { return "func_" + strings.ToUpper(name) }

// SubName mangles a SUB name.
func SubName(name string) string { return "sub_" + strings.ToUpper(name) }

// ArrayDescName mangles an array's descriptor symbol.
func ArrayDescName(name string) string {
	return "arr_" + stripSuffix(strings.ToUpper(name)) + "_desc"
}

// MethodName mangles a class method.
func MethodName(class, method string) string {
	return strings.ToUpper(class) + "__" + strings.ToUpper(method)
}

// ConstructorName mangles a class's constructor.
func ConstructorName(class string) string { return strings.ToUpper(class) + "__CONSTRUCTOR" }

// DestructorName mangles a class's destructor.
func DestructorName(class string) string { return strings.ToUpper(class) + "__DESTRUCTOR" }

// VTableName mangles a class's vtable data symbol.
func VTableName(class string) string { return "vtable_" + strings.ToUpper(class) }

// SharedVars tracks which local names the current function scope has
// marked SHARED with an enclosing scope, so the translator knows to
// address them via their global var_ symbol rather than a stack slot.
type SharedVars map[string]bool

func NewSharedVars() SharedVars { return make(SharedVars) }

func (s SharedVars) Mark(name string)         { s[strings.ToUpper(name)] = true }
func (s SharedVars) IsShared(name string) bool { return s[strings.ToUpper(name)] }

// stripSuffix removes one trailing type sigil, matching the lexer's
// suffix-rune set.
func stripSuffix(name string) string {
	if len(name) == 0 {
		return name
	}
	switch name[len(name)-1] {
	case '%', '!', '#', '$', '@', '&', '^':
		return name[:len(name)-1]
	}
	return name
}
