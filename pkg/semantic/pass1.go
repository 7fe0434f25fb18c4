package semantic

import (
	"fasterbasic/pkg/ast"
	"fasterbasic/pkg/diag"
	"fasterbasic/pkg/symtable"
	"fasterbasic/pkg/types"
)

// collect walks stmts once, registering every declaration spec §4.2 pass 1
// names: TYPE, CLASS (parent deferred), FUNCTION/SUB, CONSTANT, DIM/GLOBAL,
// labels, line numbers, and DATA literals, plus implicit first-use variable
// declarations.
func (a *Analyzer) collect(stmts []*ast.Node, scope symtable.Scope) {
	for i, s := range stmts {
		if s != nil && s.Loc().Line != 0 {
			a.Syms.MapLine(s.Loc().Line, i)
		}
		a.collectStmt(s, scope)
	}
}

func (a *Analyzer) collectStmt(s *ast.Node, scope symtable.Scope) {
	if s == nil {
		return
	}
	switch s.Kind {
	case ast.LabelStmt:
		if _, fresh := a.Syms.DeclareLabel(s.Str, s.Loc()); !fresh {
			a.Bag.Error(diag.DuplicateLabel, s.Loc(), "label %q already declared", s.Str)
		}

	case ast.TypeDecl:
		a.collectType(s)

	case ast.ClassDecl:
		a.collectClass(s)

	case ast.FunctionDecl, ast.SubDecl:
		a.collectFunction(s)

	case ast.ConstStmt:
		a.collectConstant(s)

	case ast.DimStmt, ast.GlobalStmt:
		a.collectDim(s, scope)

	case ast.DataStmt:
		for _, lit := range s.Kids {
			a.Syms.Data.Append(astLiteralToData(lit))
		}

	case ast.RestoreStmt:
		// Nothing is recorded here: no restore point is marked in the
		// DATA segment. Pass 2 only checks that the target names a known
		// label or line.

	case ast.LetStmt, ast.ReadStmt, ast.IncStmt, ast.DecStmt, ast.SwapStmt:
		a.collectImplicitTargets(s, scope)

	case ast.ForStmt:
		a.collectForIndex(s, scope)
		a.collect(s.Then, scope)

	case ast.ForEachStmt:
		a.collectForEach(s, scope)
		a.collect(s.Then, scope)

	case ast.IfStmt:
		a.collect(s.Then, scope)
		a.collect(s.Else, scope)
		for _, elseif := range s.Kids {
			a.collect(elseif.Then, scope)
		}

	case ast.WhileStmt, ast.DoLoopStmt, ast.RepeatStmt:
		a.collect(s.Then, scope)

	case ast.SelectCaseStmt:
		for _, c := range s.Kids {
			a.collect(c.Then, scope)
		}

	case ast.TryStmt:
		a.collect(s.Then, scope)
		for _, c := range s.Kids {
			a.collect(c.Then, scope)
		}
		a.collect(s.Else, scope) // FINALLY body, if present
	}
}

func astLiteralToData(lit *ast.Node) symtable.DataValue {
	switch lit.Kind {
	case ast.StringLit:
		return symtable.DataValue{Kind: symtable.DataString, S: lit.Str}
	case ast.NumberLit:
		return symtable.DataValue{Kind: symtable.DataDouble, D: lit.Num}
	default:
		return symtable.DataValue{Kind: symtable.DataDouble, D: lit.Num}
	}
}

func (a *Analyzer) collectConstant(s *ast.Node) {
	c := &symtable.Constant{Name: s.Str}
	switch s.Rhs.Kind {
	case ast.StringLit:
		c.Kind = symtable.StringConst
		c.S = s.Rhs.Str
	default:
		c.Kind = symtable.DoubleConst
		c.D = s.Rhs.Num
		c.I = int64(s.Rhs.Num)
	}
	if !a.Syms.DeclareConstant(c) {
		a.Bag.Error(diag.DuplicateType, s.Loc(), "constant %q already declared", s.Str)
	}
}

func (a *Analyzer) collectDim(s *ast.Node, scope symtable.Scope) {
	elemType := resolveTypeName(s, a.Syms)

	if s.IsArray {
		dims := make([]int, 0, len(s.Kids))
		for _, d := range s.Kids {
			dims = append(dims, int(d.Num))
		}
		arr := &symtable.Array{Name: s.Str, Element: elemType, Dims: dims, DeclSite: s.Loc(), AsTypeName: s.Target}
		count := 1
		for _, d := range dims {
			count *= d
		}
		arr.ElemCount = count
		if !a.Syms.DeclareArray(arr) {
			a.Bag.Error(diag.ArrayRedeclared, s.Loc(), "array %q already declared", s.Str)
		}
		return
	}

	declScope := scope
	if s.Kind == ast.GlobalStmt {
		declScope = symtable.GlobalScope()
	}
	a.Syms.DeclareVariable(s.Str, declScope, elemType, true, s.Loc())
}

// resolveTypeName turns a DIM ... AS <Name> clause (or the bare suffix on
// the variable name) into a Descriptor, consulting the UDT table for
// user-defined type names.
func resolveTypeName(s *ast.Node, syms *symtable.SymbolTable) types.Descriptor {
	if s.Target == "" {
		return defaultSuffixType(s.Str)
	}
	if syms != nil {
		if udt, ok := syms.LookupType(s.Target); ok {
			return types.Descriptor{Base: types.UserDefined, UDTName: udt.Name, UDTID: udt.ID}
		}
	}
	switch s.Target {
	case "BYTE":
		return types.NewScalar(types.Byte)
	case "UBYTE":
		return types.NewScalar(types.UByte)
	case "SHORT":
		return types.NewScalar(types.Short)
	case "USHORT":
		return types.NewScalar(types.UShort)
	case "INTEGER":
		return types.NewScalar(types.Integer)
	case "UINTEGER":
		return types.NewScalar(types.UInteger)
	case "LONG":
		return types.NewScalar(types.Long)
	case "ULONG":
		return types.NewScalar(types.ULong)
	case "SINGLE":
		return types.NewScalar(types.Single)
	case "DOUBLE":
		return types.NewScalar(types.Double)
	case "STRING":
		return types.NewScalar(types.String)
	case "UNICODE":
		return types.NewScalar(types.Unicode)
	default:
		return defaultSuffixType(s.Str)
	}
}

// collectImplicitTargets registers the lvalue(s) a LET/READ/INC/DEC/SWAP
// statement assigns to, if not already declared (spec §4.2's
// implicit-declaration rule).
func (a *Analyzer) collectImplicitTargets(s *ast.Node, scope symtable.Scope) {
	var targets []*ast.Node
	switch s.Kind {
	case ast.ReadStmt:
		targets = s.Kids
	case ast.SwapStmt:
		targets = []*ast.Node{s.Lhs, s.Rhs}
	default: // LetStmt, IncStmt, DecStmt
		targets = []*ast.Node{s.Lhs}
	}
	for _, t := range targets {
		if t == nil || t.Kind != ast.VarRef {
			continue
		}
		if _, ok := a.Syms.LookupVariable(t.Str, scope); !ok {
			a.Syms.DeclareVariable(t.Str, scope, defaultSuffixType(t.Str), false, t.Loc())
		}
	}
}

func (a *Analyzer) collectForIndex(s *ast.Node, scope symtable.Scope) {
	// FOR index variables are always forced to integer (spec §4.2).
	a.Syms.DeclareVariable(s.Str, scope, types.NewScalar(types.LoopIndex), false, s.Loc())
}

func (a *Analyzer) collectForEach(s *ast.Node, scope symtable.Scope) {
	elemType := types.NewScalar(types.Double)
	if s.Cond != nil {
		switch {
		case s.Cond.Kind == ast.VarRef:
			if arr, ok := a.Syms.LookupArray(s.Cond.Str); ok {
				elemType = arr.Element
			} else if v, ok := a.Syms.LookupVariable(s.Cond.Str, scope); ok && v.Type.Base == types.Object && v.Type.ObjectType == "HASHMAP" {
				elemType = types.NewScalar(types.String)
			}
		}
	}
	a.Syms.DeclareVariable(s.Str, scope, elemType, false, s.Loc())
}

func (a *Analyzer) collectType(s *ast.Node) {
	fields := make([]symtable.UDTField, 0, len(s.Kids))
	seen := map[string]bool{}
	for _, f := range s.Kids {
		if seen[symtable.Key(f.Str)] {
			a.Bag.Error(diag.DuplicateField, f.Loc(), "field %q already declared in type %q", f.Str, s.Str)
			continue
		}
		seen[symtable.Key(f.Str)] = true
		ft := resolveTypeName(f, a.Syms)
		fields = append(fields, symtable.UDTField{Name: f.Str, Type: ft, TypeName: f.Target, BuiltIn: ft.Base != types.UserDefined})
	}
	u := &symtable.UDT{Name: s.Str, Fields: fields, ID: a.nextTypeID}
	u.SIMD = symtable.ClassifySIMD(fields)
	if !a.Syms.DeclareType(u) {
		a.Bag.Error(diag.DuplicateType, s.Loc(), "type %q already declared", s.Str)
		return
	}
	a.nextTypeID++
}

func (a *Analyzer) collectClass(s *ast.Node) {
	c := &symtable.Class{Name: s.Str, ParentName: s.Target}
	if !a.Syms.DeclareClass(c) {
		a.Bag.Error(diag.DuplicateClass, s.Loc(), "class %q already declared", s.Str)
		return
	}
	c.ID = len(a.Syms.ClassNames()) - 1

	for _, field := range s.Kids {
		if field.Kind != ast.FieldDecl {
			continue
		}
		c.Fields = append(c.Fields, symtable.ClassField{Name: field.Str, Type: resolveTypeName(field, a.Syms)})
	}

	for _, member := range s.Kids {
		switch member.Kind {
		case ast.MethodDecl:
			a.collectMethodSignature(c, member)
		case ast.ConstructorDecl:
			c.HasConstructor = true
			c.ConstructorName = c.Name + "__CONSTRUCTOR"
			ctorScope := symtable.FuncScope(c.Name + ".CONSTRUCTOR")
			c.ConstructorParams = a.collectMemberParams(member, ctorScope)
			a.collect(member.Then, ctorScope)
		case ast.DestructorDecl:
			c.HasDestructor = true
			c.DestructorName = c.Name + "__DESTRUCTOR"
			a.collect(member.Then, symtable.FuncScope(c.Name+".DESTRUCTOR"))
		}
	}
}

func (a *Analyzer) collectMethodSignature(c *symtable.Class, member *ast.Node) {
	scope := symtable.FuncScope(c.Name + "." + member.Str)
	m := symtable.Method{
		Name:        member.Str,
		MangledName: c.Name + "__" + member.Str,
		OriginClass: c.Name,
		Params:      a.collectMemberParams(member, scope),
		Return:      returnDescriptor(member),
	}
	c.Methods = append(c.Methods, m)
	a.collect(member.Then, scope)
}

// collectMemberParams builds the named parameter list for a method,
// constructor, or destructor declaration and registers each one as a
// variable in scope, mirroring collectFunction's own param/scope binding
// so method bodies can resolve their formal parameters the same way a
// plain FUNCTION/SUB's body does.
func (a *Analyzer) collectMemberParams(member *ast.Node, scope symtable.Scope) []symtable.Param {
	out := make([]symtable.Param, 0, len(member.Kids))
	for _, p := range member.Kids {
		if p.Kind != ast.VarRef {
			continue
		}
		param := symtable.Param{Name: p.Str, Type: resolveTypeName(p, a.Syms), ByRef: p.IsByRef}
		out = append(out, param)
		a.Syms.DeclareVariable(param.Name, scope, param.Type, true, p.Loc())
	}
	return out
}

func returnDescriptor(member *ast.Node) types.Descriptor {
	if member.Target == "" {
		return types.NewScalar(types.Void)
	}
	return resolveTypeName(&ast.Node{Target: member.Target}, nil)
}

func (a *Analyzer) collectFunction(s *ast.Node) {
	f := &symtable.Function{Name: s.Str, DefSite: s.Loc()}
	if s.Kind == ast.SubDecl {
		f.Return = types.NewScalar(types.Void)
	} else {
		f.Return = returnDescriptor(s)
	}
	for _, p := range s.Kids {
		f.Params = append(f.Params, symtable.Param{Name: p.Str, Type: resolveTypeName(p, a.Syms), ByRef: p.IsByRef})
	}
	if !a.Syms.DeclareFunction(f) {
		a.Bag.Error(diag.FunctionRedeclared, s.Loc(), "function %q already declared", s.Str)
	}

	prevIn, prevName := a.inFunction, a.currentFunction
	a.inFunction, a.currentFunction = true, s.Str
	scope := symtable.FuncScope(s.Str)
	for _, p := range f.Params {
		a.Syms.DeclareVariable(p.Name, scope, p.Type, true, s.Loc())
	}
	a.collect(s.Then, scope)
	a.inFunction, a.currentFunction = prevIn, prevName
}
