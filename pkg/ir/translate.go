package ir

import (
	"fmt"
	"strconv"
	"strings"

	"fasterbasic/pkg/ast"
	"fasterbasic/pkg/cfg"
	"fasterbasic/pkg/symtable"
	"fasterbasic/pkg/token"
	"fasterbasic/pkg/types"
)

// Translator lowers one function's already-analyzed cfg.Graph to textual
// IR, consuming blocks in reverse-postorder (spec §4.3's stated contract
// for why the CFG builder exists: "so a code generator can iterate in RPO
// to emit a correct linear IR").
type Translator struct {
	Syms  *symtable.SymbolTable
	b     *Builder
	scope symtable.Scope
	labelFor map[*cfg.Graph]map[int]string
}

func NewTranslator(syms *symtable.SymbolTable) *Translator {
	return &Translator{Syms: syms, b: NewBuilder(), labelFor: make(map[*cfg.Graph]map[int]string)}
}

func (t *Translator) blockLabel(g *cfg.Graph, idx int) string {
	m, ok := t.labelFor[g]
	if !ok {
		m = make(map[int]string)
		t.labelFor[g] = m
	}
	if l, ok := m[idx]; ok {
		return l
	}
	l := fmt.Sprintf("bb%d_%s", idx, g.Block(idx).Kind)
	m[idx] = l
	return l
}

// EmitFunction lowers g (already built and Analyze'd) into one IR function
// definition: `export function <rettype> $name(<params>) { ... }`. The
// program's top-level "main" body additionally gets the scope-aware
// memory management prologue/epilogue spec §4.4's output layout names,
// keyed off the well-known name rather than a separate flag so every
// caller (including the unit tests that build "main" CFGs directly) gets
// it for free.
func (t *Translator) EmitFunction(name string, params []symtable.Param, rettype string, scope symtable.Scope, g *cfg.Graph) string {
	prevScope := t.scope
	t.scope = scope
	defer func() { t.scope = prevScope }()

	isMain := name == "main"

	paramList := make([]string, 0, len(params))
	for _, p := range params {
		paramList = append(paramList, fmt.Sprintf("%s %s", Widen(p.Type.Base), VarName(p.Name)))
	}
	retLetter := rettype
	t.b.EmitRaw(fmt.Sprintf("export function %s $%s(%s) {\n", retLetter, name, strings.Join(paramList, ", ")))
	if isMain {
		t.b.CallVoid("_samm_init")
		t.b.CallVoid("_samm_scope_enter")
	}

	for _, idx := range cfg.RPOOrder(g) {
		blk := g.Block(idx)
		t.b.EmitLabel(t.blockLabel(g, idx))
		if blk.Kind == cfg.ExitBlock {
			if isMain {
				t.b.EmitComment("program_exit")
				t.b.CallVoid("_samm_scope_exit")
			}
			t.emitReturn(rettype)
			continue
		}
		for _, s := range blk.Stmts {
			t.LowerStmt(s)
		}
		t.emitTerminator(g, blk)
	}
	t.b.EmitRaw("}\n")
	return t.b.String()
}

func (t *Translator) emitReturn(rettype string) {
	if rettype == "" {
		t.b.EmitTerminator("ret")
		return
	}
	t.b.EmitTerminator("ret 0")
}

func (t *Translator) emitTerminator(g *cfg.Graph, blk *cfg.BasicBlock) {
	outs := edgesFrom(g, blk.Index)
	if len(outs) == 0 {
		t.b.EmitTerminator("ret")
		return
	}

	trueTarget, falseTarget := -1, -1
	for _, e := range outs {
		switch e.Kind {
		case cfg.BranchTrue, cfg.CaseMatch:
			trueTarget = e.To
		case cfg.BranchFalse, cfg.LoopExitEdge, cfg.CaseNext:
			falseTarget = e.To
		case cfg.BackEdge:
			trueTarget = e.To
		}
	}
	if blk.Cond != nil && trueTarget >= 0 && falseTarget >= 0 {
		condTemp, _ := t.LowerExpr(blk.Cond)
		t.b.EmitTerminator("jnz %s, @%s, @%s", condTemp, t.blockLabel(g, trueTarget), t.blockLabel(g, falseTarget))
		return
	}

	// Multi-way computed branch (ON GOTO/GOSUB): structural comment plus a
	// jump to the first resolved target, matching spec §4.4's allowance to
	// stub constructs the linear ret/jmp/jnz grammar cannot represent
	// directly (the same allowance the spec gives TRY).
	var jumpEdges []cfg.Edge
	for _, e := range outs {
		if e.Kind == cfg.ComputedBranch || e.Kind == cfg.GosubCall || e.Kind == cfg.Jump {
			jumpEdges = append(jumpEdges, e)
		}
	}
	if len(jumpEdges) > 1 {
		var names []string
		for _, e := range jumpEdges {
			names = append(names, "@"+t.blockLabel(g, e.To))
		}
		t.b.EmitComment("computed branch targets: %s", strings.Join(names, ", "))
		t.b.EmitTerminator("jmp %s", names[0])
		return
	}

	for _, e := range outs {
		if e.Kind == cfg.ExitEdge {
			t.b.EmitTerminator("jmp @%s", t.blockLabel(g, g.ExitIndex))
			return
		}
	}
	t.b.EmitTerminator("jmp @%s", t.blockLabel(g, outs[0].To))
}

func edgesFrom(g *cfg.Graph, from int) []cfg.Edge {
	var out []cfg.Edge
	for _, e := range g.Edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

// LowerStmt lowers one straight-line statement (the kinds the CFG builder
// leaves inside a block's Stmts list: control constructs themselves are
// already represented structurally and never appear here).
func (t *Translator) LowerStmt(s *ast.Node) {
	if s == nil {
		return
	}
	switch s.Kind {
	case ast.LetStmt:
		val, _ := t.LowerExpr(s.Rhs)
		t.store(s.Lhs, val)

	case ast.ForStmt:
		t.lowerForOccurrence(s)

	case ast.PrintStmt:
		for _, e := range s.Kids {
			val, typ := t.LowerExpr(e)
			t.b.CallVoid(printFuncFor(typ), val)
		}
		t.b.CallVoid("_basic_print_newline")

	case ast.InputStmt:
		for _, target := range s.Kids {
			line := t.b.CallReturning("l", "_basic_input_line")
			t.store(target, line)
		}

	case ast.ReadStmt:
		for _, target := range s.Kids {
			val := t.b.CallReturning("d", "_data_read")
			t.store(target, val)
		}

	case ast.RestoreStmt:
		label := t.b.StringLabel(s.Target)
		t.b.CallVoid("_data_restore", label)

	case ast.IncStmt:
		t.lowerIncDec(s, "add")
	case ast.DecStmt:
		t.lowerIncDec(s, "sub")

	case ast.SwapStmt:
		a, _ := t.LowerExpr(s.Lhs)
		bval, _ := t.LowerExpr(s.Rhs)
		t.store(s.Lhs, bval)
		t.store(s.Rhs, a)

	case ast.CallStmt:
		args := make([]string, 0, len(s.Kids))
		for _, arg := range s.Kids {
			v, _ := t.LowerExpr(arg)
			args = append(args, v)
		}
		t.b.CallVoid(SubName(s.Str), args...)

	case ast.ThrowStmt:
		val, _ := t.LowerExpr(s.Rhs)
		t.b.CallVoid("_samm_release", val)

	case ast.DimStmt, ast.GlobalStmt:
		if !s.IsArray {
			if s.Rhs != nil {
				val, _ := t.LowerExpr(s.Rhs)
				t.store(&ast.Node{Kind: ast.VarRef, Str: s.Str, Tok: s.Tok}, val)
			}
			return
		}
		t.b.CallVoid("_array_alloc", ArrayDescName(s.Str))

	case ast.RedimStmt:
		t.b.CallVoid("_array_alloc", ArrayDescName(s.Str))

	case ast.ExitStmt, ast.GotoStmt, ast.GosubStmt, ast.OnGotoStmt, ast.OnGosubStmt,
		ast.ReturnStmt, ast.EndStmt:
		t.lowerControlLeaf(s)

	default:
		t.b.EmitComment("unhandled statement kind %v", s.Kind)
	}
}

// lowerControlLeaf emits any bookkeeping a control-transfer statement needs
// beyond the branch the CFG's edge already encodes (the jump/branch itself
// is emitted by emitTerminator from the block's outgoing edges).
func (t *Translator) lowerControlLeaf(s *ast.Node) {
	switch s.Kind {
	case ast.GosubStmt:
		resumeLabel := t.b.StringLabel(s.Target + "$resume")
		t.b.CallVoid("_gosub_push", resumeLabel)
	case ast.ReturnStmt:
		t.b.CallVoid("_gosub_pop")
	}
}

// lowerForOccurrence handles both occurrences the CFG builder produces for
// one FOR statement: the init occurrence (Bool=false, left in the
// pre-header block, Lhs=start expr) stores the start value into the index
// variable; the increment occurrence (Bool=true, left in the
// for_increment block) adds the step (Rhs if present, else 1) and stores
// the result back.
func (t *Translator) lowerForOccurrence(s *ast.Node) {
	idx := varRefNode(s)
	if !s.Bool {
		start, _ := t.LowerExpr(s.Lhs)
		t.store(idx, start)
		return
	}
	cur, typ := t.LowerExpr(idx)
	amount := "1"
	if s.Rhs != nil {
		v, _ := t.LowerExpr(s.Rhs)
		amount = v
	}
	dest := t.b.NewTemp()
	t.b.Emit("%s =%s add %s, %s", dest, Widen(typ.Base), cur, amount)
	t.store(idx, dest)
}

func varRefNode(s *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.VarRef, Str: s.Str, Tok: s.Tok}
}

func (t *Translator) lowerIncDec(s *ast.Node, op string) {
	cur, typ := t.LowerExpr(s.Lhs)
	amount := "1"
	if s.Rhs != nil {
		v, _ := t.LowerExpr(s.Rhs)
		amount = v
	}
	dest := t.b.NewTemp()
	letter := Widen(typ.Base)
	t.b.Emit("%s =%s %s %s, %s", dest, letter, op, cur, amount)
	t.store(s.Lhs, dest)
}

func printFuncFor(typ types.Descriptor) string {
	switch {
	case typ.Base == types.String || typ.Base == types.Unicode:
		return "_basic_print_string"
	case typ.Base.IsFloat():
		return "_basic_print_double"
	default:
		return "_basic_print_int"
	}
}

// store writes val into the lvalue described by target (a VarRef, ArrayRef,
// or FieldRef node).
func (t *Translator) store(target *ast.Node, val string) {
	if target == nil {
		return
	}
	switch target.Kind {
	case ast.VarRef:
		typ := t.typeOf(target.Str)
		t.b.Emit("store%s %s, $%s", typ.Base.MemWidth(), val, VarName(target.Str))
	case ast.ArrayRef:
		addr := t.arrayElementAddr(target)
		t.b.Emit("storel %s, %s", val, addr)
	case ast.FieldRef:
		base, _ := t.LowerExpr(target.Lhs)
		t.b.Emit("storel %s, %s  # field %s", val, base, target.Str)
	}
}

func (t *Translator) typeOf(name string) types.Descriptor {
	if v, ok := t.Syms.LookupVariable(name, t.scope); ok {
		return v.Type
	}
	return types.NewScalar(types.Double)
}

func (t *Translator) arrayElementAddr(n *ast.Node) string {
	args := []string{"$" + ArrayDescName(n.Str)}
	for _, idx := range n.Kids {
		v, _ := t.LowerExpr(idx)
		args = append(args, v)
	}
	return t.b.CallReturning("l", "_array_element_addr", args...)
}

// LowerExpr lowers n to a temp holding its value, returning the temp name
// and its inferred type (spec §4.4 #5's expression-lowering rules).
func (t *Translator) LowerExpr(n *ast.Node) (string, types.Descriptor) {
	if n == nil {
		dest := t.b.NewTemp()
		t.b.Emit("%s =d copy 0", dest)
		return dest, types.NewScalar(types.Double)
	}

	switch n.Kind {
	case ast.NumberLit:
		dest := t.b.NewTemp()
		t.b.Emit("%s =d copy %s", dest, strconv.FormatFloat(n.Num, 'g', -1, 64))
		return dest, types.NewScalar(types.Double)

	case ast.StringLit:
		label := t.b.StringLabel(n.Str)
		dest := t.b.NewTemp()
		t.b.Emit("%s =l copy %s", dest, label)
		return dest, types.NewScalar(types.String)

	case ast.BoolLit:
		dest := t.b.NewTemp()
		v := 0
		if n.Bool {
			v = 1
		}
		t.b.Emit("%s =w copy %d", dest, v)
		return dest, types.NewScalar(types.Integer)

	case ast.NullLit:
		dest := t.b.NewTemp()
		t.b.Emit("%s =l copy 0", dest)
		return dest, types.Descriptor{Base: types.Pointer, UDTID: -1}

	case ast.VarRef:
		typ := t.typeOf(n.Str)
		dest := t.b.NewTemp()
		t.b.Emit("%s =%s load%s $%s", dest, Widen(typ.Base), typ.Base.MemWidth(), VarName(n.Str))
		return dest, typ

	case ast.ArrayRef:
		arr, _ := t.Syms.LookupArray(n.Str)
		addr := t.arrayElementAddr(n)
		dest := t.b.NewTemp()
		t.b.Emit("%s =%s loadl %s", dest, Widen(arr.Element.Base), addr)
		return dest, arr.Element

	case ast.FieldRef:
		base, baseType := t.LowerExpr(n.Lhs)
		dest := t.b.NewTemp()
		t.b.Emit("%s =l loadl %s  # field %s", dest, base, n.Str)
		fieldType := types.NewScalar(types.Double)
		if udt, ok := t.Syms.LookupType(baseType.UDTName); ok {
			for _, f := range udt.Fields {
				if strings.EqualFold(f.Name, n.Str) {
					fieldType = f.Type
				}
			}
		}
		return dest, fieldType

	case ast.BinaryExpr:
		return t.lowerBinary(n)

	case ast.LogicalExpr:
		return t.lowerLogical(n)

	case ast.UnaryExpr:
		return t.lowerUnary(n)

	case ast.CallExpr:
		return t.lowerCall(n)

	case ast.IIFExpr:
		return t.lowerIIF(n)

	case ast.NewExpr:
		return t.lowerNew(n)

	case ast.CreateExpr:
		return t.lowerCreate(n)

	default:
		dest := t.b.NewTemp()
		t.b.Emit("%s =d copy 0  # unhandled expr kind %v", dest, n.Kind)
		return dest, types.NewScalar(types.Double)
	}
}

func (t *Translator) lowerBinary(n *ast.Node) (string, types.Descriptor) {
	lhs, lhsType := t.LowerExpr(n.Lhs)
	rhs, rhsType := t.LowerExpr(n.Rhs)
	result := types.Promote(lhsType, rhsType)
	dest := t.b.NewTemp()

	switch n.Op {
	case token.PLUS:
		if result.Base == types.String {
			v := t.b.CallReturning("l", "_string_concat", lhs, rhs)
			return v, result
		}
		t.b.Emit("%s =d add %s, %s", dest, lhs, rhs)
	case token.MINUS:
		t.b.Emit("%s =d sub %s, %s", dest, lhs, rhs)
	case token.STAR:
		t.b.Emit("%s =d mul %s, %s", dest, lhs, rhs)
	case token.SLASH:
		t.b.Emit("%s =d div %s, %s", dest, lhs, rhs)
	case token.BACKSLASH:
		li := t.b.NewTemp()
		ri := t.b.NewTemp()
		t.b.Emit("%s =w dtosi %s", li, lhs)
		t.b.Emit("%s =w dtosi %s", ri, rhs)
		iq := t.b.NewTemp()
		t.b.Emit("%s =w div %s, %s", iq, li, ri)
		t.b.Emit("%s =d swtof %s", dest, iq)
	case token.MOD:
		// lhs - floor(lhs/rhs)*rhs, per spec §4.4's modulo lowering rule.
		q := t.b.NewTemp()
		fl := t.b.NewTemp()
		prod := t.b.NewTemp()
		t.b.Emit("%s =d div %s, %s", q, lhs, rhs)
		fl = t.b.CallReturning("d", "_math_floor", q)
		t.b.Emit("%s =d mul %s, %s", prod, fl, rhs)
		t.b.Emit("%s =d sub %s, %s", dest, lhs, prod)
	case token.CARET_POW:
		v := t.b.CallReturning("d", "_math_power", lhs, rhs)
		return v, types.NewScalar(types.Double)
	case token.EQ:
		if lhsType.Base == types.String {
			v := t.b.CallReturning("w", "_string_equals", lhs, rhs)
			return v, types.NewScalar(types.Integer)
		}
		t.b.Emit("%s =w ceqd %s, %s", dest, lhs, rhs)
		return dest, types.NewScalar(types.Integer)
	case token.NE:
		t.b.Emit("%s =w cned %s, %s", dest, lhs, rhs)
		return dest, types.NewScalar(types.Integer)
	case token.LT:
		t.b.Emit("%s =w cltd %s, %s", dest, lhs, rhs)
		return dest, types.NewScalar(types.Integer)
	case token.LE:
		t.b.Emit("%s =w cled %s, %s", dest, lhs, rhs)
		return dest, types.NewScalar(types.Integer)
	case token.GT:
		t.b.Emit("%s =w cgtd %s, %s", dest, lhs, rhs)
		return dest, types.NewScalar(types.Integer)
	case token.GE:
		t.b.Emit("%s =w cged %s, %s", dest, lhs, rhs)
		return dest, types.NewScalar(types.Integer)
	default:
		t.b.EmitComment("unhandled binary operator %v", n.Op)
	}
	return dest, result
}

func (t *Translator) lowerLogical(n *ast.Node) (string, types.Descriptor) {
	lhs, _ := t.LowerExpr(n.Lhs)
	rhs, _ := t.LowerExpr(n.Rhs)
	dest := t.b.NewTemp()
	switch n.Op {
	case token.AND:
		t.b.Emit("%s =w and %s, %s", dest, lhs, rhs)
	case token.OR:
		t.b.Emit("%s =w or %s, %s", dest, lhs, rhs)
	case token.XOR:
		t.b.Emit("%s =w xor %s, %s", dest, lhs, rhs)
	default:
		t.b.EmitComment("unhandled logical operator %v", n.Op)
	}
	return dest, types.NewScalar(types.Integer)
}

func (t *Translator) lowerUnary(n *ast.Node) (string, types.Descriptor) {
	val, typ := t.LowerExpr(n.Lhs)
	dest := t.b.NewTemp()
	switch n.Op {
	case token.MINUS:
		t.b.Emit("%s =%s neg %s", dest, Widen(typ.Base), val)
	case token.NOT:
		t.b.Emit("%s =w ceqw %s, 0", dest, val)
		typ = types.NewScalar(types.Integer)
	default:
		t.b.EmitComment("unhandled unary operator %v", n.Op)
	}
	return dest, typ
}

func (t *Translator) lowerCall(n *ast.Node) (string, types.Descriptor) {
	args := make([]string, 0, len(n.Kids))
	for _, arg := range n.Kids {
		v, _ := t.LowerExpr(arg)
		args = append(args, v)
	}
	fn, ok := t.Syms.LookupFunction(n.Str)
	rettype := types.NewScalar(types.Double)
	if ok {
		rettype = fn.Return
	}
	dest := t.b.CallReturning(Widen(rettype.Base), FuncName(n.Str), args...)
	return dest, rettype
}

func (t *Translator) lowerIIF(n *ast.Node) (string, types.Descriptor) {
	cond, _ := t.LowerExpr(n.Cond)
	trueLbl, falseLbl, endLbl := t.b.NewLabel(), t.b.NewLabel(), t.b.NewLabel()
	result := t.b.NewTemp()
	t.b.EmitTerminator("jnz %s, @%s, @%s", cond, trueLbl, falseLbl)

	t.b.EmitLabel(trueLbl)
	trueVal, typ := t.LowerExpr(n.Lhs)
	t.b.Emit("%s =%s copy %s", result, Widen(typ.Base), trueVal)
	t.b.EmitTerminator("jmp @%s", endLbl)

	t.b.EmitLabel(falseLbl)
	falseVal, _ := t.LowerExpr(n.Rhs)
	t.b.Emit("%s =%s copy %s", result, Widen(typ.Base), falseVal)
	t.b.EmitTerminator("jmp @%s", endLbl)

	t.b.EmitLabel(endLbl)
	return result, typ
}

func (t *Translator) lowerNew(n *ast.Node) (string, types.Descriptor) {
	class, _ := t.Syms.LookupClass(n.Str)
	size := 16
	if class != nil {
		size = class.ObjectSize
	}
	vtable := "$" + VTableName(n.Str)
	dest := t.b.CallReturning("l", "_object_alloc", strconv.Itoa(size), vtable)
	return dest, types.Descriptor{Base: types.ClassInstance, ClassName: n.Str, IsClassType: true, UDTID: -1}
}

func (t *Translator) lowerCreate(n *ast.Node) (string, types.Descriptor) {
	udt, _ := t.Syms.LookupType(n.Str)
	size := 0
	if udt != nil {
		fieldTypes := make([]types.Descriptor, 0, len(udt.Fields))
		for _, f := range udt.Fields {
			fieldTypes = append(fieldTypes, f.Type)
		}
		size = UDTSize(fieldTypes)
	}
	dest := t.b.CallReturning("l", "_samm_alloc", strconv.Itoa(size))
	if udt != nil {
		offset := 0
		for i, f := range udt.Fields {
			if i < len(n.Kids) {
				val, _ := t.LowerExpr(n.Kids[i])
				t.b.Emit("storel %s, %s  # offset %d", val, dest, offset)
			}
			offset += f.Type.Size()
		}
	}
	udtID := -1
	if udt != nil {
		udtID = udt.ID
	}
	return dest, types.Descriptor{Base: types.UserDefined, UDTName: n.Str, UDTID: udtID}
}
