package semantic

import (
	"fasterbasic/pkg/ast"
	"fasterbasic/pkg/diag"
	"fasterbasic/pkg/symtable"
)

// validate is pass 2 of spec §4.2: it walks the same tree collect already
// registered declarations from, checking loop-terminator matching,
// reference validity, and marking every variable reference used. Pass 1
// must have already run and FixUpClassParents/LayoutClass must have
// completed before this call, since CREATE/NEW validation needs live
// class and UDT tables.
func (a *Analyzer) validate(stmts []*ast.Node, scope symtable.Scope) {
	gosubSeen := false
	for _, s := range stmts {
		a.validateStmt(s, scope, &gosubSeen)
	}
}

func (a *Analyzer) validateStmt(s *ast.Node, scope symtable.Scope, gosubSeen *bool) {
	if s == nil {
		return
	}
	switch s.Kind {
	case ast.LetStmt:
		a.validateExpr(s.Rhs, scope)
		a.validateLValue(s.Lhs, scope)

	case ast.ReadStmt:
		for _, t := range s.Kids {
			a.validateLValue(t, scope)
		}

	case ast.IncStmt, ast.DecStmt:
		a.validateLValue(s.Lhs, scope)

	case ast.SwapStmt:
		a.validateLValue(s.Lhs, scope)
		a.validateLValue(s.Rhs, scope)

	case ast.PrintStmt, ast.InputStmt, ast.CallStmt, ast.ThrowStmt:
		for _, e := range s.Kids {
			a.validateExpr(e, scope)
		}
		a.validateExpr(s.Rhs, scope)

	case ast.GotoStmt:
		a.validateJumpTarget(s, scope)

	case ast.GosubStmt:
		*gosubSeen = true
		a.validateJumpTarget(s, scope)

	case ast.OnGotoStmt, ast.OnGosubStmt:
		if s.Kind == ast.OnGosubStmt {
			*gosubSeen = true
		}
		a.validateExpr(s.Cond, scope)
		for _, name := range s.Names {
			a.validateLabelOrLineName(s, name)
		}

	case ast.ReturnStmt:
		if !*gosubSeen {
			a.Bag.Error(diag.ReturnWithoutGosub, s.Loc(), "RETURN without a preceding GOSUB in this scope")
		}

	case ast.IfStmt:
		a.validateExpr(s.Cond, scope)
		a.validate(s.Then, scope)
		a.validate(s.Else, scope)
		for _, elseif := range s.Kids {
			a.validateExpr(elseif.Cond, scope)
			a.validate(elseif.Then, scope)
		}

	case ast.ForStmt:
		a.validateForStmt(s, scope)

	case ast.ForEachStmt:
		a.validateExpr(s.Cond, scope)
		a.Syms.MarkUsed(s.Str, scope)
		a.validate(s.Then, scope)

	case ast.WhileStmt:
		a.whileStack = append(a.whileStack, loopCtx{})
		a.validateExpr(s.Cond, scope)
		a.validate(s.Then, scope)
		a.whileStack = a.whileStack[:len(a.whileStack)-1]

	case ast.DoLoopStmt:
		a.doStack = append(a.doStack, loopCtx{})
		a.validateExpr(s.Cond, scope)
		a.validate(s.Then, scope)
		a.doStack = a.doStack[:len(a.doStack)-1]

	case ast.RepeatStmt:
		a.repeatStack = append(a.repeatStack, loopCtx{})
		a.validate(s.Then, scope)
		a.validateExpr(s.Cond, scope)
		a.repeatStack = a.repeatStack[:len(a.repeatStack)-1]

	case ast.SelectCaseStmt:
		a.validateExpr(s.Cond, scope)
		for _, c := range s.Kids {
			for _, e := range c.Kids {
				a.validateExpr(e, scope)
			}
			a.validate(c.Then, scope)
		}

	case ast.TryStmt:
		a.validate(s.Then, scope)
		for _, c := range s.Kids {
			a.validate(c.Then, scope)
		}
		a.validate(s.Else, scope)

	case ast.ExitStmt:
		a.validateExit(s)

	case ast.DimStmt, ast.GlobalStmt:
		if s.IsArray {
			for _, d := range s.Kids {
				a.validateExpr(d, scope)
			}
		}

	case ast.RedimStmt:
		if _, ok := a.Syms.LookupArray(s.Str); !ok {
			a.Bag.Error(diag.UndefinedArray, s.Loc(), "REDIM of undeclared array %q", s.Str)
		}
		for _, d := range s.Kids {
			a.validateExpr(d, scope)
		}

	case ast.RestoreStmt:
		a.validateLabelOrLineName(s, s.Target)

	case ast.FunctionDecl, ast.SubDecl:
		a.validateFunctionBody(s)

	case ast.ClassDecl:
		a.validateClassBody(s)

	case ast.TypeDecl, ast.ConstStmt, ast.LabelStmt, ast.DataStmt, ast.EndStmt:
		// Nothing further to check: collection already recorded everything
		// pass 2 needs for these kinds.
	}
}

func (a *Analyzer) validateForStmt(s *ast.Node, scope symtable.Scope) {
	a.forStack = append(a.forStack, loopCtx{label: s.Str})
	a.Syms.MarkUsed(s.Str, scope)
	a.validateExpr(s.Lhs, scope)
	a.validateExpr(s.Rhs, scope)
	a.validateExpr(s.Cond, scope)
	a.validate(s.Then, scope)
	a.forStack = a.forStack[:len(a.forStack)-1]
}

func (a *Analyzer) validateExit(s *ast.Node) {
	switch s.Exit {
	case ast.ExitFor:
		if len(a.forStack) == 0 {
			a.Bag.Error(diag.ControlFlowMismatch, s.Loc(), "EXIT FOR outside a FOR loop")
		}
	case ast.ExitWhile:
		if len(a.whileStack) == 0 {
			a.Bag.Error(diag.ControlFlowMismatch, s.Loc(), "EXIT WHILE outside a WHILE loop")
		}
	case ast.ExitDo:
		if len(a.doStack) == 0 {
			a.Bag.Error(diag.ControlFlowMismatch, s.Loc(), "EXIT DO outside a DO loop")
		}
	case ast.ExitRepeat:
		if len(a.repeatStack) == 0 {
			a.Bag.Error(diag.ControlFlowMismatch, s.Loc(), "EXIT REPEAT outside a REPEAT loop")
		}
	case ast.ExitSub, ast.ExitFunction:
		if !a.inFunction {
			a.Bag.Error(diag.ControlFlowMismatch, s.Loc(), "EXIT SUB/FUNCTION outside a function body")
		}
	}
}

func (a *Analyzer) validateJumpTarget(s *ast.Node, scope symtable.Scope) {
	a.validateLabelOrLineName(s, s.Target)
}

// validateLabelOrLineName resolves name against either the label table or
// the line-number table, whichever it parses as (spec §3.3 treats GOTO/
// GOSUB/RESTORE targets as either).
func (a *Analyzer) validateLabelOrLineName(s *ast.Node, name string) {
	if name == "" {
		return
	}
	if n, ok := parseLineNumber(name); ok {
		if _, found := a.Syms.LineIndex(n); !found {
			a.Bag.Error(diag.UndefinedLine, s.Loc(), "undefined line number %s", name)
		}
		return
	}
	if _, ok := a.Syms.LookupLabel(name); !ok {
		a.Bag.Error(diag.UndefinedLabel, s.Loc(), "undefined label %q", name)
	}
}

func parseLineNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func (a *Analyzer) validateFunctionBody(s *ast.Node) {
	prevIn, prevName := a.inFunction, a.currentFunction
	a.inFunction, a.currentFunction = true, s.Str
	a.validate(s.Then, symtable.FuncScope(s.Str))
	a.inFunction, a.currentFunction = prevIn, prevName
}

func (a *Analyzer) validateClassBody(s *ast.Node) {
	for _, member := range s.Kids {
		switch member.Kind {
		case ast.MethodDecl:
			prevIn, prevName := a.inFunction, a.currentFunction
			a.inFunction, a.currentFunction = true, s.Str+"."+member.Str
			a.validate(member.Then, symtable.FuncScope(s.Str+"."+member.Str))
			a.inFunction, a.currentFunction = prevIn, prevName
		case ast.ConstructorDecl:
			a.validate(member.Then, symtable.FuncScope(s.Str+".CONSTRUCTOR"))
		case ast.DestructorDecl:
			a.validate(member.Then, symtable.FuncScope(s.Str+".DESTRUCTOR"))
		}
	}
}

// validateLValue checks an assignment target: a bare variable reference is
// implicitly declared already by pass 1, so this only needs to mark it used
// and validate array/field subscripts.
func (a *Analyzer) validateLValue(n *ast.Node, scope symtable.Scope) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.VarRef:
		a.Syms.MarkUsed(n.Str, scope)
	case ast.ArrayRef:
		if _, ok := a.Syms.LookupArray(n.Str); !ok {
			a.Bag.Error(diag.UndefinedArray, n.Loc(), "undefined array %q", n.Str)
		}
		for _, idx := range n.Kids {
			a.validateExpr(idx, scope)
		}
	case ast.FieldRef:
		a.validateExpr(n.Lhs, scope)
	}
}

// validateExpr recurses through an expression tree, marking variable
// references used and checking NEW/CREATE target names against the class
// and UDT tables.
func (a *Analyzer) validateExpr(n *ast.Node, scope symtable.Scope) {
	if n == nil {
		return
	}
	switch n.Kind {
	case ast.VarRef:
		if _, ok := a.Syms.LookupVariable(n.Str, scope); !ok {
			a.Bag.Error(diag.UndefinedVariable, n.Loc(), "undefined variable %q", n.Str)
			return
		}
		a.Syms.MarkUsed(n.Str, scope)

	case ast.ArrayRef:
		if _, ok := a.Syms.LookupArray(n.Str); !ok {
			a.Bag.Error(diag.UndefinedArray, n.Loc(), "undefined array %q", n.Str)
		}
		for _, idx := range n.Kids {
			a.validateExpr(idx, scope)
		}

	case ast.FieldRef:
		a.validateExpr(n.Lhs, scope)

	case ast.BinaryExpr, ast.LogicalExpr:
		a.validateExpr(n.Lhs, scope)
		a.validateExpr(n.Rhs, scope)

	case ast.UnaryExpr:
		a.validateExpr(n.Lhs, scope)

	case ast.CallExpr:
		if _, ok := a.Syms.LookupFunction(n.Str); !ok {
			a.Bag.Error(diag.UndefinedFunction, n.Loc(), "undefined function %q", n.Str)
		}
		for _, arg := range n.Kids {
			a.validateExpr(arg, scope)
		}

	case ast.IIFExpr:
		a.validateExpr(n.Cond, scope)
		a.validateExpr(n.Lhs, scope)
		a.validateExpr(n.Rhs, scope)

	case ast.NewExpr:
		if _, ok := a.Syms.LookupClass(n.Str); !ok {
			a.Bag.Error(diag.UndefinedClass, n.Loc(), "NEW of undeclared class %q", n.Str)
		}
		for _, arg := range n.Kids {
			a.validateExpr(arg, scope)
		}

	case ast.CreateExpr:
		if _, ok := a.Syms.LookupType(n.Str); !ok {
			a.Bag.Error(diag.UndefinedType, n.Loc(), "CREATE of undeclared type %q", n.Str)
		}
		for _, arg := range n.Kids {
			a.validateExpr(arg, scope)
		}

	case ast.NumberLit, ast.StringLit, ast.BoolLit, ast.NullLit:
		// Leaves; nothing to validate.
	}
}
