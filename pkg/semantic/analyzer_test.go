package semantic

import (
	"testing"

	"fasterbasic/pkg/ast"
	"fasterbasic/pkg/diag"
	"fasterbasic/pkg/symtable"
	"fasterbasic/pkg/token"
	"fasterbasic/pkg/types"
)

func tok(k token.Kind) token.Token {
	return token.Token{Kind: k, Loc: token.Location{Line: 1, Column: 1}}
}

func node(kind ast.Kind) *ast.Node { return ast.New(kind, tok(token.IDENT)) }

func varRef(name string) *ast.Node {
	n := node(ast.VarRef)
	n.Str = name
	return n
}

func numLit(v float64) *ast.Node {
	n := node(ast.NumberLit)
	n.Num = v
	return n
}

// TestImplicitVariableDeclaration covers spec §4.2/§9: a bare LET target
// not already declared registers itself with a suffix-derived type.
func TestImplicitVariableDeclaration(t *testing.T) {
	letStmt := node(ast.LetStmt)
	letStmt.Lhs = varRef("COUNT%")
	letStmt.Rhs = numLit(1)

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{letStmt}}
	syms, bag := Analyze(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Sorted())
	}
	v, ok := syms.LookupVariable("COUNT%", symtable.GlobalScope())
	if !ok {
		t.Fatal("expected COUNT% to be implicitly declared")
	}
	if v.Type.Base != types.Integer {
		t.Fatalf("expected integer from %% suffix, got %v", v.Type.Base)
	}
	if v.Declared {
		t.Fatal("implicit declarations must record Declared=false")
	}
}

// TestForIndexForcedInteger covers spec §4.2: FOR index variables are
// always integer regardless of any suffix on the name.
func TestForIndexForcedInteger(t *testing.T) {
	forStmt := node(ast.ForStmt)
	forStmt.Str = "I"
	forStmt.Lhs = numLit(1)
	forStmt.Rhs = numLit(10)
	forStmt.Cond = node(ast.BoolLit)
	forStmt.Then = []*ast.Node{}

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{forStmt}}
	syms, bag := Analyze(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Sorted())
	}
	v, ok := syms.LookupVariable("I", symtable.GlobalScope())
	if !ok {
		t.Fatal("expected I to be registered")
	}
	if v.Type.Base != types.LoopIndex {
		t.Fatalf("expected loop_index type for FOR index, got %v", v.Type.Base)
	}
}

// TestExitForOutsideLoopReportsControlFlowMismatch covers spec §7's
// control-flow taxonomy.
func TestExitForOutsideLoopReportsControlFlowMismatch(t *testing.T) {
	exitStmt := node(ast.ExitStmt)
	exitStmt.Exit = ast.ExitFor

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{exitStmt}}
	_, bag := Analyze(prog)
	if !bag.HasErrors() {
		t.Fatal("expected an error for EXIT FOR outside a FOR loop")
	}
	if bag.Sorted()[0].Kind != diag.ControlFlowMismatch {
		t.Fatalf("expected control_flow_mismatch, got %v", bag.Sorted()[0].Kind)
	}
}

// TestReturnWithoutGosubReportsError covers spec §7.
func TestReturnWithoutGosubReportsError(t *testing.T) {
	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{node(ast.ReturnStmt)}}
	_, bag := Analyze(prog)
	if !bag.HasErrors() {
		t.Fatal("expected return_without_gosub error")
	}
	if bag.Sorted()[0].Kind != diag.ReturnWithoutGosub {
		t.Fatalf("expected return_without_gosub, got %v", bag.Sorted()[0].Kind)
	}
}

// TestGosubThenReturnIsClean ensures a GOSUB in scope silences the
// return_without_gosub check.
func TestGosubThenReturnIsClean(t *testing.T) {
	label := node(ast.LabelStmt)
	label.Str = "SUB1"
	gosub := node(ast.GosubStmt)
	gosub.Target = "SUB1"
	ret := node(ast.ReturnStmt)

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{label, gosub, ret}}
	_, bag := Analyze(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Sorted())
	}
}

// TestUndefinedGotoLabelReportsError covers spec §4.2's label validation.
func TestUndefinedGotoLabelReportsError(t *testing.T) {
	gotoStmt := node(ast.GotoStmt)
	gotoStmt.Target = "NOWHERE"

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{gotoStmt}}
	_, bag := Analyze(prog)
	if !bag.HasErrors() {
		t.Fatal("expected undefined_label error")
	}
	if bag.Sorted()[0].Kind != diag.UndefinedLabel {
		t.Fatalf("expected undefined_label, got %v", bag.Sorted()[0].Kind)
	}
}

// TestCreateUndeclaredTypeReportsError covers spec §4.2's "CREATE
// <TypeName> references a known UDT" validation rule.
func TestCreateUndeclaredTypeReportsError(t *testing.T) {
	create := node(ast.CreateExpr)
	create.Str = "POINT"
	letStmt := node(ast.LetStmt)
	letStmt.Lhs = varRef("P")
	letStmt.Rhs = create

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{letStmt}}
	_, bag := Analyze(prog)
	if !bag.HasErrors() {
		t.Fatal("expected undefined_type error for CREATE of an undeclared UDT")
	}
	if bag.Sorted()[0].Kind != diag.UndefinedType {
		t.Fatalf("expected undefined_type, got %v", bag.Sorted()[0].Kind)
	}
}

// TestClassInheritedMethodOverride is spec §8 scenario E6: after fix-up,
// Dog.Parent == &Animal and the overriding Speak method keeps Animal's
// vtable slot.
func TestClassInheritedMethodOverride(t *testing.T) {
	speakAnimal := node(ast.MethodDecl)
	speakAnimal.Str = "Speak"
	animal := node(ast.ClassDecl)
	animal.Str = "Animal"
	animal.Kids = []*ast.Node{speakAnimal}

	speakDog := node(ast.MethodDecl)
	speakDog.Str = "Speak"
	dog := node(ast.ClassDecl)
	dog.Str = "Dog"
	dog.Target = "Animal" // EXTENDS
	dog.Kids = []*ast.Node{speakDog}

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{animal, dog}}
	syms, bag := Analyze(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Sorted())
	}

	animalClass, ok := syms.LookupClass("Animal")
	if !ok {
		t.Fatal("expected Animal class to be registered")
	}
	dogClass, ok := syms.LookupClass("Dog")
	if !ok {
		t.Fatal("expected Dog class to be registered")
	}
	if dogClass.Parent != animalClass {
		t.Fatal("expected Dog.Parent to point at Animal after fix-up")
	}

	animalSpeak, ok := animalClass.MethodByName("Speak")
	if !ok {
		t.Fatal("expected Animal.Speak")
	}
	dogSpeak, ok := dogClass.MethodByName("Speak")
	if !ok {
		t.Fatal("expected Dog.Speak")
	}
	if !dogSpeak.IsOverride {
		t.Fatal("expected Dog.Speak.IsOverride == true")
	}
	if dogSpeak.VTableSlot != animalSpeak.VTableSlot {
		t.Fatalf("expected matching vtable slots, got dog=%d animal=%d",
			dogSpeak.VTableSlot, animalSpeak.VTableSlot)
	}
}

// TestMethodParamRegistersInMethodScope covers the method parameter/scope
// binding collectMemberParams performs: a method's formal parameter must
// resolve to the same declaration both in its own Params list and via a
// LookupVariable against its FuncScope, the same contract collectFunction
// already guarantees for a plain FUNCTION/SUB.
func TestMethodParamRegistersInMethodScope(t *testing.T) {
	param := varRef("N%")
	speak := node(ast.MethodDecl)
	speak.Str = "Speak"
	speak.Kids = []*ast.Node{param}

	animal := node(ast.ClassDecl)
	animal.Str = "Animal"
	animal.Kids = []*ast.Node{speak}

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{animal}}
	syms, bag := Analyze(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Sorted())
	}

	animalClass, ok := syms.LookupClass("Animal")
	if !ok {
		t.Fatal("expected Animal class to be registered")
	}
	speakMethod, ok := animalClass.MethodByName("Speak")
	if !ok {
		t.Fatal("expected Animal.Speak")
	}
	if len(speakMethod.Params) != 1 || speakMethod.Params[0].Name != "N%" {
		t.Fatalf("expected one named param N%%, got %+v", speakMethod.Params)
	}
	if speakMethod.Params[0].Type.Base != types.Integer {
		t.Fatalf("expected N%% to be integer from its suffix, got %v", speakMethod.Params[0].Type.Base)
	}

	v, ok := syms.LookupVariable("N%", symtable.FuncScope("Animal.Speak"))
	if !ok {
		t.Fatal("expected N% to be registered as a variable in the method's scope")
	}
	if v.Type.Base != types.Integer {
		t.Fatalf("expected the scoped N%% variable to be integer, got %v", v.Type.Base)
	}
}

// TestUnresolvedClassParentReportsUndefinedClass covers the fix-up pass's
// failure path.
func TestUnresolvedClassParentReportsUndefinedClass(t *testing.T) {
	orphan := node(ast.ClassDecl)
	orphan.Str = "Orphan"
	orphan.Target = "Ghost"

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{orphan}}
	_, bag := Analyze(prog)
	if !bag.HasErrors() {
		t.Fatal("expected undefined_class for an unresolvable parent")
	}
	if bag.Sorted()[0].Kind != diag.UndefinedClass {
		t.Fatalf("expected undefined_class, got %v", bag.Sorted()[0].Kind)
	}
}

// TestSIMDClassificationEligibleFourSingles covers spec §4.2's SIMD
// classifier: four same-width float fields totaling 16 bytes qualify for
// a v4s arrangement.
func TestSIMDClassificationEligibleFourSingles(t *testing.T) {
	mkField := func(name string) *ast.Node {
		f := node(ast.TypeField)
		f.Str = name
		f.Target = "SINGLE"
		return f
	}
	typeDecl := node(ast.TypeDecl)
	typeDecl.Str = "VEC4"
	typeDecl.Kids = []*ast.Node{mkField("X"), mkField("Y"), mkField("Z"), mkField("W")}

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{typeDecl}}
	syms, bag := Analyze(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Sorted())
	}
	udt, ok := syms.LookupType("VEC4")
	if !ok {
		t.Fatal("expected VEC4 type to be registered")
	}
	if !udt.SIMD.Eligible {
		t.Fatal("expected VEC4 to be SIMD-eligible")
	}
	if udt.SIMD.LaneCount != 4 {
		t.Fatalf("expected 4 lanes, got %d", udt.SIMD.LaneCount)
	}
	if udt.SIMD.Arrangement != symtable.ArrV4S {
		t.Fatalf("expected v4s arrangement, got %q", udt.SIMD.Arrangement)
	}
}

// TestSIMDClassificationIneligibleMixedTypes covers the "every field is
// the same base type" requirement.
func TestSIMDClassificationIneligibleMixedTypes(t *testing.T) {
	fieldA := node(ast.TypeField)
	fieldA.Str = "A"
	fieldA.Target = "SINGLE"
	fieldB := node(ast.TypeField)
	fieldB.Str = "B"
	fieldB.Target = "DOUBLE"

	typeDecl := node(ast.TypeDecl)
	typeDecl.Str = "MIXED"
	typeDecl.Kids = []*ast.Node{fieldA, fieldB}

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{typeDecl}}
	syms, bag := Analyze(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Sorted())
	}
	udt, _ := syms.LookupType("MIXED")
	if udt.SIMD.Eligible {
		t.Fatal("expected MIXED (different field base types) to be SIMD-ineligible")
	}
}

// TestDuplicateLabelReportsError covers spec §7's duplicate-declaration
// taxonomy for labels.
func TestDuplicateLabelReportsError(t *testing.T) {
	l1 := node(ast.LabelStmt)
	l1.Str = "LOOP"
	l2 := node(ast.LabelStmt)
	l2.Str = "LOOP"

	prog := &ast.Node{Kind: ast.Program, Kids: []*ast.Node{l1, l2}}
	_, bag := Analyze(prog)
	if !bag.HasErrors() {
		t.Fatal("expected duplicate_label error")
	}
	if bag.Sorted()[0].Kind != diag.DuplicateLabel {
		t.Fatalf("expected duplicate_label, got %v", bag.Sorted()[0].Kind)
	}
}
