package symtable

import (
	"testing"

	"fasterbasic/pkg/token"
	"fasterbasic/pkg/types"
)

// TestLookupVariableDeterministic covers spec §8 property 6: looking up a
// symbol by name returns the same result regardless of surrounding access
// order (insertion-ordered maps aside, case-insensitive keying must not
// depend on which spelling was used first).
func TestLookupVariableDeterministic(t *testing.T) {
	st := New()
	st.DeclareVariable("Total", GlobalScope(), types.NewScalar(types.Double), true, token.Location{})

	for i := 0; i < 3; i++ {
		v, ok := st.LookupVariable("TOTAL", GlobalScope())
		if !ok {
			t.Fatalf("round %d: expected TOTAL to resolve", i)
		}
		if v.Name != "Total" {
			t.Fatalf("round %d: expected original-cased Name, got %q", i, v.Name)
		}
	}
}

// TestDeclareVariableIdempotentOnFirstWins covers the "register if absent"
// implicit-declaration rule: a second DeclareVariable call for the same
// key returns the existing symbol rather than overwriting it.
func TestDeclareVariableIdempotentOnFirstWins(t *testing.T) {
	st := New()
	first := st.DeclareVariable("X", GlobalScope(), types.NewScalar(types.Integer), true, token.Location{})
	second := st.DeclareVariable("X", GlobalScope(), types.NewScalar(types.Double), false, token.Location{})
	if first != second {
		t.Fatal("expected DeclareVariable to return the existing symbol on a repeat call")
	}
	if second.Type.Base != types.Integer {
		t.Fatalf("expected the first declaration's type to win, got %v", second.Type.Base)
	}
}

// TestFuncScopedVariableDoesNotShadowGlobalLookupKey covers spec §3.3's
// "FUNC.NAME" scoped key: the same variable name in two function scopes
// (or in a function vs. globally) is distinct storage.
func TestFuncScopedVariableDoesNotShadowGlobalLookupKey(t *testing.T) {
	st := New()
	st.DeclareVariable("I", GlobalScope(), types.NewScalar(types.Double), true, token.Location{})
	st.DeclareVariable("I", FuncScope("DOIT"), types.NewScalar(types.Integer), true, token.Location{})

	global, ok := st.LookupVariable("I", GlobalScope())
	if !ok || global.Type.Base != types.Double {
		t.Fatalf("expected global I to stay double, got %+v ok=%v", global, ok)
	}
	local, ok := st.LookupVariable("I", FuncScope("DOIT"))
	if !ok || local.Type.Base != types.Integer {
		t.Fatalf("expected DOIT's local I to be integer, got %+v ok=%v", local, ok)
	}
}

// TestDeclareArrayRejectsDuplicate covers spec §7's array_redeclared
// diagnostic trigger condition at the registry level.
func TestDeclareArrayRejectsDuplicate(t *testing.T) {
	st := New()
	arr := &Array{Name: "NUMS", Element: types.NewScalar(types.Integer), Dims: []int{10}}
	if !st.DeclareArray(arr) {
		t.Fatal("expected first DeclareArray to succeed")
	}
	if st.DeclareArray(&Array{Name: "nums", Element: types.NewScalar(types.Integer), Dims: []int{5}}) {
		t.Fatal("expected a case-insensitive duplicate array declaration to fail")
	}
}

// TestFixUpClassParentsResolvesPointer covers spec §9's two-step
// parent-pointer pattern: ParentName resolves to a live Parent pointer
// only after every class has been registered.
func TestFixUpClassParentsResolvesPointer(t *testing.T) {
	st := New()
	st.DeclareClass(&Class{Name: "Animal"})
	st.DeclareClass(&Class{Name: "Dog", ParentName: "Animal"})

	if unresolved := st.FixUpClassParents(); len(unresolved) != 0 {
		t.Fatalf("expected no unresolved parents, got %v", unresolved)
	}
	dog, _ := st.LookupClass("Dog")
	animal, _ := st.LookupClass("Animal")
	if dog.Parent != animal {
		t.Fatal("expected Dog.Parent to point at the registered Animal class")
	}
}

// TestFixUpClassParentsReportsUnresolved covers the failure path: a parent
// name that never gets registered is reported, not silently ignored.
func TestFixUpClassParentsReportsUnresolved(t *testing.T) {
	st := New()
	st.DeclareClass(&Class{Name: "Orphan", ParentName: "Ghost"})

	unresolved := st.FixUpClassParents()
	if len(unresolved) != 1 || unresolved[0] != "Orphan" {
		t.Fatalf("expected [Orphan] unresolved, got %v", unresolved)
	}
}

// TestIsSubclassWalksParentChain covers multi-level inheritance after
// fix-up.
func TestIsSubclassWalksParentChain(t *testing.T) {
	st := New()
	st.DeclareClass(&Class{Name: "Animal"})
	st.DeclareClass(&Class{Name: "Dog", ParentName: "Animal"})
	st.DeclareClass(&Class{Name: "Puppy", ParentName: "Dog"})
	st.FixUpClassParents()

	if !st.IsSubclass("Puppy", "Animal") {
		t.Fatal("expected Puppy to be a transitive subclass of Animal")
	}
	if st.IsSubclass("Animal", "Puppy") {
		t.Fatal("did not expect Animal to be a subclass of Puppy")
	}
	if !st.IsSubclass("Puppy", "Puppy") {
		t.Fatal("expected a class to be its own subclass (reflexive)")
	}
}

// TestDeclareLabelRejectsDuplicateAndAssignsMonotonicIDs covers spec §3.3's
// label registry.
func TestDeclareLabelRejectsDuplicateAndAssignsMonotonicIDs(t *testing.T) {
	st := New()
	l1, fresh1 := st.DeclareLabel("LOOP", token.Location{Line: 1})
	if !fresh1 {
		t.Fatal("expected first DeclareLabel to be fresh")
	}
	l2, fresh2 := st.DeclareLabel("DONE", token.Location{Line: 5})
	if !fresh2 {
		t.Fatal("expected second distinct label to be fresh")
	}
	if l2.ID <= l1.ID {
		t.Fatalf("expected monotonically increasing label IDs, got %d then %d", l1.ID, l2.ID)
	}
	if _, fresh := st.DeclareLabel("loop", token.Location{Line: 9}); fresh {
		t.Fatal("expected a case-insensitive duplicate label to not be fresh")
	}
}

// TestMapLineRejectsDuplicateLineNumber covers the BASIC numbered-line
// table's duplicate check.
func TestMapLineRejectsDuplicateLineNumber(t *testing.T) {
	st := New()
	if !st.MapLine(10, 0) {
		t.Fatal("expected first MapLine to succeed")
	}
	if st.MapLine(10, 1) {
		t.Fatal("expected a duplicate line number mapping to fail")
	}
	idx, ok := st.LineIndex(10)
	if !ok || idx != 0 {
		t.Fatalf("expected line 10 to still map to index 0, got %d ok=%v", idx, ok)
	}
}
