package types

import "testing"

func TestCheckCoercionNumericWidening(t *testing.T) {
	tests := []struct {
		name     string
		from, to BaseType
		want     Coercion
	}{
		{"byte to long widens safely", Byte, Long, ImplicitSafe},
		{"long to byte narrows lossily", Long, Byte, ImplicitLossy},
		{"integer to double widens safely", Integer, Double, ImplicitSafe},
		{"double to integer is always lossy", Double, Integer, ImplicitLossy},
		{"single to double widens safely", Single, Double, ImplicitSafe},
		{"double to single narrows lossily", Double, Single, ImplicitLossy},
		{"short to single is safe within 24 bits", Short, Single, ImplicitSafe},
		{"integer to single is lossy above 24 bits", Integer, Single, ImplicitLossy},
		{"identical base types are identical", Integer, Integer, Identical},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckCoercion(NewScalar(tc.from), NewScalar(tc.to), nil)
			if got != tc.want {
				t.Errorf("CheckCoercion(%v, %v) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestCheckCoercionStringAndNumericIncompatible(t *testing.T) {
	got := CheckCoercion(NewScalar(String), NewScalar(Integer), nil)
	if got != Incompatible {
		t.Errorf("string -> integer = %v, want Incompatible", got)
	}
	got = CheckCoercion(NewScalar(String), NewScalar(Unicode), nil)
	if got != ImplicitSafe {
		t.Errorf("string -> unicode = %v, want ImplicitSafe", got)
	}
}

// Distinct class instances (same ClassInstance base, different names) always
// require an explicit cast: CheckCoercion's same-base branch short-circuits
// on name equality before the subclass callback is ever consulted.
func TestCheckCoercionDistinctClassNamesRequireExplicitCast(t *testing.T) {
	isSub := func(sub, super string) bool { return sub == "Dog" && super == "Animal" }
	from := Descriptor{Base: ClassInstance, ClassName: "Dog"}
	to := Descriptor{Base: ClassInstance, ClassName: "Animal"}
	if got := CheckCoercion(from, to, isSub); got != ExplicitRequired {
		t.Errorf("same-base, different-name class coercion = %v, want ExplicitRequired", got)
	}
	if got := CheckCoercion(from, from, isSub); got != Identical {
		t.Errorf("same class coercion = %v, want Identical", got)
	}
}

func TestCheckCoercionUDTIdentityOnly(t *testing.T) {
	a := Descriptor{Base: UserDefined, UDTName: "Point"}
	b := Descriptor{Base: UserDefined, UDTName: "Point"}
	if got := CheckCoercion(a, b, nil); got != Identical {
		t.Errorf("same-name UDT coercion = %v, want Identical", got)
	}
	c := Descriptor{Base: UserDefined, UDTName: "Vector"}
	if got := CheckCoercion(a, c, nil); got != Incompatible {
		t.Errorf("different UDT coercion = %v, want Incompatible", got)
	}
}

func TestPromoteBinaryExpression(t *testing.T) {
	tests := []struct {
		name string
		a, b BaseType
		want BaseType
	}{
		{"string beats anything", String, Integer, String},
		{"unicode beats string", Unicode, String, Unicode},
		{"double beats single", Double, Single, Double},
		{"single beats long", Single, Long, Single},
		{"long beats integer", Long, Integer, Long},
		{"integer is the numeric floor", Integer, Byte, Integer},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Promote(NewScalar(tc.a), NewScalar(tc.b))
			if got.Base != tc.want {
				t.Errorf("Promote(%v, %v) = %v, want %v", tc.a, tc.b, got.Base, tc.want)
			}
		})
	}
}
