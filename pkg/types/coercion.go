package types

// Coercion is the result of checking whether a value of one type can be
// used where another is expected (spec §3.2).
type Coercion int

const (
	Identical Coercion = iota
	ImplicitSafe
	ImplicitLossy
	ExplicitRequired
	Incompatible
)

func (c Coercion) String() string {
	switch c {
	case Identical:
		return "identical"
	case ImplicitSafe:
		return "implicit_safe"
	case ImplicitLossy:
		return "implicit_lossy"
	case ExplicitRequired:
		return "explicit_required"
	default:
		return "incompatible"
	}
}

// ClassIsSubclass is the subclass lookup a caller may pass to CheckCoercion
// (the symbol table knows the class hierarchy; this package does not).
type ClassIsSubclass func(sub, super string) bool

// CheckCoercion implements the rule table from spec §3.2 over full
// Descriptors. Two UserDefined types are identical only when their UDTName
// matches; two ClassInstance types are identical when their ClassName
// matches and need an explicit cast otherwise. That same-base check settles
// every class->class pair, so isSubclass is never called.
func CheckCoercion(from, to Descriptor, isSubclass ClassIsSubclass) Coercion {
	if from.Base == to.Base {
		if from.Base == UserDefined {
			if from.UDTName == to.UDTName {
				return Identical
			}
			return Incompatible
		}
		if from.Base == ClassInstance {
			if from.ClassName == to.ClassName {
				return Identical
			}
			return ExplicitRequired
		}
		return Identical
	}

	if from.Base == UserDefined || to.Base == UserDefined {
		return Incompatible
	}

	if from.Base == ClassInstance || to.Base == ClassInstance {
		if from.Base == ClassInstance && to.Base == ClassInstance {
			if isSubclass != nil && isSubclass(from.ClassName, to.ClassName) {
				return ExplicitRequired
			}
		}
		return Incompatible
	}

	fromStr := from.Base == String || from.Base == Unicode
	toStr := to.Base == String || to.Base == Unicode
	if fromStr != toStr {
		return Incompatible
	}
	if fromStr && toStr {
		return ImplicitSafe
	}

	if !from.Base.IsNumeric() || !to.Base.IsNumeric() {
		return Incompatible
	}

	// float -> integer is always lossy.
	if from.Base.IsFloat() && to.Base.IsInteger() {
		return ImplicitLossy
	}

	// integer -> double is safe.
	if from.Base.IsInteger() && to.Base == Double {
		return ImplicitSafe
	}

	// integer -> single is safe only for widths <= 24 bits.
	if from.Base.IsInteger() && to.Base == Single {
		if from.Base.BitWidth() <= 24 {
			return ImplicitSafe
		}
		return ImplicitLossy
	}

	// single -> double is safe; double -> single is lossy.
	if from.Base == Single && to.Base == Double {
		return ImplicitSafe
	}
	if from.Base == Double && to.Base == Single {
		return ImplicitLossy
	}

	// widening integer -> integer is safe; narrowing is lossy.
	if from.Base.IsInteger() && to.Base.IsInteger() {
		if to.Base.BitWidth() >= from.Base.BitWidth() {
			return ImplicitSafe
		}
		return ImplicitLossy
	}

	return Incompatible
}

// Promote implements the binary-expression promotion rule from spec §3.2.
func Promote(a, b Descriptor) Descriptor {
	if a.Base == String || a.Base == Unicode || b.Base == String || b.Base == Unicode {
		if a.Base == Unicode || b.Base == Unicode {
			return NewScalar(Unicode)
		}
		return NewScalar(String)
	}
	if a.Base == Double || b.Base == Double {
		return NewScalar(Double)
	}
	if a.Base == Single || b.Base == Single {
		return NewScalar(Single)
	}
	if a.Base == Long || b.Base == Long || a.Base == ULong || b.Base == ULong {
		return NewScalar(Long)
	}
	return NewScalar(Integer)
}
