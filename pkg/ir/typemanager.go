package ir

import "fasterbasic/pkg/types"

// Widen returns the IR type letter used to pass b as a call argument or
// return value: small integers widen to word width, matching the textual
// IR's {w, l, s, d} rettype/argument set (spec §4.4 #2).
func Widen(b types.BaseType) string {
	switch b {
	case types.Byte, types.UByte, types.Short, types.UShort:
		return "w"
	default:
		letter := b.IRLetter()
		if letter == "ub" || letter == "uh" {
			return "w"
		}
		return letter
	}
}

// SizeOf returns the in-memory size of d, consulting udtSize for
// user-defined types (the type manager has no standalone UDT table of its
// own; callers pass a lookup closure backed by the symbol table).
func SizeOf(d types.Descriptor, udtSize func(udtID int) int) int {
	if d.Base == types.UserDefined && udtSize != nil {
		return udtSize(d.UDTID)
	}
	return d.Size()
}

// AlignOf returns the natural alignment of d: its own size for scalars
// (BASIC has no over-aligned types), clamped to 8.
func AlignOf(d types.Descriptor, udtSize func(udtID int) int) int {
	size := SizeOf(d, udtSize)
	if size > 8 {
		return 8
	}
	if size == 0 {
		return 1
	}
	return size
}

// UDTSize lays a UDT's fields out in declaration order (spec §4.4 #2),
// aligning each field to its own size, and rounds the total up to a
// multiple of 8. The SIMD classifier in pkg/symtable counts bytes without
// that padding, so a three-SINGLE type is 12 bytes there and 16 here.
func UDTSize(fields []types.Descriptor) int {
	total := 0
	for _, f := range fields {
		sz := f.Size()
		if rem := total % sz; sz > 0 && rem != 0 {
			total += sz - rem
		}
		total += sz
	}
	if rem := total % 8; rem != 0 {
		total += 8 - rem
	}
	return total
}
