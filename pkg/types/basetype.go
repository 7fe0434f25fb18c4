// Package types implements the three-layer type lattice of spec §3.2:
// BaseType, TypeAttribute flags, and the composite TypeDescriptor, plus the
// coercion and promotion rules that drive the semantic analyzer and the IR
// emitter's type manager.
package types

// BaseType is the flat enumeration of intrinsic and structural types.
type BaseType int

const (
	Unknown BaseType = iota
	Void
	Byte
	UByte
	Short
	UShort
	Integer
	UInteger
	Long
	ULong
	Single
	Double
	String
	Unicode
	UserDefined
	Pointer
	ArrayDesc
	StringDesc
	LoopIndex
	Object
	ClassInstance
)

type baseInfo struct {
	bits       int
	signed     bool
	irLetter   string // IR type letter (w, l, s, d, ub, uh)
	memWidth   string // memory-op width (b, h, w, l, s, d)
}

var baseTable = map[BaseType]baseInfo{
	Unknown:       {0, false, "w", "w"},
	Void:          {0, false, "", ""},
	Byte:          {8, true, "w", "b"},
	UByte:         {8, false, "ub", "b"},
	Short:         {16, true, "w", "h"},
	UShort:        {16, false, "uh", "h"},
	Integer:       {32, true, "w", "w"},
	UInteger:      {32, false, "w", "w"},
	Long:          {64, true, "l", "l"},
	ULong:         {64, false, "l", "l"},
	Single:        {32, true, "s", "s"},
	Double:        {64, true, "d", "d"},
	String:        {64, false, "l", "l"}, // pointer-sized descriptor
	Unicode:       {64, false, "l", "l"},
	UserDefined:   {0, false, "l", "l"},
	Pointer:       {64, false, "l", "l"},
	ArrayDesc:     {64, false, "l", "l"},
	StringDesc:    {64, false, "l", "l"},
	LoopIndex:     {32, true, "w", "w"},
	Object:        {64, false, "l", "l"},
	ClassInstance: {64, false, "l", "l"},
}

// BitWidth returns the intrinsic bit width of b.
func (b BaseType) BitWidth() int { return baseTable[b].bits }

// IsSigned reports whether b is a signed integral/float type.
func (b BaseType) IsSigned() bool { return baseTable[b].signed }

// IRLetter returns the IR type letter used in the textual IR (spec §6):
// w, l, s, d for word/long/single/double, plus ub/uh for the unsigned
// sub-word loads the memory-op width table distinguishes.
func (b BaseType) IRLetter() string { return baseTable[b].irLetter }

// MemWidth returns the memory-operation width suffix (b, h, w, l, s, d)
// used by load<type>/store<w> IR instructions.
func (b BaseType) MemWidth() string { return baseTable[b].memWidth }

// IsNumeric reports whether b participates in arithmetic promotion.
func (b BaseType) IsNumeric() bool {
	switch b {
	case Byte, UByte, Short, UShort, Integer, UInteger, Long, ULong, Single, Double, LoopIndex:
		return true
	}
	return false
}

// IsFloat reports whether b is a floating-point base type.
func (b BaseType) IsFloat() bool { return b == Single || b == Double }

// IsInteger reports whether b is an integral base type.
func (b BaseType) IsInteger() bool { return b.IsNumeric() && !b.IsFloat() }

func (b BaseType) String() string {
	names := [...]string{
		"unknown", "void", "byte", "ubyte", "short", "ushort", "integer", "uinteger",
		"long", "ulong", "single", "double", "string", "unicode", "user_defined",
		"pointer", "array_desc", "string_desc", "loop_index", "object", "class_instance",
	}
	if int(b) >= 0 && int(b) < len(names) {
		return names[b]
	}
	return "unknown"
}
