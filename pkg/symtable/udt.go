package symtable

import "fasterbasic/pkg/types"

// UDTField is one field of a TYPE declaration.
type UDTField struct {
	Name     string
	Type     types.Descriptor
	TypeName string
	BuiltIn  bool
}

// SIMDArrangement is the closed set of NEON lane shapes a compact UDT may
// map onto (spec §4.2).
type SIMDArrangement string

const (
	ArrV2D    SIMDArrangement = "v2d"
	ArrV4S    SIMDArrangement = "v4s"
	ArrV2S    SIMDArrangement = "v2s"
	ArrV8H    SIMDArrangement = "v8h"
	ArrV4H    SIMDArrangement = "v4h"
	ArrV16B   SIMDArrangement = "v16b"
	ArrV8B    SIMDArrangement = "v8b"
	ArrV4SPad SIMDArrangement = "v4s_pad1"
	ArrNone   SIMDArrangement = ""
)

// SIMDInfo is the classifier output for a UDT (spec §4.2).
type SIMDInfo struct {
	Eligible       bool
	LaneCount      int
	LaneBitWidth   int
	IsFloat        bool
	PhysicalLanes  int
	TotalBytes     int
	IsPadded       bool
	Arrangement    SIMDArrangement
}

// UDT is a TYPE declaration: an ordered field list plus SIMD classification.
type UDT struct {
	Name   string // declared spelling; the registry keys it by Key(Name)
	Fields []UDTField
	ID     int
	SIMD   SIMDInfo
}

func (st *SymbolTable) DeclareType(u *UDT) bool {
	key := Key(u.Name)
	if _, exists := st.types[key]; exists {
		return false
	}
	st.types[key] = u
	return true
}

func (st *SymbolTable) LookupType(name string) (*UDT, bool) {
	u, ok := st.types[Key(name)]
	return u, ok
}

// ClassifySIMD implements spec §4.2's eligibility rule: 2..16 fields, all
// built-in and the same base type, total size <= 16 bytes. The v4s_pad1
// case covers 3x32-bit fields padded to a 4-lane arrangement.
func ClassifySIMD(fields []UDTField) SIMDInfo {
	if len(fields) < 2 || len(fields) > 16 {
		return SIMDInfo{}
	}
	base := fields[0].Type.Base
	totalBytes := 0
	for _, f := range fields {
		if !f.BuiltIn || f.Type.Base != base {
			return SIMDInfo{}
		}
		totalBytes += f.Type.Size()
	}
	if totalBytes > 16 {
		return SIMDInfo{}
	}

	laneWidth := base.BitWidth()
	if laneWidth == 0 {
		return SIMDInfo{}
	}
	laneCount := len(fields)
	isFloat := base.IsFloat()

	info := SIMDInfo{Eligible: true, LaneCount: laneCount, LaneBitWidth: laneWidth, IsFloat: isFloat, TotalBytes: totalBytes}

	switch {
	case laneWidth == 64 && laneCount == 2:
		info.Arrangement, info.PhysicalLanes = ArrV2D, 2
	case laneWidth == 32 && laneCount == 4:
		info.Arrangement, info.PhysicalLanes = ArrV4S, 4
	case laneWidth == 32 && laneCount == 3:
		info.Arrangement, info.PhysicalLanes, info.IsPadded = ArrV4SPad, 4, true
	case laneWidth == 32 && laneCount == 2:
		info.Arrangement, info.PhysicalLanes = ArrV2S, 2
	case laneWidth == 16 && laneCount == 8:
		info.Arrangement, info.PhysicalLanes = ArrV8H, 8
	case laneWidth == 16 && laneCount == 4:
		info.Arrangement, info.PhysicalLanes = ArrV4H, 4
	case laneWidth == 8 && laneCount == 16:
		info.Arrangement, info.PhysicalLanes = ArrV16B, 16
	case laneWidth == 8 && laneCount == 8:
		info.Arrangement, info.PhysicalLanes = ArrV8B, 8
	default:
		return SIMDInfo{}
	}
	return info
}
