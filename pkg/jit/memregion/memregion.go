// Package memregion implements the W^X-compliant code+data region of spec
// §3.6/§4.5: a contiguous layout of a code band, a trampoline island, and a
// data band, with platform-specific allocation and protection toggling.
package memregion

import (
	"encoding/binary"
	"errors"
)

// ProtectionState is the region's current access mode.
type ProtectionState int

const (
	Writable ProtectionState = iota
	Executable
	Freed
)

func (s ProtectionState) String() string {
	switch s {
	case Writable:
		return "writable"
	case Executable:
		return "executable"
	case Freed:
		return "freed"
	default:
		return "unknown"
	}
}

var (
	ErrCodeOverflow = errors.New("memregion: code band overflow")
	ErrDataOverflow = errors.New("memregion: data band overflow")
	ErrFreed        = errors.New("memregion: region already freed")
	// ErrNotWritable is returned by any write entry point (CopyCode, CopyData,
	// WriteTrampoline, WriteTrapStub, the Patch* fixup writers) when the
	// region is not in the Writable state — spec §7's NotWritable kind,
	// TESTABLE PROPERTY #8.
	ErrNotWritable = errors.New("memregion: not writable")
	// ErrNotExecutable is returned by GetFunctionPtr (and any future execute
	// entry point) when the region is not in the Executable state — spec
	// §7's NotExecutable kind, TESTABLE PROPERTY #8.
	ErrNotExecutable = errors.New("memregion: not executable")
	ErrAllocFailed   = errors.New("memregion: platform allocation failed")
)

const pageSize = 16384 // largest common page size (Apple Silicon); Linux rounds up harmlessly
const trampolineStubSize = 16

// trampolineStub is the fixed-size far-call thunk written by
// WriteTrampoline (spec §4.5); WriteTrapStub fills a slot of the same size
// with four BRK instructions instead:
//
//	+0: LDR X16, [PC, #8]   0x58000050
//	+4: BR  X16             0xd61f0200
//	+8: .quad <target>
const (
	ldrX16PCRel8 uint32 = 0x58000050
	brX16        uint32 = 0xd61f0200
	brkTrapImm16        = 0xF001
)

// JitMemoryRegion is the cross-platform view of the allocated band layout.
// Platform files (region_linux.go, region_darwin.go) populate and mutate it
// through alloc()/toggleExec()/toggleWrite()/release(), all other methods
// here are platform-independent.
type JitMemoryRegion struct {
	state ProtectionState

	codeBase     uintptr
	codeCapacity int
	codeLen      int

	trampolineCapacity int
	trampolineLen      int

	dataBase     uintptr
	dataCapacity int
	dataLen      int

	codeMem []byte // host-side mirror of the code+trampoline band while Writable
	dataMem []byte // host-side mirror of the data band

	platform platformState
}

// New allocates a region sized for codeCapacity+trampolineCapacity bytes of
// code and dataCapacity bytes of data, all rounded up to the page size.
func New(codeCapacity, trampolineCapacity, dataCapacity int) (*JitMemoryRegion, error) {
	r := &JitMemoryRegion{
		codeCapacity:       alignUp(codeCapacity, pageSize),
		trampolineCapacity: alignUp(trampolineCapacity, pageSize),
		dataCapacity:       alignUp(dataCapacity, pageSize),
		state:              Writable,
	}
	if err := r.alloc(); err != nil {
		return nil, err
	}
	return r, nil
}

func alignUp(n, align int) int {
	if n <= 0 {
		return align
	}
	if rem := n % align; rem != 0 {
		return n + (align - rem)
	}
	return n
}

// CodeBase/DataBase expose the absolute addresses for ADPR-reachability
// validation (both bands are guaranteed within +-4GB of one another per
// spec §3.6) and for diagnostics.
func (r *JitMemoryRegion) CodeBase() uintptr { return r.codeBase }
func (r *JitMemoryRegion) DataBase() uintptr { return r.dataBase }
func (r *JitMemoryRegion) State() ProtectionState { return r.state }
func (r *JitMemoryRegion) CodeLen() int { return r.codeLen }
func (r *JitMemoryRegion) DataLen() int { return r.dataLen }

// CopyCode appends bytes to the code band.
func (r *JitMemoryRegion) CopyCode(b []byte) (offset int, err error) {
	if r.state == Freed {
		return 0, ErrFreed
	}
	if r.state != Writable {
		return 0, ErrNotWritable
	}
	if r.codeLen+len(b) > r.codeCapacity {
		return 0, ErrCodeOverflow
	}
	offset = r.codeLen
	copy(r.codeMem[offset:], b)
	r.codeLen += len(b)
	return offset, nil
}

// CopyData appends bytes to the data band.
func (r *JitMemoryRegion) CopyData(b []byte) (offset int, err error) {
	if r.state == Freed {
		return 0, ErrFreed
	}
	if r.state != Writable {
		return 0, ErrNotWritable
	}
	if r.dataLen+len(b) > r.dataCapacity {
		return 0, ErrDataOverflow
	}
	offset = r.dataLen
	copy(r.dataMem[offset:], b)
	r.dataLen += len(b)
	return offset, nil
}

// WriteTrampoline appends a 16-byte far-call stub targeting target and
// returns its offset from the code base (spec §4.5).
func (r *JitMemoryRegion) WriteTrampoline(target uint64) (offset int, err error) {
	if r.state == Freed {
		return 0, ErrFreed
	}
	if r.state != Writable {
		return 0, ErrNotWritable
	}
	if r.trampolineLen+trampolineStubSize > r.trampolineCapacity {
		return 0, ErrCodeOverflow
	}
	stub := make([]byte, trampolineStubSize)
	binary.LittleEndian.PutUint32(stub[0:4], ldrX16PCRel8)
	binary.LittleEndian.PutUint32(stub[4:8], brX16)
	binary.LittleEndian.PutUint64(stub[8:16], target)

	base := r.codeCapacity + r.trampolineLen
	copy(r.codeMem[base:], stub)
	offset = base
	r.trampolineLen += trampolineStubSize
	return offset, nil
}

// WriteTrapStub writes a same-size stub that BRK-faults with immediate
// 0xF001, used as the relocation target for symbols that never resolved.
func (r *JitMemoryRegion) WriteTrapStub() (offset int, err error) {
	if r.state == Freed {
		return 0, ErrFreed
	}
	if r.state != Writable {
		return 0, ErrNotWritable
	}
	if r.trampolineLen+trampolineStubSize > r.trampolineCapacity {
		return 0, ErrCodeOverflow
	}
	brk := uint32(0xd4200000) | (uint32(brkTrapImm16) << 5)
	stub := make([]byte, trampolineStubSize)
	binary.LittleEndian.PutUint32(stub[0:4], brk)
	binary.LittleEndian.PutUint32(stub[4:8], brk)
	binary.LittleEndian.PutUint32(stub[8:12], brk)
	binary.LittleEndian.PutUint32(stub[12:16], brk)

	base := r.codeCapacity + r.trampolineLen
	copy(r.codeMem[base:], stub)
	offset = base
	r.trampolineLen += trampolineStubSize
	return offset, nil
}

// PatchBLToTrampoline re-encodes the BL at blOffset to reach stubOffset.
func (r *JitMemoryRegion) PatchBLToTrampoline(blOffset, stubOffset int) error {
	if r.state != Writable {
		return ErrNotWritable
	}
	delta := int32(stubOffset-blOffset) / 4
	instr := uint32(0x94000000) | (uint32(delta) & 0x03ffffff)
	binary.LittleEndian.PutUint32(r.codeMem[blOffset:blOffset+4], instr)
	return nil
}

// PatchAdrpAdd re-encodes the ADRP/ADD pair at adrpOffset to address
// targetAddr, preserving each instruction's register fields.
func (r *JitMemoryRegion) PatchAdrpAdd(adrpOffset int, targetAddr uint64) error {
	if r.state != Writable {
		return ErrNotWritable
	}
	pc := uint64(r.codeBase) + uint64(adrpOffset)
	pcPage := pc &^ 0xFFF
	targetPage := targetAddr &^ 0xFFF
	pageDelta := int64(targetPage-pcPage) / 4096

	adrp := binary.LittleEndian.Uint32(r.codeMem[adrpOffset : adrpOffset+4])
	rd := adrp & 0x1F
	immlo := uint32(pageDelta) & 0x3
	immhi := uint32(pageDelta>>2) & 0x7FFFF
	newAdrp := uint32(0x90000000) | (immlo << 29) | (immhi << 5) | rd
	binary.LittleEndian.PutUint32(r.codeMem[adrpOffset:adrpOffset+4], newAdrp)

	addOffset := adrpOffset + 4
	add := binary.LittleEndian.Uint32(r.codeMem[addOffset : addOffset+4])
	rdAdd := add & 0x1F
	rn := (add >> 5) & 0x1F
	imm12 := uint32(targetAddr & 0xFFF)
	newAdd := uint32(0x91000000) | (imm12 << 10) | (rn << 5) | rdAdd
	binary.LittleEndian.PutUint32(r.codeMem[addOffset:addOffset+4], newAdd)
	return nil
}

// PatchRaw overwrites len(b) bytes already written to the code band at
// offset, for fixup kinds (plain B/B.cond branches) that don't need the
// register-field-preserving logic PatchBLToTrampoline/PatchAdrpAdd apply.
func (r *JitMemoryRegion) PatchRaw(offset int, b []byte) error {
	if r.state == Freed {
		return ErrFreed
	}
	if r.state != Writable {
		return ErrNotWritable
	}
	if offset < 0 || offset+len(b) > r.codeCapacity+r.trampolineCapacity {
		return ErrCodeOverflow
	}
	copy(r.codeMem[offset:], b)
	return nil
}

// MakeExecutable toggles the code+trampoline band to RX and invalidates the
// instruction cache over it (spec §4.5).
func (r *JitMemoryRegion) MakeExecutable() error {
	if r.state == Freed {
		return ErrFreed
	}
	if err := r.toggleExec(); err != nil {
		return err
	}
	r.state = Executable
	return nil
}

// MakeWritable reverses MakeExecutable; no cache invalidation is needed.
func (r *JitMemoryRegion) MakeWritable() error {
	if r.state == Freed {
		return ErrFreed
	}
	if err := r.toggleWrite(); err != nil {
		return err
	}
	r.state = Writable
	return nil
}

// TrampolineLen reports how many bytes have been written into the
// trampoline island so far.
func (r *JitMemoryRegion) TrampolineLen() int { return r.trampolineLen }

// GetFunctionPtr returns the absolute address of the function starting at
// offset bytes into the code band. Requires Executable state; callers
// convert the returned address to a typed function value via
// reflect.NewAt/unsafe, which this package deliberately does not do itself
// (it owns memory layout, not calling-convention marshalling).
func (r *JitMemoryRegion) GetFunctionPtr(offset int) (uintptr, error) {
	if r.state == Freed {
		return 0, ErrFreed
	}
	if r.state != Executable {
		return 0, ErrNotExecutable
	}
	return r.codeBase + uintptr(offset), nil
}

// Free releases the region. Idempotent: a second call is a no-op.
func (r *JitMemoryRegion) Free() error {
	if r.state == Freed {
		return nil
	}
	err := r.release()
	r.state = Freed
	r.codeMem = nil
	r.dataMem = nil
	r.codeBase, r.dataBase = 0, 0
	return err
}
