package encoder

import (
	"errors"
	"fmt"
)

// ErrUnresolvedFixup is returned by Link when a branch target never
// appeared as a label (spec §4.6's invariant: every resolved branch must
// decode to a known label offset).
var ErrUnresolvedFixup = errors.New("encoder: unresolved branch target")

// Link resolves every pending fixup, external-call record, and data
// relocation against the code already written to the region (spec §4.6).
// The region must still be Writable; the caller calls MakeExecutable after
// Link succeeds.
func (e *Encoder) Link() error {
	for _, f := range e.fixups {
		target, ok := e.labels[f.target]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnresolvedFixup, f.target)
		}
		delta := int32(target - f.codeOffset)
		var instr []byte
		switch f.kind {
		case fixB:
			instr = bImm(delta)
		case fixBCondNE:
			instr = bCondImm(condNE, delta)
		}
		if err := e.patchAt(f.codeOffset, instr); err != nil {
			return err
		}
		e.stats.FixupsResolved++
	}

	for _, ext := range e.externals {
		addr, ok := e.table.Lookup(ext.symbol)
		var stubOffset int
		var err error
		if ok {
			stubOffset, err = e.region.WriteTrampoline(uint64(addr))
		} else {
			stubOffset, err = e.region.WriteTrapStub()
		}
		if err != nil {
			return err
		}
		if err := e.region.PatchBLToTrampoline(ext.codeOffset, stubOffset); err != nil {
			return err
		}
	}

	for _, reloc := range e.relocs {
		off, ok := e.dataSyms[reloc.symbol]
		if !ok {
			return fmt.Errorf("encoder: data relocation references unknown symbol %q", reloc.symbol)
		}
		target := e.region.DataBase() + uintptr(off)
		if err := e.region.PatchAdrpAdd(reloc.adrpOffset, uint64(target)); err != nil {
			return err
		}
	}

	if e.stats.FixupsCreated != e.stats.FixupsResolved {
		return fmt.Errorf("encoder: fixups_created=%d != fixups_resolved=%d",
			e.stats.FixupsCreated, e.stats.FixupsResolved)
	}
	return nil
}

// patchAt overwrites 4 bytes already written to the code band. The region
// exposes CopyCode (append-only) for normal emission; fixup patching needs
// random-access overwrite, which PatchBLToTrampoline/PatchAdrpAdd already do
// for their own instruction shapes — plain branch fixups reuse the same
// direct-overwrite primitive via the region's exported raw patch helper.
func (e *Encoder) patchAt(offset int, instr []byte) error {
	return e.region.PatchRaw(offset, instr)
}

// Stats returns a copy of the accumulated encoding statistics.
func (e *Encoder) Stats() Stats { return e.stats }

// Report renders a phase-by-phase human-readable summary over the
// just-encoded IR stream (spec §4.6's pipeline report).
func (e *Encoder) Report() string {
	s := e.stats
	return fmt.Sprintf(
		"encode: %d instructions, %d functions, %d labels\n"+
			"link:   %d fixups created, %d resolved, %d external calls, %d data bytes\n",
		s.InstructionsEmitted, s.FunctionsEncoded, s.LabelsRecorded,
		s.FixupsCreated, s.FixupsResolved, s.ExternalCalls, s.DataBytesEmitted)
}
