package encoder

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"fasterbasic/pkg/jit/memregion"
	"fasterbasic/pkg/jit/runtimetable"
)

// fixupKind distinguishes which branch-encoding a pending fixup patches.
type fixupKind int

const (
	fixB fixupKind = iota
	fixBCondNE
)

type fixup struct {
	codeOffset int
	target     string
	kind       fixupKind
}

type externalCall struct {
	codeOffset int
	symbol     string
}

type dataRelocation struct {
	adrpOffset int
	symbol     string
}

// Stats collects the counters spec §4.6 names for the pipeline report.
type Stats struct {
	InstructionsEmitted int
	FunctionsEncoded    int
	LabelsRecorded      int
	FixupsCreated       int
	FixupsResolved      int
	ExternalCalls       int
	DataBytesEmitted    int
}

// Encoder walks a parsed record stream and emits ARM64 machine code into a
// memregion.JitMemoryRegion, tracking labels, fixups, external calls, and
// data relocations (spec §4.6).
type Encoder struct {
	region *memregion.JitMemoryRegion
	table  *runtimetable.Table

	labels    map[string]int // label name -> code offset
	fixups    []fixup
	externals []externalCall
	relocs    []dataRelocation
	dataSyms  map[string]int // symbol -> data band offset

	funcEntry map[string]int // function name -> code offset, for internal calls

	stats Stats
}

func New(region *memregion.JitMemoryRegion, table *runtimetable.Table) *Encoder {
	return &Encoder{
		region:    region,
		table:     table,
		labels:    make(map[string]int),
		dataSyms:  make(map[string]int),
		funcEntry: make(map[string]int),
	}
}

// Encode emits every function in records, accumulating statistics that
// Stats reports. Call Link afterward to resolve fixups and external calls.
func (e *Encoder) Encode(records []Record) error {
	var cur []Record
	var inFunc bool
	for _, r := range records {
		switch r.Kind {
		case RecData:
			off, err := e.region.CopyData(r.DataBytes)
			if err != nil {
				return fmt.Errorf("data %s: %w", r.DataName, err)
			}
			e.dataSyms[r.DataName] = off
			e.stats.DataBytesEmitted += len(r.DataBytes)
		case RecFuncHeader:
			inFunc = true
			cur = cur[:0]
		case RecFuncFooter:
			if inFunc {
				if err := e.encodeFunction(cur); err != nil {
					return err
				}
				e.stats.FunctionsEncoded++
			}
			inFunc = false
		default:
			if inFunc {
				cur = append(cur, r)
			}
		}
	}
	return nil
}

// slotFrame assigns each distinct temp/param name an 8-byte frame slot.
type slotFrame struct {
	slots map[string]uint32
	next  uint32
}

func newSlotFrame() *slotFrame { return &slotFrame{slots: make(map[string]uint32)} }

func (f *slotFrame) slot(name string) uint32 {
	if off, ok := f.slots[name]; ok {
		return off
	}
	off := f.next
	f.slots[name] = off
	f.next += 8
	return off
}

func (e *Encoder) encodeFunction(body []Record) error {
	frame := newSlotFrame()
	for _, r := range body {
		if r.Kind == RecAssign && r.Dest != "" {
			frame.slot(r.Dest)
		}
		for _, a := range r.Args {
			if isTemp(a) {
				frame.slot(a)
			}
		}
	}
	frameBytes := alignUp16(int(frame.next))

	entry := e.region.CodeLen()
	if err := e.emit(stpPre64(regFP, regLR, regSP, -16)); err != nil {
		return err
	}
	if err := e.emit(movReg64(regFP, regSP)); err != nil {
		return err
	}
	if frameBytes > 0 {
		if err := e.emit(subImm64(regSP, regSP, uint32(frameBytes))); err != nil {
			return err
		}
	}

	for _, r := range body {
		if err := e.encodeRecord(r, frame); err != nil {
			return err
		}
	}

	// fallthrough epilogue, for a body that ends without an explicit RET.
	if err := e.emitEpilogue(frameBytes); err != nil {
		return err
	}
	_ = entry
	return nil
}

func (e *Encoder) emitEpilogue(frameBytes int) error {
	if frameBytes > 0 {
		if err := e.emit(addImm64(regSP, regSP, uint32(frameBytes))); err != nil {
			return err
		}
	}
	if err := e.emit(ldpPost64(regFP, regLR, regSP, 16)); err != nil {
		return err
	}
	return e.emit(ret())
}

func (e *Encoder) encodeRecord(r Record, frame *slotFrame) error {
	switch r.Kind {
	case RecLabel:
		e.labels[r.Label] = e.region.CodeLen()
		e.stats.LabelsRecorded++
		return nil

	case RecComment:
		return nil

	case RecAssign:
		return e.encodeAssign(r, frame)

	case RecStore:
		return e.encodeStore(r, frame)

	case RecJmp:
		off := e.region.CodeLen()
		if err := e.emit(bImm(0)); err != nil {
			return err
		}
		e.addFixup(off, r.Label, fixB)
		return nil

	case RecJnz:
		condSlot := frame.slot(r.Args[0])
		if err := e.emit(ldrImm64(scratch0, regSP, condSlot/8)); err != nil {
			return err
		}
		if err := e.emit(cmpImm64(scratch0, 0)); err != nil {
			return err
		}
		bcOff := e.region.CodeLen()
		if err := e.emit(bCondImm(condNE, 0)); err != nil {
			return err
		}
		e.addFixup(bcOff, r.Label, fixBCondNE)
		bOff := e.region.CodeLen()
		if err := e.emit(bImm(0)); err != nil {
			return err
		}
		e.addFixup(bOff, r.Dest, fixB) // Dest carries the false-branch label, see parseJnz
		return nil

	case RecRet:
		if len(r.Args) == 1 && isTemp(r.Args[0]) {
			slot := frame.slot(r.Args[0])
			if err := e.emit(ldrImm64(0, regSP, slot/8)); err != nil {
				return err
			}
		}
		return nil // the function's trailing epilogue still runs

	default:
		return fmt.Errorf("encoder: unhandled record kind %v", r.Kind)
	}
}

func (e *Encoder) encodeAssign(r Record, frame *slotFrame) error {
	destSlot := frame.slot(r.Dest) / 8

	switch r.Op {
	case "copy":
		return e.encodeCopy(r, frame, destSlot)

	case "add", "sub", "mul", "div":
		return e.encodeFPBinOp(r, frame, destSlot)

	case "ceqd", "cned", "cltd", "cled", "cgtd", "cged":
		return e.encodeCompare(r, frame, destSlot)

	case "and", "or", "xor":
		return e.encodeBitwise(r, frame, destSlot)

	case "neg":
		return e.encodeNeg(r, frame, destSlot)

	case "dtosi":
		return e.encodeConvert(r, frame, destSlot, true)
	case "swtof":
		return e.encodeConvert(r, frame, destSlot, false)

	case "call":
		return e.encodeCall(r, frame, destSlot, true)

	case "ceqw":
		return e.encodeIntCompareZero(r, frame, destSlot)

	case "loadl", "loadw", "loadd", "loadub", "loaduh":
		return e.encodeLoadGlobal(r, frame, destSlot)

	default:
		return fmt.Errorf("encoder: unhandled assign op %q", r.Op)
	}
}

func (e *Encoder) encodeCopy(r Record, frame *slotFrame, destSlot uint32) error {
	if len(r.Args) != 1 {
		return fmt.Errorf("copy expects one arg, got %v", r.Args)
	}
	arg := r.Args[0]
	if isTemp(arg) {
		srcSlot := frame.slot(arg) / 8
		if err := e.emit(ldrImm64(scratch0, regSP, srcSlot)); err != nil {
			return err
		}
		return e.emit(strImm64(scratch0, regSP, destSlot))
	}
	if strings.HasPrefix(arg, "$") {
		return e.encodeLoadDataAddr(arg, destSlot)
	}
	if r.Type == "d" {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("bad double literal %q: %w", arg, err)
		}
		bits := math.Float64bits(f)
		if err := e.emit(loadImm64(scratch0, bits)); err != nil {
			return err
		}
		return e.emit(strImm64(scratch0, regSP, destSlot))
	}
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("bad int literal %q: %w", arg, err)
	}
	if err := e.emit(loadImm64(scratch0, uint64(n))); err != nil {
		return err
	}
	return e.emit(strImm64(scratch0, regSP, destSlot))
}

func (e *Encoder) encodeLoadDataAddr(symbol string, destSlot uint32) error {
	if err := e.loadDataAddrIntoReg(symbol, 2); err != nil {
		return err
	}
	return e.emit(strImm64(2, regSP, destSlot))
}

// loadDataAddrIntoReg emits the ADRP/ADD pair addressing symbol directly
// into reg, auto-reserving an 8-byte data slot for it when no data record
// has bound the name yet (for example a string-pool label whose `data` line
// comes later in the stream; that later record rebinds the name, and Link
// patches against the final binding).
func (e *Encoder) loadDataAddrIntoReg(symbol string, reg uint32) error {
	name := strings.TrimPrefix(symbol, "$")
	if _, ok := e.dataSyms[name]; !ok {
		off, err := e.region.CopyData(make([]byte, 8))
		if err != nil {
			return err
		}
		e.dataSyms[name] = off
	}
	adrpOff := e.region.CodeLen()
	if err := e.emit(adrpPlaceholder(reg)); err != nil {
		return err
	}
	if err := e.emit(addImm64(reg, reg, 0)); err != nil {
		return err
	}
	e.relocs = append(e.relocs, dataRelocation{adrpOffset: adrpOff, symbol: name})
	return nil
}

func (e *Encoder) encodeFPBinOp(r Record, frame *slotFrame, destSlot uint32) error {
	if len(r.Args) != 2 {
		return fmt.Errorf("%s expects two args, got %v", r.Op, r.Args)
	}
	if err := e.loadTwoFP(r.Args[0], r.Args[1], frame); err != nil {
		return err
	}
	var b []byte
	switch r.Op {
	case "add":
		b = fadd(0, 0, 1)
	case "sub":
		b = fsub(0, 0, 1)
	case "mul":
		b = fmul(0, 0, 1)
	case "div":
		b = fdiv(0, 0, 1)
	}
	if err := e.emit(b); err != nil {
		return err
	}
	return e.emit(strImmFP64(0, regSP, destSlot))
}

func (e *Encoder) loadTwoFP(lhs, rhs string, frame *slotFrame) error {
	if err := e.loadFPOperand(lhs, 0, frame); err != nil {
		return err
	}
	return e.loadFPOperand(rhs, 1, frame)
}

func (e *Encoder) loadFPOperand(arg string, vreg uint32, frame *slotFrame) error {
	if isTemp(arg) {
		slot := frame.slot(arg) / 8
		return e.emit(ldrImmFP64(vreg, regSP, slot))
	}
	f, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return fmt.Errorf("bad double operand %q: %w", arg, err)
	}
	if err := e.emit(loadImm64(scratch1, math.Float64bits(f))); err != nil {
		return err
	}
	return e.emit(fmovGPRToFP(vreg, scratch1))
}

func (e *Encoder) encodeCompare(r Record, frame *slotFrame, destSlot uint32) error {
	if err := e.loadTwoFP(r.Args[0], r.Args[1], frame); err != nil {
		return err
	}
	if err := e.emit(fcmpReg(0, 1)); err != nil {
		return err
	}
	cond := map[string]uint32{
		"ceqd": condEQ, "cned": condNE,
		"cltd": condLT, "cled": condLE,
		"cgtd": condGT, "cged": condGE,
	}[r.Op]
	if err := e.emit(cset64(scratch0, cond)); err != nil {
		return err
	}
	return e.emit(strImm64(scratch0, regSP, destSlot))
}

func (e *Encoder) encodeIntCompareZero(r Record, frame *slotFrame, destSlot uint32) error {
	if len(r.Args) != 2 {
		return fmt.Errorf("ceqw expects two args, got %v", r.Args)
	}
	slot := frame.slot(r.Args[0]) / 8
	if err := e.emit(ldrImm64(scratch0, regSP, slot)); err != nil {
		return err
	}
	if err := e.emit(cmpImm64(scratch0, 0)); err != nil {
		return err
	}
	if err := e.emit(cset64(scratch0, condEQ)); err != nil {
		return err
	}
	return e.emit(strImm64(scratch0, regSP, destSlot))
}

func (e *Encoder) encodeBitwise(r Record, frame *slotFrame, destSlot uint32) error {
	lhsSlot := frame.slot(r.Args[0]) / 8
	rhsSlot := frame.slot(r.Args[1]) / 8
	if err := e.emit(ldrImm64(scratch0, regSP, lhsSlot)); err != nil {
		return err
	}
	if err := e.emit(ldrImm64(scratch1, regSP, rhsSlot)); err != nil {
		return err
	}
	var b []byte
	switch r.Op {
	case "and":
		b = andReg64(scratch0, scratch0, scratch1)
	case "or":
		b = orrReg64(scratch0, scratch0, scratch1)
	case "xor":
		b = eorReg64(scratch0, scratch0, scratch1)
	}
	if err := e.emit(b); err != nil {
		return err
	}
	return e.emit(strImm64(scratch0, regSP, destSlot))
}

func (e *Encoder) encodeNeg(r Record, frame *slotFrame, destSlot uint32) error {
	slot := frame.slot(r.Args[0]) / 8
	if r.Type == "d" {
		if err := e.emit(ldrImmFP64(0, regSP, slot)); err != nil {
			return err
		}
		if err := e.emit(fneg(0, 0)); err != nil {
			return err
		}
		return e.emit(strImmFP64(0, regSP, destSlot))
	}
	if err := e.emit(ldrImm64(scratch0, regSP, slot)); err != nil {
		return err
	}
	if err := e.emit(negReg64(scratch0, scratch0)); err != nil {
		return err
	}
	return e.emit(strImm64(scratch0, regSP, destSlot))
}

func (e *Encoder) encodeConvert(r Record, frame *slotFrame, destSlot uint32, toInt bool) error {
	slot := frame.slot(r.Args[0]) / 8
	if toInt {
		if err := e.emit(ldrImmFP64(0, regSP, slot)); err != nil {
			return err
		}
		if err := e.emit(fcvtzs(scratch0, 0)); err != nil {
			return err
		}
		return e.emit(strImm64(scratch0, regSP, destSlot))
	}
	if err := e.emit(ldrImm64(scratch0, regSP, slot)); err != nil {
		return err
	}
	if err := e.emit(scvtf(0, scratch0)); err != nil {
		return err
	}
	return e.emit(strImmFP64(0, regSP, destSlot))
}

// encodeCall handles both `dest =type call $sym(args)` and the bare
// `call $sym(args)` statement form (wantResult distinguishes them, though
// both currently load results into X0/D0 before storing if dest != "").
func (e *Encoder) encodeCall(r Record, frame *slotFrame, destSlot uint32, wantResult bool) error {
	sym, args := parseCallTarget(r.Args)
	var gprIdx, fpIdx uint32
	for _, a := range args {
		if isTemp(a) {
			slot := frame.slot(a) / 8
			if looksLikeFloatArg(a) {
				if err := e.emit(ldrImmFP64(fpIdx, regSP, slot)); err != nil {
					return err
				}
				fpIdx++
			} else {
				if err := e.emit(ldrImm64(gprIdx, regSP, slot)); err != nil {
					return err
				}
				gprIdx++
			}
		}
	}
	callOff := e.region.CodeLen()
	if err := e.emit(blImm(0)); err != nil {
		return err
	}
	e.externals = append(e.externals, externalCall{codeOffset: callOff, symbol: sym})
	e.stats.ExternalCalls++

	if wantResult && r.Dest != "" {
		if r.Type == "d" {
			return e.emit(strImmFP64(0, regSP, destSlot))
		}
		return e.emit(strImm64(0, regSP, destSlot))
	}
	return nil
}

func looksLikeFloatArg(string) bool { return false } // frame slots are untyped, so every temp arg goes to a GPR

func parseCallTarget(args []string) (string, []string) {
	if len(args) == 0 {
		return "", nil
	}
	head := args[0]
	sym := strings.TrimPrefix(head, "$")
	if idx := strings.Index(sym, "("); idx >= 0 {
		inner := strings.TrimSuffix(sym[idx+1:], ")")
		sym = sym[:idx]
		rest := splitArgs(inner)
		return sym, append(rest, args[1:]...)
	}
	return sym, args[1:]
}

func (e *Encoder) encodeLoadGlobal(r Record, frame *slotFrame, destSlot uint32) error {
	if len(r.Args) != 1 {
		return fmt.Errorf("%s expects one arg, got %v", r.Op, r.Args)
	}
	addrSlot := frame.slot(r.Args[0]) / 8
	if err := e.emit(ldrImm64(scratch0, regSP, addrSlot)); err != nil {
		return err
	}
	if r.Op == "loadd" {
		if err := e.emit(ldrImmFP64(0, scratch0, 0)); err != nil {
			return err
		}
		return e.emit(strImmFP64(0, regSP, destSlot))
	}
	if err := e.emit(ldrImm64(scratch0, scratch0, 0)); err != nil {
		return err
	}
	return e.emit(strImm64(scratch0, regSP, destSlot))
}

func (e *Encoder) encodeStore(r Record, frame *slotFrame) error {
	if len(r.Args) != 2 {
		return fmt.Errorf("store expects val, addr, got %v", r.Args)
	}
	valSlot := frame.slot(r.Args[0]) / 8
	if strings.HasPrefix(r.Args[1], "$") {
		if err := e.loadDataAddrIntoReg(r.Args[1], scratch1); err != nil {
			return err
		}
	} else {
		addrSlot := frame.slot(r.Args[1]) / 8
		if err := e.emit(ldrImm64(scratch1, regSP, addrSlot)); err != nil {
			return err
		}
	}
	if r.Type == "d" {
		if err := e.emit(ldrImmFP64(0, regSP, valSlot)); err != nil {
			return err
		}
		return e.emit(strImmFP64(0, scratch1, 0))
	}
	if err := e.emit(ldrImm64(scratch0, regSP, valSlot)); err != nil {
		return err
	}
	return e.emit(strImm64(scratch0, scratch1, 0))
}

func (e *Encoder) addFixup(codeOffset int, target string, kind fixupKind) {
	e.fixups = append(e.fixups, fixup{codeOffset: codeOffset, target: target, kind: kind})
	e.stats.FixupsCreated++
}

func (e *Encoder) emit(b []byte) error {
	if _, err := e.region.CopyCode(b); err != nil {
		return err
	}
	e.stats.InstructionsEmitted += len(b) / 4
	return nil
}

func isTemp(s string) bool { return strings.HasPrefix(s, "%t.") }

func alignUp16(n int) int {
	if rem := n % 16; rem != 0 {
		return n + (16 - rem)
	}
	return n
}
