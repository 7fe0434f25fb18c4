package encoder

import "encoding/binary"

// Register numbers. X0-X7/D0-D7 are the scratch set the encoder uses to
// shuttle values between frame slots and operations (spec §4.6 names no
// fixed register convention, so this follows the teacher-adjacent
// backend_aarch64.go reference's working-register style: a small fixed
// scratch set plus a frame-pointer-addressed local area).
const (
	regFP = 29
	regLR = 30
	regSP = 31

	scratch0 = 0
	scratch1 = 1
)

func u32(instr uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, instr)
	return b
}

// movz64 encodes `MOVZ Xd, #imm16, LSL #shift`.
func movz64(rd uint32, imm16 uint16, shift uint32) []byte {
	return u32(0xD2800000 | (shift/16)<<21 | uint32(imm16)<<5 | rd)
}

// movk64 encodes `MOVK Xd, #imm16, LSL #shift`.
func movk64(rd uint32, imm16 uint16, shift uint32) []byte {
	return u32(0xF2800000 | (shift/16)<<21 | uint32(imm16)<<5 | rd)
}

// loadImm64 builds an arbitrary 64-bit constant into rd via up to four
// MOVZ/MOVK instructions, skipping all-zero 16-bit chunks after the first.
func loadImm64(rd uint32, val uint64) []byte {
	var out []byte
	out = append(out, movz64(rd, uint16(val), 0)...)
	for shift := uint32(16); shift < 64; shift += 16 {
		chunk := uint16(val >> shift)
		if chunk != 0 {
			out = append(out, movk64(rd, chunk, shift)...)
		}
	}
	return out
}

// addImm64/subImm64 encode `ADD/SUB Xd, Xn, #imm12` (imm12 < 4096, no shift).
func addImm64(rd, rn uint32, imm12 uint32) []byte {
	return u32(0x91000000 | (imm12&0xFFF)<<10 | rn<<5 | rd)
}

func subImm64(rd, rn uint32, imm12 uint32) []byte {
	return u32(0xD1000000 | (imm12&0xFFF)<<10 | rn<<5 | rd)
}

// addReg64/subReg64/mulReg64 encode the register-register GPR forms.
func addReg64(rd, rn, rm uint32) []byte { return u32(0x8B000000 | rm<<16 | rn<<5 | rd) }
func subReg64(rd, rn, rm uint32) []byte { return u32(0xCB000000 | rm<<16 | rn<<5 | rd) }
func mulReg64(rd, rn, rm uint32) []byte { return u32(0x9B007C00 | rm<<16 | rn<<5 | rd) }
func sdivReg64(rd, rn, rm uint32) []byte { return u32(0x9AC00C00 | rm<<16 | rn<<5 | rd) }
func andReg64(rd, rn, rm uint32) []byte { return u32(0x8A000000 | rm<<16 | rn<<5 | rd) }
func orrReg64(rd, rn, rm uint32) []byte { return u32(0xAA000000 | rm<<16 | rn<<5 | rd) }
func eorReg64(rd, rn, rm uint32) []byte { return u32(0xCA000000 | rm<<16 | rn<<5 | rd) }
func negReg64(rd, rm uint32) []byte     { return subReg64(rd, 31, rm) }

// cmpReg64 encodes `SUBS XZR, Xn, Xm` (i.e. CMP) for integer compares.
func cmpReg64(rn, rm uint32) []byte { return u32(0xEB00001F | rm<<16 | rn<<5) }

// cset64 encodes `CSET Xd, <cond>`: Xd = 1 if cond else 0.
func cset64(rd uint32, cond uint32) []byte {
	invCond := cond ^ 1
	return u32(0x9A9F07E0 | invCond<<12 | rd)
}

// Condition codes used by cset64/bCondImm.
const (
	condEQ = 0x0
	condNE = 0x1
	condLT = 0xB
	condLE = 0xD
	condGT = 0xC
	condGE = 0xA
)

// fmovGPRToFP/fmovFPToGPR move a 64-bit bit pattern between GPR and FP regs.
func fmovGPRToFP(vd, rn uint32) []byte { return u32(0x9E670000 | rn<<5 | vd) }
func fmovFPToGPR(rd, vn uint32) []byte { return u32(0x9E660000 | vn<<5 | rd) }

// fadd/fsub/fmul/fdiv/fneg/fcmp are the double-precision scalar FP ops.
func fadd(vd, vn, vm uint32) []byte { return u32(0x1E602800 | vm<<16 | vn<<5 | vd) }
func fsub(vd, vn, vm uint32) []byte { return u32(0x1E603800 | vm<<16 | vn<<5 | vd) }
func fmul(vd, vn, vm uint32) []byte { return u32(0x1E600800 | vm<<16 | vn<<5 | vd) }
func fdiv(vd, vn, vm uint32) []byte { return u32(0x1E601800 | vm<<16 | vn<<5 | vd) }
func fneg(vd, vn uint32) []byte     { return u32(0x1E614000 | vn<<5 | vd) }
func fcmpReg(vn, vm uint32) []byte  { return u32(0x1E602000 | vm<<16 | vn<<5) }

// strImm64/ldrImm64 encode the GPR unsigned-offset forms (64-bit, imm12 is
// in units of 8 bytes).
func strImm64(rt, rn uint32, imm12 uint32) []byte {
	return u32(0xF9000000 | (imm12&0xFFF)<<10 | rn<<5 | rt)
}
func ldrImm64(rt, rn uint32, imm12 uint32) []byte {
	return u32(0xF9400000 | (imm12&0xFFF)<<10 | rn<<5 | rt)
}

// strImmFP64/ldrImmFP64 are the SIMD&FP unsigned-offset equivalents.
func strImmFP64(vt, rn uint32, imm12 uint32) []byte {
	return u32(0xFD000000 | (imm12&0xFFF)<<10 | rn<<5 | vt)
}
func ldrImmFP64(vt, rn uint32, imm12 uint32) []byte {
	return u32(0xFD400000 | (imm12&0xFFF)<<10 | rn<<5 | vt)
}

// stpPre/ldpPost encode the paired prologue/epilogue forms used to save and
// restore FP/LR, mirroring backend_aarch64.go's emitStp/emitLdp pattern.
func stpPre64(rt, rt2, rn uint32, imm7 int32) []byte {
	imm := uint32(imm7/8) & 0x7F
	return u32(0xA9800000 | imm<<15 | rt2<<10 | rn<<5 | rt)
}
func ldpPost64(rt, rt2, rn uint32, imm7 int32) []byte {
	imm := uint32(imm7/8) & 0x7F
	return u32(0xA8C00000 | imm<<15 | rt2<<10 | rn<<5 | rt)
}

func movReg64(rd, rn uint32) []byte { return orrReg64(rd, 31, rn) } // ORR Xd, XZR, Xn

func ret() []byte { return u32(0xD65F03C0) }

// bImm/bCondImm/blImm encode branch instructions for a byte delta. The
// encoder emits them with a placeholder delta of 0; the linker re-encodes
// them with the real delta once the target offset is known.
func bImm(delta int32) []byte         { return u32(0x14000000 | uint32(delta/4)&0x03ffffff) }
func blImm(delta int32) []byte        { return u32(0x94000000 | uint32(delta/4)&0x03ffffff) }
func bCondImm(cond uint32, delta int32) []byte {
	return u32(0x54000000 | (uint32(delta/4)&0x7FFFF)<<5 | cond)
}

// cmpImm64 encodes `SUBS XZR, Xn, #imm12` for a compare-against-immediate.
func cmpImm64(rn uint32, imm12 uint32) []byte {
	return u32(0xF100001F | (imm12&0xFFF)<<10 | rn<<5)
}

// fcvtzs/scvtf encode the dtosi/swtof conversions used by the integer
// divide lowering (BACKSLASH).
func fcvtzs(rd, vn uint32) []byte { return u32(0x9E780000 | vn<<5 | rd) }
func scvtf(vd, rn uint32) []byte  { return u32(0x9E620000 | rn<<5 | vd) }

// adrpPlaceholder emits `ADRP Xd, #0`; the linker patches immlo/immhi once
// the referenced data symbol's final address is known
// (memregion.PatchAdrpAdd), preserving the Rd field encoded here.
func adrpPlaceholder(rd uint32) []byte { return u32(0x90000000 | rd) }
