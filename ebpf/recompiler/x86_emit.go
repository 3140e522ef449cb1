package recompiler

import "encoding/binary"

func buildREX(w, r, x, b bool) byte {
	rex := byte(X86_REX_BASE)
	if w {
		rex |= X86_REX_W
	}
	if r {
		rex |= X86_REX_R
	}
	if x {
		rex |= X86_REX_X
	}
	if b {
		rex |= X86_REX_B
	}
	return rex
}

// insn describes one ModRM-encoded instruction. regField is either a
// register's low bits or an opcode extension digit.
type insn struct {
	prefix66 bool
	w        bool
	forceREX bool // byte access to sil/dil needs an empty REX
	opcode   []byte
	regField byte
	regExt   bool
	rm       X86Reg
	mem      bool
	disp     int32
}

func (i insn) encode() []byte {
	buf := make([]byte, 0, 12)
	if i.prefix66 {
		buf = append(buf, X86_PREFIX_66)
	}
	rex := buildREX(i.w, i.regExt, false, i.rm.REXBit == 1)
	if rex != X86_REX_BASE || i.forceREX {
		buf = append(buf, rex)
	}
	buf = append(buf, i.opcode...)
	if !i.mem {
		return append(buf, X86_MOD_REGISTER<<6|(i.regField&7)<<3|i.rm.RegBits)
	}
	buf = append(buf, X86_MOD_INDIRECT_DISP32<<6|(i.regField&7)<<3|i.rm.RegBits)
	if i.rm.RegBits == 4 {
		buf = append(buf, 0x24) // SIB: base only
	}
	return binary.LittleEndian.AppendUint32(buf, uint32(i.disp))
}

func regInsn(w bool, opcode []byte, reg, rm X86Reg) insn {
	return insn{w: w, opcode: opcode, regField: reg.RegBits, regExt: reg.REXBit == 1, rm: rm}
}

func digitInsn(w bool, opcode []byte, digit byte, rm X86Reg) insn {
	return insn{w: w, opcode: opcode, regField: digit, rm: rm}
}

func imm32(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

// emitAluRegReg emits `OP dst, src` for the r/m,r forms of group 1 and MOV.
func emitAluRegReg(w bool, opcode byte, dst, src X86Reg) []byte {
	return regInsn(w, []byte{opcode}, src, dst).encode()
}

func emitMovRegToReg64(dst, src X86Reg) []byte {
	return emitAluRegReg(true, X86_OP_MOV_RM_R, dst, src)
}

func emitMovRegToReg32(dst, src X86Reg) []byte {
	return emitAluRegReg(false, X86_OP_MOV_RM_R, dst, src)
}

// emitAluRegImm32 emits a group 1 operation with a sign-extended imm32.
func emitAluRegImm32(w bool, digit byte, dst X86Reg, imm int32) []byte {
	return append(digitInsn(w, []byte{X86_OP_GROUP1_RM_IMM32}, digit, dst).encode(), imm32(imm)...)
}

// emitMovImm32 emits MOV r/m, imm32: sign-extended with w, zero-extended without.
func emitMovImm32(w bool, dst X86Reg, imm int32) []byte {
	if !w {
		buf := []byte{}
		if dst.REXBit == 1 {
			buf = append(buf, buildREX(false, false, false, true))
		}
		buf = append(buf, X86_OP_MOV_R_IMM+dst.RegBits)
		return append(buf, imm32(imm)...)
	}
	return append(digitInsn(true, []byte{X86_OP_MOV_RM_IMM}, 0, dst).encode(), imm32(imm)...)
}

// emitMovImm64 emits MOVABS dst, imm64.
func emitMovImm64(dst X86Reg, imm uint64) []byte {
	buf := []byte{buildREX(true, false, false, dst.REXBit == 1), X86_OP_MOV_R_IMM + dst.RegBits}
	return binary.LittleEndian.AppendUint64(buf, imm)
}

func emitXorReg32(dst X86Reg) []byte {
	return emitAluRegReg(false, X86_OP_XOR_RM_R, dst, dst)
}

func emitImulRegReg(w bool, dst, src X86Reg) []byte {
	return regInsn(w, []byte{X86_PREFIX_0F, X86_OP2_IMUL_R_RM}, dst, src).encode()
}

func emitImulRegImm32(w bool, dst X86Reg, imm int32) []byte {
	return append(regInsn(w, []byte{X86_OP_IMUL_R_RM_IMM32}, dst, dst).encode(), imm32(imm)...)
}

func emitShiftImm(w bool, digit byte, dst X86Reg, count uint8) []byte {
	return append(digitInsn(w, []byte{X86_OP_GROUP2_RM_IMM8}, digit, dst).encode(), count)
}

func emitShiftCL(w bool, digit byte, dst X86Reg) []byte {
	return digitInsn(w, []byte{X86_OP_GROUP2_RM_CL}, digit, dst).encode()
}

func emitGroup3(w bool, digit byte, dst X86Reg) []byte {
	return digitInsn(w, []byte{X86_OP_GROUP3_RM}, digit, dst).encode()
}

func emitTestRegReg(w bool, a, b X86Reg) []byte {
	return emitAluRegReg(w, X86_OP_TEST_RM_R, a, b)
}

func emitTestRegImm32(w bool, dst X86Reg, imm int32) []byte {
	return append(digitInsn(w, []byte{X86_OP_GROUP3_RM}, X86_REG_TEST, dst).encode(), imm32(imm)...)
}

func emitBswap(w bool, dst X86Reg) []byte {
	buf := []byte{}
	if w || dst.REXBit == 1 {
		buf = append(buf, buildREX(w, false, false, dst.REXBit == 1))
	}
	return append(buf, X86_PREFIX_0F, X86_OP2_BSWAP+dst.RegBits)
}

// emitRor16 rotates the low word of dst by count.
func emitRor16(dst X86Reg, count uint8) []byte {
	i := digitInsn(false, []byte{X86_OP_GROUP2_RM_IMM8}, X86_REG_ROR, dst)
	i.prefix66 = true
	return append(i.encode(), count)
}

func emitMovzxRegReg16(dst, src X86Reg) []byte {
	return regInsn(false, []byte{X86_PREFIX_0F, X86_OP2_MOVZX_R_RM16}, dst, src).encode()
}

// emitLoad emits dst = zero-extended [base+disp] of size 1, 2, 4 or 8.
func emitLoad(size int, dst, base X86Reg, disp int32) []byte {
	var i insn
	switch size {
	case 1:
		i = regInsn(false, []byte{X86_PREFIX_0F, X86_OP2_MOVZX_R_RM8}, dst, base)
	case 2:
		i = regInsn(false, []byte{X86_PREFIX_0F, X86_OP2_MOVZX_R_RM16}, dst, base)
	case 4:
		i = regInsn(false, []byte{X86_OP_MOV_R_RM}, dst, base)
	default:
		i = regInsn(true, []byte{X86_OP_MOV_R_RM}, dst, base)
	}
	i.mem, i.disp = true, disp
	return i.encode()
}

// emitStoreReg emits [base+disp] = low size bytes of src.
func emitStoreReg(size int, base X86Reg, disp int32, src X86Reg) []byte {
	var i insn
	switch size {
	case 1:
		i = regInsn(false, []byte{X86_OP_MOV_RM8_R8}, src, base)
		i.forceREX = true
	case 2:
		i = regInsn(false, []byte{X86_OP_MOV_RM_R}, src, base)
		i.prefix66 = true
	case 4:
		i = regInsn(false, []byte{X86_OP_MOV_RM_R}, src, base)
	default:
		i = regInsn(true, []byte{X86_OP_MOV_RM_R}, src, base)
	}
	i.mem, i.disp = true, disp
	return i.encode()
}

// emitStoreImm emits [base+disp] = imm truncated to size; 8-byte stores
// sign-extend imm.
func emitStoreImm(size int, base X86Reg, disp int32, imm int32) []byte {
	var (
		i    insn
		tail []byte
	)
	switch size {
	case 1:
		i = digitInsn(false, []byte{X86_OP_MOV_RM_IMM8}, 0, base)
		tail = []byte{byte(imm)}
	case 2:
		i = digitInsn(false, []byte{X86_OP_MOV_RM_IMM}, 0, base)
		i.prefix66 = true
		tail = binary.LittleEndian.AppendUint16(nil, uint16(imm))
	case 4:
		i = digitInsn(false, []byte{X86_OP_MOV_RM_IMM}, 0, base)
		tail = imm32(imm)
	default:
		i = digitInsn(true, []byte{X86_OP_MOV_RM_IMM}, 0, base)
		tail = imm32(imm)
	}
	i.mem, i.disp = true, disp
	return append(i.encode(), tail...)
}

func emitPushReg(r X86Reg) []byte {
	if r.REXBit == 1 {
		return []byte{buildREX(false, false, false, true), X86_OP_PUSH_R + r.RegBits}
	}
	return []byte{X86_OP_PUSH_R + r.RegBits}
}

func emitPopReg(r X86Reg) []byte {
	if r.REXBit == 1 {
		return []byte{buildREX(false, false, false, true), X86_OP_POP_R + r.RegBits}
	}
	return []byte{X86_OP_POP_R + r.RegBits}
}

// emitAdjustRSP adds delta to rsp with an imm8 form.
func emitAdjustRSP(delta int8) []byte {
	if delta < 0 {
		return []byte{0x48, X86_OP_GROUP1_RM_IMM8, X86_MOD_REGISTER<<6 | X86_REG_SUB<<3 | RSP.RegBits, byte(-delta)}
	}
	return []byte{0x48, X86_OP_GROUP1_RM_IMM8, X86_MOD_REGISTER<<6 | X86_REG_ADD<<3 | RSP.RegBits, byte(delta)}
}

func emitCallReg(r X86Reg) []byte {
	return digitInsn(false, []byte{X86_OP_GROUP5_RM}, X86_REG_CALL, r).encode()
}

func emitRet() []byte {
	return []byte{X86_OP_RET}
}

// emitJmpPlaceholder returns JMP rel32 and the offset of its rel32 field.
func emitJmpPlaceholder() ([]byte, int) {
	return []byte{X86_OP_JMP_REL32, 0, 0, 0, 0}, 1
}

// emitJccPlaceholder returns Jcc rel32 and the offset of its rel32 field.
func emitJccPlaceholder(jcc byte) ([]byte, int) {
	return []byte{X86_PREFIX_0F, jcc, 0, 0, 0, 0}, 2
}
