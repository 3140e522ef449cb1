// Package recompiler translates eBPF programs into x86-64 machine code and
// runs the result, either natively or inside an emulator.
package recompiler

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/interpreter"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/log"
)

// Options carries the addresses compiled code embeds.
type Options struct {
	// Helpers maps helper ids to the address the code calls; the helper id
	// is passed in r9 and the environment as the 7th argument.
	Helpers    map[uint32]uint64
	DataAddr   uint64
	RodataAddr uint64
}

type fixup struct {
	at     int // offset of the rel32 field
	target int // slot index, or -1 for the epilogue
}

type compiler struct {
	opts    Options
	slots   []program.Slot
	code    []byte
	offsets []int
	fixups  []fixup
}

// Compile translates p into position-independent machine code whose entry
// is offset 0. The C signature of the result is
//
//	uint64_t fn(uint64_t mem, uint64_t len, uint64_t stack_top, uint64_t env)
func Compile(p *program.Program, opts Options) ([]byte, error) {
	err := interpreter.Verify(p.Slots, func(id uint32) bool {
		_, ok := opts.Helpers[id]
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bencherrors.ErrCompile, err)
	}
	c := &compiler{
		opts:    opts,
		slots:   p.Slots,
		code:    make([]byte, 0, len(p.Slots)*16+64),
		offsets: make([]int, len(p.Slots)),
	}
	c.prologue()
	for pc := 0; pc < len(c.slots); pc++ {
		c.offsets[pc] = len(c.code)
		wide, err := c.translate(pc)
		if err != nil {
			return nil, fmt.Errorf("%w: pc %d: %w", bencherrors.ErrCompile, pc, err)
		}
		if wide {
			pc++
			c.offsets[pc] = len(c.code)
		}
	}
	epilogue := len(c.code)
	c.epilogue()
	for _, f := range c.fixups {
		dest := epilogue
		if f.target >= 0 {
			dest = c.offsets[f.target]
		}
		binary.LittleEndian.PutUint32(c.code[f.at:], uint32(int32(dest-(f.at+4))))
	}
	log.Trace(log.JitMonitoring, "compiled", "name", p.Name, "slots", len(p.Slots), "bytes", len(c.code))
	return c.code, nil
}

// CompileInto compiles p and writes the code at the start of buf.
func CompileInto(p *program.Program, buf *JitBuffer, opts Options) (int, error) {
	code, err := Compile(p, opts)
	if err != nil {
		return 0, err
	}
	if err := buf.Write(code); err != nil {
		return 0, fmt.Errorf("%w: %w", bencherrors.ErrCompile, err)
	}
	return len(code), nil
}

func (c *compiler) emit(b ...byte) {
	c.code = append(c.code, b...)
}

func (c *compiler) jumpTo(insn []byte, relAt int, target int) {
	base := len(c.code)
	c.emit(insn...)
	c.fixups = append(c.fixups, fixup{at: base + relAt, target: target})
}

func (c *compiler) prologue() {
	for _, r := range calleeSaved {
		c.emit(emitPushReg(r)...)
	}
	// six pushes leave rsp 8 bytes off a 16-byte boundary
	c.emit(emitAdjustRSP(-8)...)
	c.emit(emitMovRegToReg64(EnvReg, RCX)...)
	c.emit(emitMovRegToReg64(bpfRegs[10], RDX)...)
	for _, i := range []int{0, 3, 4, 5, 6, 7, 8, 9} {
		c.emit(emitXorReg32(bpfRegs[i])...)
	}
}

func (c *compiler) epilogue() {
	c.emit(emitAdjustRSP(8)...)
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		c.emit(emitPopReg(calleeSaved[i])...)
	}
	c.emit(emitRet()...)
}

// translate emits slot pc and reports whether it consumed the next slot too.
func (c *compiler) translate(pc int) (bool, error) {
	s := c.slots[pc]
	dst := bpfRegs[s.Dst]
	src := bpfRegs[s.Src]
	switch s.Class() {
	case program.ClassALU64, program.ClassALU:
		return false, c.alu(s, dst, src)

	case program.ClassLD:
		v := program.Wide(c.slots, pc)
		switch s.Op {
		case program.OpLDDWD:
			v += c.opts.DataAddr
		case program.OpLDDWR:
			v += c.opts.RodataAddr
		}
		c.emit(emitMovImm64(dst, v)...)
		return true, nil

	case program.ClassLDX:
		c.emit(emitLoad(program.SizeBytes(program.MemSize(s.Op)), dst, src, int32(s.Off))...)
	case program.ClassSTX:
		c.emit(emitStoreReg(program.SizeBytes(program.MemSize(s.Op)), dst, int32(s.Off), src)...)
	case program.ClassST:
		c.emit(emitStoreImm(program.SizeBytes(program.MemSize(s.Op)), dst, int32(s.Off), s.Imm)...)

	case program.ClassJMP, program.ClassJMP32:
		return false, c.jump(pc, s, dst, src)

	default:
		return false, fmt.Errorf("%w: opcode 0x%02x", bencherrors.ErrUnsupportedInstruction, s.Op)
	}
	return false, nil
}

var aluDigits = map[uint8]byte{
	program.AluAdd: X86_REG_ADD,
	program.AluOr:  X86_REG_OR,
	program.AluAnd: X86_REG_AND,
	program.AluSub: X86_REG_SUB,
	program.AluXor: X86_REG_XOR,
}

var aluOpcodes = map[uint8]byte{
	program.AluAdd: X86_OP_ADD_RM_R,
	program.AluOr:  X86_OP_OR_RM_R,
	program.AluAnd: X86_OP_AND_RM_R,
	program.AluSub: X86_OP_SUB_RM_R,
	program.AluXor: X86_OP_XOR_RM_R,
}

var shiftDigits = map[uint8]byte{
	program.AluLsh:  X86_REG_SHL,
	program.AluRsh:  X86_REG_SHR,
	program.AluArsh: X86_REG_SAR,
}

func (c *compiler) alu(s program.Slot, dst, src X86Reg) error {
	w := s.Class() == program.ClassALU64
	useReg := program.Source(s.Op) == program.SrcX
	op := program.AluOp(s.Op)
	switch op {
	case program.AluAdd, program.AluSub, program.AluOr, program.AluAnd, program.AluXor:
		if useReg {
			c.emit(emitAluRegReg(w, aluOpcodes[op], dst, src)...)
		} else {
			c.emit(emitAluRegImm32(w, aluDigits[op], dst, s.Imm)...)
		}
	case program.AluMov:
		switch {
		case useReg && w:
			c.emit(emitMovRegToReg64(dst, src)...)
		case useReg:
			c.emit(emitMovRegToReg32(dst, src)...)
		default:
			c.emit(emitMovImm32(w, dst, s.Imm)...)
		}
	case program.AluMul:
		if useReg {
			c.emit(emitImulRegReg(w, dst, src)...)
		} else {
			c.emit(emitImulRegImm32(w, dst, s.Imm)...)
		}
	case program.AluNeg:
		c.emit(emitGroup3(w, X86_REG_NEG, dst)...)
	case program.AluLsh, program.AluRsh, program.AluArsh:
		c.shift(w, shiftDigits[op], dst, src, useReg, s.Imm)
	case program.AluDiv, program.AluMod:
		c.divmod(w, op == program.AluMod, dst, src, useReg, s.Imm)
	case program.AluEnd:
		if w {
			return fmt.Errorf("%w: opcode 0x%02x", bencherrors.ErrUnsupportedInstruction, s.Op)
		}
		c.endian(useReg, dst, s.Imm)
	default:
		return fmt.Errorf("%w: opcode 0x%02x", bencherrors.ErrUnsupportedInstruction, s.Op)
	}
	return nil
}

func (c *compiler) shift(w bool, digit byte, dst, src X86Reg, useReg bool, imm int32) {
	if !useReg {
		mask := int32(31)
		if w {
			mask = 63
		}
		c.emit(emitShiftImm(w, digit, dst, uint8(imm&mask))...)
		return
	}
	// the count must be in cl, which is eBPF r4
	c.emit(emitMovRegToReg64(TmpReg, dst)...)
	c.emit(emitMovRegToReg64(TmpReg2, src)...)
	c.emit(emitPushReg(RCX)...)
	c.emit(emitMovRegToReg64(RCX, TmpReg2)...)
	c.emit(emitShiftCL(w, digit, TmpReg)...)
	c.emit(emitPopReg(RCX)...)
	if w {
		c.emit(emitMovRegToReg64(dst, TmpReg)...)
	} else {
		c.emit(emitMovRegToReg32(dst, TmpReg)...)
	}
}

// divmod implements unsigned division where x/0 is 0 and x%0 is x.
func (c *compiler) divmod(w, mod bool, dst, src X86Reg, useReg bool, imm int32) {
	if useReg {
		c.emit(emitMovRegToReg64(TmpReg2, src)...)
	} else {
		c.emit(emitMovImm32(w, TmpReg2, imm)...)
	}
	if !w {
		c.emit(emitMovRegToReg32(TmpReg2, TmpReg2)...)
	}
	c.emit(emitTestRegReg(true, TmpReg2, TmpReg2)...)
	jnz := len(c.code)
	c.emit(X86_PREFIX_0F, X86_OP2_JNE, 0, 0, 0, 0)

	if !mod {
		c.emit(emitXorReg32(dst)...)
	} else if !w {
		c.emit(emitMovRegToReg32(dst, dst)...)
	}
	jmpEnd := len(c.code)
	c.emit(X86_OP_JMP_REL32, 0, 0, 0, 0)

	nonzero := len(c.code)
	c.emit(emitMovRegToReg64(TmpReg, dst)...)
	c.emit(emitPushReg(RAX)...)
	c.emit(emitPushReg(RDX)...)
	c.emit(emitMovRegToReg64(RAX, TmpReg)...)
	c.emit(emitXorReg32(RDX)...)
	c.emit(emitGroup3(w, X86_REG_DIV, TmpReg2)...)
	if mod {
		c.emit(emitMovRegToReg64(TmpReg, RDX)...)
	} else {
		c.emit(emitMovRegToReg64(TmpReg, RAX)...)
	}
	c.emit(emitPopReg(RDX)...)
	c.emit(emitPopReg(RAX)...)
	c.emit(emitMovRegToReg64(dst, TmpReg)...)
	end := len(c.code)

	binary.LittleEndian.PutUint32(c.code[jnz+2:], uint32(int32(nonzero-(jnz+6))))
	binary.LittleEndian.PutUint32(c.code[jmpEnd+1:], uint32(int32(end-(jmpEnd+5))))
}

func (c *compiler) endian(toBig bool, dst X86Reg, width int32) {
	switch width {
	case 16:
		if toBig {
			c.emit(emitRor16(dst, 8)...)
		}
		c.emit(emitMovzxRegReg16(dst, dst)...)
	case 32:
		if toBig {
			c.emit(emitBswap(false, dst)...)
		} else {
			c.emit(emitMovRegToReg32(dst, dst)...)
		}
	case 64:
		if toBig {
			c.emit(emitBswap(true, dst)...)
		}
	}
}

var jccFor = map[uint8]byte{
	program.JmpJEQ:  X86_OP2_JE,
	program.JmpJNE:  X86_OP2_JNE,
	program.JmpJGT:  X86_OP2_JA,
	program.JmpJGE:  X86_OP2_JAE,
	program.JmpJLT:  X86_OP2_JB,
	program.JmpJLE:  X86_OP2_JBE,
	program.JmpJSGT: X86_OP2_JG,
	program.JmpJSGE: X86_OP2_JGE,
	program.JmpJSLT: X86_OP2_JL,
	program.JmpJSLE: X86_OP2_JLE,
	program.JmpJSET: X86_OP2_JNE,
}

func (c *compiler) jump(pc int, s program.Slot, dst, src X86Reg) error {
	op := program.JmpOp(s.Op)
	target := pc + 1 + int(s.Off)
	if s.Class() == program.ClassJMP {
		switch op {
		case program.JmpExit:
			insn, at := emitJmpPlaceholder()
			c.jumpTo(insn, at, -1)
			return nil
		case program.JmpCall:
			return c.call(uint32(s.Imm))
		case program.JmpJA:
			insn, at := emitJmpPlaceholder()
			c.jumpTo(insn, at, target)
			return nil
		}
	}
	jcc, ok := jccFor[op]
	if !ok {
		return fmt.Errorf("%w: opcode 0x%02x", bencherrors.ErrUnsupportedInstruction, s.Op)
	}
	w := s.Class() == program.ClassJMP
	useReg := program.Source(s.Op) == program.SrcX
	switch {
	case op == program.JmpJSET && useReg:
		c.emit(emitTestRegReg(w, dst, src)...)
	case op == program.JmpJSET:
		c.emit(emitTestRegImm32(w, dst, s.Imm)...)
	case useReg:
		c.emit(emitAluRegReg(w, X86_OP_CMP_RM_R, dst, src)...)
	default:
		c.emit(emitAluRegImm32(w, X86_REG_CMP, dst, s.Imm)...)
	}
	insn, at := emitJccPlaceholder(jcc)
	c.jumpTo(insn, at, target)
	return nil
}

func (c *compiler) call(id uint32) error {
	addr, ok := c.opts.Helpers[id]
	if !ok {
		return fmt.Errorf("%w: 0x%x", bencherrors.ErrUnresolvedHelper, id)
	}
	c.emit(emitMovImm32(false, R9, int32(id))...)
	c.emit(emitAdjustRSP(-8)...)
	c.emit(emitPushReg(EnvReg)...)
	c.emit(emitMovImm64(RAX, addr)...)
	c.emit(emitCallReg(RAX)...)
	c.emit(emitAdjustRSP(16)...)
	return nil
}
