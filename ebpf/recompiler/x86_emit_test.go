package recompiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

func decodeOne(t *testing.T, code []byte) x86asm.Inst {
	t.Helper()
	inst, err := x86asm.Decode(code, 64)
	require.NoError(t, err)
	require.Equal(t, len(code), inst.Len, "trailing bytes in % x", code)
	return inst
}

func TestEmitEncodings(t *testing.T) {
	cases := []struct {
		name string
		code []byte
		op   x86asm.Op
		args []x86asm.Arg
	}{
		{"mov64", emitMovRegToReg64(RBX, RAX), x86asm.MOV, []x86asm.Arg{x86asm.RBX, x86asm.RAX}},
		{"mov32 ext", emitMovRegToReg32(R14, R15), x86asm.MOV, []x86asm.Arg{x86asm.R14L, x86asm.R15L}},
		{"sub imm", emitAluRegImm32(true, X86_REG_SUB, R13, 5), x86asm.SUB, []x86asm.Arg{x86asm.R13, x86asm.Imm(5)}},
		{"add32 imm", emitAluRegImm32(false, X86_REG_ADD, RDI, 7), x86asm.ADD, []x86asm.Arg{x86asm.EDI, x86asm.Imm(7)}},
		{"xor reg", emitAluRegReg(true, X86_OP_XOR_RM_R, RAX, R8), x86asm.XOR, []x86asm.Arg{x86asm.RAX, x86asm.R8}},
		{"cmp reg", emitAluRegReg(false, X86_OP_CMP_RM_R, RCX, RDX), x86asm.CMP, []x86asm.Arg{x86asm.ECX, x86asm.EDX}},
		{"imul", emitImulRegReg(true, RSI, R15), x86asm.IMUL, []x86asm.Arg{x86asm.RSI, x86asm.R15}},
		{"mov imm64", emitMovImm64(RAX, 0x1122334455667788), x86asm.MOV, []x86asm.Arg{x86asm.RAX, x86asm.Imm(0x1122334455667788)}},
		{"mov imm32 r9", emitMovImm32(false, R9, 0x21), x86asm.MOV, []x86asm.Arg{x86asm.R9L, x86asm.Imm(0x21)}},
		{"shl imm", emitShiftImm(true, X86_REG_SHL, RBX, 3), x86asm.SHL, []x86asm.Arg{x86asm.RBX, x86asm.Imm(3)}},
		{"sar cl", emitShiftCL(false, X86_REG_SAR, R10), x86asm.SAR, []x86asm.Arg{x86asm.R10L, x86asm.CL}},
		{"neg", emitGroup3(true, X86_REG_NEG, R14), x86asm.NEG, []x86asm.Arg{x86asm.R14}},
		{"div", emitGroup3(true, X86_REG_DIV, R11), x86asm.DIV, []x86asm.Arg{x86asm.R11}},
		{"bswap32", emitBswap(false, R13), x86asm.BSWAP, []x86asm.Arg{x86asm.R13L}},
		{"bswap64", emitBswap(true, RAX), x86asm.BSWAP, []x86asm.Arg{x86asm.RAX}},
		{"ror16", emitRor16(RDI, 8), x86asm.ROR, []x86asm.Arg{x86asm.DI, x86asm.Imm(8)}},
		{"movzx16", emitMovzxRegReg16(RDI, RDI), x86asm.MOVZX, []x86asm.Arg{x86asm.EDI, x86asm.DI}},
		{"push r12", emitPushReg(R12), x86asm.PUSH, []x86asm.Arg{x86asm.R12}},
		{"pop rbp", emitPopReg(RBP), x86asm.POP, []x86asm.Arg{x86asm.RBP}},
		{"call rax", emitCallReg(RAX), x86asm.CALL, []x86asm.Arg{x86asm.RAX}},
		{"sub rsp", emitAdjustRSP(-8), x86asm.SUB, []x86asm.Arg{x86asm.RSP, x86asm.Imm(8)}},
		{"add rsp", emitAdjustRSP(16), x86asm.ADD, []x86asm.Arg{x86asm.RSP, x86asm.Imm(16)}},
		{"ret", emitRet(), x86asm.RET, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inst := decodeOne(t, tc.code)
			assert.Equal(t, tc.op, inst.Op)
			for i, a := range tc.args {
				assert.Equal(t, a, inst.Args[i], "arg %d", i)
			}
		})
	}
}

func TestEmitMemoryOperands(t *testing.T) {
	cases := []struct {
		name string
		code []byte
		op   x86asm.Op
		reg  x86asm.Reg
		base x86asm.Reg
		disp int64
		mem  int // index of the memory operand
	}{
		{"ldxb", emitLoad(1, RAX, RDI, 16), x86asm.MOVZX, x86asm.EAX, x86asm.RDI, 16, 1},
		{"ldxh", emitLoad(2, R13, RSI, -2), x86asm.MOVZX, x86asm.R13L, x86asm.RSI, -2, 1},
		{"ldxw", emitLoad(4, RDX, RBP, -512), x86asm.MOV, x86asm.EDX, x86asm.RBP, -512, 1},
		{"ldxdw", emitLoad(8, R15, R13, 3360), x86asm.MOV, x86asm.R15, x86asm.R13, 3360, 1},
		{"stxb sil", emitStoreReg(1, RDI, 0, RSI), x86asm.MOV, x86asm.SIB, x86asm.RDI, 0, 0},
		{"stxh", emitStoreReg(2, RBP, -8, RCX), x86asm.MOV, x86asm.CX, x86asm.RBP, -8, 0},
		{"stxw", emitStoreReg(4, RBX, 4, R8), x86asm.MOV, x86asm.R8L, x86asm.RBX, 4, 0},
		{"stxdw", emitStoreReg(8, RBP, -16, RAX), x86asm.MOV, x86asm.RAX, x86asm.RBP, -16, 0},
		{"r12 base", emitLoad(8, RAX, R12, 8), x86asm.MOV, x86asm.RAX, x86asm.R12, 8, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inst := decodeOne(t, tc.code)
			assert.Equal(t, tc.op, inst.Op)
			m, ok := inst.Args[tc.mem].(x86asm.Mem)
			require.True(t, ok, "operand %d is %v", tc.mem, inst.Args[tc.mem])
			assert.Equal(t, tc.base, m.Base)
			assert.Equal(t, tc.disp, int64(int32(m.Disp)))
			assert.Equal(t, tc.reg, inst.Args[1-tc.mem])
		})
	}
}

func TestEmitStoreImm(t *testing.T) {
	for _, size := range []int{1, 2, 4, 8} {
		inst := decodeOne(t, emitStoreImm(size, RBP, -8, 0x12))
		assert.Equal(t, x86asm.MOV, inst.Op)
		assert.Equal(t, x86asm.Imm(0x12), inst.Args[1])
		assert.Equal(t, size, inst.MemBytes)
	}
}
