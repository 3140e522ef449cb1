package recompiler

import (
	"github.com/colorfulnotion/femtobench/ebpf/memory"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/helpers"
)

func alu64K(op, dst uint8, imm int32) program.Slot {
	return program.Slot{Op: program.ClassALU64 | program.SrcK | op, Dst: dst, Imm: imm}
}

func alu64X(op, dst, src uint8) program.Slot {
	return program.Slot{Op: program.ClassALU64 | program.SrcX | op, Dst: dst, Src: src}
}

func alu32K(op, dst uint8, imm int32) program.Slot {
	return program.Slot{Op: program.ClassALU | program.SrcK | op, Dst: dst, Imm: imm}
}

func alu32X(op, dst, src uint8) program.Slot {
	return program.Slot{Op: program.ClassALU | program.SrcX | op, Dst: dst, Src: src}
}

func jmpK(op, dst uint8, imm int32, off int16) program.Slot {
	return program.Slot{Op: program.ClassJMP | program.SrcK | op, Dst: dst, Imm: imm, Off: off}
}

func jmpX(op, dst, src uint8, off int16) program.Slot {
	return program.Slot{Op: program.ClassJMP | program.SrcX | op, Dst: dst, Src: src, Off: off}
}

func ldx(size, dst, src uint8, off int16) program.Slot {
	return program.Slot{Op: program.ClassLDX | program.ModeMEM | size, Dst: dst, Src: src, Off: off}
}

func stx(size, dst, src uint8, off int16) program.Slot {
	return program.Slot{Op: program.ClassSTX | program.ModeMEM | size, Dst: dst, Src: src, Off: off}
}

func st(size, dst uint8, off int16, imm int32) program.Slot {
	return program.Slot{Op: program.ClassST | program.ModeMEM | size, Dst: dst, Off: off, Imm: imm}
}

var exit = program.Slot{Op: program.ClassJMP | program.JmpExit}

const testHelperAdd = 0x40

func testHelpers() *helpers.Table {
	return helpers.MustBuild([]helpers.Entry{
		{ID: testHelperAdd, Name: "add", Func: func(_ memory.Memory, a, b, _, _, _ uint64) (uint64, error) {
			return a + b, nil
		}},
		{ID: helpers.IDMemcpy, Name: "bpf_memcpy", Func: func(mem memory.Memory, dst, src, n, _, _ uint64) (uint64, error) {
			b, err := mem.Read(src, int(n))
			if err != nil {
				return 0, err
			}
			return dst, mem.Write(dst, append([]byte(nil), b...))
		}},
	})
}

type agreementCase struct {
	name   string
	slots  []program.Slot
	ctxLen int
}

// agreementCases must produce the same r0 and context bytes under the
// interpreter and every backend.
var agreementCases = []agreementCase{
	{"return one", []program.Slot{alu64K(program.AluMov, 0, 1), exit}, 0},
	{"div by zero", []program.Slot{alu64K(program.AluMov, 0, 7), alu64K(program.AluMov, 1, 0), alu64X(program.AluDiv, 0, 1), exit}, 0},
	{"mod by zero", []program.Slot{alu64K(program.AluMov, 0, 7), alu64K(program.AluMov, 1, 0), alu64X(program.AluMod, 0, 1), exit}, 0},
	{"mod32 by zero", []program.Slot{alu64K(program.AluMov, 0, -7), alu64K(program.AluMov, 1, 0), alu32X(program.AluMod, 0, 1), exit}, 0},
	{"div into rdx", []program.Slot{alu64K(program.AluMov, 3, 100), alu64K(program.AluMov, 0, 9), alu64X(program.AluDiv, 3, 0), alu64X(program.AluMov, 0, 3), exit}, 0},
	{"mod imm", []program.Slot{alu64K(program.AluMov, 0, 1000), alu64K(program.AluMod, 0, 7), exit}, 0},
	{"div32 imm", []program.Slot{alu64K(program.AluMov, 0, -1), alu32K(program.AluDiv, 0, 16), exit}, 0},
	{"alu32 wraps", []program.Slot{alu64K(program.AluMov, 0, -1), alu32K(program.AluAdd, 0, 1), exit}, 0},
	{"sign extend", []program.Slot{alu64K(program.AluMov, 0, -2), alu64K(program.AluAnd, 0, -16), exit}, 0},
	{"mul", []program.Slot{alu64K(program.AluMov, 0, 12), alu64K(program.AluMul, 0, 12), alu64K(program.AluMov, 6, 3), alu64X(program.AluMul, 0, 6), exit}, 0},
	{"neg sub xor or", []program.Slot{alu64K(program.AluMov, 0, 5), {Op: program.ClassALU64 | program.AluNeg}, alu64K(program.AluSub, 0, 3), alu64K(program.AluXor, 0, 0x55), alu64K(program.AluOr, 0, 0x100), exit}, 0},
	{"shift by r4", []program.Slot{alu64K(program.AluMov, 0, 1), alu64K(program.AluMov, 4, 40), alu64X(program.AluLsh, 0, 4), alu64X(program.AluAdd, 0, 4), exit}, 0},
	{"shift r4 itself", []program.Slot{alu64K(program.AluMov, 4, 3), alu64X(program.AluLsh, 4, 4), alu64X(program.AluMov, 0, 4), exit}, 0},
	{"arsh32", []program.Slot{alu64K(program.AluMov, 0, -256), alu64K(program.AluMov, 7, 4), alu32X(program.AluArsh, 0, 7), exit}, 0},
	{"rsh imm", []program.Slot{alu64K(program.AluMov, 0, -1), alu64K(program.AluRsh, 0, 60), exit}, 0},
	{"be16", []program.Slot{alu64K(program.AluMov, 0, 0x11223344), {Op: program.ClassALU | program.SrcX | program.AluEnd, Imm: 16}, exit}, 0},
	{"be32", []program.Slot{alu64K(program.AluMov, 0, 0x11223344), {Op: program.ClassALU | program.SrcX | program.AluEnd, Imm: 32}, exit}, 0},
	{"be64", []program.Slot{{Op: program.OpLDDW, Imm: 0x55667788}, {Imm: 0x11223344}, {Op: program.ClassALU | program.SrcX | program.AluEnd, Imm: 64}, exit}, 0},
	{"le16", []program.Slot{alu64K(program.AluMov, 0, -1), {Op: program.ClassALU | program.SrcK | program.AluEnd, Imm: 16}, exit}, 0},
	{"loop sum", []program.Slot{
		alu64K(program.AluMov, 0, 0),
		alu64K(program.AluMov, 1, 1),
		alu64X(program.AluAdd, 0, 1),
		alu64K(program.AluAdd, 1, 1),
		jmpK(program.JmpJLE, 1, 10, -3),
		exit,
	}, 0},
	{"signed branches", []program.Slot{
		alu64K(program.AluMov, 0, 0),
		alu64K(program.AluMov, 6, -5),
		jmpK(program.JmpJSGT, 6, 0, 1),
		alu64K(program.AluOr, 0, 1),
		jmpK(program.JmpJGT, 6, 0, 1),
		exit,
		alu64K(program.AluOr, 0, 2),
		alu64K(program.AluMov, 7, 3),
		jmpX(program.JmpJSLT, 6, 7, 1),
		exit,
		alu64K(program.AluOr, 0, 4),
		jmpK(program.JmpJSET, 7, 2, 1),
		exit,
		alu64K(program.AluOr, 0, 8),
		exit,
	}, 0},
	{"jmp32", []program.Slot{
		{Op: program.OpLDDW, Dst: 1, Imm: 5}, {Imm: 1},
		alu64K(program.AluMov, 0, 0),
		{Op: program.ClassJMP32 | program.SrcK | program.JmpJEQ, Dst: 1, Imm: 5, Off: 1},
		exit,
		alu64K(program.AluMov, 0, 1),
		exit,
	}, 0},
	{"context and stack", []program.Slot{
		st(program.SizeDW, 1, 8, 41),
		ldx(program.SizeDW, 3, 1, 8),
		alu64K(program.AluAdd, 3, 1),
		stx(program.SizeDW, 10, 3, -8),
		ldx(program.SizeDW, 0, 10, -8),
		stx(program.SizeW, 1, 2, 16),
		st(program.SizeB, 1, 20, 0x7f),
		st(program.SizeH, 1, 22, -2),
		ldx(program.SizeH, 6, 1, 22),
		alu64X(program.AluAdd, 0, 6),
		stx(program.SizeB, 1, 2, 24),
		exit,
	}, 64},
	{"helper call", []program.Slot{
		alu64K(program.AluMov, 1, 20),
		alu64K(program.AluMov, 2, 22),
		alu64K(program.AluMov, 6, 1000),
		{Op: program.ClassJMP | program.JmpCall, Imm: testHelperAdd},
		alu64X(program.AluAdd, 0, 6),
		exit,
	}, 0},
	{"memcpy helper", []program.Slot{
		alu64X(program.AluMov, 6, 1),
		st(program.SizeDW, 1, 0, 0x1234),
		alu64X(program.AluMov, 2, 1),
		alu64K(program.AluAdd, 1, 8),
		alu64K(program.AluMov, 3, 8),
		{Op: program.ClassJMP | program.JmpCall, Imm: int32(helpers.IDMemcpy)},
		ldx(program.SizeDW, 0, 6, 8),
		exit,
	}, 16},
}
