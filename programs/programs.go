// Package programs holds the benchmark workloads. Each one is assembled with
// cilium/ebpf/asm at start-up and returns 1 when it computed the expected
// answer.
package programs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/cilium/ebpf/asm"
	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/helpers"
	"github.com/colorfulnotion/femtobench/memctx"
)

const (
	ReturnOne   = "return-one"
	Sum         = "sum"
	CRC32       = "crc32"
	MatVec      = "matvec"
	Clock       = "clock"
	Printf      = "printf"
	OutOfBounds = "out-of-bounds"

	// Default is the workload run when no program is given.
	Default = MatVec

	// SumScale mirrors SCALE_FACTOR of the sum benchmark.
	SumScale = 100

	// CRCLen is the number of context bytes covered by the crc32 workload.
	CRCLen = 64
)

// Workload is a named benchmark program.
type Workload struct {
	Name        string
	Description string
	// NeedsContext reports whether the program dereferences r1.
	NeedsContext bool

	build func() (text, rodata []byte, err error)
}

var catalogue = map[string]Workload{
	ReturnOne:   {Name: ReturnOne, Description: "mov r0, 1; exit", build: textOnly(returnOne)},
	Sum:         {Name: Sum, Description: "sum 1..N in a loop and check N(N+1)/2", build: textOnly(func() asm.Instructions { return sum(SumScale) })},
	CRC32:       {Name: CRC32, Description: "bitwise CRC-32 over the first context bytes", NeedsContext: true, build: textOnly(crc)},
	MatVec:      {Name: MatVec, Description: "fill the libud matrix and vector, multiply, check the total", NeedsContext: true, build: textOnly(matvec)},
	Clock:       {Name: Clock, Description: "call bpf_now_us twice and check it does not go backwards", build: textOnly(clockCheck)},
	Printf:      {Name: Printf, Description: "print a rodata format string through bpf_printf", build: printf},
	OutOfBounds: {Name: OutOfBounds, Description: "load past the end of the libud context", NeedsContext: true, build: textOnly(outOfBounds)},
}

// Names lists the workloads in lexical order.
func Names() []string {
	out := make([]string, 0, len(catalogue))
	for name := range catalogue {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func Lookup(name string) (Workload, bool) {
	w, ok := catalogue[name]
	return w, ok
}

// Image assembles the workload into an image of format f. Raw images carry
// text only, so workloads that need rodata must use the femto format.
func (w Workload) Image(f program.Format) ([]byte, error) {
	text, rodata, err := w.build()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", bencherrors.ErrLoad, w.Name, err)
	}
	switch f {
	case program.FormatFemto:
		return program.BuildFemto(nil, rodata, text), nil
	case program.FormatRaw:
		if len(rodata) > 0 {
			return nil, fmt.Errorf("%w: %s needs rodata, use the femto format", bencherrors.ErrUnknownFormat, w.Name)
		}
		return text, nil
	default:
		return nil, fmt.Errorf("%w: cannot assemble %s as %s", bencherrors.ErrUnknownFormat, w.Name, f)
	}
}

// Image assembles the named workload.
func Image(name string, f program.Format) ([]byte, error) {
	w, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: no workload %q", bencherrors.ErrLoad, name)
	}
	return w.Image(f)
}

func textOnly(fn func() asm.Instructions) func() ([]byte, []byte, error) {
	return func() ([]byte, []byte, error) {
		text, err := assemble(fn())
		return text, nil, err
	}
}

// assemble resolves label references to slot offsets and marshals insns.
func assemble(insns asm.Instructions) ([]byte, error) {
	symbols := make(map[string]int)
	offsets := make([]int, len(insns))
	off := 0
	for i, ins := range insns {
		offsets[i] = off
		if sym := ins.Symbol(); sym != "" {
			if _, dup := symbols[sym]; dup {
				return nil, fmt.Errorf("duplicate label %q", sym)
			}
			symbols[sym] = off
		}
		off += int(ins.Size() / asm.InstructionSize)
	}
	for i := range insns {
		ref := insns[i].Reference()
		if ref == "" || !insns[i].OpCode.Class().IsJump() {
			continue
		}
		target, ok := symbols[ref]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", ref)
		}
		insns[i].Offset = int16(target - offsets[i] - 1)
	}
	var buf bytes.Buffer
	if err := insns.Marshal(&buf, binary.LittleEndian); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func returnOne() asm.Instructions {
	return asm.Instructions{
		asm.Mov.Imm(asm.R0, 1),
		asm.Return(),
	}
}

func sum(n int32) asm.Instructions {
	return asm.Instructions{
		asm.Mov.Imm(asm.R6, 0),
		asm.Mov.Imm(asm.R7, 0),
		asm.Mov.Imm(asm.R4, n),
		asm.JGT.Reg(asm.R7, asm.R4, "done").WithSymbol("loop"),
		asm.Add.Reg(asm.R6, asm.R7),
		asm.Add.Imm(asm.R7, 1),
		asm.Ja.Label("loop"),
		asm.Mov.Reg(asm.R2, asm.R4).WithSymbol("done"),
		asm.Mov.Reg(asm.R3, asm.R4),
		asm.Add.Imm(asm.R3, 1),
		asm.Mul.Reg(asm.R2, asm.R3),
		asm.Div.Imm(asm.R2, 2),
		asm.Mov.Imm(asm.R0, 0),
		asm.JNE.Reg(asm.R6, asm.R2, "exit"),
		asm.Mov.Imm(asm.R0, 1),
		asm.Return().WithSymbol("exit"),
	}
}

// crc computes the reflected IEEE CRC-32 of the first CRCLen context bytes
// one bit at a time. The context is zeroed on every iteration, so the
// expected value is fixed.
func crc() asm.Instructions {
	expected := crc32.ChecksumIEEE(make([]byte, CRCLen))
	return asm.Instructions{
		asm.Mov.Imm(asm.R0, 0),
		asm.JLT.Imm(asm.R2, CRCLen, "exit"),
		asm.LoadImm(asm.R3, 0xffffffff, asm.DWord),
		asm.LoadImm(asm.R8, 0xedb88320, asm.DWord),
		asm.Mov.Imm(asm.R6, 0),
		asm.JGE.Imm(asm.R6, CRCLen, "done").WithSymbol("byte"),
		asm.Mov.Reg(asm.R4, asm.R1),
		asm.Add.Reg(asm.R4, asm.R6),
		asm.LoadMem(asm.R4, asm.R4, 0, asm.Byte),
		asm.Xor.Reg(asm.R3, asm.R4),
		asm.Mov.Imm(asm.R7, 0),
		asm.JGE.Imm(asm.R7, 8, "next").WithSymbol("bit"),
		asm.Mov.Reg(asm.R5, asm.R3),
		asm.And.Imm(asm.R5, 1),
		asm.RSh.Imm(asm.R3, 1),
		asm.JEq.Imm(asm.R5, 0, "skip"),
		asm.Xor.Reg(asm.R3, asm.R8),
		asm.Add.Imm(asm.R7, 1).WithSymbol("skip"),
		asm.Ja.Label("bit"),
		asm.Add.Imm(asm.R6, 1).WithSymbol("next"),
		asm.Ja.Label("byte"),
		asm.Xor.Imm32(asm.R3, -1).WithSymbol("done"),
		asm.LoadImm(asm.R4, int64(expected), asm.DWord),
		asm.JNE.Reg(asm.R3, asm.R4, "exit"),
		asm.Mov.Imm(asm.R0, 1),
		asm.Return().WithSymbol("exit"),
	}
}

// MatVecTotal is the sum of x after x = a*b with a[i][j] = i+j and b[j] = 1.
const MatVecTotal = memctx.Rows * memctx.Cols * (memctx.Rows - 1)

// matvec fills a[i][j] = i+j and b[i] = 1, stores x = a*b and returns 1 when
// the elements of x add up to MatVecTotal.
func matvec() asm.Instructions {
	const (
		rows = memctx.Rows
		cols = memctx.Cols
	)
	return asm.Instructions{
		asm.Mov.Imm(asm.R6, 0),
		asm.JGE.Imm(asm.R6, rows, "multiply").WithSymbol("fill_row"),
		asm.Mov.Imm(asm.R7, 0),
		asm.JGE.Imm(asm.R7, cols, "fill_b").WithSymbol("fill_col"),
		asm.Mov.Reg(asm.R3, asm.R6),
		asm.Mul.Imm(asm.R3, cols),
		asm.Add.Reg(asm.R3, asm.R7),
		asm.LSh.Imm(asm.R3, 3),
		asm.Add.Reg(asm.R3, asm.R1),
		asm.Mov.Reg(asm.R4, asm.R6),
		asm.Add.Reg(asm.R4, asm.R7),
		asm.StoreMem(asm.R3, memctx.OffsetA, asm.R4, asm.DWord),
		asm.Add.Imm(asm.R7, 1),
		asm.Ja.Label("fill_col"),
		asm.Mov.Reg(asm.R3, asm.R6).WithSymbol("fill_b"),
		asm.LSh.Imm(asm.R3, 3),
		asm.Add.Reg(asm.R3, asm.R1),
		asm.StoreImm(asm.R3, memctx.OffsetB, 1, asm.DWord),
		asm.Add.Imm(asm.R6, 1),
		asm.Ja.Label("fill_row"),

		asm.Mov.Imm(asm.R6, 0).WithSymbol("multiply"),
		asm.Mov.Imm(asm.R9, 0),
		asm.JGE.Imm(asm.R6, rows, "check").WithSymbol("mul_row"),
		asm.Mov.Imm(asm.R8, 0),
		asm.Mov.Imm(asm.R7, 0),
		asm.JGE.Imm(asm.R7, cols, "store_x").WithSymbol("mul_col"),
		asm.Mov.Reg(asm.R3, asm.R6),
		asm.Mul.Imm(asm.R3, cols),
		asm.Add.Reg(asm.R3, asm.R7),
		asm.LSh.Imm(asm.R3, 3),
		asm.Add.Reg(asm.R3, asm.R1),
		asm.LoadMem(asm.R4, asm.R3, memctx.OffsetA, asm.DWord),
		asm.Mov.Reg(asm.R5, asm.R7),
		asm.LSh.Imm(asm.R5, 3),
		asm.Add.Reg(asm.R5, asm.R1),
		asm.LoadMem(asm.R5, asm.R5, memctx.OffsetB, asm.DWord),
		asm.Mul.Reg(asm.R4, asm.R5),
		asm.Add.Reg(asm.R8, asm.R4),
		asm.Add.Imm(asm.R7, 1),
		asm.Ja.Label("mul_col"),
		asm.Mov.Reg(asm.R3, asm.R6).WithSymbol("store_x"),
		asm.LSh.Imm(asm.R3, 3),
		asm.Add.Reg(asm.R3, asm.R1),
		asm.StoreMem(asm.R3, memctx.OffsetX, asm.R8, asm.DWord),
		asm.Add.Reg(asm.R9, asm.R8),
		asm.Add.Imm(asm.R6, 1),
		asm.Ja.Label("mul_row"),

		asm.Mov.Imm(asm.R0, 0).WithSymbol("check"),
		asm.JNE.Imm(asm.R9, MatVecTotal, "exit"),
		asm.Mov.Imm(asm.R0, 1),
		asm.Return().WithSymbol("exit"),
	}
}

func clockCheck() asm.Instructions {
	return asm.Instructions{
		asm.BuiltinFunc(helpers.IDNowUs).Call(),
		asm.Mov.Reg(asm.R6, asm.R0),
		asm.BuiltinFunc(helpers.IDNowUs).Call(),
		asm.Mov.Reg(asm.R7, asm.R0),
		asm.Mov.Imm(asm.R0, 0),
		asm.JLT.Reg(asm.R7, asm.R6, "exit"),
		asm.Mov.Imm(asm.R0, 1),
		asm.Return().WithSymbol("exit"),
	}
}

// PrintfFormat is the rodata string printed by the printf workload.
const PrintfFormat = "femtobench: sum=%d\n"

func printf() ([]byte, []byte, error) {
	rodata := append([]byte(PrintfFormat), 0)
	text, err := assemble(asm.Instructions{
		// lddwr has no cilium mnemonic; the second slot carries the upper
		// half of the offset.
		asm.Instruction{OpCode: asm.OpCode(program.OpLDDWR), Dst: asm.R1, Constant: 0},
		asm.Instruction{OpCode: asm.OpCode(0), Constant: 0},
		asm.Mov.Imm(asm.R2, SumScale*(SumScale+1)/2),
		asm.BuiltinFunc(helpers.IDPrintf).Call(),
		asm.Mov.Imm(asm.R0, 1),
		asm.Return(),
	})
	return text, rodata, err
}

func outOfBounds() asm.Instructions {
	return asm.Instructions{
		asm.LoadMem(asm.R0, asm.R1, memctx.Size+8, asm.DWord),
		asm.Return(),
	}
}
