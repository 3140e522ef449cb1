package interpreter

import (
	"fmt"
	"math/bits"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/memory"
	"github.com/colorfulnotion/femtobench/ebpf/program"
)

// Execute runs the program once. mem is the primary region and mbuff the
// ancillary buffer; r1 points at mbuff when it is non-empty and at mem
// otherwise, r2 holds len(mem). allowed lists extra readable regions.
// Addresses are host addresses, so every region lives on the heap.
func (vm *VM) Execute(mem, mbuff []byte, allowed []memory.Region) (uint64, error) {
	if !vm.verified {
		return 0, fmt.Errorf("%w: program not verified", bencherrors.ErrExec)
	}
	var (
		stack  = make([]byte, program.StackSize)
		data   = append([]byte(nil), vm.prog.Data...)
		rodata = vm.prog.Rodata
	)
	regions := memory.NewRegions(
		memory.HostRegion("mem", mem, true),
		memory.HostRegion("mbuff", mbuff, true),
		memory.HostRegion("stack", stack, true),
		memory.HostRegion("data", data, true),
		memory.HostRegion("rodata", rodata, false),
	)
	for _, r := range allowed {
		r.Writable = false
		regions.Add(r)
	}

	var reg [program.NumRegisters]uint64
	if len(mbuff) > 0 {
		reg[1] = memory.AddressOf(mbuff)
	} else {
		reg[1] = memory.AddressOf(mem)
	}
	reg[2] = uint64(len(mem))
	reg[10] = memory.AddressOf(stack) + program.StackSize

	return vm.run(&reg, regions, memory.AddressOf(data), memory.AddressOf(rodata))
}

func (vm *VM) run(reg *[program.NumRegisters]uint64, mem *memory.Regions, dataAddr, rodataAddr uint64) (uint64, error) {
	slots := vm.prog.Slots
	pc := 0
	for {
		if pc < 0 || pc >= len(slots) {
			return 0, fmt.Errorf("%w: pc %d outside the program", bencherrors.ErrExec, pc)
		}
		s := slots[pc]
		pc++
		switch s.Class() {
		case program.ClassALU64:
			src := uint64(int64(s.Imm))
			if program.Source(s.Op) == program.SrcX {
				src = reg[s.Src]
			}
			reg[s.Dst] = alu64(program.AluOp(s.Op), reg[s.Dst], src)

		case program.ClassALU:
			op := program.AluOp(s.Op)
			if op == program.AluEnd {
				reg[s.Dst] = endian(program.Source(s.Op) == program.SrcX, reg[s.Dst], s.Imm)
				continue
			}
			src := uint32(s.Imm)
			if program.Source(s.Op) == program.SrcX {
				src = uint32(reg[s.Src])
			}
			reg[s.Dst] = uint64(alu32(op, uint32(reg[s.Dst]), src))

		case program.ClassLD:
			v := program.Wide(slots, pc-1)
			switch s.Op {
			case program.OpLDDWD:
				v += dataAddr
			case program.OpLDDWR:
				v += rodataAddr
			}
			reg[s.Dst] = v
			pc++

		case program.ClassLDX:
			addr := reg[s.Src] + uint64(int64(s.Off))
			v, err := mem.Load(addr, program.SizeBytes(program.MemSize(s.Op)))
			if err != nil {
				return 0, fmt.Errorf("pc %d: %w", pc-1, err)
			}
			reg[s.Dst] = v

		case program.ClassST, program.ClassSTX:
			addr := reg[s.Dst] + uint64(int64(s.Off))
			v := uint64(int64(s.Imm))
			if s.Class() == program.ClassSTX {
				v = reg[s.Src]
			}
			if err := mem.Store(addr, program.SizeBytes(program.MemSize(s.Op)), v); err != nil {
				return 0, fmt.Errorf("pc %d: %w", pc-1, err)
			}

		case program.ClassJMP, program.ClassJMP32:
			op := program.JmpOp(s.Op)
			if s.Class() == program.ClassJMP {
				switch op {
				case program.JmpExit:
					return reg[0], nil
				case program.JmpCall:
					id := uint32(s.Imm)
					f, ok := vm.helpers[id]
					if !ok {
						return 0, fmt.Errorf("%w: 0x%x at pc %d", bencherrors.ErrUnknownHelper, id, pc-1)
					}
					r0, err := f(mem, reg[1], reg[2], reg[3], reg[4], reg[5])
					if err != nil {
						return 0, fmt.Errorf("%w: helper 0x%x at pc %d: %w", bencherrors.ErrExec, id, pc-1, err)
					}
					reg[0] = r0
					continue
				case program.JmpJA:
					pc += int(s.Off)
					continue
				}
			}
			dst := reg[s.Dst]
			src := uint64(int64(s.Imm))
			if program.Source(s.Op) == program.SrcX {
				src = reg[s.Src]
			}
			var taken bool
			if s.Class() == program.ClassJMP32 {
				taken = cond32(op, uint32(dst), uint32(src))
			} else {
				taken = cond64(op, dst, src)
			}
			if taken {
				pc += int(s.Off)
			}

		default:
			return 0, fmt.Errorf("%w: opcode 0x%02x at pc %d", bencherrors.ErrExec, s.Op, pc-1)
		}
	}
}

func alu64(op uint8, dst, src uint64) uint64 {
	switch op {
	case program.AluAdd:
		return dst + src
	case program.AluSub:
		return dst - src
	case program.AluMul:
		return dst * src
	case program.AluDiv:
		if src == 0 {
			return 0
		}
		return dst / src
	case program.AluMod:
		if src == 0 {
			return dst
		}
		return dst % src
	case program.AluOr:
		return dst | src
	case program.AluAnd:
		return dst & src
	case program.AluXor:
		return dst ^ src
	case program.AluLsh:
		return dst << (src & 63)
	case program.AluRsh:
		return dst >> (src & 63)
	case program.AluArsh:
		return uint64(int64(dst) >> (src & 63))
	case program.AluNeg:
		return -dst
	case program.AluMov:
		return src
	}
	return dst
}

func alu32(op uint8, dst, src uint32) uint32 {
	switch op {
	case program.AluAdd:
		return dst + src
	case program.AluSub:
		return dst - src
	case program.AluMul:
		return dst * src
	case program.AluDiv:
		if src == 0 {
			return 0
		}
		return dst / src
	case program.AluMod:
		if src == 0 {
			return dst
		}
		return dst % src
	case program.AluOr:
		return dst | src
	case program.AluAnd:
		return dst & src
	case program.AluXor:
		return dst ^ src
	case program.AluLsh:
		return dst << (src & 31)
	case program.AluRsh:
		return dst >> (src & 31)
	case program.AluArsh:
		return uint32(int32(dst) >> (src & 31))
	case program.AluNeg:
		return -dst
	case program.AluMov:
		return src
	}
	return dst
}

// endian converts the low width bits of v to little (toBig false) or big
// endian, zeroing the rest. The host is little endian.
func endian(toBig bool, v uint64, width int32) uint64 {
	switch width {
	case 16:
		if toBig {
			return uint64(bits.ReverseBytes16(uint16(v)))
		}
		return uint64(uint16(v))
	case 32:
		if toBig {
			return uint64(bits.ReverseBytes32(uint32(v)))
		}
		return uint64(uint32(v))
	default:
		if toBig {
			return bits.ReverseBytes64(v)
		}
		return v
	}
}

func cond64(op uint8, dst, src uint64) bool {
	switch op {
	case program.JmpJEQ:
		return dst == src
	case program.JmpJNE:
		return dst != src
	case program.JmpJGT:
		return dst > src
	case program.JmpJGE:
		return dst >= src
	case program.JmpJLT:
		return dst < src
	case program.JmpJLE:
		return dst <= src
	case program.JmpJSET:
		return dst&src != 0
	case program.JmpJSGT:
		return int64(dst) > int64(src)
	case program.JmpJSGE:
		return int64(dst) >= int64(src)
	case program.JmpJSLT:
		return int64(dst) < int64(src)
	case program.JmpJSLE:
		return int64(dst) <= int64(src)
	}
	return false
}

func cond32(op uint8, dst, src uint32) bool {
	switch op {
	case program.JmpJEQ:
		return dst == src
	case program.JmpJNE:
		return dst != src
	case program.JmpJGT:
		return dst > src
	case program.JmpJGE:
		return dst >= src
	case program.JmpJLT:
		return dst < src
	case program.JmpJLE:
		return dst <= src
	case program.JmpJSET:
		return dst&src != 0
	case program.JmpJSGT:
		return int32(dst) > int32(src)
	case program.JmpJSGE:
		return int32(dst) >= int32(src)
	case program.JmpJSLT:
		return int32(dst) < int32(src)
	case program.JmpJSLE:
		return int32(dst) <= int32(src)
	}
	return false
}
