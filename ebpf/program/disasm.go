package program

import (
	"fmt"

	"github.com/cilium/ebpf/asm"
)

// Line is one disassembled instruction.
type Line struct {
	Slot  int
	Width int
	Text  string
}

// Disassemble renders every instruction of p. Standard opcodes are printed
// in cilium/ebpf notation; the Femto-Containers section loads get their own
// mnemonic.
func Disassemble(p *Program) []Line {
	lines := make([]Line, 0, len(p.Slots))
	for pc := 0; pc < len(p.Slots); pc++ {
		s := p.Slots[pc]
		if IsWide(s.Op) && pc+1 < len(p.Slots) {
			v := Wide(p.Slots, pc)
			var text string
			switch s.Op {
			case OpLDDWD:
				text = fmt.Sprintf("LdDataAddr dst: r%d data+%#x", s.Dst, v)
			case OpLDDWR:
				text = fmt.Sprintf("LdRodataAddr dst: r%d rodata+%#x", s.Dst, v)
			default:
				text = fmt.Sprint(toAsm(s, int64(v)))
			}
			lines = append(lines, Line{Slot: pc, Width: 2, Text: text})
			pc++
			continue
		}
		lines = append(lines, Line{Slot: pc, Width: 1, Text: fmt.Sprint(toAsm(s, int64(s.Imm)))})
	}
	return lines
}

func toAsm(s Slot, constant int64) asm.Instruction {
	return asm.Instruction{
		OpCode:   asm.OpCode(s.Op),
		Dst:      asm.Register(s.Dst),
		Src:      asm.Register(s.Src),
		Offset:   s.Off,
		Constant: constant,
	}
}
