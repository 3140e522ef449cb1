package recompiler

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Disassemble renders x86-64 code one instruction per line with its offset
// and encoding. Undecodable bytes, including a dangling prefix, are shown as db.
func Disassemble(code []byte) string {
	var sb strings.Builder
	offset := 0
	for offset < len(code) {
		inst, err := decodeInst(code[offset:])
		if err != nil {
			sb.WriteString(fmt.Sprintf("0x%04x: db 0x%02x\n", offset, code[offset]))
			offset++
			continue
		}
		var hexBytes []string
		for i := 0; i < inst.Len; i++ {
			hexBytes = append(hexBytes, fmt.Sprintf("%02x", code[offset+i]))
		}
		sb.WriteString(fmt.Sprintf(
			"0x%04x: %-30s %s\n",
			offset,
			strings.Join(hexBytes, " "),
			x86asm.IntelSyntax(inst, uint64(offset), nil),
		))
		offset += inst.Len
	}
	return sb.String()
}

// Decode splits code into instructions, stopping at the first undecodable byte.
func Decode(code []byte) ([]x86asm.Inst, error) {
	var out []x86asm.Inst
	for offset := 0; offset < len(code); {
		inst, err := decodeInst(code[offset:])
		if err != nil {
			return out, fmt.Errorf("offset 0x%x: %w", offset, err)
		}
		out = append(out, inst)
		offset += inst.Len
	}
	return out, nil
}

// decodeInst decodes one 64-bit mode instruction. x86asm returns a bare
// prefix with no opcode for truncated input; that is reported as an error.
func decodeInst(code []byte) (x86asm.Inst, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return inst, err
	}
	if inst.Op == 0 {
		return inst, x86asm.ErrUnrecognized
	}
	return inst, nil
}
