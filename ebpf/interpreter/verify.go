package interpreter

import (
	"fmt"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/helpers"
)

var validOpcodes [256]bool

func init() {
	aluOps := []uint8{
		program.AluAdd, program.AluSub, program.AluMul, program.AluDiv, program.AluOr, program.AluAnd,
		program.AluLsh, program.AluRsh, program.AluMod, program.AluXor, program.AluMov, program.AluArsh,
	}
	for _, class := range []uint8{program.ClassALU, program.ClassALU64} {
		for _, op := range aluOps {
			validOpcodes[class|program.SrcK|op] = true
			validOpcodes[class|program.SrcX|op] = true
		}
		validOpcodes[class|program.AluNeg] = true
	}
	validOpcodes[program.ClassALU|program.SrcK|program.AluEnd] = true
	validOpcodes[program.ClassALU|program.SrcX|program.AluEnd] = true

	condOps := []uint8{
		program.JmpJEQ, program.JmpJGT, program.JmpJGE, program.JmpJSET, program.JmpJNE, program.JmpJSGT,
		program.JmpJSGE, program.JmpJLT, program.JmpJLE, program.JmpJSLT, program.JmpJSLE,
	}
	for _, class := range []uint8{program.ClassJMP, program.ClassJMP32} {
		for _, op := range condOps {
			validOpcodes[class|program.SrcK|op] = true
			validOpcodes[class|program.SrcX|op] = true
		}
	}
	validOpcodes[program.ClassJMP|program.JmpJA] = true
	validOpcodes[program.ClassJMP|program.JmpCall] = true
	validOpcodes[program.ClassJMP|program.JmpExit] = true

	for _, size := range []uint8{program.SizeB, program.SizeH, program.SizeW, program.SizeDW} {
		validOpcodes[program.ClassLDX|program.ModeMEM|size] = true
		validOpcodes[program.ClassST|program.ModeMEM|size] = true
		validOpcodes[program.ClassSTX|program.ModeMEM|size] = true
	}
	validOpcodes[program.OpLDDW] = true
	validOpcodes[program.OpLDDWD] = true
	validOpcodes[program.OpLDDWR] = true
}

// VerifyError locates a rejected instruction.
type VerifyError struct {
	PC     int
	Reason string
}

func (e *VerifyError) Error() string {
	if e.PC < 0 {
		return fmt.Sprintf("%v: %s", bencherrors.ErrVerification, e.Reason)
	}
	return fmt.Sprintf("%v: pc %d: %s", bencherrors.ErrVerification, e.PC, e.Reason)
}

func (e *VerifyError) Unwrap() error { return bencherrors.ErrVerification }

func reject(pc int, format string, args ...any) error {
	return &VerifyError{PC: pc, Reason: fmt.Sprintf(format, args...)}
}

// Verify statically checks slots the way the Femto-Containers loader does.
// The compiler relies on the same rules.
func Verify(slots []program.Slot, registered func(id uint32) bool) error {
	if len(slots) == 0 {
		return reject(-1, "empty program")
	}
	if len(slots) > program.MaxSlots {
		return reject(-1, "%d instructions exceed the limit of %d", len(slots), program.MaxSlots)
	}
	tails := make([]bool, len(slots))
	for pc := 0; pc < len(slots); pc++ {
		if program.IsWide(slots[pc].Op) {
			if pc+1 >= len(slots) {
				return reject(pc, "truncated wide load")
			}
			tails[pc+1] = true
			pc++
		}
	}

	hasExit := false
	for pc := 0; pc < len(slots); pc++ {
		s := slots[pc]
		if !validOpcodes[s.Op] {
			return reject(pc, "unknown opcode 0x%02x", s.Op)
		}
		if s.Dst >= program.NumRegisters || s.Src >= program.NumRegisters {
			return reject(pc, "invalid register")
		}
		switch s.Class() {
		case program.ClassALU, program.ClassALU64:
			if s.Dst == 10 {
				return reject(pc, "r10 is read-only")
			}
			op := program.AluOp(s.Op)
			if (op == program.AluDiv || op == program.AluMod) && program.Source(s.Op) == program.SrcK && s.Imm == 0 {
				return reject(pc, "division by constant zero")
			}
			if op == program.AluEnd && s.Imm != 16 && s.Imm != 32 && s.Imm != 64 {
				return reject(pc, "invalid endian width %d", s.Imm)
			}
		case program.ClassLD:
			if s.Dst == 10 {
				return reject(pc, "r10 is read-only")
			}
			pc++
		case program.ClassLDX:
			if s.Dst == 10 {
				return reject(pc, "r10 is read-only")
			}
		case program.ClassJMP, program.ClassJMP32:
			op := program.JmpOp(s.Op)
			switch {
			case op == program.JmpExit && s.Class() == program.ClassJMP:
				hasExit = true
			case op == program.JmpCall && s.Class() == program.ClassJMP:
				if !registered(uint32(s.Imm)) {
					return reject(pc, "call to unregistered helper 0x%x", uint32(s.Imm))
				}
			default:
				target := pc + 1 + int(s.Off)
				if target < 0 || target >= len(slots) {
					return reject(pc, "jump to %d out of bounds", target)
				}
				if tails[target] {
					return reject(pc, "jump into the middle of a wide load")
				}
			}
		}
	}
	if !hasExit {
		return reject(-1, "no exit instruction")
	}
	return nil
}

func verify(slots []program.Slot, table map[uint32]helpers.Func) error {
	return Verify(slots, func(id uint32) bool {
		_, ok := table[id]
		return ok
	})
}
