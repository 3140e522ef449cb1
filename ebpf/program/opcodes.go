package program

// Instruction classes.
const (
	ClassLD    uint8 = 0x00
	ClassLDX   uint8 = 0x01
	ClassST    uint8 = 0x02
	ClassSTX   uint8 = 0x03
	ClassALU   uint8 = 0x04
	ClassJMP   uint8 = 0x05
	ClassJMP32 uint8 = 0x06
	ClassALU64 uint8 = 0x07
)

// Operand source.
const (
	SrcK uint8 = 0x00
	SrcX uint8 = 0x08
)

// ALU operations.
const (
	AluAdd  uint8 = 0x00
	AluSub  uint8 = 0x10
	AluMul  uint8 = 0x20
	AluDiv  uint8 = 0x30
	AluOr   uint8 = 0x40
	AluAnd  uint8 = 0x50
	AluLsh  uint8 = 0x60
	AluRsh  uint8 = 0x70
	AluNeg  uint8 = 0x80
	AluMod  uint8 = 0x90
	AluXor  uint8 = 0xa0
	AluMov  uint8 = 0xb0
	AluArsh uint8 = 0xc0
	AluEnd  uint8 = 0xd0
)

// Jump operations.
const (
	JmpJA   uint8 = 0x00
	JmpJEQ  uint8 = 0x10
	JmpJGT  uint8 = 0x20
	JmpJGE  uint8 = 0x30
	JmpJSET uint8 = 0x40
	JmpJNE  uint8 = 0x50
	JmpJSGT uint8 = 0x60
	JmpJSGE uint8 = 0x70
	JmpCall uint8 = 0x80
	JmpExit uint8 = 0x90
	JmpJLT  uint8 = 0xa0
	JmpJLE  uint8 = 0xb0
	JmpJSLT uint8 = 0xc0
	JmpJSLE uint8 = 0xd0
)

// Memory access sizes and modes.
const (
	SizeW  uint8 = 0x00
	SizeH  uint8 = 0x08
	SizeB  uint8 = 0x10
	SizeDW uint8 = 0x18

	ModeIMM uint8 = 0x00
	ModeMEM uint8 = 0x60
)

// Wide loads occupying two slots.
const (
	OpLDDW  uint8 = ClassLD | SizeDW | ModeIMM // 0x18
	OpLDDWD uint8 = 0xb8                       // data-relative address
	OpLDDWR uint8 = 0xd8                       // rodata-relative address
)

const (
	SlotSize = 8

	// StackSize is the per-invocation scratch area addressed through r10.
	StackSize = 512

	// MaxSlots bounds a program's text.
	MaxSlots = 4096

	NumRegisters = 11
)

func Class(op uint8) uint8   { return op & 0x07 }
func Source(op uint8) uint8  { return op & 0x08 }
func AluOp(op uint8) uint8   { return op & 0xf0 }
func JmpOp(op uint8) uint8   { return op & 0xf0 }
func MemSize(op uint8) uint8 { return op & 0x18 }
func MemMode(op uint8) uint8 { return op & 0xe0 }

// SizeBytes maps a size field to its width in bytes.
func SizeBytes(size uint8) int {
	switch size {
	case SizeB:
		return 1
	case SizeH:
		return 2
	case SizeW:
		return 4
	default:
		return 8
	}
}

// IsWide reports whether op consumes the following slot as well.
func IsWide(op uint8) bool {
	return op == OpLDDW || op == OpLDDWD || op == OpLDDWR
}
