package program

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/femtobench/bencherrors"
)

// Slot is one 8-byte instruction word. Jump offsets count slots.
type Slot struct {
	Op  uint8
	Dst uint8
	Src uint8
	Off int16
	Imm int32
}

func (s Slot) Class() uint8 { return Class(s.Op) }

// DecodeSlots splits text into slots without validating them.
func DecodeSlots(text []byte) ([]Slot, error) {
	if len(text)%SlotSize != 0 {
		return nil, fmt.Errorf("%w: text length %d is not a multiple of %d", bencherrors.ErrLoad, len(text), SlotSize)
	}
	slots := make([]Slot, len(text)/SlotSize)
	for i := range slots {
		b := text[i*SlotSize:]
		slots[i] = Slot{
			Op:  b[0],
			Dst: b[1] & 0x0f,
			Src: b[1] >> 4,
			Off: int16(binary.LittleEndian.Uint16(b[2:])),
			Imm: int32(binary.LittleEndian.Uint32(b[4:])),
		}
	}
	return slots, nil
}

// EncodeSlots is the inverse of DecodeSlots.
func EncodeSlots(slots []Slot) []byte {
	out := make([]byte, len(slots)*SlotSize)
	for i, s := range slots {
		b := out[i*SlotSize:]
		b[0] = s.Op
		b[1] = s.Dst&0x0f | s.Src<<4
		binary.LittleEndian.PutUint16(b[2:], uint16(s.Off))
		binary.LittleEndian.PutUint32(b[4:], uint32(s.Imm))
	}
	return out
}

// Wide returns the 64-bit immediate of a two-slot load starting at pc.
func Wide(slots []Slot, pc int) uint64 {
	return uint64(uint32(slots[pc].Imm)) | uint64(uint32(slots[pc+1].Imm))<<32
}
