package program

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/femtobench/bencherrors"
)

// FemtoMagic is "rBPF" read as a little-endian word.
const FemtoMagic uint32 = 0x72425046

const FemtoHeaderSize = 7 * 4

// FemtoHeader precedes the data, rodata and text sections of a
// Femto-Containers image.
type FemtoHeader struct {
	Magic     uint32
	Version   uint32
	Flags     uint32
	DataLen   uint32
	RodataLen uint32
	TextLen   uint32
	Functions uint32
}

func leUint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func ParseFemtoHeader(image []byte) (*FemtoHeader, error) {
	if len(image) < FemtoHeaderSize {
		return nil, fmt.Errorf("%w: image of %d bytes is shorter than the header", bencherrors.ErrBadHeader, len(image))
	}
	h := &FemtoHeader{
		Magic:     leUint32(image[0:]),
		Version:   leUint32(image[4:]),
		Flags:     leUint32(image[8:]),
		DataLen:   leUint32(image[12:]),
		RodataLen: leUint32(image[16:]),
		TextLen:   leUint32(image[20:]),
		Functions: leUint32(image[24:]),
	}
	if h.Magic != FemtoMagic {
		return nil, fmt.Errorf("%w: magic 0x%08x", bencherrors.ErrBadHeader, h.Magic)
	}
	need := uint64(FemtoHeaderSize) + uint64(h.DataLen) + uint64(h.RodataLen) + uint64(h.TextLen)
	if need > uint64(len(image)) {
		return nil, fmt.Errorf("%w: sections need %d bytes, image has %d", bencherrors.ErrBadHeader, need, len(image))
	}
	return h, nil
}

func parseFemto(image []byte) (*Program, error) {
	h, err := ParseFemtoHeader(image)
	if err != nil {
		return nil, err
	}
	off := FemtoHeaderSize
	data := image[off : off+int(h.DataLen)]
	off += int(h.DataLen)
	rodata := image[off : off+int(h.RodataLen)]
	off += int(h.RodataLen)
	text := image[off : off+int(h.TextLen)]
	return &Program{
		Name:   "femto",
		Header: h,
		Data:   clone(data),
		Rodata: clone(rodata),
		Text:   clone(text),
	}, nil
}

// BuildFemto assembles a Femto-Containers image with no function table.
func BuildFemto(data, rodata, text []byte) []byte {
	out := make([]byte, FemtoHeaderSize, FemtoHeaderSize+len(data)+len(rodata)+len(text))
	binary.LittleEndian.PutUint32(out[0:], FemtoMagic)
	binary.LittleEndian.PutUint32(out[4:], 0)
	binary.LittleEndian.PutUint32(out[8:], 0)
	binary.LittleEndian.PutUint32(out[12:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[16:], uint32(len(rodata)))
	binary.LittleEndian.PutUint32(out[20:], uint32(len(text)))
	binary.LittleEndian.PutUint32(out[24:], 0)
	out = append(out, data...)
	out = append(out, rodata...)
	return append(out, text...)
}
