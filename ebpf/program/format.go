package program

import (
	"fmt"

	"github.com/colorfulnotion/femtobench/bencherrors"
)

// Format tags the encoding of a program image.
type Format int

const (
	FormatRaw Format = iota
	FormatFemto
	FormatELF
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatFemto:
		return "femto"
	case FormatELF:
		return "elf"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func ParseFormat(s string) (Format, error) {
	switch s {
	case "raw":
		return FormatRaw, nil
	case "femto":
		return FormatFemto, nil
	case "elf":
		return FormatELF, nil
	}
	return 0, fmt.Errorf("%w: %q", bencherrors.ErrUnknownFormat, s)
}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Detect guesses an image's format from its leading bytes.
func Detect(image []byte) Format {
	if len(image) >= 4 && string(image[:4]) == string(elfMagic) {
		return FormatELF
	}
	if len(image) >= 4 && leUint32(image) == FemtoMagic {
		return FormatFemto
	}
	return FormatRaw
}

// Program is a decoded image: the text plus the sections wide address loads
// refer to.
type Program struct {
	Name   string
	Format Format
	Header *FemtoHeader
	Data   []byte
	Rodata []byte
	Text   []byte
	Slots  []Slot
}

func (p *Program) Len() int { return len(p.Slots) }

// Parse decodes image in format f. name selects an ELF program section and
// is ignored by the other formats. The image is not retained.
func Parse(image []byte, f Format, name string) (*Program, error) {
	var (
		p   *Program
		err error
	)
	switch f {
	case FormatRaw:
		p = &Program{Name: "raw", Text: clone(image)}
	case FormatFemto:
		p, err = parseFemto(image)
	case FormatELF:
		p, err = parseELF(image, name)
	default:
		return nil, fmt.Errorf("%w: %v", bencherrors.ErrUnknownFormat, f)
	}
	if err != nil {
		return nil, err
	}
	p.Format = f
	if p.Slots, err = DecodeSlots(p.Text); err != nil {
		return nil, err
	}
	return p, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
