// Package memctx holds the scratch record handed to benchmark programs: a
// zeroed matrix/vector block with a fixed little-endian layout.
package memctx

import (
	"encoding/binary"
	"fmt"
)

const (
	Rows = 20
	Cols = 20
	YLen = 100

	OffsetA = 0
	OffsetB = OffsetA + Rows*Cols*8
	OffsetX = OffsetB + Rows*8
	OffsetY = OffsetX + Rows*8
	Size    = OffsetY + YLen*8
)

// Kind selects the context configuration of a run.
type Kind int

const (
	Libud Kind = iota
	Empty
)

func (k Kind) String() string {
	switch k {
	case Libud:
		return "libud"
	case Empty:
		return "empty"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "libud", "":
		return Libud, nil
	case "empty":
		return Empty, nil
	}
	return 0, fmt.Errorf("unknown context %q (want libud or empty)", s)
}

// Context is one iteration's memory. A Context of kind Empty exposes a
// zero-length region.
type Context struct {
	kind Kind
	buf  []byte
}

func New(kind Kind) *Context {
	c := &Context{kind: kind}
	if kind == Libud {
		c.buf = make([]byte, Size)
	}
	return c
}

func (c *Context) Kind() Kind { return c.kind }

// Bytes is the region handed to the program; it aliases the context.
func (c *Context) Bytes() []byte { return c.buf }

func (c *Context) Len() int { return len(c.buf) }

func (c *Context) get(off int) int64 {
	return int64(binary.LittleEndian.Uint64(c.buf[off:]))
}

func (c *Context) set(off int, v int64) {
	binary.LittleEndian.PutUint64(c.buf[off:], uint64(v))
}

func (c *Context) A(i, j int) int64       { return c.get(OffsetA + (i*Cols+j)*8) }
func (c *Context) SetA(i, j int, v int64) { c.set(OffsetA+(i*Cols+j)*8, v) }
func (c *Context) B(i int) int64          { return c.get(OffsetB + i*8) }
func (c *Context) SetB(i int, v int64)    { c.set(OffsetB+i*8, v) }
func (c *Context) X(i int) int64          { return c.get(OffsetX + i*8) }
func (c *Context) SetX(i int, v int64)    { c.set(OffsetX+i*8, v) }
func (c *Context) Y(i int) int64          { return c.get(OffsetY + i*8) }
func (c *Context) SetY(i int, v int64)    { c.set(OffsetY+i*8, v) }
