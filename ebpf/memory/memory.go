// Package memory implements the checked view of program-visible memory: a
// set of regions, each a host byte slice published at the host address of its
// first byte, as the compiled code sees it.
package memory

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/colorfulnotion/femtobench/bencherrors"
)

// Memory is what helper callbacks use to dereference program pointers.
type Memory interface {
	Read(addr uint64, n int) ([]byte, error)
	Write(addr uint64, data []byte) error
}

type Region struct {
	Name     string
	Addr     uint64
	Data     []byte
	Writable bool
}

func (r Region) End() uint64 {
	return r.Addr + uint64(len(r.Data))
}

// HostRegion publishes data at its own host address.
func HostRegion(name string, data []byte, writable bool) Region {
	return Region{Name: name, Addr: AddressOf(data), Data: data, Writable: writable}
}

// AddressOf returns the host address of the first byte of b, or 0 for an
// empty slice. The caller must keep b alive while the address is in use.
func AddressOf(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}

// AccessError describes an access that no permitted region covers.
type AccessError struct {
	Addr  uint64
	Size  int
	Write bool
}

func (e *AccessError) Error() string {
	kind := "load"
	if e.Write {
		kind = "store"
	}
	return fmt.Sprintf("%v %s of %d bytes at 0x%x", bencherrors.ErrMemoryAccess, kind, e.Size, e.Addr)
}

func (e *AccessError) Unwrap() error {
	return bencherrors.ErrMemoryAccess
}

// Regions is the ordered list of regions a program may touch. Lookups are
// linear; a benchmark run has at most five regions.
type Regions struct {
	list []Region
}

func NewRegions(regions ...Region) *Regions {
	rs := &Regions{}
	for _, r := range regions {
		rs.Add(r)
	}
	return rs
}

// Add appends r; zero-length regions grant nothing and are skipped.
func (rs *Regions) Add(r Region) {
	if len(r.Data) == 0 {
		return
	}
	rs.list = append(rs.list, r)
}

func (rs *Regions) List() []Region {
	return rs.list
}

// Translate returns the host bytes backing [addr, addr+size).
func (rs *Regions) Translate(addr uint64, size int, write bool) ([]byte, error) {
	if size < 0 {
		return nil, &AccessError{Addr: addr, Size: size, Write: write}
	}
	end := addr + uint64(size)
	if end < addr {
		return nil, &AccessError{Addr: addr, Size: size, Write: write}
	}
	for _, r := range rs.list {
		if addr >= r.Addr && end <= r.End() {
			if write && !r.Writable {
				break
			}
			off := addr - r.Addr
			return r.Data[off : off+uint64(size)], nil
		}
	}
	return nil, &AccessError{Addr: addr, Size: size, Write: write}
}

func (rs *Regions) Read(addr uint64, n int) ([]byte, error) {
	return rs.Translate(addr, n, false)
}

func (rs *Regions) Write(addr uint64, data []byte) error {
	dst, err := rs.Translate(addr, len(data), true)
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// Load reads a little-endian integer of size 1, 2, 4 or 8 bytes.
func (rs *Regions) Load(addr uint64, size int) (uint64, error) {
	b, err := rs.Translate(addr, size, false)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	default:
		return binary.LittleEndian.Uint64(b), nil
	}
}

// Store writes the low size bytes of v in little-endian order.
func (rs *Regions) Store(addr uint64, size int, v uint64) error {
	b, err := rs.Translate(addr, size, true)
	if err != nil {
		return err
	}
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
	return nil
}
