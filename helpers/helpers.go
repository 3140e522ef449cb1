// Package helpers defines the host functions a benchmark program may call by
// id, and the immutable table both execution paths resolve them from.
package helpers

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/clock"
	"github.com/colorfulnotion/femtobench/ebpf/memory"
	"github.com/colorfulnotion/femtobench/log"
)

const (
	IDPrintf     uint32 = 0x01
	IDMemcpy     uint32 = 0x02
	IDPrintDebug uint32 = 0x03
	IDNowMs      uint32 = 0x20
	IDNowUs      uint32 = 0x21
)

// maxFormatLen bounds the format string read by bpf_printf.
const maxFormatLen = 256

// Func is a helper callback. Pointer arguments are program addresses and must
// be dereferenced through mem.
type Func func(mem memory.Memory, r1, r2, r3, r4, r5 uint64) (uint64, error)

type Entry struct {
	ID   uint32
	Name string
	Func Func
}

// Table is built once and never mutated afterwards.
type Table struct {
	entries map[uint32]Entry
	ids     []uint32
}

func Build(entries []Entry) (*Table, error) {
	t := &Table{entries: make(map[uint32]Entry, len(entries))}
	for _, e := range entries {
		if prev, ok := t.entries[e.ID]; ok {
			return nil, fmt.Errorf("%w: id 0x%x used by %s and %s", bencherrors.ErrDuplicateHelper, e.ID, prev.Name, e.Name)
		}
		if e.Func == nil {
			return nil, fmt.Errorf("helper %s (0x%x) has no function", e.Name, e.ID)
		}
		t.entries[e.ID] = e
		t.ids = append(t.ids, e.ID)
	}
	sort.Slice(t.ids, func(i, j int) bool { return t.ids[i] < t.ids[j] })
	return t, nil
}

// MustBuild panics on duplicate ids; the default table is a program invariant.
func MustBuild(entries []Entry) *Table {
	t, err := Build(entries)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Lookup(id uint32) (Func, bool) {
	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	return e.Func, true
}

func (t *Table) Entry(id uint32) (Entry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// IDs returns the registered ids in ascending order.
func (t *Table) IDs() []uint32 {
	out := make([]uint32, len(t.ids))
	copy(out, t.ids)
	return out
}

func (t *Table) Len() int { return len(t.ids) }

// Defaults returns the standard helper set. Time helpers read clk.
func Defaults(clk clock.Clock) []Entry {
	return []Entry{
		{ID: IDPrintf, Name: "bpf_printf", Func: printf},
		{ID: IDMemcpy, Name: "bpf_memcpy", Func: memcpy},
		{ID: IDPrintDebug, Name: "bpf_print_debug", Func: printDebug},
		{ID: IDNowMs, Name: "bpf_now_ms", Func: func(memory.Memory, uint64, uint64, uint64, uint64, uint64) (uint64, error) {
			return uint64(clk.Now()) / 1000, nil
		}},
		{ID: IDNowUs, Name: "bpf_now_us", Func: func(memory.Memory, uint64, uint64, uint64, uint64, uint64) (uint64, error) {
			return uint64(clk.Now()), nil
		}},
	}
}

func printf(mem memory.Memory, fmtAddr, a1, a2, a3, a4 uint64) (uint64, error) {
	format, err := readCString(mem, fmtAddr, maxFormatLen)
	if err != nil {
		return 0, err
	}
	msg := expandFormat(format, []uint64{a1, a2, a3, a4})
	log.Debug(log.HelperMonitoring, "bpf_printf", "msg", msg)
	return uint64(len(msg)), nil
}

func memcpy(mem memory.Memory, dst, src, n, _, _ uint64) (uint64, error) {
	if n == 0 {
		return dst, nil
	}
	data, err := mem.Read(src, int(n))
	if err != nil {
		return 0, err
	}
	buf := append([]byte(nil), data...)
	if err := mem.Write(dst, buf); err != nil {
		return 0, err
	}
	return dst, nil
}

func printDebug(_ memory.Memory, v, _, _, _, _ uint64) (uint64, error) {
	log.Debug(log.HelperMonitoring, "bpf_print_debug", "value", v)
	return 0, nil
}

// readCString reads a NUL-terminated string of at most max bytes.
func readCString(mem memory.Memory, addr uint64, max int) (string, error) {
	var sb strings.Builder
	for i := 0; i < max; i++ {
		b, err := mem.Read(addr+uint64(i), 1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			break
		}
		sb.WriteByte(b[0])
	}
	return sb.String(), nil
}

// expandFormat substitutes %d, %u, %x, %lu, %ld and %lx with the integer
// arguments in order; other verbs are copied through.
func expandFormat(format string, args []uint64) string {
	var out bytes.Buffer
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			out.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(format) && format[j] == 'l' {
			j++
		}
		if j >= len(format) {
			out.WriteString(format[i:])
			break
		}
		verb := format[j]
		var arg uint64
		if next < len(args) {
			arg = args[next]
		}
		switch verb {
		case 'd', 'i':
			fmt.Fprintf(&out, "%d", int64(arg))
		case 'u':
			fmt.Fprintf(&out, "%d", arg)
		case 'x':
			fmt.Fprintf(&out, "%x", arg)
		case '%':
			out.WriteByte('%')
			i = j
			continue
		default:
			out.WriteString(format[i : j+1])
			i = j
			continue
		}
		next++
		i = j
	}
	return out.String()
}
