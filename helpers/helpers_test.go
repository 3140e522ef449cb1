package helpers

import (
	"errors"
	"testing"
	"time"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/clock"
	"github.com/colorfulnotion/femtobench/ebpf/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nop(memory.Memory, uint64, uint64, uint64, uint64, uint64) (uint64, error) { return 0, nil }

func TestBuildDeterministic(t *testing.T) {
	entries := []Entry{
		{ID: 0x21, Name: "c", Func: nop},
		{ID: 0x01, Name: "a", Func: nop},
		{ID: 0x03, Name: "b", Func: nop},
	}
	t1, err := Build(entries)
	require.NoError(t, err)
	t2, err := Build(entries)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x01, 0x03, 0x21}, t1.IDs())
	assert.Equal(t, t1.IDs(), t2.IDs())
	for _, id := range t1.IDs() {
		_, ok := t2.Lookup(id)
		assert.True(t, ok)
	}
	_, ok := t1.Lookup(0x02)
	assert.False(t, ok)
}

func TestBuildRejectsDuplicate(t *testing.T) {
	_, err := Build([]Entry{{ID: 1, Name: "x", Func: nop}, {ID: 1, Name: "y", Func: nop}})
	assert.True(t, errors.Is(err, bencherrors.ErrDuplicateHelper))
	assert.Panics(t, func() { MustBuild([]Entry{{ID: 1, Name: "x", Func: nop}, {ID: 1, Name: "y", Func: nop}}) })
}

func TestDefaults(t *testing.T) {
	clk := &clock.Manual{}
	clk.Sleep(3 * time.Millisecond)
	tbl := MustBuild(Defaults(clk))
	assert.Equal(t, []uint32{IDPrintf, IDMemcpy, IDPrintDebug, IDNowMs, IDNowUs}, tbl.IDs())

	now, ok := tbl.Lookup(IDNowUs)
	require.True(t, ok)
	v, err := now(nil, 0, 0, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), v)
}

func TestMemcpy(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 0, 0, 0, 0}
	mem := memory.NewRegions(memory.Region{Name: "ctx", Addr: 0x100, Data: buf, Writable: true})
	r, err := memcpy(mem, 0x104, 0x100, 4, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x104), r)
	assert.Equal(t, []byte{1, 2, 3, 4, 1, 2, 3, 4}, buf)

	_, err = memcpy(mem, 0x104, 0x100, 16, 0, 0)
	assert.True(t, errors.Is(err, bencherrors.ErrMemoryAccess))
}

func TestPrintf(t *testing.T) {
	s := []byte("v=%d x=%lx %s\x00")
	mem := memory.NewRegions(memory.Region{Name: "rodata", Addr: 0x200, Data: s})
	n, err := printf(mem, 0x200, uint64(^uint64(0)), 255, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(len("v=-1 x=ff %s")), n)
}

func TestExpandFormat(t *testing.T) {
	assert.Equal(t, "1 2 100%", expandFormat("%u %d 100%%", []uint64{1, 2}))
	assert.Equal(t, "trailing %", expandFormat("trailing %", nil))
}
