//go:build linux && amd64 && cgo

package recompiler

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/interpreter"
	"github.com/colorfulnotion/femtobench/ebpf/memory"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interpret(t *testing.T, p *program.Program, table *helpers.Table, ctx []byte) uint64 {
	t.Helper()
	vm := interpreter.NewFromProgram(p)
	require.NoError(t, vm.RegisterTable(table))
	require.NoError(t, vm.Verify())
	r0, err := vm.Execute(ctx, nil, nil)
	require.NoError(t, err)
	return r0
}

func TestNativeAgreesWithInterpreter(t *testing.T) {
	backend, err := NewNative(0)
	require.NoError(t, err)
	table := testHelpers()
	for _, tc := range agreementCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &program.Program{Name: tc.name, Slots: tc.slots}
			ictx := make([]byte, tc.ctxLen)
			want := interpret(t, p, table, ictx)

			fn, err := backend.Compile(p, table)
			require.NoError(t, err)
			defer fn.Release()
			jctx := make([]byte, tc.ctxLen)
			got, err := fn.Call(jctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, ictx, jctx)
		})
	}
}

func TestNativeRodata(t *testing.T) {
	text := program.EncodeSlots([]program.Slot{
		{Op: program.OpLDDWR, Dst: 1, Imm: 2}, {},
		ldx(program.SizeB, 0, 1, 0),
		exit,
	})
	p, err := program.Parse(program.BuildFemto(nil, []byte{9, 8, 7}, text), program.FormatFemto, "")
	require.NoError(t, err)
	backend, err := NewNative(0)
	require.NoError(t, err)
	fn, err := backend.Compile(p, nil)
	require.NoError(t, err)
	defer fn.Release()
	r0, err := fn.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), r0)
}

func TestNativeHelperError(t *testing.T) {
	table := helpers.MustBuild([]helpers.Entry{{ID: 1, Name: "fail", Func: func(memory.Memory, uint64, uint64, uint64, uint64, uint64) (uint64, error) {
		return 0, errors.New("boom")
	}}})
	backend, err := NewNative(0)
	require.NoError(t, err)
	fn, err := backend.Compile(&program.Program{Slots: []program.Slot{{Op: program.ClassJMP | program.JmpCall, Imm: 1}, exit}}, table)
	require.NoError(t, err)
	defer fn.Release()
	_, err = fn.Call(nil)
	assert.True(t, errors.Is(err, bencherrors.ErrExec))
}

func TestNativeBuffersDoNotAlias(t *testing.T) {
	backend, err := NewNative(0)
	require.NoError(t, err)
	p := &program.Program{Slots: []program.Slot{alu64K(program.AluMov, 0, 1), exit}}
	a, err := backend.Compile(p, nil)
	require.NoError(t, err)
	b, err := backend.Compile(p, nil)
	require.NoError(t, err)
	assert.NotEqual(t, memory.AddressOf(a.buf.mem), memory.AddressOf(b.buf.mem))

	require.NoError(t, a.Release())
	_, err = a.Call(nil)
	assert.True(t, errors.Is(err, bencherrors.ErrReleasedFunction))
	r0, err := b.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r0)
	require.NoError(t, b.Release())
}
