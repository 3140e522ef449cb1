//go:build unicorn
// +build unicorn

package recompiler

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/interpreter"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxAgreesWithInterpreter(t *testing.T) {
	backend, err := NewSandbox(0)
	require.NoError(t, err)
	table := testHelpers()
	for _, tc := range agreementCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &program.Program{Name: tc.name, Slots: tc.slots}
			vm := interpreter.NewFromProgram(p)
			require.NoError(t, vm.RegisterTable(table))
			require.NoError(t, vm.Verify())
			ictx := make([]byte, tc.ctxLen)
			want, err := vm.Execute(ictx, nil, nil)
			require.NoError(t, err)

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

func TestSandboxFaultsOnUnmappedAccess(t *testing.T) {
	backend, err := NewSandbox(0)
	require.NoError(t, err)
	fn, err := backend.Compile(&program.Program{Slots: []program.Slot{ldx(program.SizeDW, 0, 1, 0x2000), exit}}, nil)
	require.NoError(t, err)
	defer fn.Release()
	_, err = fn.Call(make([]byte, 64))
	assert.True(t, errors.Is(err, bencherrors.ErrMemoryAccess))
}
