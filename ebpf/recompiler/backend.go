package recompiler

import (
	"fmt"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/helpers"
)

// Backend compiles programs into callable functions.
type Backend interface {
	Name() string
	Compile(p *program.Program, table *helpers.Table) (*Function, error)
}

// Function is a compiled program bound to the JitBuffer that holds it. It
// must not be called after Release.
type Function struct {
	buf     *JitBuffer
	size    int
	invoke  func(ctx []byte) (uint64, error)
	cleanup func() error
}

// Call runs the function once against ctx, which may be empty.
func (f *Function) Call(ctx []byte) (uint64, error) {
	if f.buf == nil || f.buf.released {
		return 0, bencherrors.ErrReleasedFunction
	}
	return f.invoke(ctx)
}

func (f *Function) Code() []byte {
	if f.buf == nil {
		return nil
	}
	return f.buf.Code()
}

func (f *Function) Size() int { return f.size }

// Release frees the code buffer and any backend resources.
func (f *Function) Release() error {
	if f.buf == nil {
		return nil
	}
	var err error
	if f.cleanup != nil {
		err = f.cleanup()
	}
	if rerr := f.buf.Release(); err == nil {
		err = rerr
	}
	f.buf = nil
	return err
}

type BackendKind int

const (
	BackendNative BackendKind = iota
	BackendSandbox
)

func (k BackendKind) String() string {
	switch k {
	case BackendNative:
		return "native"
	case BackendSandbox:
		return "sandbox"
	default:
		return fmt.Sprintf("BackendKind(%d)", int(k))
	}
}

func ParseBackend(s string) (BackendKind, error) {
	switch s {
	case "native", "":
		return BackendNative, nil
	case "sandbox":
		return BackendSandbox, nil
	}
	return 0, fmt.Errorf("unknown backend %q (want native or sandbox)", s)
}

// NewBackend returns the backend of the given kind; capacity sizes each
// function's JitBuffer.
func NewBackend(kind BackendKind, capacity int) (Backend, error) {
	switch kind {
	case BackendNative:
		return NewNative(capacity)
	case BackendSandbox:
		return NewSandbox(capacity)
	}
	return nil, fmt.Errorf("unknown backend %v", kind)
}

func helperAddresses(table *helpers.Table, addr func(id uint32) uint64) map[uint32]uint64 {
	out := make(map[uint32]uint64)
	if table == nil {
		return out
	}
	for _, id := range table.IDs() {
		out[id] = addr(id)
	}
	return out
}
