//go:build linux && amd64 && cgo

package recompiler

/*
#include <stdint.h>

typedef uint64_t (*femtobench_jit_fn)(uint64_t, uint64_t, uint64_t, uint64_t);

static uint64_t femtobench_call_jit(uintptr_t fn, uint64_t mem, uint64_t len, uint64_t stack_top, uint64_t env) {
	return ((femtobench_jit_fn)fn)(mem, len, stack_top, env);
}

extern uint64_t femtobenchHelper(uint64_t, uint64_t, uint64_t, uint64_t, uint64_t, uint64_t, uint64_t);

static uintptr_t femtobench_helper_addr(void) {
	return (uintptr_t)&femtobenchHelper;
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/memory"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/helpers"
	"github.com/colorfulnotion/femtobench/log"
)

// callState is what the helper dispatcher sees during one native call.
type callState struct {
	table *helpers.Table
	mem   *memory.Regions
	err   error
}

var (
	callMu   sync.Mutex
	calls    = make(map[uint64]*callState)
	nextCall uint64
)

func registerCall(st *callState) uint64 {
	callMu.Lock()
	defer callMu.Unlock()
	nextCall++
	calls[nextCall] = st
	return nextCall
}

func unregisterCall(handle uint64) {
	callMu.Lock()
	defer callMu.Unlock()
	delete(calls, handle)
}

func lookupCall(handle uint64) *callState {
	callMu.Lock()
	defer callMu.Unlock()
	return calls[handle]
}

type nativeBackend struct {
	capacity int
}

// NewNative returns the backend that runs compiled code directly on the CPU.
// Memory accesses of native code are not checked.
func NewNative(capacity int) (Backend, error) {
	return &nativeBackend{capacity: capacity}, nil
}

func (n *nativeBackend) Name() string { return "native" }

func (n *nativeBackend) Compile(p *program.Program, table *helpers.Table) (*Function, error) {
	data := append([]byte(nil), p.Data...)
	rodata := append([]byte(nil), p.Rodata...)
	dispatch := uint64(uintptr(C.femtobench_helper_addr()))
	opts := Options{
		Helpers:    helperAddresses(table, func(uint32) uint64 { return dispatch }),
		DataAddr:   memory.AddressOf(data),
		RodataAddr: memory.AddressOf(rodata),
	}
	buf, err := NewJitBuffer(n.capacity)
	if err != nil {
		return nil, err
	}
	size, err := CompileInto(p, buf, opts)
	if err != nil {
		buf.Release()
		return nil, err
	}
	if err := buf.Seal(); err != nil {
		buf.Release()
		return nil, err
	}
	entry := memory.AddressOf(buf.mem)
	f := &Function{buf: buf, size: size}
	f.invoke = func(ctx []byte) (uint64, error) {
		stack := make([]byte, program.StackSize)
		st := &callState{
			table: table,
			mem: memory.NewRegions(
				memory.HostRegion("mem", ctx, true),
				memory.HostRegion("stack", stack, true),
				memory.HostRegion("data", data, true),
				memory.HostRegion("rodata", rodata, false),
			),
		}
		handle := registerCall(st)
		defer unregisterCall(handle)

		runtime.LockOSThread()
		r0 := C.femtobench_call_jit(
			C.uintptr_t(entry),
			C.uint64_t(memory.AddressOf(ctx)),
			C.uint64_t(len(ctx)),
			C.uint64_t(memory.AddressOf(stack)+program.StackSize),
			C.uint64_t(handle),
		)
		runtime.UnlockOSThread()
		runtime.KeepAlive(ctx)
		runtime.KeepAlive(stack)
		runtime.KeepAlive(data)
		runtime.KeepAlive(rodata)
		if st.err != nil {
			return 0, st.err
		}
		return uint64(r0), nil
	}
	log.Debug(log.JitMonitoring, "native function ready", "name", p.Name, "bytes", size, "entry", fmt.Sprintf("%#x", entry))
	return f, nil
}

func dispatchHelper(a1, a2, a3, a4, a5, id, env uint64) uint64 {
	st := lookupCall(env)
	if st == nil || st.err != nil {
		return 0
	}
	f, ok := st.table.Lookup(uint32(id))
	if !ok {
		st.err = fmt.Errorf("%w: 0x%x", bencherrors.ErrUnknownHelper, id)
		return 0
	}
	r0, err := f(st.mem, a1, a2, a3, a4, a5)
	if err != nil {
		st.err = fmt.Errorf("%w: helper 0x%x: %w", bencherrors.ErrExec, id, err)
		return 0
	}
	return r0
}
