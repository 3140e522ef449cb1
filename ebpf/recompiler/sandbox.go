//go:build unicorn
// +build unicorn

package recompiler

import (
	"encoding/binary"
	"fmt"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/memory"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/helpers"
	"github.com/colorfulnotion/femtobench/log"
)

// Guest layout. Every area is page aligned and disjoint.
const (
	codeBase       = uint64(0x10000000)
	trampolineBase = uint64(0x20000000)
	exitAddr       = uint64(0x21000000)
	ctxBase        = uint64(0x30000000)
	bpfStackBase   = uint64(0x40000000)
	dataBase       = uint64(0x50000000)
	rodataBase     = uint64(0x60000000)
	x86StackBase   = uint64(0x70000000)
	x86StackSize   = uint64(0x10000)

	trampolineStride = 16
	maxHelperID      = pageSize / trampolineStride
)

type sandboxBackend struct {
	capacity int
}

// NewSandbox returns the backend that runs compiled code in a Unicorn
// emulator. Accesses outside the mapped areas stop the program with a
// memory access error.
func NewSandbox(capacity int) (Backend, error) {
	return &sandboxBackend{capacity: capacity}, nil
}

func (s *sandboxBackend) Name() string { return "sandbox" }

func (s *sandboxBackend) Compile(p *program.Program, table *helpers.Table) (*Function, error) {
	opts := Options{
		Helpers: helperAddresses(table, func(id uint32) uint64 {
			return trampolineBase + uint64(id)*trampolineStride
		}),
		DataAddr:   dataBase,
		RodataAddr: rodataBase,
	}
	for id := range opts.Helpers {
		if id >= maxHelperID {
			delete(opts.Helpers, id)
		}
	}
	buf, err := NewJitBuffer(s.capacity)
	if err != nil {
		return nil, err
	}
	size, err := CompileInto(p, buf, opts)
	if err != nil {
		buf.Release()
		return nil, err
	}
	f := &Function{buf: buf, size: size}
	f.invoke = func(ctx []byte) (uint64, error) {
		return runSandboxed(buf.Code(), p, table, ctx)
	}
	return f, nil
}

// guestMemory is the helper view of emulator memory.
type guestMemory struct {
	mu      uc.Unicorn
	regions *memory.Regions
}

func (g *guestMemory) Read(addr uint64, n int) ([]byte, error) {
	if _, err := g.regions.Translate(addr, n, false); err != nil {
		return nil, err
	}
	return g.mu.MemRead(addr, uint64(n))
}

func (g *guestMemory) Write(addr uint64, data []byte) error {
	if _, err := g.regions.Translate(addr, len(data), true); err != nil {
		return err
	}
	return g.mu.MemWrite(addr, data)
}

func mapArea(mu uc.Unicorn, base uint64, size int, prot int, content []byte) error {
	aligned := uint64(alignPage(size))
	if aligned == 0 {
		return nil
	}
	if err := mu.MemMap(base, aligned); err != nil {
		return fmt.Errorf("map 0x%x: %w", base, err)
	}
	if err := mu.MemProtect(base, aligned, prot); err != nil {
		return fmt.Errorf("protect 0x%x: %w", base, err)
	}
	if len(content) > 0 {
		if err := mu.MemWrite(base, content); err != nil {
			return fmt.Errorf("write 0x%x: %w", base, err)
		}
	}
	return nil
}

func runSandboxed(code []byte, p *program.Program, table *helpers.Table, ctx []byte) (uint64, error) {
	mu, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_64)
	if err != nil {
		return 0, fmt.Errorf("%w: create unicorn: %v", bencherrors.ErrExec, err)
	}
	defer mu.Close()

	trampolines := make([]byte, pageSize)
	for i := range trampolines {
		trampolines[i] = X86_OP_RET
	}
	// the bookkeeping Regions mirror the guest layout with placeholder bytes;
	// only their bounds are consulted
	guest := memory.NewRegions(
		memory.Region{Name: "mem", Addr: ctxBase, Data: make([]byte, len(ctx)), Writable: true},
		memory.Region{Name: "stack", Addr: bpfStackBase + pageSize - program.StackSize, Data: make([]byte, program.StackSize), Writable: true},
		memory.Region{Name: "data", Addr: dataBase, Data: make([]byte, len(p.Data)), Writable: true},
		memory.Region{Name: "rodata", Addr: rodataBase, Data: make([]byte, len(p.Rodata))},
	)
	areas := []struct {
		base    uint64
		size    int
		prot    int
		content []byte
	}{
		{codeBase, len(code), uc.PROT_READ | uc.PROT_EXEC, code},
		{trampolineBase, pageSize, uc.PROT_READ | uc.PROT_EXEC, trampolines},
		{ctxBase, len(ctx), uc.PROT_READ | uc.PROT_WRITE, ctx},
		{bpfStackBase, pageSize, uc.PROT_READ | uc.PROT_WRITE, nil},
		{dataBase, len(p.Data), uc.PROT_READ | uc.PROT_WRITE, p.Data},
		{rodataBase, len(p.Rodata), uc.PROT_READ, p.Rodata},
		{x86StackBase, int(x86StackSize), uc.PROT_READ | uc.PROT_WRITE, nil},
	}
	for _, a := range areas {
		if err := mapArea(mu, a.base, a.size, a.prot, a.content); err != nil {
			return 0, fmt.Errorf("%w: %v", bencherrors.ErrExec, err)
		}
	}

	var (
		helperErr error
		faultAddr uint64
		faulted   bool
	)
	gm := &guestMemory{mu: mu, regions: guest}
	_, err = mu.HookAdd(uc.HOOK_CODE, func(mu uc.Unicorn, addr uint64, size uint32) {
		id := uint32((addr - trampolineBase) / trampolineStride)
		f, ok := table.Lookup(id)
		if !ok {
			helperErr = fmt.Errorf("%w: 0x%x", bencherrors.ErrUnknownHelper, id)
			mu.Stop()
			return
		}
		var args [5]uint64
		for i, r := range []int{uc.X86_REG_RDI, uc.X86_REG_RSI, uc.X86_REG_RDX, uc.X86_REG_RCX, uc.X86_REG_R8} {
			args[i], _ = mu.RegRead(r)
		}
		r0, err := f(gm, args[0], args[1], args[2], args[3], args[4])
		if err != nil {
			helperErr = fmt.Errorf("%w: helper 0x%x: %w", bencherrors.ErrExec, id, err)
			mu.Stop()
			return
		}
		mu.RegWrite(uc.X86_REG_RAX, r0)
	}, trampolineBase, trampolineBase+pageSize-1)
	if err != nil {
		return 0, fmt.Errorf("%w: hook helpers: %v", bencherrors.ErrExec, err)
	}
	_, err = mu.HookAdd(uc.HOOK_MEM_INVALID, func(mu uc.Unicorn, access int, addr uint64, size int, value int64) bool {
		faultAddr, faulted = addr, true
		return false
	}, 1, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: hook faults: %v", bencherrors.ErrExec, err)
	}

	rsp := x86StackBase + x86StackSize - 8
	ret := make([]byte, 8)
	binary.LittleEndian.PutUint64(ret, exitAddr)
	if err := mu.MemWrite(rsp, ret); err != nil {
		return 0, fmt.Errorf("%w: %v", bencherrors.ErrExec, err)
	}
	var ctxAddr uint64
	if len(ctx) > 0 {
		ctxAddr = ctxBase
	}
	for reg, v := range map[int]uint64{
		uc.X86_REG_RSP: rsp,
		uc.X86_REG_RDI: ctxAddr,
		uc.X86_REG_RSI: uint64(len(ctx)),
		uc.X86_REG_RDX: bpfStackBase + pageSize,
		uc.X86_REG_RCX: 0,
	} {
		if err := mu.RegWrite(reg, v); err != nil {
			return 0, fmt.Errorf("%w: %v", bencherrors.ErrExec, err)
		}
	}

	runErr := mu.Start(codeBase, exitAddr)
	if faulted {
		return 0, &memory.AccessError{Addr: faultAddr, Size: 0}
	}
	if helperErr != nil {
		return 0, helperErr
	}
	if runErr != nil {
		return 0, fmt.Errorf("%w: %v", bencherrors.ErrExec, runErr)
	}
	if len(ctx) > 0 {
		out, err := mu.MemRead(ctxBase, uint64(len(ctx)))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", bencherrors.ErrExec, err)
		}
		copy(ctx, out)
	}
	r0, err := mu.RegRead(uc.X86_REG_RAX)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", bencherrors.ErrExec, err)
	}
	log.Trace(log.JitMonitoring, "sandbox run finished", "r0", r0)
	return r0, nil
}
