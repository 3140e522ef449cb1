package bench

import (
	"errors"
	"fmt"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/interpreter"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/ebpf/recompiler"
	"github.com/colorfulnotion/femtobench/helpers"
	"github.com/colorfulnotion/femtobench/log"
)

// Unit is a program ready to run. It is owned by exactly one iteration and
// must be released at the end of it.
type Unit interface {
	Execute(ctx []byte) (uint64, error)
	Release() error
}

// Preparer turns a program image into a Unit.
type Preparer interface {
	Prepare(image []byte) (Unit, error)
}

// NewPreparer returns the preparer for cfg.Strategy.
func NewPreparer(cfg Config, table *helpers.Table) (Preparer, error) {
	switch cfg.Strategy {
	case Interpreted:
		return &InterpretedPreparer{Table: table, Format: cfg.Format, Name: cfg.ProgramName}, nil
	case Compiled:
		backend, err := recompiler.NewBackend(cfg.Backend, cfg.JitBufferSize)
		if err != nil {
			return nil, err
		}
		return &CompiledPreparer{Backend: backend, Table: table, Format: cfg.Format, Name: cfg.ProgramName}, nil
	}
	return nil, fmt.Errorf("unknown strategy %v", cfg.Strategy)
}

// InterpretedPreparer loads the image into a VM, registers every helper and
// runs the verifier.
type InterpretedPreparer struct {
	Table  *helpers.Table
	Format program.Format
	Name   string
}

func (p *InterpretedPreparer) Prepare(image []byte) (Unit, error) {
	vm, err := interpreter.New(image, p.Format, p.Name)
	if err != nil {
		return nil, err
	}
	if p.Table != nil {
		if err := vm.RegisterTable(p.Table); err != nil {
			return nil, err
		}
	}
	if err := vm.Verify(); err != nil {
		return nil, err
	}
	return &interpretedUnit{vm: vm}, nil
}

type interpretedUnit struct {
	vm *interpreter.VM
}

// Execute passes ctx as the primary region with no ancillary buffer and no
// extra permitted regions.
func (u *interpretedUnit) Execute(ctx []byte) (uint64, error) {
	return u.vm.Execute(ctx, nil, nil)
}

func (u *interpretedUnit) Release() error { return nil }

// CompiledPreparer copies the image into a staging buffer, parses it and
// compiles it into a fresh JitBuffer.
type CompiledPreparer struct {
	Backend recompiler.Backend
	Table   *helpers.Table
	Format  program.Format
	Name    string
}

func (p *CompiledPreparer) Prepare(image []byte) (Unit, error) {
	staging := make([]byte, len(image))
	copy(staging, image)
	prog, err := program.Parse(staging, p.Format, p.Name)
	if err != nil {
		return nil, asCompileError(err)
	}
	if p.Backend == nil {
		return nil, fmt.Errorf("%w: no backend", bencherrors.ErrCompile)
	}
	fn, err := p.Backend.Compile(prog, p.Table)
	if err != nil {
		return nil, asCompileError(err)
	}
	log.Trace(log.JitMonitoring, "compiled", "program", prog.Name, "backend", p.Backend.Name(), "bytes", fn.Size())
	return &compiledUnit{fn: fn}, nil
}

func asCompileError(err error) error {
	if errors.Is(err, bencherrors.ErrCompile) {
		return err
	}
	return fmt.Errorf("%w: %w", bencherrors.ErrCompile, err)
}

type compiledUnit struct {
	fn *recompiler.Function
}

func (u *compiledUnit) Execute(ctx []byte) (uint64, error) {
	return u.fn.Call(ctx)
}

func (u *compiledUnit) Release() error {
	return u.fn.Release()
}
