// Package interpreter executes eBPF bytecode one slot at a time, checking
// every memory access against the regions the caller permits.
package interpreter

import (
	"fmt"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/helpers"
	"github.com/colorfulnotion/femtobench/log"
)

// VM is a loaded program plus its registered helpers. Execute requires a
// successful Verify.
type VM struct {
	prog     *program.Program
	helpers  map[uint32]helpers.Func
	verified bool
}

// New decodes image in the given format. Malformed images fail with a
// load error.
func New(image []byte, format program.Format, name string) (*VM, error) {
	p, err := program.Parse(image, format, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bencherrors.ErrLoad, err)
	}
	return NewFromProgram(p), nil
}

func NewFromProgram(p *program.Program) *VM {
	return &VM{prog: p, helpers: make(map[uint32]helpers.Func)}
}

func (vm *VM) Program() *program.Program { return vm.prog }

// RegisterHelper binds id for subsequent calls. Registering after Verify
// invalidates the verification.
func (vm *VM) RegisterHelper(id uint32, f helpers.Func) error {
	if f == nil {
		return fmt.Errorf("helper 0x%x: nil function", id)
	}
	if _, ok := vm.helpers[id]; ok {
		return fmt.Errorf("%w: id 0x%x", bencherrors.ErrDuplicateHelper, id)
	}
	vm.helpers[id] = f
	vm.verified = false
	return nil
}

// RegisterTable registers every helper of t.
func (vm *VM) RegisterTable(t *helpers.Table) error {
	for _, id := range t.IDs() {
		f, _ := t.Lookup(id)
		if err := vm.RegisterHelper(id, f); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) Verify() error {
	if err := verify(vm.prog.Slots, vm.helpers); err != nil {
		return err
	}
	vm.verified = true
	log.Debug(log.InterpMonitoring, "program verified", "name", vm.prog.Name, "slots", len(vm.prog.Slots), "helpers", len(vm.helpers))
	return nil
}
