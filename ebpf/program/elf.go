package program

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cilium/ebpf"

	"github.com/colorfulnotion/femtobench/bencherrors"
)

// parseELF extracts one program from a relocatable eBPF object: the one
// called name, or the first by name when name is empty.
func parseELF(image []byte, name string) (*Program, error) {
	spec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bencherrors.ErrInvalidObject, err)
	}
	if len(spec.Programs) == 0 {
		return nil, fmt.Errorf("%w: object contains no programs", bencherrors.ErrInvalidObject)
	}
	if name == "" {
		names := make([]string, 0, len(spec.Programs))
		for n := range spec.Programs {
			names = append(names, n)
		}
		sort.Strings(names)
		name = names[0]
	}
	ps, ok := spec.Programs[name]
	if !ok {
		return nil, fmt.Errorf("%w: no program named %q", bencherrors.ErrInvalidObject, name)
	}
	var text bytes.Buffer
	if err := ps.Instructions.Marshal(&text, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", bencherrors.ErrInvalidObject, name, err)
	}
	return &Program{Name: name, Text: text.Bytes()}, nil
}
