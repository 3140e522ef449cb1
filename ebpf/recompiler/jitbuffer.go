package recompiler

import (
	"fmt"

	"github.com/colorfulnotion/femtobench/bencherrors"
)

// DefaultJitBufferSize is the capacity of a JitBuffer when none is given.
const DefaultJitBufferSize = 64 * 1024

const pageSize = 0x1000

func alignPage(n int) int {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// JitBuffer is a page-aligned, fixed-capacity code area. It is writable
// until Seal and unusable after Release.
type JitBuffer struct {
	mem      []byte
	used     int
	sealed   bool
	released bool
}

func NewJitBuffer(capacity int) (*JitBuffer, error) {
	if capacity <= 0 {
		capacity = DefaultJitBufferSize
	}
	mem, err := mapRW(alignPage(capacity))
	if err != nil {
		return nil, fmt.Errorf("%w: allocate code buffer: %v", bencherrors.ErrCompile, err)
	}
	return &JitBuffer{mem: mem}, nil
}

func (b *JitBuffer) Cap() int { return len(b.mem) }

func (b *JitBuffer) Len() int { return b.used }

// Write places code at the start of the buffer.
func (b *JitBuffer) Write(code []byte) error {
	if b.released {
		return bencherrors.ErrReleasedFunction
	}
	if b.sealed {
		return fmt.Errorf("code buffer is sealed")
	}
	if len(code) > len(b.mem) {
		return fmt.Errorf("%w: %d bytes of code, capacity %d", bencherrors.ErrJitBufferFull, len(code), len(b.mem))
	}
	copy(b.mem, code)
	b.used = len(code)
	return nil
}

// Seal makes the buffer read-only and executable.
func (b *JitBuffer) Seal() error {
	if b.released {
		return bencherrors.ErrReleasedFunction
	}
	if b.sealed {
		return nil
	}
	if err := protectRX(b.mem); err != nil {
		return fmt.Errorf("%w: seal code buffer: %v", bencherrors.ErrCompile, err)
	}
	b.sealed = true
	return nil
}

// Code returns the written bytes; the slice is invalid after Release.
func (b *JitBuffer) Code() []byte {
	if b.released {
		return nil
	}
	return b.mem[:b.used]
}

// Release unmaps the buffer. Calling it twice is harmless.
func (b *JitBuffer) Release() error {
	if b.released {
		return nil
	}
	b.released = true
	mem := b.mem
	b.mem = nil
	return unmap(mem)
}
