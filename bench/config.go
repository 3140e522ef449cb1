// Package bench drives the benchmark: it prepares a program once per
// iteration for the selected strategy, executes it against a fresh memory
// context and streams one measurement record per iteration.
package bench

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/ebpf/recompiler"
	"github.com/colorfulnotion/femtobench/memctx"
)

// Strategy selects how the program is run.
type Strategy int

const (
	Interpreted Strategy = iota
	Compiled
)

func (s Strategy) String() string {
	switch s {
	case Interpreted:
		return "interp"
	case Compiled:
		return "jit"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "interp", "interpreter", "interpreted", "":
		return Interpreted, nil
	case "jit", "compiled":
		return Compiled, nil
	}
	return 0, fmt.Errorf("unknown mode %q (want interp or jit)", s)
}

// DefaultFormat is the image format embedded for a strategy.
func (s Strategy) DefaultFormat() program.Format {
	if s == Compiled {
		return program.FormatRaw
	}
	return program.FormatFemto
}

const (
	DefaultIterations   = 5
	DefaultPreExecDelay = time.Millisecond
	IterationsEnv       = "ITERATIONS"
)

type Config struct {
	Iterations uint32
	Strategy   Strategy
	Context    memctx.Kind
	Format     program.Format
	// ProgramName picks a program out of an ELF object.
	ProgramName string
	Backend     recompiler.BackendKind
	// PreExecDelay is slept before each compiled execution so that output
	// already written is visible if the native call crashes.
	PreExecDelay  time.Duration
	JitBufferSize int
}

func DefaultConfig() Config {
	return Config{
		Iterations:    DefaultIterations,
		Strategy:      Interpreted,
		Context:       memctx.Libud,
		Format:        Interpreted.DefaultFormat(),
		Backend:       recompiler.BackendNative,
		PreExecDelay:  DefaultPreExecDelay,
		JitBufferSize: recompiler.DefaultJitBufferSize,
	}
}

// ParseIterations parses an iteration count once into an unsigned integer.
func ParseIterations(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid iteration count %q: %w", s, err)
	}
	return uint32(n), nil
}

// IterationsFromEnv reads ITERATIONS, falling back to def when unset.
func IterationsFromEnv(def uint32) (uint32, error) {
	v, ok := os.LookupEnv(IterationsEnv)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	return ParseIterations(v)
}
