package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	BenchMonitoring   = "bench"   // Benchmark driver and report emitter
	InterpMonitoring  = "interp"  // Interpreter load/verify/execute
	JitMonitoring     = "jit"     // Recompiler and native execution
	HelperMonitoring  = "helper"  // Helper callbacks invoked by programs
	ResultsMonitoring = "results" // Archive and chart tooling
)

const moduleKey = "module"

var knownModules = []string{BenchMonitoring, InterpMonitoring, JitMonitoring, HelperMonitoring, ResultsMonitoring}

var (
	root atomic.Pointer[Logger]

	modulesMu sync.RWMutex
	// Trace and Debug records are dropped unless their module is on.
	modules = map[string]bool{BenchMonitoring: true}
)

func init() {
	root.Store(NewLogger(discardHandler{}))
}

func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToUpper(lvl) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return 0, fmt.Errorf("invalid level: %s", lvl)
}

// InitLogger installs a terminal logger writing to w at the named level.
func InitLogger(level string, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(w, lvl, w == io.Writer(os.Stderr))))
	return nil
}

// SetDefault replaces the package logger and the slog default.
func SetDefault(l *Logger) {
	root.Store(l)
	slog.SetDefault(l.inner)
}

func Root() *Logger {
	return root.Load()
}

// SetModule turns Trace and Debug output for module on or off.
func SetModule(module string, on bool) {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	modules[module] = on
}

// EnableModules enables a comma separated list of modules; "all" enables
// every known module.
func EnableModules(list string) {
	for _, module := range strings.Split(list, ",") {
		switch module = strings.TrimSpace(module); module {
		case "":
		case "all":
			for _, m := range knownModules {
				SetModule(m, true)
			}
		default:
			SetModule(module, true)
		}
	}
}

func moduleEnabled(module string) bool {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	return modules[module]
}

func Trace(module, msg string, attrs ...any) {
	if moduleEnabled(module) {
		Root().write(LevelTrace, module, msg, attrs...)
	}
}

func Debug(module, msg string, attrs ...any) {
	if moduleEnabled(module) {
		Root().write(LevelDebug, module, msg, attrs...)
	}
}

// Info, Warn and Error are written regardless of module.
func Info(module, msg string, attrs ...any) {
	Root().write(LevelInfo, module, msg, attrs...)
}

func Warn(module, msg string, attrs ...any) {
	Root().write(LevelWarn, module, msg, attrs...)
}

func Error(module, msg string, attrs ...any) {
	Root().write(LevelError, module, msg, attrs...)
}
