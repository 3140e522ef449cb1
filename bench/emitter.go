package bench

import (
	"bufio"
	"fmt"
	"io"
)

const (
	BeginMarker = "=== Benchmark Begins ==="
	EndMarker   = "=== Benchmark End ==="
	Header      = "iteration;init_runtime_us;load_program_us;execution_time_us;correct"
)

// Record is the measurement of one iteration.
type Record struct {
	Iteration uint32
	// InitRuntimeUs is reserved and always 0.
	InitRuntimeUs uint64
	LoadProgramUs uint64
	ExecutionUs   uint64
	Correct       bool
}

// String renders r as one protocol line without the newline.
func (r Record) String() string {
	return fmt.Sprintf("%d;%d;%d;%d;%t", r.Iteration, r.InitRuntimeUs, r.LoadProgramUs, r.ExecutionUs, r.Correct)
}

// Emitter writes the report protocol. Every write reaches the sink before
// the call returns.
type Emitter struct {
	w *bufio.Writer
	// open is set between OpenRecord and CloseRecord.
	open bool
}

func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: bufio.NewWriter(w)}
}

func (e *Emitter) write(s string) error {
	if _, err := e.w.WriteString(s); err != nil {
		return err
	}
	return e.w.Flush()
}

func (e *Emitter) line(s string) error {
	if e.open {
		return fmt.Errorf("record %q still open", s)
	}
	if _, err := e.w.WriteString(s); err != nil {
		return err
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return err
	}
	return e.w.Flush()
}

// Begin writes the start marker and the header.
func (e *Emitter) Begin() error {
	if err := e.line(BeginMarker); err != nil {
		return err
	}
	return e.line(Header)
}

// OpenRecord writes the fields known before execution, up to and including
// the separator after load_program_us. A run that dies during execution
// leaves this partial line behind.
func (e *Emitter) OpenRecord(r Record) error {
	if e.open {
		return fmt.Errorf("record already open")
	}
	if err := e.write(fmt.Sprintf("%d;%d;%d;", r.Iteration, r.InitRuntimeUs, r.LoadProgramUs)); err != nil {
		return err
	}
	e.open = true
	return nil
}

// CloseRecord completes the line started by OpenRecord.
func (e *Emitter) CloseRecord(r Record) error {
	if !e.open {
		return fmt.Errorf("no open record")
	}
	e.open = false
	return e.write(fmt.Sprintf("%d;%t\n", r.ExecutionUs, r.Correct))
}

// Record writes a whole line.
func (e *Emitter) Record(r Record) error {
	if err := e.OpenRecord(r); err != nil {
		return err
	}
	return e.CloseRecord(r)
}

// End writes the end marker; it is only written after a complete run.
func (e *Emitter) End() error {
	return e.line(EndMarker)
}
