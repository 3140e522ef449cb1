package bench

import (
	"context"
	"fmt"
	"io"

	"github.com/colorfulnotion/femtobench/clock"
	"github.com/colorfulnotion/femtobench/log"
	"github.com/colorfulnotion/femtobench/memctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/colorfulnotion/femtobench/bench"

type State int

const (
	Idle State = iota
	Preparing
	Executing
	Recording
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Executing:
		return "executing"
	case Recording:
		return "recording"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Driver runs one benchmark. It is not reusable.
type Driver struct {
	cfg      Config
	image    []byte
	preparer Preparer
	clock    clock.Clock
	emitter  *Emitter
	tracer   trace.Tracer

	state State
	// OnTransition, when set, observes every state change.
	OnTransition func(iteration uint32, s State)
}

func NewDriver(cfg Config, image []byte, preparer Preparer, clk clock.Clock, out io.Writer) *Driver {
	return &Driver{
		cfg:      cfg,
		image:    image,
		preparer: preparer,
		clock:    clk,
		emitter:  NewEmitter(out),
		tracer:   otel.Tracer(tracerName),
		state:    Idle,
	}
}

func (d *Driver) State() State { return d.state }

func (d *Driver) enter(i uint32, s State) {
	d.state = s
	log.Trace(log.BenchMonitoring, "state", "iteration", i, "state", s)
	if d.OnTransition != nil {
		d.OnTransition(i, s)
	}
}

// Run executes every iteration and streams the report. The first error
// stops the run; lines already written stay written and no end marker is
// emitted.
func (d *Driver) Run(ctx context.Context) (err error) {
	if d.state != Idle {
		return fmt.Errorf("driver already ran (state %v)", d.state)
	}
	ctx, span := d.tracer.Start(ctx, "bench.run", trace.WithAttributes(
		attribute.String("strategy", d.cfg.Strategy.String()),
		attribute.String("context", d.cfg.Context.String()),
		attribute.Int64("iterations", int64(d.cfg.Iterations)),
	))
	defer func() {
		if err != nil {
			d.enter(d.cfg.Iterations, Failed)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log.Info(log.BenchMonitoring, "benchmark start", "strategy", d.cfg.Strategy, "context", d.cfg.Context, "iterations", d.cfg.Iterations)
	if err := d.emitter.Begin(); err != nil {
		return err
	}
	for i := uint32(0); i < d.cfg.Iterations; i++ {
		if err := d.iteration(ctx, i); err != nil {
			log.Error(log.BenchMonitoring, "benchmark aborted", "iteration", i, "err", err)
			return err
		}
	}
	if err := d.emitter.End(); err != nil {
		return err
	}
	d.enter(d.cfg.Iterations, Done)
	return nil
}

func (d *Driver) iteration(ctx context.Context, i uint32) (err error) {
	ctx, span := d.tracer.Start(ctx, "bench.iteration", trace.WithAttributes(attribute.Int64("iteration", int64(i))))
	defer span.End()

	mem := memctx.New(d.cfg.Context)

	d.enter(i, Preparing)
	_, prepSpan := d.tracer.Start(ctx, "bench.prepare")
	var unit Unit
	var prepErr error
	load, err := d.clock.Measure(func() {
		unit, prepErr = d.preparer.Prepare(d.image)
	})
	if err == nil {
		err = prepErr
	}
	endSpan(prepSpan, err)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := unit.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	rec := Record{Iteration: i, LoadProgramUs: clock.Micros(load)}
	if err := d.emitter.OpenRecord(rec); err != nil {
		return err
	}

	d.enter(i, Executing)
	if d.cfg.Strategy == Compiled && d.cfg.PreExecDelay > 0 {
		d.clock.Sleep(d.cfg.PreExecDelay)
	}
	_, execSpan := d.tracer.Start(ctx, "bench.execute")
	var code uint64
	var execErr error
	exec, err := d.clock.Measure(func() {
		code, execErr = Execute(unit, mem)
	})
	if err == nil {
		err = execErr
	}
	endSpan(execSpan, err)
	if err != nil {
		return err
	}

	d.enter(i, Recording)
	rec.ExecutionUs = clock.Micros(exec)
	rec.Correct = code == SuccessCode
	span.SetAttributes(attribute.Bool("correct", rec.Correct))
	log.Debug(log.BenchMonitoring, "iteration", "i", i, "load_us", rec.LoadProgramUs, "exec_us", rec.ExecutionUs, "code", code)
	return d.emitter.CloseRecord(rec)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
