package bench

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/clock"
	"github.com/colorfulnotion/femtobench/ebpf/program"
	"github.com/colorfulnotion/femtobench/helpers"
	"github.com/colorfulnotion/femtobench/memctx"
	"github.com/colorfulnotion/femtobench/programs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func interpConfig(iterations uint32) Config {
	cfg := DefaultConfig()
	cfg.Iterations = iterations
	return cfg
}

func newInterpDriver(t *testing.T, cfg Config, workload string, clk clock.Clock, out *bytes.Buffer) *Driver {
	t.Helper()
	image, err := programs.Image(workload, cfg.Format)
	require.NoError(t, err)
	table := helpers.MustBuild(helpers.Defaults(clk))
	prep, err := NewPreparer(cfg, table)
	require.NoError(t, err)
	return NewDriver(cfg, image, prep, clk, out)
}

func TestInterpretedRun(t *testing.T) {
	var out bytes.Buffer
	clk := &clock.Manual{Step: 250 * time.Microsecond}
	d := newInterpDriver(t, interpConfig(5), programs.ReturnOne, clk, &out)
	require.NoError(t, d.Run(context.Background()))

	want := strings.Join([]string{
		BeginMarker,
		Header,
		"0;0;250;250;true",
		"1;0;250;250;true",
		"2;0;250;250;true",
		"3;0;250;250;true",
		"4;0;250;250;true",
		EndMarker,
	}, "\n") + "\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, Done, d.State())
	assert.Empty(t, clk.Slept, "interpreted path never sleeps")
}

func TestEmptyContextRun(t *testing.T) {
	var out bytes.Buffer
	cfg := interpConfig(2)
	cfg.Context = memctx.Empty
	d := newInterpDriver(t, cfg, programs.Sum, &clock.Manual{}, &out)
	require.NoError(t, d.Run(context.Background()))
	assert.Contains(t, out.String(), "1;0;0;0;true\n")
}

func TestWrongResultIsIncorrect(t *testing.T) {
	text := program.EncodeSlots([]program.Slot{
		{Op: program.ClassALU64 | program.AluMov, Dst: 0, Imm: 2},
		{Op: program.ClassJMP | program.JmpExit},
	})
	cfg := interpConfig(1)
	cfg.Format = program.FormatRaw
	prep, err := NewPreparer(cfg, nil)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, NewDriver(cfg, text, prep, &clock.Manual{}, &out).Run(context.Background()))
	assert.Contains(t, out.String(), "\n0;0;0;0;false\n")
}

func TestInvalidObjectAbortsBeforeAnyRecord(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = Compiled
	cfg.Format = program.FormatELF
	cfg.Iterations = 3
	prep := &CompiledPreparer{Format: cfg.Format}
	clk := &clock.Manual{}

	var out bytes.Buffer
	var states []State
	d := NewDriver(cfg, []byte("\x7fELF truncated"), prep, clk, &out)
	d.OnTransition = func(_ uint32, s State) { states = append(states, s) }
	err := d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, bencherrors.ErrCompile))
	assert.Equal(t, BeginMarker+"\n"+Header+"\n", out.String())
	assert.Equal(t, []State{Preparing, Failed}, states)
	assert.Empty(t, clk.Slept)
}

func TestOutOfBoundsAborts(t *testing.T) {
	var out bytes.Buffer
	d := newInterpDriver(t, interpConfig(5), programs.OutOfBounds, &clock.Manual{}, &out)
	err := d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, bencherrors.ErrMemoryAccess))
	assert.NotContains(t, out.String(), EndMarker)
	assert.Equal(t, BeginMarker+"\n"+Header+"\n0;0;0;", out.String(), "the row is left open")
	assert.Equal(t, Failed, d.State())
}

func TestStateSequence(t *testing.T) {
	var out bytes.Buffer
	d := newInterpDriver(t, interpConfig(2), programs.ReturnOne, &clock.Manual{}, &out)
	var states []State
	d.OnTransition = func(_ uint32, s State) { states = append(states, s) }
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, []State{Preparing, Executing, Recording, Preparing, Executing, Recording, Done}, states)
	assert.Error(t, d.Run(context.Background()), "a driver runs once")
}

func TestZeroIterations(t *testing.T) {
	var out bytes.Buffer
	d := newInterpDriver(t, interpConfig(0), programs.ReturnOne, &clock.Manual{}, &out)
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, BeginMarker+"\n"+Header+"\n"+EndMarker+"\n", out.String())
}

func TestClockUnavailable(t *testing.T) {
	var out bytes.Buffer
	d := newInterpDriver(t, interpConfig(1), programs.ReturnOne, &clock.Monotonic{}, &out)
	assert.True(t, errors.Is(d.Run(context.Background()), bencherrors.ErrClockUnavailable))
}

func TestSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	var out bytes.Buffer
	d := newInterpDriver(t, interpConfig(1), programs.ReturnOne, &clock.Manual{}, &out)
	require.NoError(t, d.Run(context.Background()))

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"bench.prepare", "bench.execute", "bench.iteration", "bench.run"}, names)
}

func TestIterationsFromEnv(t *testing.T) {
	t.Setenv(IterationsEnv, "")
	n, err := IterationsFromEnv(DefaultIterations)
	require.NoError(t, err)
	assert.Equal(t, uint32(DefaultIterations), n)

	t.Setenv(IterationsEnv, " 12 ")
	n, err = IterationsFromEnv(DefaultIterations)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), n)

	t.Setenv(IterationsEnv, "-1")
	_, err = IterationsFromEnv(DefaultIterations)
	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("jit")
	require.NoError(t, err)
	assert.Equal(t, Compiled, s)
	assert.Equal(t, program.FormatRaw, s.DefaultFormat())
	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Interpreted, s)
	assert.Equal(t, program.FormatFemto, s.DefaultFormat())
	_, err = ParseStrategy("aot")
	assert.Error(t, err)
}

func TestEmitterOpenRecord(t *testing.T) {
	var out bytes.Buffer
	e := NewEmitter(&out)
	rec := Record{Iteration: 3, LoadProgramUs: 17}
	require.NoError(t, e.OpenRecord(rec))
	assert.Equal(t, "3;0;17;", out.String(), "the prefix is flushed before execution")
	assert.Error(t, e.OpenRecord(rec))
	assert.Error(t, e.End())

	rec.ExecutionUs, rec.Correct = 250, true
	require.NoError(t, e.CloseRecord(rec))
	assert.Equal(t, rec.String()+"\n", out.String())
	assert.Error(t, e.CloseRecord(rec))
}

func TestRecordString(t *testing.T) {
	assert.Equal(t, "7;0;12;3;false", Record{Iteration: 7, LoadProgramUs: 12, ExecutionUs: 3}.String())
}
