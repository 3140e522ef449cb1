package results

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/colorfulnotion/femtobench/bench"
	"github.com/colorfulnotion/femtobench/clock"
	"github.com/colorfulnotion/femtobench/helpers"
	"github.com/colorfulnotion/femtobench/programs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDriverOutput(t *testing.T) {
	cfg := bench.DefaultConfig()
	cfg.Iterations = 4
	image, err := programs.Image(programs.Sum, cfg.Format)
	require.NoError(t, err)
	clk := &clock.Manual{Step: 40 * time.Microsecond}
	prep, err := bench.NewPreparer(cfg, helpers.MustBuild(helpers.Defaults(clk)))
	require.NoError(t, err)

	var out bytes.Buffer
	out.WriteString("booting\n")
	require.NoError(t, bench.NewDriver(cfg, image, prep, clk, &out).Run(context.Background()))

	rep, err := Parse(&out)
	require.NoError(t, err)
	assert.True(t, rep.Complete)
	require.Len(t, rep.Rows, 4)
	for i, row := range rep.Rows {
		assert.Equal(t, Row{Iteration: uint32(i), LoadProgramUs: 40, ExecutionUs: 40, Correct: true}, row)
	}
}

func TestParseSerialCapture(t *testing.T) {
	capture := strings.Join([]string{
		"2025-01-02 03:04:05,678 # main(): This is RIOT!",
		"2025-01-02 03:04:05,679 # === Benchmark Begins ===",
		"2025-01-02 03:04:05,680 # iteration;init_runtime_us;load_program_us;execution_time_us;correct",
		"2025-01-02 03:04:05,681 # 0;0;812;95;true",
		"2025-01-02 03:04:05,682 # [helper] printf called",
		"2025-01-02 03:04:05,683 # 1;0;790;94;false",
	}, "\r\n")
	rep, err := Parse(strings.NewReader(capture))
	require.NoError(t, err)
	assert.False(t, rep.Complete, "crashed before the end marker")
	assert.Equal(t, []Row{
		{Iteration: 0, LoadProgramUs: 812, ExecutionUs: 95, Correct: true},
		{Iteration: 1, LoadProgramUs: 790, ExecutionUs: 94},
	}, rep.Rows)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("nothing here\n"))
	assert.ErrorIs(t, err, ErrNoBenchmark)

	_, err = Parse(strings.NewReader(bench.BeginMarker + "\n" + bench.EndMarker + "\n"))
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = Parse(strings.NewReader(bench.BeginMarker + "\n" + bench.Header + "\n0;0;x;1;true\n"))
	assert.ErrorContains(t, err, "load_program_us")

	_, err = Parse(strings.NewReader(bench.BeginMarker + "\n" + bench.Header + "\n0;0;1\n"))
	assert.ErrorContains(t, err, "3 fields")
}

func TestParseTruncatedRow(t *testing.T) {
	in := bench.BeginMarker + "\n" + bench.Header + "\n0;0;12;40;true\n1;0;11;"
	rep, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.False(t, rep.Complete)
	assert.True(t, rep.Truncated)
	assert.Equal(t, []Row{{Iteration: 0, LoadProgramUs: 12, ExecutionUs: 40, Correct: true}}, rep.Rows)

	_, err = Parse(strings.NewReader(in + "\n2;0;1;1;true\n"))
	assert.ErrorContains(t, err, "truncated")
}

func TestStore(t *testing.T) {
	s, err := OpenStore("")
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Get(1)
	require.NoError(t, err)
	assert.False(t, found)

	a := &Run{Label: "interp", Strategy: "interp", Rows: []Row{{Iteration: 0, LoadProgramUs: 3, ExecutionUs: 4, Correct: true}}}
	b := &Run{Label: "jit", Strategy: "jit"}
	require.NoError(t, s.Put(a))
	require.NoError(t, s.Put(b))
	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, uint64(2), b.ID)
	assert.False(t, a.Recorded.IsZero())

	got, found, err := s.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, a.Rows, got.Rows)
	assert.Equal(t, "interp", got.Label)

	runs, err := s.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "jit", runs[1].Label)

	require.NoError(t, s.Delete(1))
	runs, err = s.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	c := &Run{Label: "again"}
	require.NoError(t, s.Put(c))
	assert.Equal(t, uint64(3), c.ID, "ids are not reused")
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive")
	s, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(&Run{Label: "persisted"}))
	require.NoError(t, s.Close())

	s, err = OpenStore(path)
	require.NoError(t, err)
	defer s.Close()
	run, found, err := s.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "persisted", run.Label)
}

func TestRenderChart(t *testing.T) {
	var buf bytes.Buffer
	runs := []*Run{
		{ID: 1, Label: "interp", Rows: []Row{{LoadProgramUs: 812, ExecutionUs: 95}, {Iteration: 1, LoadProgramUs: 790, ExecutionUs: 94}}},
		{ID: 2, Rows: []Row{{LoadProgramUs: 1500, ExecutionUs: 7}}},
	}
	require.NoError(t, RenderChart(&buf, "femtobench", runs...))
	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "interp load")
	assert.Contains(t, html, "run 2 exec")
	assert.Contains(t, html, "812")

	assert.Error(t, RenderChart(&buf, "empty"))
}
