package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalHandler(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(NewTerminalHandlerWithLevel(&buf, LevelDebug, false))

	l.Info(BenchMonitoring, "run started", "iterations", 5, "mode", "jit")
	l.Trace(BenchMonitoring, "dropped below level")

	out := buf.String()
	require.Equal(t, 1, strings.Count(out, "\n"))
	assert.True(t, strings.HasPrefix(out, "INFO ["))
	assert.Contains(t, out, "bench   run started iterations=5 mode=jit")
}

func TestModuleFiltering(t *testing.T) {
	var buf bytes.Buffer
	prev := Root()
	SetDefault(NewLogger(NewTerminalHandlerWithLevel(&buf, LevelTrace, false)))
	defer SetDefault(prev)

	SetModule(JitMonitoring, false)
	Debug(JitMonitoring, "hidden")
	assert.Empty(t, buf.String())

	EnableModules("jit, helper")
	Debug(JitMonitoring, "visible")
	assert.Contains(t, buf.String(), "visible")
	SetModule(JitMonitoring, false)
	SetModule(HelperMonitoring, false)

	Warn(JitMonitoring, "always")
	assert.Contains(t, buf.String(), "always")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	prev := Root()
	defer SetDefault(prev)

	var buf bytes.Buffer
	require.NoError(t, InitLogger("warn", &buf))
	Info(BenchMonitoring, "quiet")
	Error(BenchMonitoring, "loud", "code", 7)
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "ERROR[")
	assert.Contains(t, buf.String(), "loud code=7")

	assert.Error(t, InitLogger("crit", &buf))
}
