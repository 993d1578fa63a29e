package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.log")
	l, err := New(Config{Level: "debug", Encoding: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	l.With(String("run_id", "abc")).Info("saved discussion", Int("paragraphs", 3), Error(errors.New("boom")))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"saved discussion"`)
	assert.Contains(t, string(data), `"run_id":"abc"`)
	assert.Contains(t, string(data), `"paragraphs":3`)
}

func TestNewNop(t *testing.T) {
	t.Parallel()

	l := NewNop()
	l.Debug("ignored")
	l.With(Bool("x", true)).Warn("ignored")
	assert.NotNil(t, l)
}

func TestNewFromZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewFromZap(zap.New(core)).With(String("run_id", "r1"))

	log.Info("Loaded seen dates", Int("count", 3))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Loaded seen dates", entries[0].Message)
	assert.Equal(t, map[string]any{"run_id": "r1", "count": int64(3)}, entries[0].ContextMap())
}
