package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestNew_ConsoleLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(Config{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer l.Close()

	l.Info("hidden")
	l.Warn("shown", zap.Int("frame", 3))
	require.NoError(t, l.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "frame")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(Config{Format: "json"}, &buf)
	require.NoError(t, err)
	defer l.Close()

	l.Info("engine ready", zap.String("mode", "pull"))
	require.NoError(t, l.Sync())

	assert.Contains(t, buf.String(), `"msg":"engine ready"`)
	assert.Contains(t, buf.String(), `"mode":"pull"`)
}

func TestNew_BadFormat(t *testing.T) {
	_, err := NewWithWriter(Config{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framehost.log")
	var console bytes.Buffer

	l, err := NewWithWriter(Config{File: path, Quiet: true}, &console)
	require.NoError(t, err)
	l.Info("to file only")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file only")
	assert.Empty(t, console.String())
}

func TestNew_NoSinks(t *testing.T) {
	l, err := NewWithWriter(Config{Quiet: true}, nil)
	require.NoError(t, err)
	l.Error("dropped")
	assert.NoError(t, l.Close())
}
