package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	cfg := DefaultConfig()
	cfg.Dir = dir
	log, err := New(cfg, &console)
	require.NoError(t, err)

	log.Debug("polling position")
	log.Info("Cycle Completed: 1", "ln2_time", "1m0s")
	require.NoError(t, log.Close())

	assert.NotContains(t, console.String(), "polling position", "console stays at info")
	assert.Contains(t, console.String(), "Cycle Completed: 1")

	path := log.Path()
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "asp_"))
	assert.True(t, strings.HasSuffix(path, ".log"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "polling position", "file keeps debug lines")
	assert.Contains(t, string(data), "ln2_time=1m0s")
}

func TestNew_NoFile(t *testing.T) {
	var console bytes.Buffer
	log, err := New(Config{Level: "warn", Format: "json"}, &console)
	require.NoError(t, err)

	log.Info("quiet")
	log.Warn("loud", "distance", 12.5)

	assert.Empty(t, log.Path())
	assert.NoError(t, log.Close())
	assert.NotContains(t, console.String(), "quiet")
	assert.Contains(t, console.String(), `"msg":"loud"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestFanout_WithAttrs(t *testing.T) {
	var a, b bytes.Buffer
	h := fanout{
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	log := slog.New(h).With("run", 3)

	log.Info("started")
	log.Error("timeout")

	assert.Contains(t, a.String(), "msg=started run=3")
	assert.NotContains(t, b.String(), "started")
	assert.Contains(t, b.String(), "msg=timeout run=3")
}
