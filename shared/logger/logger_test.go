package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{
			name: "json format",
			config: &Config{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
		},
		{
			name: "console format",
			config: &Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
		},
		{
			name: "unknown format falls back to json",
			config: &Config{
				Level:  "warn",
				Format: "logfmt",
				Output: "stdout",
			},
		},
		{
			name:   "empty config uses defaults",
			config: &Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			require.NoError(t, err)
			require.NotNil(t, log)
			require.NotNil(t, log.Logger)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")

	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("started", slog.String("component", "test"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestNewDefault(t *testing.T) {
	log := NewDefault()
	require.NotNil(t, log)
	assert.True(t, log.Enabled(nil, slog.LevelInfo))
	assert.False(t, log.Enabled(nil, slog.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestWith(t *testing.T) {
	log := NewDefault()

	withArgs := log.With("service", "dispatch")
	require.NotNil(t, withArgs)

	withGroup := log.WithGroup("delivery")
	require.NotNil(t, withGroup)

	withAttrs := log.WithAttrs(slog.String("worker_id", "worker-1"))
	require.NotNil(t, withAttrs)
}
