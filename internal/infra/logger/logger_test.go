package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestInit_File(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	prevLogger := zlog.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		zlog.Logger = prevLogger
	})

	path := filepath.Join(t.TempDir(), "lavabox.log")
	require.NoError(t, Init(Config{Output: "file", Level: "warn", File: path}))

	zlog.Info().Msg("dropped")
	zlog.Warn().Msg("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"message":"kept"`)
}

func TestShortCaller(t *testing.T) {
	file := filepath.Join("home", "bot", "internal", "app", "session", "session.go")
	assert.Equal(t, filepath.Join("session", "session.go")+":42", shortCaller(0, file, 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}

func TestInit_FileError(t *testing.T) {
	err := Init(Config{Output: "file", File: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
