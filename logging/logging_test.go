package logging

import (
	"bytes"
	"encoding/json"
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
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "DEBUG", want: zapcore.DebugLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "trace", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newWithConsole(Config{Level: "info"}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("prediction served", zap.String("geo_code", "75056"), zap.Int("year", 2019))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "prediction served", entry["msg"])
	assert.Equal(t, "75056", entry["geo_code"])
	assert.EqualValues(t, 2019, entry["year"])
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "droughtdash.log")
	var console bytes.Buffer
	logger, err := newWithConsole(Config{Format: "console", File: path}, &console)
	require.NoError(t, err)

	logger.Warn("snapshot reload failed")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"snapshot reload failed"`)
	assert.Contains(t, console.String(), "WARN")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	assert.Error(t, err)
	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}
