package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"exifai/internal/config"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud", Format: "json"}, "")
	require.Error(t, err)
}

func TestNewWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exifai.log")
	logger, err := New(config.LogConfig{Level: "info", Format: "json"}, path)
	require.NoError(t, err)

	logger.Info("written", zap.String("path", "a.jpg"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written"`)
	assert.Contains(t, string(data), `"path":"a.jpg"`)
}

func TestMeasureLogsAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	stop := Measure(zap.New(core), "batch")
	stop()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "batch", entry.Message)
	assert.Contains(t, entry.ContextMap(), "took")
}

func TestMeasureSilentAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Measure(zap.New(core), "batch")()
	Measure(nil, "nil logger")()
	assert.Equal(t, 0, logs.Len())
}
