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
)

func TestCreateLoggerAsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mbgw.log")
	logger, flush, err := CreateLoggerAsLocalFile(path, DebugLevel)
	require.NoError(t, err)

	logger.Infof("[%-9s] hello %d", "Test", 502)
	logger.Debugf("debug line")
	require.NoError(t, flush())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello 502")
	assert.Contains(t, string(content), "debug line")
}

func TestCreateLoggerAsLocalFile_EmptyPath(t *testing.T) {
	_, _, err := CreateLoggerAsLocalFile("", InfoLevel)
	assert.Error(t, err)
}

func TestDefaultLogger(t *testing.T) {
	assert.NotNil(t, GetDefaultLogger())
	Infof("[%-9s] default logger ready", "Test")
}

func TestSetDefaultLoggerAndFlusher(t *testing.T) {
	saved := current.Load()
	t.Cleanup(func() { current.Store(saved) })

	// 替换之前取得的logger同样写入新的默认logger
	log := GetDefaultLogger()

	core, logs := observer.New(zapcore.DebugLevel)
	flushed := false
	SetDefaultLoggerAndFlusher(zap.New(core).Sugar(), func() error {
		flushed = true
		return nil
	})

	log.Warnf("[%-9s] window full", "OnTraffic")
	log.Debugf("pdu=%x", []byte{0x03})
	Errorf("exit: %v", "boom")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "[OnTraffic] window full", entries[0].Message)
	assert.Equal(t, "pdu=03", entries[1].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	Cleanup()
	assert.True(t, flushed)
}

func TestSetDefaultLoggerAndFlusher_NilFlusher(t *testing.T) {
	saved := current.Load()
	t.Cleanup(func() { current.Store(saved) })

	SetDefaultLoggerAndFlusher(zap.NewNop().Sugar(), nil)
	assert.NotPanics(t, Cleanup)
}
