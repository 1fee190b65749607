// Package logging provides the process wide logger.
//
// MBGW_LOGGING_LEVEL takes a zap level number (-1 debug, 0 info, 1 warn,
// 2 error). MBGW_LOGGING_FILE sends the output to a rotated file instead of
// stdout.
package logging

import (
	"errors"
	"os"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

const (
	EnvLoggingLevel = "MBGW_LOGGING_LEVEL"
	EnvLoggingFile  = "MBGW_LOGGING_FILE"
)

// Logger is the subset of zap.SugaredLogger used across the repo.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type holder struct {
	logger Logger
	flush  func() error
}

var (
	current             atomic.Pointer[holder]
	defaultLoggingLevel = InfoLevel
)

func init() {
	if s := os.Getenv(EnvLoggingLevel); s != "" {
		if l, err := strconv.ParseInt(s, 10, 8); err == nil {
			defaultLoggingLevel = Level(l)
		}
	}
	if path := os.Getenv(EnvLoggingFile); path != "" {
		logger, flush, err := CreateLoggerAsLocalFile(path, defaultLoggingLevel)
		if err == nil {
			SetDefaultLoggerAndFlusher(logger, flush)
			return
		}
	}
	SetDefaultLoggerAndFlusher(newStdoutLogger(defaultLoggingLevel), nil)
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000")
	return cfg
}

func newStdoutLogger(level Level) Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// CreateLoggerAsLocalFile logs to path through lumberjack, rotating at
// 100MB and keeping two weeks of backups.
func CreateLoggerAsLocalFile(path string, level Level) (Logger, func() error, error) {
	if path == "" {
		return nil, nil, errors.New("empty log file path")
	}
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 2,
		MaxAge:     15,
		LocalTime:  true,
		Compress:   false,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(writer),
		zap.NewAtomicLevelAt(level),
	)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	flush := func() error {
		_ = logger.Sync()
		return writer.Close()
	}
	return logger, flush, nil
}

// delegate 每次调用都转发给当前默认logger，包级 log 变量因此可随时替换
type delegate struct{}

func (delegate) Debugf(format string, args ...interface{}) {
	current.Load().logger.Debugf(format, args...)
}

func (delegate) Infof(format string, args ...interface{}) {
	current.Load().logger.Infof(format, args...)
}

func (delegate) Warnf(format string, args ...interface{}) {
	current.Load().logger.Warnf(format, args...)
}

func (delegate) Errorf(format string, args ...interface{}) {
	current.Load().logger.Errorf(format, args...)
}

// GetDefaultLogger returns a logger that always writes to the current
// default, so it can be stored in a package variable at init.
func GetDefaultLogger() Logger {
	return delegate{}
}

// SetDefaultLoggerAndFlusher replaces the process wide logger. Loggers
// obtained earlier from GetDefaultLogger follow the replacement.
func SetDefaultLoggerAndFlusher(logger Logger, flusher func() error) {
	if flusher == nil {
		flusher = func() error { return nil }
	}
	current.Store(&holder{logger: logger, flush: flusher})
}

// LogLevel returns the level the default logger was created with.
func LogLevel() Level {
	return defaultLoggingLevel
}

// Cleanup flushes buffered entries and closes the log file if any.
func Cleanup() {
	_ = current.Load().flush()
}

func Infof(format string, args ...interface{}) {
	current.Load().logger.Infof(format, args...)
}

func Errorf(format string, args ...interface{}) {
	current.Load().logger.Errorf(format, args...)
}
