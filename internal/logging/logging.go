// Package logging provides structured logging with zap.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger = zap.NewNop()
	globalLevel  zap.AtomicLevel
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // empty or "stderr"/"stdout", otherwise a file path
}

// Init initializes the global logger. The library logs nothing until
// Init is called; embedding applications opt in.
func Init(cfg Config) error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	globalLevel = zap.NewAtomicLevelAt(level)

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	sink, err := openSink(cfg.OutputPath)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(encoder, sink, globalLevel)
	globalLogger = zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
	return nil
}

// openSink resolves the output path. File paths rotate at 50MB with
// 3 backups kept.
func openSink(path string) (zapcore.WriteSyncer, error) {
	switch strings.TrimSpace(path) {
	case "", "stderr":
		ws, _, err := zap.Open("stderr")
		return ws, err
	case "stdout":
		ws, _, err := zap.Open("stdout")
		return ws, err
	default:
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 3,
		}), nil
	}
}

// Sync flushes any buffered log entries.
func Sync() error {
	return globalLogger.Sync()
}

// SetLevel changes the global log level at runtime.
func SetLevel(level string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return
	}
	globalLevel.SetLevel(l)
}

// L returns the global logger.
func L() *zap.Logger {
	return globalLogger
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	return globalLogger.Sugar()
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	globalLogger.Debug(msg, fields...)
}

// Info logs an info message.
func Info(msg string, fields ...zap.Field) {
	globalLogger.Info(msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) {
	globalLogger.Warn(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	globalLogger.Error(msg, fields...)
}
