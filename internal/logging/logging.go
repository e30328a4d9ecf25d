// Package logging builds the daemon's zap logger: JSON lines appended to a
// log file, human-readable lines on stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultPath is where transitions are logged unless configured otherwise.
const DefaultPath = "log/production.log"

// ParseLevel converts a level name ("debug", "info", ...) to a zap level.
// An empty name means info.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return lvl, nil
}

// New creates a logger writing to path (created with its directory if
// missing, always appended to) and to stdout. An empty path logs to stdout only.
// The returned closer flushes and closes the file.
func New(path, level string) (*zap.Logger, io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(os.Stdout),
		lvl,
	)
	if path == "" {
		return zap.New(console), nopCloser{}, nil
	}

	f, err := openAppend(path)
	if err != nil {
		return nil, nil, err
	}
	file := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.Lock(f),
		lvl,
	)

	logger := zap.New(zapcore.NewTee(file, console))
	return logger, fileCloser{logger: logger, f: f}, nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type fileCloser struct {
	logger *zap.Logger
	f      *os.File
}

func (c fileCloser) Close() error {
	// Sync on stdout fails on some terminals; only the file error matters.
	_ = c.logger.Sync()
	return c.f.Close()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
