// Package logging builds the zap loggers used across the service.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, encoding and an optional rotating log file.
type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// New returns a logger writing to stderr and, when cfg.File is set, to a
// lumberjack-rotated file as well.
func New(cfg Config) (*zap.Logger, error) {
	return newWithConsole(cfg, os.Stderr)
}

func newWithConsole(cfg Config, console io.Writer) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(console)), level),
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		rotating := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
		// files are always JSON so they stay machine readable
		fileEncoder := zapcore.NewJSONEncoder(encoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, rotating, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// ParseLevel accepts debug, info, warn and error. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

func newEncoder(format string) (zapcore.Encoder, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return zapcore.NewJSONEncoder(encoderConfig()), nil
	case "console":
		cfg := encoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	return cfg
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
