// Package logging builds the service logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level      string // debug, info, warn, error
	File       string // rotated log file; stderr when empty
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a console-encoded logger writing to a rotated file, or to
// stderr when no file is set. The returned closer flushes and closes the file.
func New(opts Options) (*zap.Logger, io.Closer, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	var (
		sink   zapcore.WriteSyncer
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 10),
			MaxAge:     orDefault(opts.MaxAgeDays, 7),
			LocalTime:  true,
		}
		sink = zapcore.AddSync(rotator)
		closer = rotator
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	return newLogger(sink, level), closer, nil
}

// NewWithWriter builds a logger over an arbitrary writer.
func NewWithWriter(w io.Writer, level zapcore.Level) *zap.Logger {
	return newLogger(zapcore.AddSync(w), level)
}

func newLogger(sink zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     localTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), sink, level)
	return zap.New(core, zap.AddCaller())
}

func localTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Local().Format("2006-01-02 15:04:05.000"))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
