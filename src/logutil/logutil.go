package logutil

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB   = 10
	maxArchives = 3
)

type Options struct {
	// Verbose sends human-readable logs to stderr. stdout is reserved for
	// the JSON result line and never receives log output.
	Verbose           bool
	EnableFileLogging bool
	File              string
	Level             string
}

// Setup builds the process logger. With neither verbose nor file logging
// enabled the returned logger discards everything.
func Setup(opts Options) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}
	if opts.Verbose {
		level.SetLevel(zap.DebugLevel)
	}

	var cores []zapcore.Core
	if opts.Verbose {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), level))
	}
	if opts.EnableFileLogging && opts.File != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSizeMB,
			MaxBackups: maxArchives,
		})
		enc := zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), fileWriter, level))
	}
	if len(cores) == 0 {
		return zap.NewNop()
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named("screenctl")
	zap.ReplaceGlobals(logger)
	return logger
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// SanitizeForLogging truncates text and escapes control characters so OCR
// output cannot inject lines into the log.
func SanitizeForLogging(text string) string {
	const maxLogLength = 100
	if len([]rune(text)) > maxLogLength {
		text = string([]rune(text)[:maxLogLength]) + "..."
	}

	var b strings.Builder
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			b.WriteString("\\n")
		case r == '\t':
			b.WriteString("\\t")
		case r < 32 || r == 127:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
