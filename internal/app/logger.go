package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. With a log file configured, records go
// to stdout and to a size-rotated file; the returned closer releases the file.
func NewLogger(cfg Config) (*slog.Logger, io.Closer) {
	var output io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if path := strings.TrimSpace(cfg.LogFile); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			rotator := &lumberjack.Logger{
				Filename:   path,
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     30,
				Compress:   true,
				LocalTime:  true,
			}
			output = io.MultiWriter(os.Stdout, rotator)
			closer = rotator
		}
	}
	return newLogger(output, cfg.LogLevel, cfg.LogFormat), closer
}

func newLogger(output io.Writer, levelRaw, formatRaw string) *slog.Logger {
	options := &slog.HandlerOptions{Level: ParseLogLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(output, options))
	}
	return slog.New(slog.NewTextHandler(output, options))
}

func ParseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
