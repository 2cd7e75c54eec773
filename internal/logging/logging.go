package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// File, when set, receives a rotated copy of every record.
	File string
	// Out defaults to stdout.
	Out io.Writer
}

// New returns a JSON logger and a closer for the rotated file, if any.
func New(opts Options) (*slog.Logger, io.Closer) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	var closer io.Closer = nopCloser{}
	if strings.TrimSpace(opts.File) != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(out, rotated)
		closer = rotated
	}
	level := new(slog.LevelVar)
	level.Set(ParseLevel(opts.Level))
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), closer
}

func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
