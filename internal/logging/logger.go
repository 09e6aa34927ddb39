package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"splintarr/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Output receives formatted records; nil means stdout.
	Output io.Writer
	// File, when set, additionally receives JSON records through a rotating
	// writer.
	File        *FileOptions
	Development bool
	// DedupWindow and DedupThreshold configure repeated-error suppression.
	// A zero threshold disables it.
	DedupWindow    time.Duration
	DedupThreshold int
}

// FileOptions configures the rotating log file sink.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	addSource := opts.Development || level <= slog.LevelDebug

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var primary slog.Handler
	switch format {
	case "json":
		primary = newJSONHandler(output, levelVar, addSource)
	case "console":
		primary = newPrettyHandler(output, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	handlers := []slog.Handler{primary}
	if opts.File != nil && strings.TrimSpace(opts.File.Path) != "" {
		handlers = append(handlers, newJSONHandler(newRotatingWriter(*opts.File), levelVar, addSource))
	}

	var handler slog.Handler = newTeeHandler(handlers...)
	handler = newRedactHandler(handler)
	if opts.DedupThreshold > 0 && opts.DedupWindow > 0 {
		handler = newDedupHandler(handler, opts.DedupWindow, opts.DedupThreshold)
	}
	return slog.New(handler), nil
}

// NewFromConfig creates a logger using application config defaults.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	return NewFromConfigTo(cfg, nil)
}

// NewFromConfigTo is NewFromConfig with the primary output redirected to w.
// The CLI sends logs to stderr so command output stays parseable.
func NewFromConfigTo(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", Output: w})
	}

	var file *FileOptions
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		file = &FileOptions{
			Path:       cfg.LogFilePath(),
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		}
	}

	return New(Options{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		Output:         w,
		File:           file,
		DedupWindow:    time.Duration(cfg.Logging.DedupWindowSeconds) * time.Second,
		DedupThreshold: cfg.Logging.DedupThreshold,
	})
}

func newRotatingWriter(opts FileOptions) io.Writer {
	return &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
