package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink describes the optional rotating log file.
type FileSink struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type options struct {
	level slog.Level
	file  *FileSink
	out   io.Writer
}

// Option customises Setup.
type Option func(*options)

// WithLevel parses debug, info, warn or error. Unknown values keep info.
func WithLevel(level string) Option {
	return func(o *options) {
		switch strings.ToLower(strings.TrimSpace(level)) {
		case "debug":
			o.level = slog.LevelDebug
		case "warn", "warning":
			o.level = slog.LevelWarn
		case "error":
			o.level = slog.LevelError
		}
	}
}

// WithFile mirrors every log line into a lumberjack-rotated file.
func WithFile(sink FileSink) Option {
	return func(o *options) {
		if strings.TrimSpace(sink.Path) == "" {
			return
		}
		o.file = &sink
	}
}

// WithOutput replaces stdout; tests use it to capture lines.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// include the service name and environment when provided.
func Setup(service, env string, opts ...Option) *slog.Logger {
	cfg := options{level: slog.LevelInfo, out: os.Stdout}
	for _, opt := range opts {
		opt(&cfg)
	}
	writer := cfg.out
	if cfg.file != nil {
		writer = io.MultiWriter(cfg.out, &lumberjack.Logger{
			Filename:   cfg.file.Path,
			MaxSize:    cfg.file.MaxSizeMB,
			MaxBackups: cfg.file.MaxBackups,
			MaxAge:     cfg.file.MaxAgeDays,
			Compress:   cfg.file.Compress,
		})
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: cfg.level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	withAttrs := handler.WithAttrs(attrs)

	base := slog.New(withAttrs)
	slog.SetDefault(base)

	// Bridge the standard library logger.
	stdBridge := slog.NewLogLogger(withAttrs, slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
