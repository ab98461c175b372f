// Package logging configures the process-wide structured logger. Records are
// written by zap, exposed through slog and logr, and carry the OpenTelemetry
// trace and span IDs of the context they were logged with.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	// FormatJSON writes one JSON object per record
	FormatJSON = "json"
	// FormatConsole writes human readable records
	FormatConsole = "console"
)

// Option configures a logger
type Option func(*options) error

type options struct {
	level  slog.Level
	format string
	out    io.Writer
}

// WithLevel sets the minimum level
func WithLevel(level slog.Level) Option {
	return func(o *options) error {
		o.level = level
		return nil
	}
}

// WithFormat selects FormatJSON or FormatConsole
func WithFormat(format string) Option {
	return func(o *options) error {
		switch format {
		case FormatJSON, FormatConsole:
			o.format = format
			return nil
		default:
			return fmt.Errorf("unsupported log format %q", format)
		}
	}
}

// WithOutput sets the destination, os.Stderr by default
func WithOutput(w io.Writer) Option {
	return func(o *options) error {
		if w == nil {
			return fmt.Errorf("output cannot be nil")
		}
		o.out = w
		return nil
	}
}

// New builds a slog logger backed by zap.
func New(opts ...Option) (*slog.Logger, error) {
	o := &options{level: slog.LevelInfo, format: FormatJSON, out: os.Stderr}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = encodeLevel

	var enc zapcore.Encoder
	if o.format == FormatConsole {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(o.out), zapLevel(o.level))
	zl := zap.New(core)

	handler := &traceHandler{Handler: logr.ToSlogHandler(zapr.NewLogger(zl))}
	return slog.New(handler), nil
}

// Setup builds a logger and installs it as the slog default and as the
// controller-runtime logger.
func Setup(opts ...Option) (*slog.Logger, error) {
	logger, err := New(opts...)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	ctrl.SetLogger(logr.FromSlogHandler(logger.Handler()))
	return logger, nil
}

// ParseLevel parses debug, info, warn, warning and error, case-insensitively.
// The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
}

// zapLevel maps a slog level to the zap level zapr emits for it. zapr passes
// levels below info through unchanged, so debug becomes zap level -4.
func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.Level(l)
	}
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l < zapcore.InfoLevel {
		enc.AppendString("debug")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// traceHandler adds trace_id and span_id to records logged with a span in context.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}
