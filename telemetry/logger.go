package telemetry

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks. Output goes to stderr so
// plan listings on stdout stay machine-readable.
func NewLogger(service string) *Logger {
	return newLogger(service, os.Stderr)
}

func newLogger(service string, w io.Writer) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(w).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for pipeline stages

func (l *Logger) LogParseComplete(ctx context.Context, events, warnings int) {
	l.WithContext(ctx).Info().
		Int("events", events).
		Int("warnings", warnings).
		Str("operation", "parse").
		Msg("log parsing completed")
}

func (l *Logger) LogPlanBuilt(ctx context.Context, installs, removes int) {
	l.WithContext(ctx).Info().
		Int("installs", installs).
		Int("removes", removes).
		Str("operation", "plan").
		Msg("rollback plan built")
}

func (l *Logger) LogResolveComplete(ctx context.Context, resolved, failed int) {
	l.WithContext(ctx).Info().
		Int("resolved", resolved).
		Int("failed", failed).
		Str("operation", "resolve").
		Msg("archive resolution completed")
}

func (l *Logger) LogExecuteComplete(ctx context.Context, applied, failed, skipped int) {
	l.WithContext(ctx).Info().
		Int("applied", applied).
		Int("failed", failed).
		Int("skipped", skipped).
		Str("operation", "execute").
		Msg("rollback execution completed")
}
