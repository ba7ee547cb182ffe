// Package logging builds the daemon's structured slog.Logger and wraps
// connection handling and store mutations with no-op-by-default
// opentelemetry spans.
package logging

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"
)

// New builds the daemon's root logger. The handler is text when stderr is
// a terminal, JSON otherwise, so daemonized/piped output stays
// machine-readable while interactive runs stay human-readable.
func New(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// tracerName is the instrumentation scope registered with the global
// (no-op by default) TracerProvider. A consumer that calls
// otel.SetTracerProvider gets real spans for free; this module never
// wires an exporter.
const tracerName = "github.com/PabloLION/agent-console-dashboard"

// StartSpan begins a span under the daemon's tracer, returning a context
// carrying it and an end function that records the error (if non-nil) and
// closes the span. Call pattern:
//
//	ctx, end := logging.StartSpan(ctx, "rpcserver.handle_connection")
//	defer func() { end(retErr) }()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
