package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/slotline/slotline/slot"
)

// tracerName is the instrumentation scope name for slotline tracing.
const tracerName = "github.com/slotline/slotline"

// Tracing returns middleware that wraps slot execution in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: slotline.slot.id, slotline.slot.kind, and
// slotline.lane. On error, the span status is set to codes.Error with
// the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, laneKey string, s *slot.Slot, next Handler) error {
		ctx, span := tracer.Start(ctx, "slotline.slot.perform",
			trace.WithAttributes(
				attribute.String("slotline.slot.id", s.ID.String()),
				attribute.String("slotline.slot.kind", s.Kind),
				attribute.String("slotline.lane", laneKey),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
