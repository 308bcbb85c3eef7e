package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"podcastflow/internal/services"
)

const tracerName = "podcastflow/internal/workflow"

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span before ending it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, services.Message(err))
		span.SetAttributes(attribute.String("error.kind", services.Kind(err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
