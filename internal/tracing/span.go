package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys recorded on invocation spans.
const (
	AttrOperation = attribute.Key("crankfeed.operation")
	AttrArtifact  = attribute.Key("crankfeed.artifact")
	AttrTest      = attribute.Key("crankfeed.test")
)

// StartInvocationSpan starts a span around one engine call. op is "run" or
// "report"; name is the engine-facing test name.
func StartInvocationSpan(ctx context.Context, tracer trace.Tracer, op, location, name string) (context.Context, trace.Span) {
	spanName := "crankfeed " + op
	if name != "" {
		spanName += " " + name
	}
	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(AttrOperation.String(op))
	if location != "" {
		span.SetAttributes(AttrArtifact.String(location))
	}
	if name != "" {
		span.SetAttributes(AttrTest.String(name))
	}
	return ctx, span
}

// StartRequestSpan starts a client span for one HTTP request issued by the
// built-in engine.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, method, target string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", method),
	)
	if target != "" {
		span.SetAttributes(attribute.String("url.full", target))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
