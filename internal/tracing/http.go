package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var propagator = propagation.TraceContext{}

// StartServerSpan starts a server span for r on route, continuing any
// traceparent sent by the client.
func StartServerSpan(tracer trace.Tracer, r *http.Request, route string) (context.Context, trace.Span) {
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, SpanPrefixServer+route,
		trace.WithSpanKind(trace.SpanKindServer),
	)
	span.SetAttributes(
		attribute.String(AttrHTTPMethod, r.Method),
		attribute.String(AttrHTTPRoute, route),
	)
	if id := RequestIDFromContext(ctx); id != "" {
		span.SetAttributes(attribute.String(AttrRequestID, id))
	}
	return ctx, span
}

// EndServerSpan records the response status and ends span. 5xx responses
// and aborted requests (status 0) mark the span as failed.
func EndServerSpan(span trace.Span, status int) {
	span.SetAttributes(attribute.Int(AttrHTTPStatusCode, status))
	if status == 0 {
		span.SetStatus(codes.Error, "aborted")
	} else if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// StartClientSpan starts a client span and injects its context into header.
func StartClientSpan(ctx context.Context, tracer trace.Tracer, method, path string, header http.Header) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, SpanPrefixClient+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String(AttrHTTPMethod, method))
	propagator.Inject(ctx, propagation.HeaderCarrier(header))
	return ctx, span
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
