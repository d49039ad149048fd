package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp
}

func attrMap(attrs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestServerSpan_RecordsRouteAndStatus(t *testing.T) {
	recorder, tp := newRecorder(t)
	tracer := tp.Tracer("test")

	req := httptest.NewRequest(http.MethodGet, "/alice/2", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-1"))

	_, span := StartServerSpan(tracer, req, "GET /{name}/{version}")
	EndServerSpan(span, http.StatusOK)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "http.server GET /{name}/{version}", spans[0].Name())
	require.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := attrMap(spans[0].Attributes())
	require.Equal(t, "GET", attrs[AttrHTTPMethod])
	require.Equal(t, "req-1", attrs[AttrRequestID])
	require.EqualValues(t, 200, attrs[AttrHTTPStatusCode])
}

func TestServerSpan_ServerErrorMarksFailure(t *testing.T) {
	recorder, tp := newRecorder(t)

	req := httptest.NewRequest(http.MethodPut, "/alice", nil)
	_, span := StartServerSpan(tp.Tracer("test"), req, "PUT /{name}")
	EndServerSpan(span, http.StatusInternalServerError)

	require.Equal(t, codes.Error, recorder.Ended()[0].Status().Code)
}

func TestClientSpanPropagatesToServer(t *testing.T) {
	recorder, tp := newRecorder(t)
	tracer := tp.Tracer("test")

	header := http.Header{}
	_, client := StartClientSpan(context.Background(), tracer, http.MethodGet, "/alice/2", header)
	require.NotEmpty(t, header.Get("traceparent"))

	req := httptest.NewRequest(http.MethodGet, "/alice/2", nil)
	req.Header = header
	_, server := StartServerSpan(tracer, req, "GET /{name}/{version}")
	EndServerSpan(server, http.StatusOK)
	client.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	require.Equal(t, client.SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestRecordError(t *testing.T) {
	recorder, tp := newRecorder(t)
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	ended := recorder.Ended()[0]
	require.Equal(t, codes.Error, ended.Status().Code)
	require.Len(t, ended.Events(), 1)
}

func TestServerSpan_AbortedMarksFailure(t *testing.T) {
	recorder, tp := newRecorder(t)

	req := httptest.NewRequest(http.MethodPut, "/alice", nil)
	_, span := StartServerSpan(tp.Tracer("test"), req, "PUT /{name}")
	EndServerSpan(span, 0)

	ended := recorder.Ended()[0]
	require.Equal(t, codes.Error, ended.Status().Code)
	require.Equal(t, "aborted", ended.Status().Description)
}
