package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/zjrosen/statesync/internal/config"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, provider)
	require.False(t, provider.Enabled())

	tracer := provider.Tracer()
	require.NotNil(t, tracer)

	ctx, span := tracer.Start(context.Background(), "test-span")
	require.NotNil(t, ctx)
	require.False(t, span.SpanContext().IsValid(), "no-op spans carry no context")
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_FileExporter(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces.jsonl")

	provider, err := NewProvider(config.TracingConfig{
		Enabled:     true,
		Exporter:    "file",
		FilePath:    tracePath,
		SampleRate:  1.0,
		ServiceName: "test-service",
	})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	ctx, parent := provider.Tracer().Start(context.Background(), "parent")
	_, child := provider.Tracer().Start(ctx, "child")
	require.True(t, parent.SpanContext().IsValid())
	require.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	child.End()
	parent.End()

	require.NoError(t, provider.Shutdown(context.Background()))

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"name":"child"`)
	require.Contains(t, string(data), `"name":"parent"`)
}

func TestNewProvider_NoExporter(t *testing.T) {
	provider, err := NewProvider(config.TracingConfig{Enabled: true, Exporter: "none"})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), "test-span")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TracingConfig
		want string
	}{
		{"missing file path", config.TracingConfig{Enabled: true, Exporter: "file"}, "file_path required"},
		{"unsupported exporter", config.TracingConfig{Enabled: true, Exporter: "zipkin"}, "unsupported exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			require.Error(t, err)
			require.Nil(t, provider)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProvider_TracerReturnsConsistentInstance(t *testing.T) {
	provider, err := NewProvider(config.TracingConfig{})
	require.NoError(t, err)
	require.Equal(t, provider.Tracer(), provider.Tracer())
}

func TestNewProvider_ServiceVersion(t *testing.T) {
	provider, err := NewProvider(config.TracingConfig{Enabled: true, Exporter: "none"}, WithServiceVersion("1.4.0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, span := provider.Tracer().Start(context.Background(), "versioned")
	span.End()

	ro, ok := span.(sdktrace.ReadOnlySpan)
	require.True(t, ok)
	got := map[string]string{}
	for _, kv := range ro.Resource().Attributes() {
		got[string(kv.Key)] = kv.Value.AsString()
	}
	require.Equal(t, "statesync", got["service.name"])
	require.Equal(t, "1.4.0", got["service.version"])
}
