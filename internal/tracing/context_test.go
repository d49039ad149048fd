package tracing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	require.Empty(t, RequestIDFromContext(ctx))
	//nolint:staticcheck // nil context handling
	require.Empty(t, RequestIDFromContext(nil))

	ctx = ContextWithRequestID(ctx, "first")
	require.Equal(t, "first", RequestIDFromContext(ctx))

	require.Equal(t, "first", RequestIDFromContext(ContextWithRequestID(ctx, "")))
	require.Equal(t, "second", RequestIDFromContext(ContextWithRequestID(ctx, "second")))
}

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	require.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(4), parsed.Version())
}
