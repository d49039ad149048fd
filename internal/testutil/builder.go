// Package testutil provides helpers for seeding registries and running an
// in-process statesync server in tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/statesync/internal/resource"
)

// Builder accumulates resources and applies them to a registry in order.
type Builder struct {
	t         *testing.T
	registry  *resource.Registry
	resources []resourceData
}

// NewBuilder creates a builder for the given registry.
func NewBuilder(t *testing.T, registry *resource.Registry) *Builder {
	t.Helper()
	return &Builder{t: t, registry: registry}
}

// WithResource adds a resource with optional configuration.
func (b *Builder) WithResource(name string, opts ...ResourceOption) *Builder {
	res := defaultResource(name)
	for _, opt := range opts {
		opt(&res)
	}
	b.resources = append(b.resources, res)
	return b
}

// Build creates every resource and replays its updates.
func (b *Builder) Build() {
	b.t.Helper()
	for _, res := range b.resources {
		rec := resource.NewRecord(res.name, res.history[0])
		require.NoError(b.t, b.registry.Create(rec.ID(), rec), "creating %s", res.name)
		for i, data := range res.history[1:] {
			_, err := rec.WriteIf(int64(i+2), data)
			require.NoError(b.t, err, "updating %s", res.name)
		}
	}
}
