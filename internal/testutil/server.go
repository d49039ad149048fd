package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/zjrosen/statesync/internal/api"
	"github.com/zjrosen/statesync/internal/resource"
)

// Server is an in-process statesync server backed by a fresh registry.
type Server struct {
	URL      string
	Registry *resource.Registry
	Handler  *api.Handler
}

// NewServer starts a server with cfg. Unless cfg.Store is a Registry it is
// replaced by a new one. Waiters are drained and the server closed on test cleanup.
func NewServer(t *testing.T, cfg api.HandlerConfig) *Server {
	t.Helper()

	registry, ok := cfg.Store.(*resource.Registry)
	if !ok {
		registry = resource.NewRegistry()
		cfg.Store = registry
	}

	handler := api.NewHandler(cfg)
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(func() {
		handler.Drain()
		srv.Close()
	})

	return &Server{URL: srv.URL, Registry: registry, Handler: handler}
}

// Seed returns a builder over the server's registry.
func (s *Server) Seed(t *testing.T) *Builder {
	t.Helper()
	return NewBuilder(t, s.Registry)
}
