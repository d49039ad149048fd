package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/zjrosen/statesync/internal/log"
)

// Server wraps the Handler with an http.Server for lifecycle management.
type Server struct {
	handler  *Handler
	server   *http.Server
	listener net.Listener
	addr     string
	port     int // Actual port after binding (useful when using :0)
}

// ServerConfig configures the API server.
type ServerConfig struct {
	// Addr is the address to listen on (e.g., ":8080" or "localhost:0").
	Addr string
	// Handler serves the routes (required).
	Handler *Handler
	// ReadHeaderTimeout bounds reading request headers. Default: 10s.
	ReadHeaderTimeout time.Duration
}

// NewServer binds the listener and prepares the server.
// If Addr uses port 0 the OS assigns a port; see Port.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("handler is required")
	}

	readHeaderTimeout := cfg.ReadHeaderTimeout
	if readHeaderTimeout == 0 {
		readHeaderTimeout = 10 * time.Second
	}

	// Create listener first to get the actual port (important for :0)
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	port := 0
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}

	return &Server{
		handler:  cfg.Handler,
		addr:     cfg.Addr,
		port:     port,
		listener: listener,
		server: &http.Server{
			Handler:           cfg.Handler.Routes(),
			ReadHeaderTimeout: readHeaderTimeout,
			// No read or write deadline: long-poll reads and the event
			// stream stay open far longer than any body transfer.
			ReadTimeout:  0,
			WriteTimeout: 0,
		},
	}, nil
}

// Start serves until the server is stopped or fails. After Stop it
// returns nil.
func (s *Server) Start() error {
	log.Info(log.CatHTTP, "Starting API server", "addr", s.listener.Addr().String(), "port", s.port)
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop releases blocked long-poll reads and event streams, then shuts the
// server down gracefully within ctx.
func (s *Server) Stop(ctx context.Context) error {
	log.Info(log.CatHTTP, "Stopping API server")
	s.handler.Drain()
	return s.server.Shutdown(ctx)
}

// Port returns the actual port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// URL returns the base URL clients should use. An unspecified listen host
// is reported as loopback.
func (s *Server) URL() string {
	host := "127.0.0.1"
	if tcpAddr, ok := s.listener.Addr().(*net.TCPAddr); ok && !tcpAddr.IP.IsUnspecified() {
		host = tcpAddr.IP.String()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.port))
}
