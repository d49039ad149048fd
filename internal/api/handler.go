// Package api provides the HTTP API for statesync.
// It exposes create, read-or-wait and update endpoints for named versioned
// resources, plus administrative routes for health, the change feed (SSE)
// and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/statesync/internal/cachemanager"
	"github.com/zjrosen/statesync/internal/log"
	"github.com/zjrosen/statesync/internal/metrics"
	"github.com/zjrosen/statesync/internal/pubsub"
	"github.com/zjrosen/statesync/internal/resource"
	"github.com/zjrosen/statesync/internal/tracing"
)

const (
	// DefaultMaxBodyBytes caps request bodies when HandlerConfig leaves it unset.
	DefaultMaxBodyBytes = 16 * 1024
	// DefaultLongPollTimeout bounds a read for a future version when unset.
	DefaultLongPollTimeout = 30 * time.Second
)

var (
	namePattern    = regexp.MustCompile(`^[a-zA-Z]{1,20}$`)
	versionPattern = regexp.MustCompile(`^[0-9]{1,9}$`)
)

// Store is the resource registry as seen by the handlers.
type Store interface {
	Create(id resource.ResourceID, rec *resource.Record) error
	Get(id resource.ResourceID) (*resource.Record, error)
	Len() int
}

// Handler provides the HTTP endpoints.
type Handler struct {
	store        Store
	feed         pubsub.Subscriber[resource.Change]
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	cache        cachemanager.CacheManager[string, []byte]
	snapshots    *cachemanager.ReadThroughCache[string, []byte, resource.Snapshot]
	maxBodyBytes int64
	longPoll     atomic.Int64

	draining context.Context
	drain    context.CancelFunc
}

// HandlerConfig configures the API handler.
type HandlerConfig struct {
	// Store holds the resources (required).
	Store Store
	// Feed streams changes on GET /_events (optional).
	Feed pubsub.Subscriber[resource.Change]
	// Metrics records Prometheus metrics and serves GET /_metrics (optional).
	Metrics *metrics.Metrics
	// Tracer creates a server span per request (optional).
	Tracer trace.Tracer
	// Cache keeps encoded responses per (id, version) for CacheTTL (optional).
	Cache    cachemanager.CacheManager[string, []byte]
	CacheTTL time.Duration
	// MaxBodyBytes caps request bodies. Default: 16 KiB.
	MaxBodyBytes int64
	// LongPollTimeout bounds a read for a future version. Default: 30s.
	LongPollTimeout time.Duration
}

// NewHandler creates a handler from cfg.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		store:        cfg.Store,
		feed:         cfg.Feed,
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
		cache:        cfg.Cache,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
	if h.tracer == nil {
		h.tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = DefaultMaxBodyBytes
	}
	h.SetLongPollTimeout(cfg.LongPollTimeout)
	h.snapshots = cachemanager.NewReadThroughCache[string, []byte, resource.Snapshot](cfg.Cache, encodeSnapshot, cfg.CacheTTL)
	h.draining, h.drain = context.WithCancel(context.Background())
	return h
}

// SetLongPollTimeout changes the long-poll timeout for reads that start
// after the call. A non-positive d restores the default.
func (h *Handler) SetLongPollTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultLongPollTimeout
	}
	h.longPoll.Store(int64(d))
}

// LongPollTimeout returns the current long-poll timeout.
func (h *Handler) LongPollTimeout() time.Duration {
	return time.Duration(h.longPoll.Load())
}

// Drain releases every blocked read with the current state and ends event
// streams. Used before shutting the server down.
func (h *Handler) Drain() {
	h.drain()
}

// Routes returns an http.Handler with all routes and middleware registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// Resources
	h.handle(mux, "PUT /{name}", h.Create)
	h.handle(mux, "OPTIONS /{name}", h.Preflight)
	h.handle(mux, "GET /{name}/{version}", h.Read)
	h.handle(mux, "PUT /{name}/{version}", h.Update)
	h.handle(mux, "OPTIONS /{name}/{version}", h.Preflight)

	// Administrative
	h.handle(mux, "GET /_health", h.Health)
	h.handle(mux, "GET /_events", h.StreamEvents)
	h.handle(mux, "GET /_metrics", h.Metrics)

	// Everything else, including unknown methods on known paths
	h.handle(mux, "/", h.NotFound)

	return chain(mux, recoverer, cors, requestID, accessLog, h.exactPath)
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, h.instrument(pattern, fn))
}

// === Request/Response Types ===

// ResourceResponse is the body of every successful create, read and update.
type ResourceResponse struct {
	Data             string `json:"data"`
	Version          int64  `json:"version"`
	WaitForChangeURL string `json:"waitForChangeUrl"`
	UpdateURL        string `json:"updateUrl"`
}

// ErrorResponse is the body of 400 and 404 responses. Error repeats the status.
type ErrorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /_health.
type HealthResponse struct {
	Status          string              `json:"status"`
	Resources       int                 `json:"resources"`
	LongPollTimeout string              `json:"long_poll_timeout"`
	Cache           *cachemanager.Stats `json:"cache,omitempty"`
}

const (
	msgNotFound        = "not found"
	msgAlreadyExists   = "resource already exists"
	msgDoesNotExist    = "resource does not exist"
	msgVersionConflict = "specified version does not follow current version"
)

// === Handlers ===

// Create creates a resource at version 1 with the request body as its data.
// PUT /{name}
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	name, ok := parseName(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	body := h.readBody(w, r)

	rec := resource.NewRecord(name, body)
	snap := rec.Read()
	setResourceAttrs(r.Context(), snap.ID, 0)

	if err := h.store.Create(rec.ID(), rec); err != nil {
		if errors.Is(err, resource.ErrAlreadyExists) {
			h.writeError(w, http.StatusBadRequest, msgAlreadyExists)
			return
		}
		h.abort(r, "create failed", err)
	}

	h.metrics.ResourceCreated()
	log.Debug(log.CatHTTP, "resource created", "id", snap.ID, "size", len(snap.Data))
	h.writeSnapshot(w, r, snap)
}

// Read returns the resource. If the requested version does not exist yet it
// waits once for the next update or the long-poll timeout and then returns
// the latest state, changed or not.
// GET /{name}/{version}
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	name, version, ok := parseTarget(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	rec, ok := h.lookup(w, r, name)
	if !ok {
		return
	}
	setResourceAttrs(r.Context(), rec.ID(), version)

	snap := rec.Read()
	if version > snap.Version {
		var done bool
		snap, done = h.wait(r, rec, version)
		if done {
			return
		}
	}

	h.writeSnapshot(w, r, snap)
}

// wait blocks for version. done is true when the client went away and
// nothing should be written.
func (h *Handler) wait(r *http.Request, rec *resource.Record, version int64) (snap resource.Snapshot, done bool) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	timeout := h.LongPollTimeout()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.draining, cancel)
	defer stop()

	span.AddEvent(tracing.EventWaitStarted, trace.WithAttributes(
		attribute.String("timeout", timeout.String()),
	))
	h.metrics.WaitStarted()

	snap, reason, err := rec.WaitForVersion(waitCtx, version, timeout)
	label := reason.String()
	if err != nil {
		if ctx.Err() != nil {
			h.metrics.WaitFinished("cancelled")
			log.Debug(log.CatHTTP, "client left during long-poll", "id", rec.ID(), "version", version)
			return resource.Snapshot{}, true
		}
		// Draining: answer with whatever is current.
		label = "shutdown"
		snap = rec.Read()
	}

	h.metrics.WaitFinished(label)
	span.AddEvent(tracing.EventWaitFinished, trace.WithAttributes(
		attribute.String(tracing.AttrWakeReason, label),
		attribute.Int64(tracing.AttrResourceVersion, snap.Version),
	))
	return snap, false
}

// Update writes a new version. The path version must be exactly the current
// version plus one.
// PUT /{name}/{version}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	name, version, ok := parseTarget(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	body := h.readBody(w, r)

	rec, ok := h.lookup(w, r, name)
	if !ok {
		return
	}
	setResourceAttrs(r.Context(), rec.ID(), version)

	snap, err := rec.WriteIf(version, body)
	if err != nil {
		if errors.Is(err, resource.ErrVersionConflict) {
			h.metrics.VersionConflict()
			log.Debug(log.CatHTTP, "update rejected", "id", rec.ID(), "error", err)
			h.writeError(w, http.StatusBadRequest, msgVersionConflict)
			return
		}
		h.abort(r, "update failed", err)
	}

	h.metrics.ResourceUpdated()
	trace.SpanFromContext(r.Context()).AddEvent(tracing.EventRecordWritten)
	h.writeSnapshot(w, r, snap)
}

// Preflight acknowledges a CORS preflight on a well-formed resource path.
// OPTIONS /{name}, OPTIONS /{name}/{version}
func (h *Handler) Preflight(w http.ResponseWriter, r *http.Request) {
	ok := false
	switch len(rawSegments(r)) {
	case 1:
		_, ok = parseName(r)
	case 2:
		_, _, ok = parseTarget(r)
	}
	if !ok {
		h.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// NotFound answers every request no other route matched.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	h.writeError(w, http.StatusNotFound, msgNotFound)
}

// Health reports liveness and the resource count.
// GET /_health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:          "ok",
		Resources:       h.store.Len(),
		LongPollTimeout: h.LongPollTimeout().String(),
	}
	if s, ok := h.cache.(interface{ Stats() cachemanager.Stats }); ok {
		stats := s.Stats()
		resp.Cache = &stats
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// StreamEvents streams creates and updates as Server-Sent Events.
// GET /_events
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		h.NotFound(w, r)
		return
	}
	h.streamEvents(w, r, h.feed.Subscribe(r.Context()))
}

// Metrics serves the Prometheus registry.
// GET /_metrics
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		h.NotFound(w, r)
		return
	}
	h.metrics.Handler().ServeHTTP(w, r)
}

// === Helpers ===

// rawSegments splits the path as sent, before percent-decoding. The grammar
// is checked on these so an escaped name such as /ali%63e does not match.
func rawSegments(r *http.Request) []string {
	return strings.Split(strings.TrimPrefix(r.URL.EscapedPath(), "/"), "/")
}

func parseName(r *http.Request) (string, bool) {
	segs := rawSegments(r)
	if len(segs) != 1 || !namePattern.MatchString(segs[0]) {
		return "", false
	}
	return segs[0], true
}

func parseTarget(r *http.Request) (string, int64, bool) {
	segs := rawSegments(r)
	if len(segs) != 2 {
		return "", 0, false
	}
	name, raw := segs[0], segs[1]
	if !namePattern.MatchString(name) || !versionPattern.MatchString(raw) {
		return "", 0, false
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return name, version, true
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, name string) (*resource.Record, bool) {
	rec, err := h.store.Get(resource.Normalize(name))
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, msgDoesNotExist)
			return nil, false
		}
		h.abort(r, "lookup failed", err)
	}
	return rec, true
}

// readBody reads the whole request body. A body over the limit or a client
// that goes away mid-body aborts the connection without a response.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) []byte {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err == nil {
		return body
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		log.Warn(log.CatHTTP, "request body too large", "url", r.URL.Path, "limit", tooLarge.Limit)
	} else {
		log.Warn(log.CatHTTP, "client disconnected while sending body", "url", r.URL.Path, "error", err)
	}
	panic(http.ErrAbortHandler)
}

// abort logs an unexpected failure and drops the connection.
func (h *Handler) abort(r *http.Request, msg string, err error) {
	log.ErrorErr(log.CatHTTP, msg, err, "method", r.Method, "url", r.URL.Path)
	tracing.RecordError(trace.SpanFromContext(r.Context()), err)
	panic(http.ErrAbortHandler)
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, r *http.Request, snap resource.Snapshot) {
	key := fmt.Sprintf("%s@%d", snap.ID, snap.Version)
	body, hit, err := h.snapshots.Get(r.Context(), key, snap)
	if err != nil {
		h.abort(r, "encode response failed", err)
	}
	if h.cache != nil {
		h.metrics.CacheLookup(hit)
	}
	if hit {
		trace.SpanFromContext(r.Context()).AddEvent(tracing.EventCacheHit)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Debug(log.CatHTTP, "write response failed", "url", r.URL.Path, "error", err)
	}
}

// encodeSnapshot renders the response body for snap. Both follow-up URLs
// name the next version, built from the name given at creation.
func encodeSnapshot(_ context.Context, snap resource.Snapshot) ([]byte, error) {
	next := fmt.Sprintf("/%s/%d", snap.Name, snap.NextVersion())
	body, err := json.Marshal(ResourceResponse{
		Data:             string(snap.Data),
		Version:          snap.Version,
		WaitForChangeURL: next,
		UpdateURL:        next,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot %s@%d: %w", snap.ID, snap.Version, err)
	}
	return body, nil
}

func setResourceAttrs(ctx context.Context, id resource.ResourceID, version int64) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String(tracing.AttrResourceID, id.String()))
	if version > 0 {
		span.SetAttributes(attribute.Int64(tracing.AttrRequestedVer, version))
	}
}

func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request, events <-chan resource.ChangeEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error(log.CatHTTP, "streaming not supported", "url", r.URL.Path)
		return
	}

	_, _ = fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.draining.Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(event.Payload)
			if err != nil {
				log.ErrorErr(log.CatHTTP, "Failed to marshal event", err)
				continue
			}

			_, _ = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.Seq, event.Type, data)
			flusher.Flush()
		}
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.ErrorErr(log.CatHTTP, "Failed to encode JSON response", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   status,
		Message: message,
	})
}

// exactPath answers 404 for paths the mux would clean and redirect, such as
// //alice or /alice/./1, so only the literal route grammar matches.
func (h *Handler) exactPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.EscapedPath(); p != "/" && path.Clean(p) != p {
			h.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
