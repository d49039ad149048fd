// Package client is a Go client for the statesync HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/statesync/internal/log"
	"github.com/zjrosen/statesync/internal/tracing"
)

var (
	// ErrBadRequest is returned for 400 responses: the resource already
	// exists, or an update named the wrong version.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
)

// Resource is one version of a resource as returned by the server.
type Resource struct {
	Data             string `json:"data"`
	Version          int64  `json:"version"`
	WaitForChangeURL string `json:"waitForChangeUrl"`
	UpdateURL        string `json:"updateUrl"`
}

// APIError is a non-200 response. It unwraps to ErrBadRequest or
// ErrNotFound when the status matches.
type APIError struct {
	Status  int    `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("statesync: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// Client talks to one statesync server.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient. It must not set a Timeout
// shorter than the server's long-poll timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTracer creates a client span per request and propagates it.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		tracer:  noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create creates name with data at version 1.
func (c *Client) Create(ctx context.Context, name string, data []byte) (Resource, error) {
	return c.do(ctx, http.MethodPut, resourcePath(name), data)
}

// Get returns name at version. If version does not exist yet the server
// holds the request until it does or its long-poll timeout passes, and then
// returns the latest state.
func (c *Client) Get(ctx context.Context, name string, version int64) (Resource, error) {
	return c.do(ctx, http.MethodGet, versionPath(name, version), nil)
}

// Update writes data as version, which must be the current version plus one.
func (c *Client) Update(ctx context.Context, name string, version int64, data []byte) (Resource, error) {
	return c.do(ctx, http.MethodPut, versionPath(name, version), data)
}

// Follow fetches the path returned in a response's waitForChangeUrl or
// updateUrl.
func (c *Client) Follow(ctx context.Context, path string) (Resource, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Watch calls fn with the current state of name and then with every newer
// version, following waitForChangeUrl. Long-poll timeouts are retried
// silently. Watch returns when ctx ends, fn returns an error, or a request
// fails.
func (c *Client) Watch(ctx context.Context, name string, fn func(Resource) error) error {
	current, err := c.Get(ctx, name, 0)
	if err != nil {
		return err
	}
	if err := fn(current); err != nil {
		return err
	}

	for {
		next, err := c.Follow(ctx, current.WaitForChangeURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if next.Version <= current.Version {
			log.Debug(log.CatClient, "long-poll timed out, retrying", "name", name, "version", current.Version)
			continue
		}
		current = next
		if err := fn(current); err != nil {
			return err
		}
	}
}

// Modify reads name, passes it to fn and writes the result as the next
// version. If another writer got there first the read is repeated, up to
// attempts times in total. fn must not have side effects.
func (c *Client) Modify(ctx context.Context, name string, attempts int, fn func(Resource) ([]byte, error)) (Resource, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		current, err := c.Get(ctx, name, 0)
		if err != nil {
			return Resource{}, err
		}
		data, err := fn(current)
		if err != nil {
			return Resource{}, err
		}
		updated, err := c.Update(ctx, name, current.Version+1, data)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrBadRequest) {
			return Resource{}, err
		}
		log.Debug(log.CatClient, "update lost a race, retrying", "name", name, "version", current.Version+1, "attempt", i+1)
		lastErr = err
	}
	return Resource{}, fmt.Errorf("modify %s: gave up after %d attempts: %w", name, attempts, lastErr)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (Resource, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Resource{}, fmt.Errorf("building request: %w", err)
	}

	ctx, span := tracing.StartClientSpan(ctx, c.tracer, method, path, req.Header)
	defer span.End()
	req = req.WithContext(ctx)

	log.Debug(log.CatClient, "request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		tracing.RecordError(span, err)
		return Resource{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err)
		return Resource{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Status = resp.StatusCode
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		tracing.RecordError(span, apiErr)
		return Resource{}, apiErr
	}

	var out Resource
	if err := json.Unmarshal(data, &out); err != nil {
		return Resource{}, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}

func resourcePath(name string) string {
	return "/" + url.PathEscape(name)
}

func versionPath(name string, version int64) string {
	return resourcePath(name) + "/" + strconv.FormatInt(version, 10)
}
