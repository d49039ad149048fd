package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/statesync/internal/api/mocks"
	"github.com/zjrosen/statesync/internal/cachemanager"
	"github.com/zjrosen/statesync/internal/metrics"
	"github.com/zjrosen/statesync/internal/resource"
)

func serve(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

func decodeResource(t *testing.T, w *httptest.ResponseRecorder) ResourceResponse {
	t.Helper()
	var resp ResourceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// === Tests ===

func TestHandler_Create(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.EXPECT().
		Create(resource.ResourceID("alice"), mock.MatchedBy(func(rec *resource.Record) bool {
			snap := rec.Read()
			return snap.Version == 1 && string(snap.Data) == "hello"
		})).
		Return(nil).
		Once()

	h := NewHandler(HandlerConfig{Store: store})
	w := serve(h, http.MethodPut, "/alice", "hello")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, ResourceResponse{
		Data:             "hello",
		Version:          1,
		WaitForChangeURL: "/alice/2",
		UpdateURL:        "/alice/2",
	}, decodeResource(t, w))
}

func TestHandler_Create_KeepsNameCaseInURLs(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.EXPECT().Create(resource.ResourceID("alice"), mock.Anything).Return(nil).Once()

	h := NewHandler(HandlerConfig{Store: store})
	w := serve(h, http.MethodPut, "/Alice", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResource(t, w)
	assert.Equal(t, "", resp.Data)
	assert.Equal(t, "/Alice/2", resp.WaitForChangeURL)
}

func TestHandler_Create_AlreadyExists(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.EXPECT().
		Create(resource.ResourceID("alice"), mock.Anything).
		Return(fmt.Errorf("%w: alice", resource.ErrAlreadyExists)).
		Once()

	h := NewHandler(HandlerConfig{Store: store})
	w := serve(h, http.MethodPut, "/alice", "again")

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorResponse{Error: 400, Message: "resource already exists"}, decodeError(t, w))
}

func TestHandler_Create_StoreFailureAborts(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.EXPECT().Create(mock.Anything, mock.Anything).Return(errors.New("disk on fire")).Once()

	h := NewHandler(HandlerConfig{Store: store})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(h, http.MethodPut, "/alice", "x")
	})
}

func TestHandler_Create_BodyTooLargeAborts(t *testing.T) {
	store := mocks.NewMockStore(t)
	h := NewHandler(HandlerConfig{Store: store, MaxBodyBytes: 16})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(h, http.MethodPut, "/alice", strings.Repeat("x", 17))
	})
	// No Create expectation: the mock fails the test if the store was touched.
}

func TestHandler_Create_BodyAtLimit(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.EXPECT().Create(resource.ResourceID("alice"), mock.Anything).Return(nil).Once()

	h := NewHandler(HandlerConfig{Store: store, MaxBodyBytes: 16})
	w := serve(h, http.MethodPut, "/alice", strings.Repeat("x", 16))

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_Read_NotFound(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.EXPECT().
		Get(resource.ResourceID("nobody")).
		Return(nil, fmt.Errorf("%w: nobody", resource.ErrNotFound)).
		Once()

	h := NewHandler(HandlerConfig{Store: store})
	w := serve(h, http.MethodGet, "/nobody/1", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorResponse{Error: 404, Message: "resource does not exist"}, decodeError(t, w))
}

func TestHandler_Read_CurrentVersionReturnsImmediately(t *testing.T) {
	rec := resource.NewRecord("alice", []byte("hello"))
	store := mocks.NewMockStore(t)
	store.EXPECT().Get(resource.ResourceID("alice")).Return(rec, nil).Times(2)

	h := NewHandler(HandlerConfig{Store: store, LongPollTimeout: time.Hour})

	for _, target := range []string{"/alice/1", "/ALICE/0"} {
		w := serve(h, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, w.Code, target)
		assert.Equal(t, int64(1), decodeResource(t, w).Version, target)
	}
}

func TestHandler_Read_TimesOutWithUnchangedState(t *testing.T) {
	rec := resource.NewRecord("alice", []byte("hello"))
	store := mocks.NewMockStore(t)
	store.EXPECT().Get(resource.ResourceID("alice")).Return(rec, nil).Once()

	h := NewHandler(HandlerConfig{Store: store, LongPollTimeout: 50 * time.Millisecond})

	start := time.Now()
	w := serve(h, http.MethodGet, "/alice/2", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	resp := decodeResource(t, w)
	assert.Equal(t, int64(1), resp.Version)
	assert.Equal(t, "hello", resp.Data)
}

func TestHandler_Update(t *testing.T) {
	rec := resource.NewRecord("alice", []byte("hello"))
	store := mocks.NewMockStore(t)
	store.EXPECT().Get(resource.ResourceID("alice")).Return(rec, nil).Times(2)

	h := NewHandler(HandlerConfig{Store: store})

	w := serve(h, http.MethodPut, "/alice/2", "world")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ResourceResponse{
		Data:             "world",
		Version:          2,
		WaitForChangeURL: "/alice/3",
		UpdateURL:        "/alice/3",
	}, decodeResource(t, w))

	w = serve(h, http.MethodPut, "/alice/2", "x")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorResponse{Error: 400, Message: "specified version does not follow current version"}, decodeError(t, w))

	snap := rec.Read()
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, "world", string(snap.Data))
}

func TestHandler_Update_NotFound(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.EXPECT().Get(resource.ResourceID("nobody")).Return(nil, resource.ErrNotFound).Once()

	h := NewHandler(HandlerConfig{Store: store})
	w := serve(h, http.MethodPut, "/nobody/2", "x")

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Preflight(t *testing.T) {
	h := NewHandler(HandlerConfig{Store: mocks.NewMockStore(t)})

	for _, target := range []string{"/alice", "/alice/7"} {
		w := serve(h, http.MethodOptions, target, "")
		require.Equal(t, http.StatusOK, w.Code, target)
		assert.Empty(t, w.Body.String(), target)
	}
}

func TestHandler_NoMatch(t *testing.T) {
	h := NewHandler(HandlerConfig{Store: mocks.NewMockStore(t)})

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/alice"},
		{http.MethodDelete, "/alice"},
		{http.MethodPost, "/alice/1"},
		{http.MethodPut, "/al1ce"},
		{http.MethodPut, "/abcdefghijklmnopqrstu"},
		{http.MethodGet, "/alice/1234567890"},
		{http.MethodGet, "/alice/v1"},
		{http.MethodGet, "/alice/1/update"},
		{http.MethodOptions, "/alice/1/2"},
		{http.MethodOptions, "/123"},
		{http.MethodOptions, "/abcdefghijklmnopqrstuvwxyz"},
		{http.MethodOptions, "/alice/v1"},
		{http.MethodOptions, "/alice/1234567890"},
		{http.MethodOptions, "/_health"},
		{http.MethodPut, "/ali%63e"},
		{http.MethodGet, "/alice/%31"},
		{http.MethodPut, "/alice/%31"},
		{http.MethodOptions, "/ali%63e"},
		{http.MethodGet, "/alice/./1"},
		{http.MethodPut, "//alice"},
		{http.MethodPut, "/alice/"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := serve(h, tt.method, tt.target, "")
			require.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, ErrorResponse{Error: 404, Message: "not found"}, decodeError(t, w))
		})
	}
}

func TestHandler_CORSOnEveryResponse(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.EXPECT().Get(mock.Anything).Return(nil, resource.ErrNotFound).Maybe()
	h := NewHandler(HandlerConfig{Store: store})

	for _, w := range []*httptest.ResponseRecorder{
		serve(h, http.MethodOptions, "/alice", ""),
		serve(h, http.MethodGet, "/nobody/1", ""),
		serve(h, http.MethodGet, "/what/is/this", ""),
	} {
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "OPTIONS, GET, PUT", w.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestHandler_RequestID(t *testing.T) {
	h := NewHandler(HandlerConfig{Store: mocks.NewMockStore(t)})

	w := serve(h, http.MethodOptions, "/alice", "")
	assert.Len(t, w.Header().Get("X-Request-Id"), 36)

	req := httptest.NewRequest(http.MethodOptions, "/alice", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w = httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-Id"))
}

func TestHandler_Health(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.EXPECT().Len().Return(3).Once()
	cache := cachemanager.NewInMemoryCacheManager[string, []byte]("snapshots", time.Minute, time.Minute)

	h := NewHandler(HandlerConfig{Store: store, Cache: cache, CacheTTL: time.Minute, LongPollTimeout: 5 * time.Second})
	w := serve(h, http.MethodGet, "/_health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Resources)
	assert.Equal(t, "5s", resp.LongPollTimeout)
	require.NotNil(t, resp.Cache)
}

func TestHandler_Metrics(t *testing.T) {
	store := mocks.NewMockStore(t)
	store.EXPECT().Create(mock.Anything, mock.Anything).Return(nil).Once()

	h := NewHandler(HandlerConfig{Store: store, Metrics: metrics.New()})
	serve(h, http.MethodPut, "/alice", "hello")

	w := serve(h, http.MethodGet, "/_metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "statesync_resource_creates_total 1")
	assert.Contains(t, w.Body.String(), `statesync_http_requests_total{code="200",route="PUT /{name}"} 1`)
}

func TestHandler_MetricsAndEventsDisabled(t *testing.T) {
	h := NewHandler(HandlerConfig{Store: mocks.NewMockStore(t)})

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/_metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/_events", "").Code)
}

func TestHandler_SnapshotCache(t *testing.T) {
	rec := resource.NewRecord("alice", []byte("hello"))
	store := mocks.NewMockStore(t)
	store.EXPECT().Get(resource.ResourceID("alice")).Return(rec, nil).Times(3)
	cache := cachemanager.NewInMemoryCacheManager[string, []byte]("snapshots", time.Minute, time.Minute)

	h := NewHandler(HandlerConfig{Store: store, Cache: cache, CacheTTL: time.Minute})

	first := serve(h, http.MethodGet, "/alice/1", "")
	second := serve(h, http.MethodGet, "/alice/1", "")
	require.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, cachemanager.Stats{Hits: 1, Misses: 1, Items: 1}, cache.Stats())

	serve(h, http.MethodPut, "/alice/2", "world")
	assert.Equal(t, 2, cache.Len())
}

func TestHandler_SetLongPollTimeout(t *testing.T) {
	h := NewHandler(HandlerConfig{Store: mocks.NewMockStore(t)})
	assert.Equal(t, DefaultLongPollTimeout, h.LongPollTimeout())

	h.SetLongPollTimeout(time.Second)
	assert.Equal(t, time.Second, h.LongPollTimeout())

	h.SetLongPollTimeout(0)
	assert.Equal(t, DefaultLongPollTimeout, h.LongPollTimeout())
}
