package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/zjrosen/statesync/internal/log"
	"github.com/zjrosen/statesync/internal/tracing"
)

const headerRequestID = "X-Request-Id"

type middleware func(http.Handler) http.Handler

// chain wraps h so the first middleware is the outermost.
func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// recoverer is the single error boundary. A panic is logged and the
// connection is dropped; the process keeps serving.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec != http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
				log.Error(log.CatHTTP, "panic serving request",
					"method", r.Method,
					"url", r.URL.Path,
					"request_id", tracing.RequestIDFromContext(r.Context()),
					"panic", rec,
					"stack", string(debug.Stack()),
				)
			}
			panic(http.ErrAbortHandler)
		}()
		next.ServeHTTP(w, r)
	})
}

// cors allows any origin on every response.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET, PUT")
		next.ServeHTTP(w, r)
	})
}

// requestID echoes the inbound X-Request-Id or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = tracing.NewRequestID()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(tracing.ContextWithRequestID(r.Context(), id)))
	})
}

// accessLog writes one line per request. Aborted requests log status 0.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			log.Info(log.CatHTTP, r.Method+" "+r.URL.RequestURI(),
				"status", rec.status,
				"duration", time.Since(start).Round(time.Microsecond),
				"request_id", tracing.RequestIDFromContext(r.Context()),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}

// instrument wraps one route with a server span and request metrics.
func (h *Handler) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracing.StartServerSpan(h.tracer, r, route)
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			tracing.EndServerSpan(span, rec.status)
			h.metrics.ObserveRequest(route, rec.status, time.Since(start))
		}()
		next(rec, r.WithContext(ctx))
	})
}
