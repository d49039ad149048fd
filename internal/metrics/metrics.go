// Package metrics exposes Prometheus instrumentation for the statesync server.
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "statesync"

// Metrics holds the server's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	creates          prometheus.Counter
	updates          prometheus.Counter
	conflicts        prometheus.Counter
	longPollWakeups  *prometheus.CounterVec
	longPollWaiting  prometheus.Gauge
	snapshotCacheHit *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Count of HTTP requests by route and status code.",
			},
			[]string{"route", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route, including long-poll waits.",
				Buckets:   []float64{.005, .025, .1, .5, 1, 5, 15, 30, 60},
			},
			[]string{"route"},
		),
		creates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "creates_total",
			Help:      "Count of resources created.",
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "updates_total",
			Help:      "Count of successful resource updates.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "version_conflicts_total",
			Help:      "Count of updates rejected because the version did not follow the current one.",
		}),
		longPollWakeups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "longpoll",
				Name:      "wakeups_total",
				Help:      "Count of long-poll reads by how they were released.",
			},
			[]string{"reason"},
		),
		longPollWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "longpoll",
			Name:      "waiting",
			Help:      "Number of long-poll reads currently blocked.",
		}),
		snapshotCacheHit: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Snapshot cache lookups by result.",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.creates,
		m.updates,
		m.conflicts,
		m.longPollWakeups,
		m.longPollWaiting,
		m.snapshotCacheHit,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ResourceCreated counts a create.
func (m *Metrics) ResourceCreated() {
	if m == nil {
		return
	}
	m.creates.Inc()
}

// ResourceUpdated counts a successful update.
func (m *Metrics) ResourceUpdated() {
	if m == nil {
		return
	}
	m.updates.Inc()
}

// VersionConflict counts a rejected update.
func (m *Metrics) VersionConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// WaitStarted marks a long-poll read as blocked.
func (m *Metrics) WaitStarted() {
	if m == nil {
		return
	}
	m.longPollWaiting.Inc()
}

// WaitFinished marks a blocked read as released for reason.
func (m *Metrics) WaitFinished(reason string) {
	if m == nil {
		return
	}
	m.longPollWaiting.Dec()
	m.longPollWakeups.WithLabelValues(reason).Inc()
}

// CacheLookup records a snapshot cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.snapshotCacheHit.WithLabelValues(result).Inc()
}

// RegisterFeedDrops exposes a counter of change-feed events dropped on slow
// subscribers, read from dropped at scrape time.
func (m *Metrics) RegisterFeedDrops(dropped func() uint64) {
	if m == nil || dropped == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dropped_total",
			Help:      "Change events dropped because a subscriber was not keeping up.",
		},
		func() float64 { return float64(dropped()) },
	))
}

// RegisterResourceCount exposes the number of resources, read from count at
// scrape time.
func (m *Metrics) RegisterResourceCount(count func() int) {
	if m == nil || count == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resource",
			Name:      "count",
			Help:      "Number of resources in the registry.",
		},
		func() float64 { return float64(count()) },
	))
}
