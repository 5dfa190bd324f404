// Package metrics exports front-desk measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/hotel-frontdesk/internal/occupancy"
)

const namespace = "frontdesk"

// Recorder implements application.Metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	gridBuilds    prometheus.Histogram
	gridCells     prometheus.Histogram
	decisions     *prometheus.CounterVec
	commits       *prometheus.CounterVec
	commitLatency prometheus.Histogram
	commitSize    prometheus.Histogram
	sessions      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		gridBuilds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grid_build_duration_seconds",
			Help:      "Time spent loading records and resolving an occupancy grid.",
			Buckets:   prometheus.DefBuckets,
		}),
		gridCells: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grid_cells",
			Help:      "Room-day cells per built grid.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_decisions_total",
			Help:      "Availability and guest decisions by kind and reason.",
		}, []string{"kind", "reason"}),
		commits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Commit attempts by outcome.",
		}, []string{"outcome"}),
		commitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Time spent re-validating and writing a batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		commitSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_selections",
			Help:      "Selections per commit attempt.",
			Buckets:   prometheus.LinearBuckets(1, 5, 10),
		}),
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Working session lifecycle events.",
		}, []string{"event"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) ObserveGridBuild(rooms, days int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.gridBuilds.Observe(elapsed.Seconds())
	r.gridCells.Observe(float64(rooms * days))
}

func (r *Recorder) ObserveDecision(kind string, reason occupancy.Reason) {
	if r == nil {
		return
	}
	label := string(reason)
	if label == "" {
		label = "AVAILABLE"
	}
	r.decisions.WithLabelValues(kind, label).Inc()
}

func (r *Recorder) ObserveCommit(outcome string, selections int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.commits.WithLabelValues(outcome).Inc()
	r.commitLatency.Observe(elapsed.Seconds())
	r.commitSize.Observe(float64(selections))
}

func (r *Recorder) ObserveSession(event string) {
	if r == nil {
		return
	}
	r.sessions.WithLabelValues(event).Inc()
}

// ObserveHTTPRequest records one served request. route is the matched
// pattern, not the raw path.
func (r *Recorder) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	r.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
