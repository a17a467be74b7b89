package bench

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes live run metrics on a private Prometheus registry.
// Each run gets its own registry so repeated runs in one process never
// collide on registration.
type Exporter struct {
	registry *prometheus.Registry

	requests prometheus.Counter
	failures prometheus.Counter
	latency  prometheus.Histogram
	inflight prometheus.Gauge
}

// NewExporter creates an exporter with all metrics registered.
func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Exporter{
		registry: registry,
		requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recurl",
			Subsystem: "bench",
			Name:      "requests_total",
			Help:      "Requests completed, warmup included.",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "recurl",
			Subsystem: "bench",
			Name:      "failures_total",
			Help:      "Requests that ended in a transport error or timeout.",
		}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "recurl",
			Subsystem: "bench",
			Name:      "request_duration_seconds",
			Help:      "Request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "recurl",
			Subsystem: "bench",
			Name:      "inflight_requests",
			Help:      "Requests currently being processed.",
		}),
	}
}

// Observe records one completed request.
func (e *Exporter) Observe(d time.Duration, err error) {
	e.requests.Inc()
	if err != nil {
		e.failures.Inc()
	}
	e.latency.Observe(d.Seconds())
}

// ObserveTimeout records a request that produced no usable latency.
func (e *Exporter) ObserveTimeout() {
	e.requests.Inc()
	e.failures.Inc()
}

// IncInflight increments the in-flight gauge.
func (e *Exporter) IncInflight() {
	e.inflight.Inc()
}

// DecInflight decrements the in-flight gauge.
func (e *Exporter) DecInflight() {
	e.inflight.Dec()
}

// Handler serves the registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// MetricsServer exposes an Exporter over HTTP for the lifetime of a run.
type MetricsServer struct {
	srv *http.Server
}

// NewMetricsServer wires the exporter onto /metrics at addr.
func NewMetricsServer(addr string, e *Exporter) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	return &MetricsServer{
		srv: &http.Server{Addr: addr, Handler: mux},
	}
}

// Start begins serving. It blocks like http.ListenAndServe and returns
// http.ErrServerClosed after Stop.
func (s *MetricsServer) Start() error {
	return s.srv.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *MetricsServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
