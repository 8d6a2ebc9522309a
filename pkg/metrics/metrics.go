// Package metrics records Prometheus request metrics for Conduit
// applications.
//
// A Collector is both a Middleware, which stamps the start time of matched
// requests, and an Interpreter, which records the final response. Requests
// that match no route are counted under the "unmatched" route label.
//
//	m := metrics.New(metrics.WithNamespace("api"))
//	app := conduit.New(
//	    conduit.WithMiddleware(m),
//	    conduit.WithInterpreters(m),
//	    conduit.WithMetricsEndpoint("/metrics", m.Handler()),
//	)
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/conduit/internal"
)

// UnmatchedRoute is the route label of requests that matched no route.
const UnmatchedRoute = "unmatched"

type startKey struct{}

// Collector records request counts, durations and response sizes.
type Collector struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	size      *prometheus.HistogramVec
	namespace string
	buckets   []float64
	runtime   bool
}

// Option configures a Collector.
type Option func(*Collector)

// WithNamespace prefixes every metric name. Defaults to "conduit".
func WithNamespace(ns string) Option {
	return func(m *Collector) {
		m.namespace = ns
	}
}

// WithRegistry registers the metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Collector) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// WithBuckets sets the latency histogram buckets, in seconds.
func WithBuckets(b ...float64) Option {
	return func(m *Collector) {
		if len(b) > 0 {
			m.buckets = b
		}
	}
}

// WithRuntimeMetrics adds the Go runtime and process collectors.
func WithRuntimeMetrics() Option {
	return func(m *Collector) {
		m.runtime = true
	}
}

// New creates a Collector and registers its metrics.
// It panics if the metrics are already registered on the registry.
func New(opts ...Option) *Collector {
	m := &Collector{
		namespace: "conduit",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	labels := []string{"method", "route", "status"}
	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, labels)
	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent answering matched HTTP requests.",
		Buckets:   m.buckets,
	}, labels)
	m.size = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Size of HTTP response bodies.",
		Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
	}, labels)

	m.registry.MustRegister(m.requests, m.duration, m.size)
	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Handle stamps the start time of a matched request.
func (m *Collector) Handle(c internal.Context) {
	c.SetValue(startKey{}, time.Now())
}

// Interpret records the final response of a request.
func (m *Collector) Interpret(c internal.Context) {
	route := c.Route().Pattern
	if route == "" {
		route = UnmatchedRoute
	}
	resp := c.Response()
	labels := prometheus.Labels{
		"method": c.Request().Method,
		"route":  route,
		"status": strconv.Itoa(resp.Status()),
	}

	m.requests.With(labels).Inc()
	m.size.With(labels).Observe(float64(len(resp.Body())))
	if start, ok := c.Value(startKey{}).(time.Time); ok {
		m.duration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Registry returns the registry holding the metrics.
func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
