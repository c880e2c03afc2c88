// Package metric exposes Prometheus metrics for render invocations, module
// loads and HTTP requests. Each Metrics owns its own registry so that several
// apps can live in one process, as they do in tests.
package metric

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/elbkind/feature-hub/internal/asyncssr"
	"github.com/elbkind/feature-hub/internal/loader"
	"github.com/elbkind/feature-hub/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "featurehub"

// Metrics holds every collector of one app.
type Metrics struct {
	registry *prometheus.Registry

	renders        *prometheus.CounterVec
	renderDuration prometheus.Histogram
	renderAttempts prometheus.Histogram

	moduleLoads        *prometheus.CounterVec
	moduleLoadDuration prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, in a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "invocations_total",
				Help:      "Render invocations by outcome.",
			},
			[]string{"outcome"},
		),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "Duration of render invocations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		renderAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "attempts",
			Help:      "Render attempts needed per invocation.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13, 21},
		}),
		moduleLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "module",
				Name:      "loads_total",
				Help:      "Module fetches by outcome.",
			},
			[]string{"outcome"},
		),
		moduleLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "load_duration_seconds",
			Help:      "Duration of module fetches in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	m.registry.MustRegister(
		m.renders, m.renderDuration, m.renderAttempts,
		m.moduleLoads, m.moduleLoadDuration,
		m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRender records one render invocation.
func (m *Metrics) ObserveRender(attempts int, took time.Duration, err error) {
	m.renders.WithLabelValues(Outcome(err)).Inc()
	m.renderDuration.Observe(took.Seconds())
	if attempts > 0 {
		m.renderAttempts.Observe(float64(attempts))
	}
}

// ObserveModuleLoad records one module fetch. Its signature matches
// loader.Observer.
func (m *Metrics) ObserveModuleLoad(_ string, took time.Duration, err error) {
	m.moduleLoads.WithLabelValues(Outcome(err)).Inc()
	m.moduleLoadDuration.Observe(took.Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, took time.Duration) {
	statusLabel := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	m.httpDuration.WithLabelValues(method, path, statusLabel).Observe(took.Seconds())
}

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error) string {
	var (
		unsatisfied *registry.UnsatisfiedDependencyError
		circular    *registry.CircularDependencyError
		external    *registry.UnsatisfiedExternalError
		moduleLoad  *loader.ModuleLoadError
		failure     *asyncssr.RenderFailure
		convergence *asyncssr.ConvergenceTimeoutError
		timeout     *asyncssr.RenderTimeoutError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &unsatisfied):
		return "unsatisfied_dependency"
	case errors.As(err, &circular):
		return "circular_dependency"
	case errors.As(err, &external):
		return "unsatisfied_external"
	case errors.As(err, &convergence):
		return "convergence_timeout"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.As(err, &failure):
		return "render_failure"
	case errors.As(err, &moduleLoad):
		return "module_load"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "error"
	}
}
