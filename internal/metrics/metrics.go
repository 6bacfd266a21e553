// Package metrics exposes Prometheus metrics for the portal API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Registry holds all application metrics on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	// Error classifier
	ClassifiedErrors *prometheus.CounterVec
	LogoutFailures   prometheus.Counter

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates and registers all metrics.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.ClassifiedErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "errors",
		Name:      "classified_total",
		Help:      "Failures answered by the error classifier, by kind and status code",
	}, []string{"kind", "status"})

	r.LogoutFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "errors",
		Name:      "logout_failures_total",
		Help:      "Server-side logouts that failed while answering an expired token",
	})

	r.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	r.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.registry.MustRegister(
		r.ClassifiedErrors,
		r.LogoutFailures,
		r.RequestsTotal,
		r.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// ObserveClassified records one classifier response.
func (r *Registry) ObserveClassified(kind string, status int) {
	if r == nil {
		return
	}
	r.ClassifiedErrors.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

// ObserveLogoutFailure records a failed server-side logout.
func (r *Registry) ObserveLogoutFailure() {
	if r == nil {
		return
	}
	r.LogoutFailures.Inc()
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Middleware counts and times every request. Unmatched routes are labelled "unmatched"
// to keep label cardinality bounded.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		r.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
