// Package metrics registers and exposes Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the service's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	jobRuns       *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	creditsMoved  *prometheus.CounterVec
}

// NewCollector creates a Collector backed by its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crafted_http_requests_total",
			Help: "HTTP requests by status code.",
		}, []string{"code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crafted_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crafted_job_runs_total",
			Help: "Background job executions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crafted_webhook_events_total",
			Help: "Inbound webhook deliveries by provider and disposition.",
		}, []string{"provider", "disposition"}),
		creditsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crafted_credits_moved_total",
			Help: "Absolute credits moved through the ledger by entry type.",
		}, []string{"entry_type"}),
	}

	c.registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.jobRuns,
		c.webhookEvents,
		c.creditsMoved,
	)
	return c
}

// RecordRequest records one served HTTP request.
func (c *Collector) RecordRequest(method string, code int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordJob records a background job execution.
func (c *Collector) RecordJob(kind, outcome string) {
	c.jobRuns.WithLabelValues(kind, outcome).Inc()
}

// RecordWebhook records an inbound webhook. disposition is one of
// processed, duplicate, invalid.
func (c *Collector) RecordWebhook(provider, disposition string) {
	c.webhookEvents.WithLabelValues(provider, disposition).Inc()
}

// RecordCredits records credits moved through the ledger.
func (c *Collector) RecordCredits(entryType string, credits int) {
	if credits < 0 {
		credits = -credits
	}
	c.creditsMoved.WithLabelValues(entryType).Add(float64(credits))
}

// Handler returns the /metrics endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
