package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	LeadTransitions       *prometheus.CounterVec
	Conversions           *prometheus.CounterVec
	NoShowReconciliations *prometheus.CounterVec
	NotificationsSent     *prometheus.CounterVec
	SideEffectFailures    *prometheus.CounterVec
	StaleWrites           *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		LeadTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_lead_transitions_total",
			Help: "Lead status changes by source and target status",
		}, []string{"from", "to"}),
		Conversions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_conversions_total",
			Help: "Lead to customer conversions by result",
		}, []string{"result"}),
		NoShowReconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_noshow_reconciliations_total",
			Help: "No-show reconciliations by result",
		}, []string{"result"}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_notifications_total",
			Help: "Outbound messages by kind, channel and status",
		}, []string{"kind", "channel", "status"}),
		SideEffectFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_side_effect_failures_total",
			Help: "Best-effort side effects that failed after a committed transition",
		}, []string{"effect"}),
		StaleWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_stale_writes_total",
			Help: "Updates rejected by the version check",
		}, []string{"entity"}),

		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		}, []string{"cache"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		}, []string{"cache"}),
	}
}
