// Package metrics provides Prometheus metrics collection for the explanation
// toolkit: profile loading, aggregation runs, and chart rendering.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the toolkit.
type Metrics struct {
	AggregationsTotal   prometheus.Counter   // Total number of aggregation runs
	AggregationErrors   prometheus.Counter   // Total number of failed aggregation runs
	AggregationDuration prometheus.Histogram // Duration of aggregation runs in seconds
	ProfilesLoaded      prometheus.Counter   // Total number of profile documents loaded
	RendersTotal        prometheus.Counter   // Total number of charts rendered
	RenderDuration      prometheus.Histogram // Duration of chart rendering in seconds
	LastResultRows      prometheus.Gauge     // Row count of the last aggregated result
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		AggregationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aggregations_total",
			Help: "Total number of aggregation runs",
		}),
		AggregationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "aggregation_errors_total",
			Help: "Total number of failed aggregation runs",
		}),
		AggregationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Duration of aggregation runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ProfilesLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "profiles_loaded_total",
			Help: "Total number of profile documents loaded",
		}),
		RendersTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "renders_total",
			Help: "Total number of charts rendered",
		}),
		RenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "render_duration_seconds",
			Help:    "Duration of chart rendering in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		LastResultRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "last_result_rows",
			Help: "Row count of the last aggregated result",
		}),
	}
}
