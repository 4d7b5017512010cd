package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	GenerationsTotal    *prometheus.CounterVec
	GenerationDuration  prometheus.Histogram
	LinksCheckedTotal   *prometheus.CounterVec
	LinksBrokenTotal    *prometheus.CounterVec
	BrokenRows          prometheus.Gauge
	JobsInQueue         prometheus.Gauge
	JobsTotal           *prometheus.CounterVec
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer in
// production and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		GenerationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkchecker_generations_total",
				Help: "Total number of data feed generation runs.",
			},
			[]string{"outcome"}, // completed, aborted, persist_failed
		),
		GenerationDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkchecker_generation_duration_seconds",
				Help:    "Duration of data feed generation runs.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		LinksCheckedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkchecker_links_checked_total",
				Help: "Total number of distinct links validated.",
			},
			[]string{"type"},
		),
		LinksBrokenTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkchecker_links_broken_total",
				Help: "Total number of distinct links found broken.",
			},
			[]string{"type"},
		),
		BrokenRows: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkchecker_report_rows",
				Help: "Number of rows in the latest broken links report.",
			},
		),
		JobsInQueue: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkchecker_jobs_in_queue",
				Help: "Current number of generation jobs waiting in the topic.",
			},
		),
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkchecker_jobs_total",
				Help: "Total number of generation jobs by final state.",
			},
			[]string{"state"},
		),
	}
}
