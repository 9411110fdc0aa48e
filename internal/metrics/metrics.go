// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seo_batch_http_requests_total",
			Help: "Total number of HTTP requests served by the UI server.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seo_batch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served by the UI server.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// ItemsProcessed counts batch items by outcome: succeeded, failed.
	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seo_batch_items_processed_total",
			Help: "Total number of batch items processed.",
		},
		[]string{"status"},
	)

	ItemDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seo_batch_item_duration_seconds",
			Help:    "Duration of a single backend submission.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	BatchesRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seo_batch_batches_running",
			Help: "Number of batches currently running.",
		},
	)

	ProgressEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seo_batch_progress_events_total",
			Help: "Progress events received from the backend, by type.",
		},
		[]string{"type"},
	)

	ProgressChannelFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seo_batch_progress_channel_failures_total",
			Help: "Progress channels that could not be opened.",
		},
	)
)
