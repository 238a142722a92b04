package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP request metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniondata_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniondata_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Business metrics.
var (
	MergeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniondata_merge_operations_total",
			Help: "Parcel/building match and merge operations",
		},
		[]string{"operation", "outcome"},
	)
	RegistrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uniondata_registrations_total",
			Help: "Completed member registrations",
		},
	)
	DedupMergesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uniondata_dedup_merges_total",
			Help: "Duplicate member rows merged during registration",
		},
	)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniondata_notifications_total",
			Help: "Outbound templated notifications",
		},
		[]string{"template", "outcome"},
	)
)
