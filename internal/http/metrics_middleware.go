package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"union-data/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withMetrics records the request counter and duration histogram, labeled
// by the registered route pattern rather than the raw path.
func withMetrics(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern, status).Observe(duration)
	}
}
