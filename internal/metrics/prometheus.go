package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palmistry_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "palmistry_api_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Admission control metrics
	admissionDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palmistry_api_admission_decisions_total",
			Help: "Total number of admission decisions by outcome and limit type",
		},
		[]string{"outcome", "limit_type"},
	)

	admissionDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "palmistry_api_admission_degraded_total",
			Help: "Total number of admission decisions made while the counter store was unavailable",
		},
	)

	securityBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palmistry_api_security_blocks_total",
			Help: "Total number of requests denied by security screening",
		},
		[]string{"reason"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, durationSeconds float64) {
	status := "unknown"
	if statusCode >= 200 && statusCode < 300 {
		status = "2xx"
	} else if statusCode >= 300 && statusCode < 400 {
		status = "3xx"
	} else if statusCode >= 400 && statusCode < 500 {
		status = "4xx"
	} else if statusCode >= 500 {
		status = "5xx"
	}

	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordAdmission records an admission decision outcome for one limit type
func RecordAdmission(outcome, limitType string) {
	admissionDecisionsTotal.WithLabelValues(outcome, limitType).Inc()
}

// RecordDegraded records an admission decision taken without counter data
func RecordDegraded() {
	admissionDegradedTotal.Inc()
}

// RecordSecurityBlock records a request denied by security screening
func RecordSecurityBlock(reason string) {
	securityBlocksTotal.WithLabelValues(reason).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
