package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	markingRequestsTotal  *prometheus.CounterVec
	markingLatencySeconds *prometheus.HistogramVec
	markingErrorsTotal    *prometheus.CounterVec
	tokensIssuedTotal     prometheus.Counter
	tokensRedeemedTotal   *prometheus.CounterVec
	reportsSentTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the marking hub.
func RegisterMetrics() {
	registerOnce.Do(func() {
		markingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_requests_total",
			Help: "Total number of marking API requests served.",
		}, []string{"method", "route", "status"})

		markingLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marking_latency_seconds",
			Help:    "Latency distribution for marking API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		markingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_errors_total",
			Help: "Total number of error responses returned by marking endpoints.",
		}, []string{"method", "route", "status"})

		tokensIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marking_tokens_issued_total",
			Help: "Total number of delegated submission tokens issued.",
		})

		tokensRedeemedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_tokens_redeemed_total",
			Help: "Total number of token redemption attempts by outcome.",
		}, []string{"outcome"})

		reportsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marking_reports_sent_total",
			Help: "Total number of performance reports dispatched by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			markingRequestsTotal,
			markingLatencySeconds,
			markingErrorsTotal,
			tokensIssuedTotal,
			tokensRedeemedTotal,
			reportsSentTotal,
		)
	})
}

// MarkingRequests exposes the counter for marking requests.
func MarkingRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return markingRequestsTotal
}

// MarkingLatency exposes the latency histogram for marking requests.
func MarkingLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return markingLatencySeconds
}

// MarkingErrors exposes the counter for marking error responses.
func MarkingErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return markingErrorsTotal
}

// TokensIssued exposes the counter for issued submission tokens.
func TokensIssued() prometheus.Counter {
	RegisterMetrics()
	return tokensIssuedTotal
}

// TokensRedeemed exposes the redemption outcome counter.
func TokensRedeemed() *prometheus.CounterVec {
	RegisterMetrics()
	return tokensRedeemedTotal
}

// ReportsSent exposes the dispatched report counter.
func ReportsSent() *prometheus.CounterVec {
	RegisterMetrics()
	return reportsSentTotal
}

// MetricsHandler exposes the Prometheus scrape endpoint through Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
