package metrics

import (
	"database/sql"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "booking_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	reservationOps *prometheus.CounterVec
	loginAttempts  *prometheus.CounterVec

	expirySweeps  prometheus.Counter
	expiredTotal  prometheus.Counter
	reportExports *prometheus.CounterVec
)

// Init registers the service metrics and DB-backed gauges.
func Init(db *sql.DB, logger *slog.Logger) {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, route, and status code",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		reservationOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reservation_operations_total",
				Help: "Total reserve and cancel operations by operation and result",
			},
			[]string{"operation", "result"},
		)
		loginAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "login_attempts_total",
				Help: "Total login attempts by result",
			},
			[]string{"result"},
		)

		expirySweeps = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "expiry_sweeps_total",
				Help: "Total expiry sweep runs",
			},
		)
		expiredTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reservations_expired_total",
				Help: "Total reservations completed by the expiry sweeper",
			},
		)

		reportExports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_exports_total",
				Help: "Total usage report exports by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			reservationOps,
			loginAttempts,
			expirySweeps,
			expiredTotal,
			reportExports,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveRequest records one HTTP request.
func ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// IncReservationOp increments the reserve/cancel counter.
func IncReservationOp(operation, result string) {
	if result == "" {
		result = resultSuccess
	}
	if reservationOps != nil {
		reservationOps.WithLabelValues(operation, result).Inc()
	}
}

// IncLogin increments the login attempt counter.
func IncLogin(result string) {
	if result == "" {
		result = resultSuccess
	}
	if loginAttempts != nil {
		loginAttempts.WithLabelValues(result).Inc()
	}
}

// ObserveExpirySweep records one sweeper run and the reservations it released.
func ObserveExpirySweep(expired int) {
	if expirySweeps != nil {
		expirySweeps.Inc()
	}
	if expiredTotal != nil && expired > 0 {
		expiredTotal.Add(float64(expired))
	}
}

// IncReportExport increments the usage report export counter.
func IncReportExport(result string) {
	if result == "" {
		result = resultSuccess
	}
	if reportExports != nil {
		reportExports.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
