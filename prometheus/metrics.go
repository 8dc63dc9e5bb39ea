package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scouthub_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Registration counters
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scouthub_register_total",
			Help: "Total number of user registrations",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouthub_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouthub_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "missing_token", "invalid_token", "token_expired", etc.
	)

	// Tenant resolution counter by source
	TenantResolutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouthub_tenant_resolutions_total",
			Help: "Total number of tenant resolutions by source",
		},
		[]string{"source"}, // source is "explicit", "claim", "domain" or "none"
	)

	// Spoof attempts are counted separately from ordinary denials so they can
	// be alerted on as security events.
	SpoofAttemptCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scouthub_tenant_spoof_attempts_total",
			Help: "Total number of requests carrying an explicit organization parameter without a matching verified claim",
		},
	)

	// Request rejection counter by reason
	RejectionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouthub_request_rejections_total",
			Help: "Total number of requests rejected before reaching a handler",
		},
		[]string{"reason"},
	)

	// Access decision counter
	AccessDecisionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scouthub_access_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"outcome"}, // "allowed", "role_insufficient", "ownership_check_failed", "no_identity"
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scouthub_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scouthub_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scouthub_info",
			Help: "Information about the scouthub service",
		},
		[]string{"version"},
	)

	// Active organizations
	ActiveOrganizationsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scouthub_active_organizations",
			Help: "Number of currently active organizations",
		},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(TenantResolutionCounter)
	prometheus.MustRegister(SpoofAttemptCounter)
	prometheus.MustRegister(RejectionCounter)
	prometheus.MustRegister(AccessDecisionCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(ActiveOrganizationsGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordTenantResolution records a tenant resolution outcome by source
func RecordTenantResolution(source string) {
	TenantResolutionCounter.With(prometheus.Labels{"source": source}).Inc()
}

// RecordRejection records a rejected request by reason
func RecordRejection(reason string) {
	RejectionCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordAccessDecision records an authorization decision outcome
func RecordAccessDecision(outcome string) {
	AccessDecisionCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// UpdateActiveOrganizations updates the active organizations gauge
func UpdateActiveOrganizations(count int) {
	ActiveOrganizationsGauge.Set(float64(count))
}
