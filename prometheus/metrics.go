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
	// Login counter
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lab_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Signup counter
	SignupCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lab_signup_total",
			Help: "Total number of user signups",
		},
	)

	// Lab operation counter
	LabOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_operations_total",
			Help: "Total number of lab registry operations",
		},
		[]string{"operation"}, // "onboard", "get", "list", "update", "delete", etc.
	)

	// Document content operation counter
	ContentOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_content_operations_total",
			Help: "Total number of document content operations",
		},
		[]string{"operation"}, // "save", "bulk_save", "find", "delete"
	)

	// Upload counter
	UploadCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lab_file_uploads_total",
			Help: "Total number of files uploaded to object storage",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // "login_failure", "invalid_token", "user_inactive", etc.
	)

	ContentErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_content_errors_total",
			Help: "Total number of document content errors",
		},
		[]string{"type"}, // "provisioning", "storage", "unknown_lab", etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lab_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lab_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// Active labs
	ActiveLabsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lab_active_labs",
			Help: "Number of labs currently marked active",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lab_service_info",
			Help: "Information about the lab service",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(SignupCounter)
	prometheus.MustRegister(LabOperationCounter)
	prometheus.MustRegister(ContentOperationCounter)
	prometheus.MustRegister(UploadCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(ContentErrorCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	prometheus.MustRegister(ActiveLabsGauge)
	prometheus.MustRegister(InfoGauge)

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

			err := next(c)

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

// RecordLabOperation records a lab registry operation
func RecordLabOperation(operation string) {
	LabOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordContentOperation records a document content operation
func RecordContentOperation(operation string) {
	ContentOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordContentError records a document content error by type
func RecordContentError(errorType string) {
	ContentErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// UpdateActiveLabs updates the active labs gauge
func UpdateActiveLabs(count int) {
	ActiveLabsGauge.Set(float64(count))
}
