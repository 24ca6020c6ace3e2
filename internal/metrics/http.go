package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

// HTTPMetricsMiddleware creates a Gin middleware that records HTTP metrics
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	metrics, ok := m.(*Metrics)
	if !ok {
		// NoopMetrics or an unknown implementation
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		path := normalizePath(c.FullPath()) // Use route pattern, not actual path
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// normalizePath returns the route pattern (e.g., "/api/devices/:id")
// or "unknown" for unmatched routes.
func normalizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

// RecordEnrollmentStarted records an issued enrollment token.
func (m *Metrics) RecordEnrollmentStarted(method string, hasKey bool) {
	m.EnrollmentsStartedTotal.WithLabelValues(method, strconv.FormatBool(hasKey)).Inc()
}

// RecordTokenVerification records an enrollment token verification result
func (m *Metrics) RecordTokenVerification(result string) {
	m.TokenVerificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSilentEnrollment(created bool) {
	result := "seen"
	if created {
		result = "created"
	}
	m.SilentEnrollmentsTotal.WithLabelValues(result).Inc()
}

// RecordReconcile records a single device reconciliation
func (m *Metrics) RecordReconcile(result string, duration time.Duration) {
	m.ReconcileTotal.WithLabelValues(result).Inc()
	m.ReconcileDuration.Observe(duration.Seconds())
}

// RecordSync records a bulk synchronization run
func (m *Metrics) RecordSync(kind string, checked, matched int, duration time.Duration) {
	m.SyncRunsTotal.WithLabelValues(kind).Inc()
	m.SyncDevicesCheckedTotal.WithLabelValues(kind).Add(float64(checked))
	m.SyncDevicesMatchedTotal.WithLabelValues(kind).Add(float64(matched))
	m.SyncDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordDirectoryCall records a network directory API call
func (m *Metrics) RecordDirectoryCall(operation string, success bool, duration time.Duration) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.DirectoryCallsTotal.WithLabelValues(operation, result).Inc()
	m.DirectoryCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordStatusCheck(connected, externalOnline bool) {
	m.StatusChecksTotal.WithLabelValues(
		strconv.FormatBool(connected),
		strconv.FormatBool(externalOnline),
	).Inc()
}

// SetDevicesCount sets the current count of devices in a status (for periodic updates)
func (m *Metrics) SetDevicesCount(status string, count int) {
	m.DevicesTotal.WithLabelValues(status).Set(float64(count))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
