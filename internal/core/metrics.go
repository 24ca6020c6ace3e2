package core

import (
	"context"
	"time"

	"github.com/go-authgate/meshgate/internal/models"
)

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Enrollment
	RecordEnrollmentStarted(method string, hasKey bool)
	RecordTokenVerification(result string)
	RecordSilentEnrollment(created bool)

	// Reconciliation
	RecordReconcile(result string, duration time.Duration)
	RecordSync(kind string, checked, matched int, duration time.Duration)

	// Directory calls
	RecordDirectoryCall(operation string, success bool, duration time.Duration)

	// Connection status monitor
	RecordStatusCheck(connected, externalOnline bool)

	// Gauge Setters (for periodic updates)
	SetDevicesCount(status string, count int)

	// Database Operations
	RecordDatabaseQueryError(operation string)
}

// MetricsStore defines the DB operations needed by CacheWrapper.
type MetricsStore interface {
	CountDevicesByStatus(ctx context.Context, status models.DeviceStatus) (int64, error)
}
