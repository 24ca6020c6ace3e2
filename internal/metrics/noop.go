package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

// Enrollment - noop implementations
func (n *NoopMetrics) RecordEnrollmentStarted(method string, hasKey bool) {}
func (n *NoopMetrics) RecordTokenVerification(result string)              {}
func (n *NoopMetrics) RecordSilentEnrollment(created bool)                {}

// Reconciliation - noop implementations
func (n *NoopMetrics) RecordReconcile(result string, duration time.Duration) {}

func (n *NoopMetrics) RecordSync(
	kind string,
	checked, matched int,
	duration time.Duration,
) {
}

func (n *NoopMetrics) RecordDirectoryCall(
	operation string,
	success bool,
	duration time.Duration,
) {
}

func (n *NoopMetrics) RecordStatusCheck(connected, externalOnline bool) {}

// Gauge Setters - noop implementations
func (n *NoopMetrics) SetDevicesCount(status string, count int) {}

// Database Operations - noop implementations
func (n *NoopMetrics) RecordDatabaseQueryError(operation string) {}
