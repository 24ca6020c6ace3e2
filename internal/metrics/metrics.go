package metrics

import (
	"sync"

	"github.com/go-authgate/meshgate/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is an alias for core.Recorder so existing code in this package
// and its callers can use the short name.
type Recorder = core.Recorder

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Enrollment Metrics
	EnrollmentsStartedTotal *prometheus.CounterVec
	TokenVerificationsTotal *prometheus.CounterVec
	SilentEnrollmentsTotal  *prometheus.CounterVec
	ReconcileTotal          *prometheus.CounterVec
	ReconcileDuration       prometheus.Histogram
	SyncRunsTotal           *prometheus.CounterVec
	SyncDevicesCheckedTotal *prometheus.CounterVec
	SyncDevicesMatchedTotal *prometheus.CounterVec
	SyncDuration            *prometheus.HistogramVec
	DirectoryCallsTotal     *prometheus.CounterVec
	DirectoryCallDuration   *prometheus.HistogramVec
	StatusChecksTotal       *prometheus.CounterVec
	DevicesTotal            *prometheus.GaugeVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		EnrollmentsStartedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgate_enrollments_started_total",
				Help: "Total number of enrollment tokens issued",
			},
			[]string{"method", "has_key"}, // method: token, pending
		),
		TokenVerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgate_token_verifications_total",
				Help: "Total number of enrollment token verifications",
			},
			[]string{"result"}, // success, invalid, expired, no_key, error
		),
		SilentEnrollmentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgate_silent_enrollments_total",
				Help: "Total number of silent enrollment calls",
			},
			[]string{"result"}, // created, seen
		),
		ReconcileTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgate_reconcile_total",
				Help: "Total number of single device reconciliations",
			},
			[]string{"result"}, // connected, not_found, already_active, error
		),
		ReconcileDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "meshgate_reconcile_duration_seconds",
				Help:    "Time taken to reconcile a single device",
				Buckets: prometheus.DefBuckets,
			},
		),
		SyncRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgate_sync_runs_total",
				Help: "Total number of bulk synchronization runs",
			},
			[]string{"kind"}, // all, pending
		),
		SyncDevicesCheckedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgate_sync_devices_checked_total",
				Help: "Total number of registry devices examined during bulk sync",
			},
			[]string{"kind"},
		),
		SyncDevicesMatchedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgate_sync_devices_matched_total",
				Help: "Total number of registry devices matched to a network device",
			},
			[]string{"kind"},
		),
		SyncDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meshgate_sync_duration_seconds",
				Help:    "Time taken by a bulk synchronization run",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		DirectoryCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgate_directory_calls_total",
				Help: "Total number of calls to the network directory API",
			},
			[]string{"operation", "result"}, // result: success, error
		),
		DirectoryCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meshgate_directory_call_duration_seconds",
				Help:    "Network directory API call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		StatusChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgate_status_checks_total",
				Help: "Total number of connection status checks",
			},
			[]string{"connected", "external_online"},
		),
		DevicesTotal: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "meshgate_devices",
				Help: "Current number of registry devices by status",
			},
			[]string{"status"}, // pending, active, revoked
		),

		// HTTP Request Metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001, 0.005, 0.010, 0.025, 0.050, 0.100,
					0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),

		// Database Query Metrics
		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors during metric collection",
			},
			[]string{"operation"}, // count_devices_pending, count_devices_active, ...
		),
	}
}
