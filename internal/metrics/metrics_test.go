package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	m := Init(true)
	require.NotNil(t, m)

	metrics, ok := m.(*Metrics)
	require.True(t, ok, "Init(true) should return *Metrics")
	assert.NotNil(t, metrics.EnrollmentsStartedTotal)
	assert.NotNil(t, metrics.ReconcileTotal)
	assert.NotNil(t, metrics.DirectoryCallsTotal)
	assert.NotNil(t, metrics.HTTPRequestsTotal)

	assert.Same(t, metrics, Init(true), "Init should register metrics only once")
}

func TestInitNoop(t *testing.T) {
	m := Init(false)
	require.NotNil(t, m)

	_, ok := m.(*NoopMetrics)
	assert.True(t, ok, "Init(false) should return *NoopMetrics")
}

func TestRecordEnrollment(t *testing.T) {
	m := Init(true).(*Metrics)

	before := testutil.ToFloat64(m.EnrollmentsStartedTotal.WithLabelValues("token", "true"))
	m.RecordEnrollmentStarted("token", true)
	after := testutil.ToFloat64(m.EnrollmentsStartedTotal.WithLabelValues("token", "true"))
	assert.Equal(t, before+1, after)

	before = testutil.ToFloat64(m.SilentEnrollmentsTotal.WithLabelValues("created"))
	m.RecordSilentEnrollment(true)
	assert.Equal(t, before+1, testutil.ToFloat64(m.SilentEnrollmentsTotal.WithLabelValues("created")))

	m.RecordTokenVerification("success")
}

func TestRecordSync(t *testing.T) {
	m := Init(true).(*Metrics)

	checked := testutil.ToFloat64(m.SyncDevicesCheckedTotal.WithLabelValues("all"))
	matched := testutil.ToFloat64(m.SyncDevicesMatchedTotal.WithLabelValues("all"))

	m.RecordSync("all", 5, 2, 300*time.Millisecond)

	assert.Equal(t, checked+5, testutil.ToFloat64(m.SyncDevicesCheckedTotal.WithLabelValues("all")))
	assert.Equal(t, matched+2, testutil.ToFloat64(m.SyncDevicesMatchedTotal.WithLabelValues("all")))
}

func TestRecordDirectoryCall(t *testing.T) {
	m := Init(true).(*Metrics)

	before := testutil.ToFloat64(m.DirectoryCallsTotal.WithLabelValues("list_devices", resultError))
	m.RecordDirectoryCall("list_devices", false, 20*time.Millisecond)
	assert.Equal(t, before+1,
		testutil.ToFloat64(m.DirectoryCallsTotal.WithLabelValues("list_devices", resultError)))
}

func TestSetDevicesCount(t *testing.T) {
	m := Init(true).(*Metrics)

	m.SetDevicesCount("active", 12)
	assert.Equal(t, float64(12), testutil.ToFloat64(m.DevicesTotal.WithLabelValues("active")))

	m.SetDevicesCount("active", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.DevicesTotal.WithLabelValues("active")))
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoopMetrics()

	// All calls are no-ops and must not panic
	m.RecordEnrollmentStarted("token", false)
	m.RecordTokenVerification("expired")
	m.RecordSilentEnrollment(false)
	m.RecordReconcile("connected", time.Second)
	m.RecordSync("pending", 1, 1, time.Second)
	m.RecordDirectoryCall("authenticate", true, time.Second)
	m.RecordStatusCheck(true, false)
	m.SetDevicesCount("pending", 1)
	m.RecordDatabaseQueryError("count_devices_pending")
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := Init(true).(*Metrics)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(m))
	r.GET("/api/devices/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/devices/:id", "200"),
	)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/devices/abc", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/devices/:id", "200"),
	))
}

func TestHTTPMetricsMiddleware_Noop(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(HTTPMetricsMiddleware(NewNoopMetrics()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "unknown", normalizePath(""))
	assert.Equal(t, "/api/enrollment", normalizePath("/api/enrollment"))
}
