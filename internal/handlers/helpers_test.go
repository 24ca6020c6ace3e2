package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/metrics"
	"github.com/go-authgate/meshgate/internal/middleware"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/services"
	"github.com/go-authgate/meshgate/internal/store"
	"github.com/go-authgate/meshgate/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testServer is the API wired the way bootstrap wires it, on an in-memory
// store and an optional mock directory.
type testServer struct {
	router *gin.Engine
	store  *store.Store
	tokens *token.LocalTokenProvider
}

type serverOption func(*serverOptions)

type serverOptions struct {
	verifyRL *middleware.RateLimiter
}

func withVerifyLimiter(rl *middleware.RateLimiter) serverOption {
	return func(o *serverOptions) { o.verifyRL = rl }
}

func newTestServer(t *testing.T, dir core.Directory, opts ...serverOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	s, err := store.New(context.Background(), "sqlite", ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := &config.Config{
		BaseURL:                "http://meshgate.test",
		JWTSecret:              "test-secret",
		JWTExpiration:          time.Hour,
		EnrollmentTokenTTL:     24 * time.Hour,
		EnrollmentTokenPepper:  "test-pepper",
		PendingDeviceRetention: 7 * 24 * time.Hour,
		TailscaleDefaultTags:   []string{"tag:employee"},
		StatusFreshnessWindow:  5 * time.Minute,
		StatusPollInterval:     time.Hour,
	}

	logger := zap.NewNop()
	rec := metrics.NewNoopMetrics()
	audit := services.NewAuditService(s, logger, true, 100)
	t.Cleanup(func() { _ = audit.Shutdown(context.Background()) })
	notifier := services.NewDeviceNotifier()
	users := services.NewUserService(s, nil, 0, logger)

	var session *services.DirectorySession
	if dir != nil {
		session = services.NewDirectorySession(dir, nil, 0, logger)
	}
	keys := services.NewKeyResolver(users, session, "", cfg.TailscaleDefaultTags, false, logger)
	enrollment := services.NewEnrollmentService(s, cfg, users, keys, audit, notifier, rec, logger)
	reconcile := services.NewReconcileService(s, session, audit, notifier, rec, logger)
	monitor := services.NewStatusMonitor(s, session, cfg.StatusFreshnessWindow, cfg.StatusPollInterval, rec, logger)
	devices := services.NewDeviceService(s, audit, notifier, logger)

	tokens := token.NewLocalTokenProvider(cfg)
	authn := middleware.NewAuthenticator(tokens, users, logger)

	enrollH := NewEnrollmentHandler(enrollment, reconcile, devices, o.verifyRL, nil, logger)
	deviceH := NewDeviceHandler(devices, reconcile, monitor, notifier, logger)
	auditH := NewAuditHandler(audit, logger)
	healthH := NewHealthHandler(s, nil)

	r := gin.New()
	r.Use(middleware.IPMiddleware())
	r.GET("/health", healthH.Check)
	r.POST("/api/enrollment", authn.OptionalAuth(), enrollH.Handle)

	api := r.Group("/api", authn.RequireAuth())
	api.GET("/devices", deviceH.ListDevices)
	api.GET("/devices/status", deviceH.Status)
	api.GET("/devices/status/stream", deviceH.StatusStream)
	api.GET("/devices/:id", deviceH.GetDevice)
	api.GET("/devices/:id/events", deviceH.ListEvents)
	api.POST("/devices/:id/revoke", deviceH.RevokeDevice)
	api.POST("/devices/sync", middleware.RequireRole(models.RoleAdmin, models.RoleSupport), deviceH.Sync)
	api.GET("/admin/audit", middleware.RequireRole(models.RoleAdmin, models.RoleOrgAdmin), auditH.ListAuditLogs)
	api.GET("/admin/audit/export", middleware.RequireRole(models.RoleAdmin, models.RoleOrgAdmin), auditH.ExportAuditLogs)
	api.GET("/admin/audit/stats", middleware.RequireRole(models.RoleAdmin), auditH.GetAuditLogStats)

	return &testServer{router: r, store: s, tokens: tokens}
}

func (ts *testServer) org(t *testing.T, authKey string) *models.Organization {
	t.Helper()
	org := &models.Organization{
		ID:             uuid.New().String(),
		Name:           "org-" + uuid.New().String()[:8],
		TailnetAuthKey: authKey,
		TailnetTags:    models.StringArray{"tag:corp"},
	}
	require.NoError(t, ts.store.CreateOrganization(context.Background(), org))
	return org
}

// user creates a user and returns it with a bearer token.
func (ts *testServer) user(t *testing.T, tenantID, role string) (*models.User, string) {
	t.Helper()
	id := uuid.New().String()
	u := &models.User{ID: id, Username: "u-" + id[:8], Email: id + "@example.com", TenantID: tenantID, Role: role}
	require.NoError(t, ts.store.CreateUser(context.Background(), u))
	res, err := ts.tokens.GenerateToken(context.Background(), u.ID, u.Role)
	require.NoError(t, err)
	return u, res.TokenString
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (ts *testServer) enroll(t *testing.T, bearer string, body map[string]any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return ts.do(t, http.MethodPost, "/api/enrollment", bearer, body)
}
