package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/metrics"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), "sqlite", ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testConfig() *config.Config {
	return &config.Config{
		EnrollmentTokenTTL:     24 * time.Hour,
		EnrollmentTokenPepper:  "test-pepper",
		PendingDeviceRetention: 7 * 24 * time.Hour,
		TailscaleDefaultTags:   []string{"tag:employee"},
		StatusFreshnessWindow:  5 * time.Minute,
		StatusPollInterval:     30 * time.Second,
	}
}

// testEnv wires every service against one in-memory store.
type testEnv struct {
	store      *store.Store
	cfg        *config.Config
	notifier   *DeviceNotifier
	users      *UserService
	keys       *KeyResolver
	enrollment *EnrollmentService
	reconcile  *ReconcileService
	monitor    *StatusMonitor
	devices    *DeviceService
}

func newTestEnv(t *testing.T, dir core.Directory, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	s := setupTestStore(t)
	logger := zap.NewNop()
	rec := metrics.NewNoopMetrics()
	audit := NewAuditService(s, logger, false, 0)
	notifier := NewDeviceNotifier()
	users := NewUserService(s, nil, 0, logger)

	var session *DirectorySession
	if dir != nil {
		session = NewDirectorySession(dir, nil, 0, logger)
	}
	keys := NewKeyResolver(users, session, cfg.TailscaleAuthKey, cfg.TailscaleDefaultTags, cfg.TailscaleIssueKeys, logger)

	return &testEnv{
		store:      s,
		cfg:        cfg,
		notifier:   notifier,
		users:      users,
		keys:       keys,
		enrollment: NewEnrollmentService(s, cfg, users, keys, audit, notifier, rec, logger),
		reconcile:  NewReconcileService(s, session, audit, notifier, rec, logger),
		monitor:    NewStatusMonitor(s, session, cfg.StatusFreshnessWindow, cfg.StatusPollInterval, rec, logger),
		devices:    NewDeviceService(s, audit, notifier, logger),
	}
}

func createTestOrg(t *testing.T, s *store.Store, authKey string) *models.Organization {
	t.Helper()
	org := &models.Organization{
		ID:             uuid.New().String(),
		Name:           "org-" + uuid.New().String()[:8],
		TailnetAuthKey: authKey,
		TailnetTags:    models.StringArray{"tag:corp"},
		TailnetGroup:   "engineering",
	}
	require.NoError(t, s.CreateOrganization(context.Background(), org))
	return org
}

func createTestUser(t *testing.T, s *store.Store, tenantID, role string) *models.User {
	t.Helper()
	id := uuid.New().String()
	u := &models.User{
		ID:       id,
		Username: "user-" + id[:8],
		Email:    id + "@example.com",
		TenantID: tenantID,
		Role:     role,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func reload(t *testing.T, s *store.Store, id string) *models.Device {
	t.Helper()
	d, err := s.GetDeviceByID(context.Background(), id)
	require.NoError(t, err)
	return d
}

func eventTypes(t *testing.T, s *store.Store, deviceID string) []string {
	t.Helper()
	events, err := s.ListDeviceEvents(context.Background(), deviceID, 100)
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	return types
}
