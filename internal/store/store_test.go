package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/meshgate/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testDeviceOperations(t, "sqlite", nil)
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	testDeviceOperations(t, "postgres", pgContainer)
}

// createFreshStore creates a new store instance for test isolation.
// SQLite gets a new :memory: database, PostgreSQL a uniquely named database.
func createFreshStore(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) *Store {
	t.Helper()

	var dsn string
	switch driver {
	case "sqlite":
		dsn = ":memory:"
	case "postgres":
		dbName := "test_" + uuid.New().String()[:8]
		ctx := context.Background()

		_, _, err := pgContainer.Exec(
			ctx,
			[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", "CREATE DATABASE " + dbName},
		)
		require.NoError(t, err)

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dsn = fmt.Sprintf(
			"host=%s port=%s user=testuser password=testpass dbname=%s sslmode=disable",
			host, port.Port(), dbName,
		)

		t.Cleanup(func() {
			_, _, _ = pgContainer.Exec(
				context.Background(),
				[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", "DROP DATABASE IF EXISTS " + dbName},
			)
		})
	default:
		t.Fatalf("unsupported driver: %s", driver)
	}

	s, err := New(context.Background(), driver, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newPendingDevice(owner, tenant, tokenHash string, expiresAt time.Time) *models.Device {
	return &models.Device{
		OwnerID:             owner,
		TenantID:            tenant,
		Name:                "Laptop",
		DeviceType:          models.DeviceTypeLaptop,
		Status:              models.DeviceStatusPending,
		TrustLevel:          models.TrustLow,
		EnrollmentTokenHash: &tokenHash,
		EnrollmentExpiresAt: &expiresAt,
		ExternalAuthKey:     "tskey-auth-test",
		Metadata:            datatypes.JSONMap{models.MetaHostnameHint: "laptop"},
	}
}

func testDeviceOperations(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) {
	ctx := context.Background()

	t.Run("CreateDeviceWritesEvent", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		d := newPendingDevice("u1", "t1", "hash-1", time.Now().Add(time.Hour))

		err := s.CreateDevice(ctx, d, &models.DeviceEvent{EventType: models.DeviceEventEnrollmentInitiated})
		require.NoError(t, err)
		require.NotEmpty(t, d.ID)

		got, err := s.GetDeviceByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DeviceStatusPending, got.Status)
		assert.Equal(t, "laptop", got.MetaString(models.MetaHostnameHint))

		events, err := s.ListDeviceEvents(ctx, d.ID, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, models.DeviceEventEnrollmentInitiated, events[0].EventType)
	})

	t.Run("TokenHashIsUnique", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		exp := time.Now().Add(time.Hour)
		require.NoError(t, s.CreateDevice(ctx, newPendingDevice("u1", "t1", "dup", exp), nil))
		err := s.CreateDevice(ctx, newPendingDevice("u2", "t1", "dup", exp), nil)
		assert.Error(t, err)
	})

	t.Run("GetPendingDeviceByTokenHash", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		d := newPendingDevice("u1", "t1", "hash-2", time.Now().Add(time.Hour))
		require.NoError(t, s.CreateDevice(ctx, d, nil))

		got, err := s.GetPendingDeviceByTokenHash(ctx, "hash-2")
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)

		_, err = s.GetPendingDeviceByTokenHash(ctx, "missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("CompareAndUpdateDeviceIsSingleShot", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		d := newPendingDevice("u1", "t1", "hash-3", time.Now().Add(time.Hour))
		require.NoError(t, s.CreateDevice(ctx, d, nil))

		activate := map[string]any{
			"status":                models.DeviceStatusActive,
			"enrollment_token_hash": nil,
			"external_auth_key":     "",
			"external_device_id":    "n1",
		}
		pending := []models.DeviceStatus{models.DeviceStatusPending}

		err := s.CompareAndUpdateDevice(ctx, d.ID, pending, activate,
			&models.DeviceEvent{EventType: models.DeviceEventTailscaleConnected})
		require.NoError(t, err)

		err = s.CompareAndUpdateDevice(ctx, d.ID, pending, activate,
			&models.DeviceEvent{EventType: models.DeviceEventTailscaleConnected})
		assert.ErrorIs(t, err, ErrDeviceStateChanged)

		got, err := s.GetDeviceByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DeviceStatusActive, got.Status)
		assert.Nil(t, got.EnrollmentTokenHash)
		assert.Empty(t, got.ExternalAuthKey)

		// The lost race must not leave a second event behind.
		events, err := s.ListDeviceEvents(ctx, d.ID, 10)
		require.NoError(t, err)
		assert.Len(t, events, 1)

		_, err = s.GetPendingDeviceByTokenHash(ctx, "hash-3")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("ListActiveDevicesByOwnerOrdersByLastSeen", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		now := time.Now().UTC().Truncate(time.Second)
		mk := func(name string, lastSeen *time.Time) *models.Device {
			return &models.Device{
				OwnerID: "u1", TenantID: "t1", Name: name,
				DeviceType: models.DeviceTypeLaptop,
				Status:     models.DeviceStatusActive, TrustLevel: models.TrustHigh,
				LastSeenAt: lastSeen,
			}
		}
		older := now.Add(-time.Hour)
		require.NoError(t, s.CreateDevice(ctx, mk("never", nil), nil))
		require.NoError(t, s.CreateDevice(ctx, mk("older", &older), nil))
		require.NoError(t, s.CreateDevice(ctx, mk("newest", &now), nil))

		devices, err := s.ListActiveDevicesByOwner(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, devices, 3)
		assert.Equal(t, "newest", devices[0].Name)
		assert.Equal(t, "older", devices[1].Name)
		assert.Equal(t, "never", devices[2].Name)
	})

	t.Run("ListDevicesFiltersAndPaginates", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		exp := time.Now().Add(time.Hour)
		for i := 0; i < 5; i++ {
			require.NoError(t, s.CreateDevice(ctx,
				newPendingDevice("u1", "t1", fmt.Sprintf("h%d", i), exp), nil))
		}
		require.NoError(t, s.CreateDevice(ctx, newPendingDevice("u2", "t2", "other", exp), nil))

		devices, page, err := s.ListDevices(ctx,
			DeviceFilter{TenantID: "t1"}, NewPaginationParams(1, 2, ""))
		require.NoError(t, err)
		assert.Len(t, devices, 2)
		assert.Equal(t, int64(5), page.Total)
		assert.Equal(t, 3, page.TotalPages)
		assert.True(t, page.HasNext)

		count, err := s.CountDevicesByStatus(ctx, models.DeviceStatusPending)
		require.NoError(t, err)
		assert.Equal(t, int64(6), count)
	})

	t.Run("IsExternalDeviceClaimed", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		d := &models.Device{
			OwnerID: "u1", TenantID: "t1", Name: "a",
			DeviceType: models.DeviceTypeLaptop,
			Status:     models.DeviceStatusActive, TrustLevel: models.TrustHigh,
			ExternalDeviceID: "node-1",
		}
		require.NoError(t, s.CreateDevice(ctx, d, nil))

		claimed, err := s.IsExternalDeviceClaimed(ctx, "node-1", "someone-else")
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = s.IsExternalDeviceClaimed(ctx, "node-1", d.ID)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("SetExternalAuthKeyIfEmpty", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		d := newPendingDevice("u1", "t1", "key-hash", time.Now().Add(time.Hour))
		d.ExternalAuthKey = ""
		require.NoError(t, s.CreateDevice(ctx, d, nil))

		stored, err := s.SetExternalAuthKeyIfEmpty(ctx, d.ID, "tskey-first")
		require.NoError(t, err)
		assert.True(t, stored)

		stored, err = s.SetExternalAuthKeyIfEmpty(ctx, d.ID, "tskey-second")
		require.NoError(t, err)
		assert.False(t, stored, "key is write-once")

		got, err := s.GetDeviceByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "tskey-first", got.ExternalAuthKey)
	})

	t.Run("ListExpiredPendingDevices", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		now := time.Now()
		require.NoError(t, s.CreateDevice(ctx, newPendingDevice("u1", "t1", "old", now.Add(-48*time.Hour)), nil))
		require.NoError(t, s.CreateDevice(ctx, newPendingDevice("u1", "t1", "new", now.Add(time.Hour)), nil))

		devices, err := s.ListExpiredPendingDevices(ctx, now.Add(-24*time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "old", *devices[0].EnrollmentTokenHash)
	})

	t.Run("SeedDefaultsIsIdempotent", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		require.NoError(t, s.SeedDefaults(ctx))
		require.NoError(t, s.SeedDefaults(ctx))

		admin, err := s.GetUserByUsername(ctx, "admin")
		require.NoError(t, err)
		assert.True(t, admin.IsAdmin())

		org, err := s.GetOrganization(ctx, admin.TenantID)
		require.NoError(t, err)
		assert.Equal(t, "default", org.Name)
	})

	t.Run("AuditLogs", func(t *testing.T) {
		s := createFreshStore(t, driver, pgContainer)
		now := time.Now()
		logs := []*models.AuditLog{
			{
				ID: uuid.New().String(), EventType: models.EventDeviceConnected,
				EventTime: now, Severity: models.SeverityInfo, Action: "connected",
				TenantID: "t1", Success: true, CreatedAt: now,
			},
			{
				ID: uuid.New().String(), EventType: models.EventPendingDeviceCreated,
				EventTime: now, Severity: models.SeverityWarning, Action: "created",
				TenantID: "t2", Success: false, CreatedAt: now.Add(-200 * 24 * time.Hour),
			},
		}
		require.NoError(t, s.CreateAuditLogBatch(ctx, logs))

		got, page, err := s.GetAuditLogsPaginated(ctx,
			NewPaginationParams(1, 10, ""), AuditLogFilters{TenantID: "t1"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), page.Total)

		stats, err := s.GetAuditLogStats(ctx, time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.TotalEvents)
		assert.Equal(t, int64(1), stats.SuccessCount)
		assert.Equal(t, int64(1), stats.FailureCount)
		assert.Equal(t, int64(1), stats.EventsByType[models.EventDeviceConnected])

		deleted, err := s.DeleteOldAuditLogs(ctx, now.Add(-90*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}

// TestCompareAndUpdateDevice_ConcurrentWriters races several activations
// against one pending row; exactly one may win.
func TestCompareAndUpdateDevice_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := createFreshStore(t, "sqlite", nil)
	d := newPendingDevice("u1", "t1", "race", time.Now().Add(time.Hour))
	require.NoError(t, s.CreateDevice(ctx, d, nil))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CompareAndUpdateDevice(ctx, d.ID,
				[]models.DeviceStatus{models.DeviceStatusPending},
				map[string]any{"status": models.DeviceStatusActive},
				&models.DeviceEvent{EventType: models.DeviceEventTailscaleConnected})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, ErrDeviceStateChanged), err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestDriverFactory(t *testing.T) {
	tests := []struct {
		name        string
		driver      string
		dsn         string
		expectError bool
	}{
		{name: "SQLite valid", driver: "sqlite", dsn: ":memory:"},
		{name: "Postgres valid", driver: "postgres", dsn: "host=localhost"},
		{name: "Unsupported driver", driver: "mysql", dsn: "user:pass@tcp(localhost:3306)/db", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialector, err := GetDialector(tt.driver, tt.dsn)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, dialector)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, dialector)
		})
	}
}

func TestRegisterDriver(t *testing.T) {
	called := false
	RegisterDriver("custom", func(dsn string) gorm.Dialector {
		called = true
		return nil
	})
	t.Cleanup(func() { delete(driverFactories, "custom") })

	dialector, err := GetDialector("custom", "test-dsn")
	assert.NoError(t, err)
	assert.True(t, called)
	assert.Nil(t, dialector)
	assert.Contains(t, Drivers(), "custom")
}

func TestCalculatePagination(t *testing.T) {
	p := CalculatePagination(0, 1, 10)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)

	p = CalculatePagination(25, 9, 10)
	assert.Equal(t, 3, p.CurrentPage)
	assert.True(t, p.HasPrev)
	assert.False(t, p.HasNext)

	params := NewPaginationParams(0, 1000, "x")
	assert.Equal(t, 1, params.Page)
	assert.Equal(t, maxPageSize, params.PageSize)
}
