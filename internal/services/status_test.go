package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/mocks"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/tailnet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func silentDevice(t *testing.T, env *testEnv, owner *models.User, fp string) string {
	t.Helper()
	res, err := env.enrollment.SilentEnroll(context.Background(), SilentEnrollRequest{
		OwnerID:     owner.ID,
		DeviceName:  "Browser " + fp,
		DeviceType:  models.DeviceTypeDesktop,
		Fingerprint: fp,
	})
	require.NoError(t, err)
	return res.DeviceID
}

func setLastSeen(t *testing.T, env *testEnv, id string, at time.Time) {
	t.Helper()
	require.NoError(t, env.store.TouchDevice(context.Background(), id, at))
}

func TestStatusMonitor_NoDevices(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := createTestUser(t, env.store, "", models.RoleUser)

	status, err := env.monitor.Check(context.Background(), owner.ID, "")
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Empty(t, status.DeviceID)
}

func TestStatusMonitor_PrefersFingerprintMatch(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := createTestUser(t, env.store, "", models.RoleUser)
	now := time.Now()

	older := silentDevice(t, env, owner, "fp-old")
	newer := silentDevice(t, env, owner, "fp-new")
	setLastSeen(t, env, older, now.Add(-time.Hour))
	setLastSeen(t, env, newer, now.Add(-time.Minute))

	status, err := env.monitor.Check(context.Background(), owner.ID, "unknown")
	require.NoError(t, err)
	assert.Equal(t, newer, status.DeviceID, "falls back to the most recently seen device")

	status, err = env.monitor.Check(context.Background(), owner.ID, "fp-old")
	require.NoError(t, err)
	assert.Equal(t, older, status.DeviceID)
}

func TestStatusMonitor_HeartbeatWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := createTestUser(t, env.store, "", models.RoleUser)
	id := silentDevice(t, env, owner, "fp")
	now := time.Now()
	env.monitor.now = func() time.Time { return now }

	setLastSeen(t, env, id, now.Add(-4*time.Minute))
	status, err := env.monitor.Check(context.Background(), owner.ID, "fp")
	require.NoError(t, err)
	assert.True(t, status.HeartbeatFresh)
	assert.True(t, status.Connected)

	setLastSeen(t, env, id, now.Add(-6*time.Minute))
	status, err = env.monitor.Check(context.Background(), owner.ID, "fp")
	require.NoError(t, err)
	assert.False(t, status.HeartbeatFresh)
	assert.False(t, status.Connected)

	// The check itself is a heartbeat.
	device := reload(t, env.store, id)
	require.NotNil(t, device.LastSeenAt)
	assert.WithinDuration(t, now, *device.LastSeenAt, time.Second)
}

func TestStatusMonitor_ExternalOnlineOverridesStaleHeartbeat(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	env := newTestEnv(t, dir)
	ctx := context.Background()

	ticket := pendingWithHint(t, env, "box")
	expectListing(dir, core.NetworkDevice{ID: "n1", Hostname: "box", Addresses: []string{"100.64.0.1"}})
	_, err := env.reconcile.Reconcile(ctx, ticket.DeviceID)
	require.NoError(t, err)
	device := reload(t, env.store, ticket.DeviceID)
	setLastSeen(t, env, device.ID, time.Now().Add(-time.Hour))

	dir.EXPECT().Authenticate(gomock.Any()).Return("access", nil)
	dir.EXPECT().ResolveNetworkName(gomock.Any(), "access").Return("-", true)
	dir.EXPECT().FindDeviceByIdentifier(gomock.Any(), "access", "-", "box").
		Return(&core.NetworkDevice{ID: "n1", Hostname: "box", Online: true}, nil)

	status, err := env.monitor.Check(ctx, device.OwnerID, "")
	require.NoError(t, err)
	assert.True(t, status.ExternalOnline)
	assert.False(t, status.HeartbeatFresh)
	assert.True(t, status.Connected)
}

func TestStatusMonitor_DirectoryFailureDegrades(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	env := newTestEnv(t, dir)
	ctx := context.Background()

	ticket := pendingWithHint(t, env, "box")
	expectListing(dir, core.NetworkDevice{ID: "n1", Hostname: "box"})
	_, err := env.reconcile.Reconcile(ctx, ticket.DeviceID)
	require.NoError(t, err)

	dir.EXPECT().Authenticate(gomock.Any()).Return("", tailnet.ErrUpstreamAuth)

	status, err := env.monitor.Check(ctx, reload(t, env.store, ticket.DeviceID).OwnerID, "")
	require.NoError(t, err)
	assert.False(t, status.ExternalOnline)
	assert.True(t, status.Connected, "fresh heartbeat from activation still counts")
}

func TestStatusMonitor_CoalescesConcurrentChecks(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	env := newTestEnv(t, dir)
	ctx := context.Background()

	ticket := pendingWithHint(t, env, "box")
	expectListing(dir, core.NetworkDevice{ID: "n1", Hostname: "box"})
	_, err := env.reconcile.Reconcile(ctx, ticket.DeviceID)
	require.NoError(t, err)
	owner := reload(t, env.store, ticket.DeviceID).OwnerID

	var lookups atomic.Int32
	release := make(chan struct{})
	dir.EXPECT().Authenticate(gomock.Any()).Return("access", nil).AnyTimes()
	dir.EXPECT().ResolveNetworkName(gomock.Any(), gomock.Any()).Return("-", true).AnyTimes()
	dir.EXPECT().FindDeviceByIdentifier(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string, string) (*core.NetworkDevice, error) {
			lookups.Add(1)
			<-release
			return nil, errors.New("slow upstream")
		}).AnyTimes()

	const callers = 8
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.monitor.Check(ctx, owner, "")
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), lookups.Load())
}

func TestStatusPoller_RunsOnNotification(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := createTestUser(t, env.store, "", models.RoleUser)
	env.monitor.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	statuses := make(chan *ConnectionStatus, 4)
	done := make(chan error, 1)
	poller := env.monitor.NewPoller(env.notifier, owner.ID, "fp")
	go func() {
		done <- poller.Run(ctx, func(s *ConnectionStatus) error {
			statuses <- s
			return nil
		})
	}()

	first := <-statuses
	assert.False(t, first.Connected)

	require.Eventually(t, func() bool { return env.notifier.Subscribers(owner.ID) == 1 },
		time.Second, 10*time.Millisecond)

	// Silent enroll publishes a change, which triggers a fresh check.
	silentDevice(t, env, owner, "fp")

	select {
	case second := <-statuses:
		assert.True(t, second.Connected)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not react to the device change")
	}

	cancel()
	assert.NoError(t, <-done)
	assert.Zero(t, env.notifier.Subscribers(owner.ID))
}

func TestStatusPoller_StopsWhenEmitFails(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := createTestUser(t, env.store, "", models.RoleUser)

	boom := errors.New("client went away")
	err := env.monitor.NewPoller(env.notifier, owner.ID, "").Run(context.Background(),
		func(*ConnectionStatus) error { return boom })
	assert.ErrorIs(t, err, boom)
}
