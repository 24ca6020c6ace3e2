package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultFreshnessWindow = 5 * time.Minute
	defaultPollInterval    = 30 * time.Second
)

// ConnectionStatus answers "is this user's device reachable right now".
type ConnectionStatus struct {
	Connected      bool                `json:"connected"`
	DeviceID       string              `json:"device_id,omitempty"`
	DeviceName     string              `json:"device_name,omitempty"`
	Status         models.DeviceStatus `json:"status,omitempty"`
	ExternalOnline bool                `json:"external_online"`
	HeartbeatFresh bool                `json:"heartbeat_fresh"`
	Hostname       string              `json:"hostname,omitempty"`
	IP             string              `json:"ip,omitempty"`
	LastSeenAt     *time.Time          `json:"last_seen_at,omitempty"`
	CheckedAt      time.Time           `json:"checked_at"`
}

// StatusMonitor merges the local heartbeat with the external online flag.
// Every check is also a heartbeat for the device it selects.
type StatusMonitor struct {
	store     *store.Store
	session   *DirectorySession
	metrics   core.Recorder
	logger    *zap.Logger
	freshness time.Duration
	interval  time.Duration
	now       func() time.Time

	group singleflight.Group
}

func NewStatusMonitor(
	s *store.Store,
	session *DirectorySession,
	freshness, interval time.Duration,
	m core.Recorder,
	logger *zap.Logger,
) *StatusMonitor {
	if freshness <= 0 {
		freshness = defaultFreshnessWindow
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &StatusMonitor{
		store:     s,
		session:   session,
		metrics:   m,
		logger:    logger.Named("status"),
		freshness: freshness,
		interval:  interval,
		now:       time.Now,
	}
}

// Check reports the connection status of userID's current device. A check
// already running for the same user and fingerprint absorbs new callers.
func (m *StatusMonitor) Check(ctx context.Context, userID, fingerprint string) (*ConnectionStatus, error) {
	v, err, _ := m.group.Do(userID+"|"+fingerprint, func() (any, error) {
		return m.check(ctx, userID, fingerprint)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ConnectionStatus), nil
}

func (m *StatusMonitor) check(ctx context.Context, userID, fingerprint string) (*ConnectionStatus, error) {
	now := m.now()

	devices, err := m.store.ListActiveDevicesByOwner(ctx, userID)
	if err != nil {
		m.metrics.RecordDatabaseQueryError("list_active_devices")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(devices) == 0 {
		m.metrics.RecordStatusCheck(false, false)
		return &ConnectionStatus{CheckedAt: now}, nil
	}

	device := &devices[0]
	if fingerprint != "" {
		for i := range devices {
			if devices[i].Fingerprint == fingerprint {
				device = &devices[i]
				break
			}
		}
	}

	status := &ConnectionStatus{
		DeviceID:   device.ID,
		DeviceName: device.Name,
		Status:     device.Status,
		Hostname:   device.ExternalHostname,
		IP:         device.ExternalIP,
		LastSeenAt: device.LastSeenAt,
		CheckedAt:  now,
	}
	status.ExternalOnline = m.externalOnline(ctx, device)
	status.HeartbeatFresh = device.IsActive() &&
		device.LastSeenAt != nil &&
		now.Sub(*device.LastSeenAt) <= m.freshness
	status.Connected = status.ExternalOnline || status.HeartbeatFresh

	if err := m.store.TouchDevice(ctx, device.ID, now); err != nil {
		m.logger.Warn("failed to record heartbeat", zap.String("device_id", device.ID), zap.Error(err))
	}

	m.metrics.RecordStatusCheck(status.Connected, status.ExternalOnline)
	return status, nil
}

// externalOnline asks the directory about the device. Any failure, or a
// device with nothing to look it up by, counts as offline.
func (m *StatusMonitor) externalOnline(ctx context.Context, device *models.Device) bool {
	if m.session == nil {
		return false
	}

	identifier := device.ExternalHostname
	if identifier == "" {
		identifier = device.MetaString(models.MetaHostnameHint)
	}
	if identifier == "" {
		identifier = device.ExternalIP
	}
	if identifier == "" {
		return false
	}

	token, network, err := m.session.Open(ctx)
	if err != nil {
		m.logger.Debug("status: directory unavailable", zap.Error(err))
		return false
	}
	found, err := m.session.Directory().FindDeviceByIdentifier(ctx, token, network, identifier)
	if err != nil {
		m.logger.Debug("status: device lookup failed",
			zap.String("device_id", device.ID), zap.Error(err))
		return false
	}
	return found != nil && found.Online
}

// StatusPoller re-checks a user's status on a fixed interval and whenever
// one of their devices changes. Triggers are coalesced into one pending
// slot, so a timer tick and a change notification never run two checks at
// once.
type StatusPoller struct {
	monitor     *StatusMonitor
	notifier    *DeviceNotifier
	interval    time.Duration
	userID      string
	fingerprint string
}

// NewPoller returns a poller for one user session.
func (m *StatusMonitor) NewPoller(notifier *DeviceNotifier, userID, fingerprint string) *StatusPoller {
	return &StatusPoller{
		monitor:     m,
		notifier:    notifier,
		interval:    m.interval,
		userID:      userID,
		fingerprint: fingerprint,
	}
}

// Run checks immediately, then on every trigger, until ctx is done or emit
// fails. Check errors are logged and the poller keeps going; the next tick
// is the retry.
func (p *StatusPoller) Run(ctx context.Context, emit func(*ConnectionStatus) error) error {
	var changes <-chan DeviceChange
	if p.notifier != nil {
		var cancel func()
		changes, cancel = p.notifier.Subscribe(p.userID)
		defer cancel()
	}

	trigger := make(chan struct{}, 1)
	fire := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}
	fire()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fire()
		case <-changes:
			fire()
		case <-trigger:
			status, err := p.monitor.Check(ctx, p.userID, p.fingerprint)
			if err != nil {
				p.monitor.logger.Warn("status poll failed", zap.String("user_id", p.userID), zap.Error(err))
				continue
			}
			if err := emit(status); err != nil {
				return err
			}
		}
	}
}
