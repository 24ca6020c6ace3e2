package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/store"
	"github.com/go-authgate/meshgate/internal/tailnet"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Reconcile outcomes reported to metrics.
const (
	reconcileConnected     = "connected"
	reconcileNotFound      = "not_found"
	reconcileAlreadyActive = "already_active"
	reconcileLostRace      = "lost_race"
	reconcileError         = "error"
)

// Sync kinds reported to metrics.
const (
	SyncKindActive  = "active"
	SyncKindPending = "pending"
)

const expireBatchSize = 200

type ReconcileResult struct {
	Connected bool                `json:"connected"`
	Status    models.DeviceStatus `json:"status"`
	Hostname  string              `json:"hostname,omitempty"`
	IP        string              `json:"ip,omitempty"`
}

type SyncSummary struct {
	Kind     string        `json:"kind"`
	Checked  int           `json:"checked"`
	Matched  int           `json:"matched"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// ReconcileService links local devices to the devices the external network
// reports. Activation is a compare-and-set on status = pending, so a device
// is activated at most once however many reconcilers race.
type ReconcileService struct {
	store    *store.Store
	session  *DirectorySession
	audit    *AuditService
	notifier *DeviceNotifier
	metrics  core.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewReconcileService(
	s *store.Store,
	session *DirectorySession,
	audit *AuditService,
	notifier *DeviceNotifier,
	m core.Recorder,
	logger *zap.Logger,
) *ReconcileService {
	return &ReconcileService{
		store:    s,
		session:  session,
		audit:    audit,
		notifier: notifier,
		metrics:  m,
		logger:   logger.Named("reconcile"),
		now:      time.Now,
	}
}

// Reconcile checks whether a pending device has joined the network and
// activates it if so. Active devices are reported as connected without any
// upstream call. Upstream failures leave the row untouched.
func (s *ReconcileService) Reconcile(ctx context.Context, deviceID string) (*ReconcileResult, error) {
	start := time.Now()
	result, outcome, err := s.reconcile(ctx, deviceID)
	if outcome != "" {
		s.metrics.RecordReconcile(outcome, time.Since(start))
	}
	return result, err
}

func (s *ReconcileService) reconcile(
	ctx context.Context,
	deviceID string,
) (*ReconcileResult, string, error) {
	device, err := s.store.GetDeviceByID(ctx, deviceID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, "", ErrDeviceNotFound
		}
		return nil, reconcileError, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	switch device.Status {
	case models.DeviceStatusActive:
		return connectedResult(device), reconcileAlreadyActive, nil
	case models.DeviceStatusRevoked:
		return nil, "", ErrDeviceRevoked
	}

	devices, err := s.listNetwork(ctx)
	if err != nil {
		s.logger.Warn("reconcile: directory unavailable",
			zap.String("device_id", deviceID), zap.Error(err))
		return nil, reconcileError, err
	}

	match, err := s.matchDevice(ctx, device, devices)
	if err != nil {
		return nil, reconcileError, err
	}
	if match == nil {
		return &ReconcileResult{Connected: false, Status: device.Status}, reconcileNotFound, nil
	}

	return s.activate(ctx, device, match)
}

// activate moves a pending device to active and clears its secrets in the
// same statement. Losing the race to another reconciler is not an error.
func (s *ReconcileService) activate(
	ctx context.Context,
	device *models.Device,
	match *core.NetworkDevice,
) (*ReconcileResult, string, error) {
	now := s.now()

	meta := datatypes.JSONMap{}
	maps.Copy(meta, device.Metadata)
	applyNetworkMetadata(meta, match)

	updates := map[string]any{
		"status":                models.DeviceStatusActive,
		"trust_level":           models.TrustHigh,
		"enrolled_at":           now,
		"last_seen_at":          now,
		"external_device_id":    match.ID,
		"external_hostname":     match.Hostname,
		"external_ip":           match.PrimaryIP(),
		"enrollment_token_hash": nil,
		"enrollment_expires_at": nil,
		"external_auth_key":     "",
		"metadata":              meta,
	}
	event := &models.DeviceEvent{
		EventType: models.DeviceEventTailscaleConnected,
		Details: datatypes.JSONMap{
			"external_device_id": match.ID,
			"hostname":           match.Hostname,
			"ip":                 match.PrimaryIP(),
		},
	}

	err := s.store.CompareAndUpdateDevice(ctx, device.ID,
		[]models.DeviceStatus{models.DeviceStatusPending}, updates, event)
	if errors.Is(err, store.ErrDeviceStateChanged) {
		current, rerr := s.store.GetDeviceByID(ctx, device.ID)
		if rerr != nil {
			return nil, reconcileError, fmt.Errorf("%w: %v", ErrPersistence, rerr)
		}
		if current.IsActive() {
			return connectedResult(current), reconcileLostRace, nil
		}
		return &ReconcileResult{Connected: false, Status: current.Status}, reconcileLostRace, nil
	}
	if err != nil {
		s.metrics.RecordDatabaseQueryError("activate_device")
		return nil, reconcileError, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Info("device joined the network",
		zap.String("device_id", device.ID),
		zap.String("external_device_id", match.ID),
		zap.String("hostname", match.Hostname),
	)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventDeviceConnected,
		Severity:     models.SeverityInfo,
		ActorUserID:  device.OwnerID,
		TenantID:     device.TenantID,
		ResourceType: models.ResourceDevice,
		ResourceID:   device.ID,
		ResourceName: device.Name,
		Action:       "Device connected to the network",
		Details: models.AuditDetails{
			"external_device_id": match.ID,
			"hostname":           match.Hostname,
		},
		Success: true,
	})
	s.notifier.Publish(DeviceChange{DeviceID: device.ID, OwnerID: device.OwnerID, Status: models.DeviceStatusActive})

	return &ReconcileResult{
		Connected: true,
		Status:    models.DeviceStatusActive,
		Hostname:  match.Hostname,
		IP:        match.PrimaryIP(),
	}, reconcileConnected, nil
}

// matchDevice tries, in order, the stored external id, the stored hostname,
// the hostname hint and the normalized device name. Network devices already
// linked to another local device are never matched.
func (s *ReconcileService) matchDevice(
	ctx context.Context,
	device *models.Device,
	devices []core.NetworkDevice,
) (*core.NetworkDevice, error) {
	rules := make([]func(*core.NetworkDevice) bool, 0, 4)

	if id := device.ExternalDeviceID; id != "" {
		rules = append(rules, func(d *core.NetworkDevice) bool {
			return d.ID == id || d.NodeID == id
		})
	}
	if host := device.ExternalHostname; host != "" {
		rules = append(rules, func(d *core.NetworkDevice) bool {
			return strings.EqualFold(d.Hostname, host)
		})
	}
	if hint := device.MetaString(models.MetaHostnameHint); hint != "" {
		rules = append(rules, func(d *core.NetworkDevice) bool {
			return tailnet.MatchesHostname(d, hint)
		})
	}
	if name := NormalizeHostname(device.Name); name != "" {
		rules = append(rules, func(d *core.NetworkDevice) bool {
			return strings.EqualFold(d.Hostname, name)
		})
	}

	for _, rule := range rules {
		for i := range devices {
			candidate := &devices[i]
			if !rule(candidate) {
				continue
			}
			claimed, err := s.store.IsExternalDeviceClaimed(ctx, candidate.ID, device.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			if !claimed {
				return candidate, nil
			}
		}
	}
	return nil, nil //nolint:nilnil // no match is a normal outcome
}

// SyncAll refreshes liveness metadata for every linked active device from a
// single device listing. It never changes status.
func (s *ReconcileService) SyncAll(ctx context.Context) (*SyncSummary, error) {
	start := time.Now()
	summary := &SyncSummary{Kind: SyncKindActive}

	active, err := s.store.ListDevicesByStatus(ctx, models.DeviceStatusActive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	linked := active[:0]
	for _, d := range active {
		if d.ExternalDeviceID != "" || d.ExternalHostname != "" {
			linked = append(linked, d)
		}
	}
	if len(linked) == 0 {
		summary.Duration = time.Since(start)
		s.metrics.RecordSync(summary.Kind, 0, 0, summary.Duration)
		return summary, nil
	}

	devices, err := s.listNetwork(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*core.NetworkDevice, len(devices))
	byHost := make(map[string]*core.NetworkDevice, len(devices))
	for i := range devices {
		byID[devices[i].ID] = &devices[i]
		if h := strings.ToLower(devices[i].Hostname); h != "" {
			byHost[h] = &devices[i]
		}
	}

	for i := range linked {
		device := &linked[i]
		summary.Checked++

		match := byID[device.ExternalDeviceID]
		if match == nil && device.ExternalHostname != "" {
			match = byHost[strings.ToLower(device.ExternalHostname)]
		}
		if match != nil {
			summary.Matched++
		}

		changed, err := s.refresh(ctx, device, match)
		if err != nil {
			summary.Failed++
			s.logger.Warn("sync: failed to refresh device",
				zap.String("device_id", device.ID), zap.Error(err))
			continue
		}
		if changed {
			summary.Updated++
		}
	}

	summary.Duration = time.Since(start)
	s.metrics.RecordSync(summary.Kind, summary.Checked, summary.Matched, summary.Duration)
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventDevicesSynced,
		Severity:     models.SeverityInfo,
		ResourceType: models.ResourceDevice,
		Action:       "Network device sync",
		Details: models.AuditDetails{
			"checked": summary.Checked,
			"matched": summary.Matched,
			"updated": summary.Updated,
			"failed":  summary.Failed,
		},
		Success: summary.Failed == 0,
	})
	s.logger.Info("device sync finished",
		zap.Int("checked", summary.Checked),
		zap.Int("matched", summary.Matched),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// refresh writes liveness data for one active device. A device missing from
// the listing is marked offline. An event is recorded only when the online
// state or address changes.
func (s *ReconcileService) refresh(
	ctx context.Context,
	device *models.Device,
	match *core.NetworkDevice,
) (bool, error) {
	wasOnline, _ := device.Metadata[models.MetaOnline].(bool)

	meta := datatypes.JSONMap{}
	maps.Copy(meta, device.Metadata)
	updates := map[string]any{}

	var event *models.DeviceEvent
	if match == nil {
		if !wasOnline {
			return false, nil
		}
		meta[models.MetaOnline] = false
		event = &models.DeviceEvent{
			EventType: models.DeviceEventSynced,
			Details:   datatypes.JSONMap{"online": false, "reason": "missing from network"},
		}
	} else {
		applyNetworkMetadata(meta, match)
		if match.Online {
			updates["last_seen_at"] = s.now()
		} else if !match.LastSeen.IsZero() &&
			(device.LastSeenAt == nil || match.LastSeen.After(*device.LastSeenAt)) {
			updates["last_seen_at"] = match.LastSeen
		}
		if ip := match.PrimaryIP(); ip != "" {
			updates["external_ip"] = ip
		}
		if match.Hostname != "" {
			updates["external_hostname"] = match.Hostname
		}
		if match.Online != wasOnline || match.PrimaryIP() != device.ExternalIP {
			event = &models.DeviceEvent{
				EventType: models.DeviceEventSynced,
				Details: datatypes.JSONMap{
					"online": match.Online,
					"ip":     match.PrimaryIP(),
				},
			}
		}
	}
	updates["metadata"] = meta

	err := s.store.CompareAndUpdateDevice(ctx, device.ID,
		[]models.DeviceStatus{models.DeviceStatusActive}, updates, event)
	if errors.Is(err, store.ErrDeviceStateChanged) {
		// Revoked mid-sync.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if event != nil {
		s.notifier.Publish(DeviceChange{DeviceID: device.ID, OwnerID: device.OwnerID, Status: device.Status})
	}
	return true, nil
}

// ReconcilePending runs the activation logic for every unexpired pending
// device against one device listing.
func (s *ReconcileService) ReconcilePending(ctx context.Context) (*SyncSummary, error) {
	start := time.Now()
	summary := &SyncSummary{Kind: SyncKindPending}

	pending, err := s.store.ListDevicesByStatus(ctx, models.DeviceStatusPending)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	now := s.now()
	live := pending[:0]
	for _, d := range pending {
		if !d.IsEnrollmentExpired(now) {
			live = append(live, d)
		}
	}
	if len(live) == 0 {
		summary.Duration = time.Since(start)
		s.metrics.RecordSync(summary.Kind, 0, 0, summary.Duration)
		return summary, nil
	}

	devices, err := s.listNetwork(ctx)
	if err != nil {
		return nil, err
	}

	for i := range live {
		device := &live[i]
		summary.Checked++

		match, err := s.matchDevice(ctx, device, devices)
		if err != nil {
			summary.Failed++
			continue
		}
		if match == nil {
			continue
		}
		summary.Matched++

		opStart := time.Now()
		result, outcome, err := s.activate(ctx, device, match)
		s.metrics.RecordReconcile(outcome, time.Since(opStart))
		if err != nil {
			summary.Failed++
			s.logger.Warn("pending sweep: activation failed",
				zap.String("device_id", device.ID), zap.Error(err))
			continue
		}
		if result.Connected && outcome == reconcileConnected {
			summary.Updated++
		}
	}

	summary.Duration = time.Since(start)
	s.metrics.RecordSync(summary.Kind, summary.Checked, summary.Matched, summary.Duration)
	if summary.Updated > 0 {
		s.logger.Info("pending sweep activated devices", zap.Int("activated", summary.Updated))
	}
	return summary, nil
}

// ExpirePending revokes pending devices whose enrollment window closed more
// than retention ago, clearing their secrets. It returns how many it revoked.
func (s *ReconcileService) ExpirePending(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().Add(-retention)
	total := 0

	for {
		batch, err := s.store.ListExpiredPendingDevices(ctx, cutoff, expireBatchSize)
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrPersistence, err)
		}

		for i := range batch {
			device := &batch[i]
			updates := map[string]any{
				"status":                models.DeviceStatusRevoked,
				"enrollment_token_hash": nil,
				"external_auth_key":     "",
			}
			event := &models.DeviceEvent{
				EventType: models.DeviceEventEnrollmentExpired,
				Details:   datatypes.JSONMap{"retention": retention.String()},
			}
			err := s.store.CompareAndUpdateDevice(ctx, device.ID,
				[]models.DeviceStatus{models.DeviceStatusPending}, updates, event)
			if errors.Is(err, store.ErrDeviceStateChanged) {
				continue
			}
			if err != nil {
				return total, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			total++

			s.audit.Log(ctx, AuditLogEntry{
				EventType:    models.EventEnrollmentExpired,
				Severity:     models.SeverityWarning,
				TenantID:     device.TenantID,
				ResourceType: models.ResourceDevice,
				ResourceID:   device.ID,
				ResourceName: device.Name,
				Action:       "Pending enrollment expired",
				Success:      true,
			})
			s.notifier.Publish(DeviceChange{DeviceID: device.ID, OwnerID: device.OwnerID, Status: models.DeviceStatusRevoked})
		}

		if len(batch) < expireBatchSize {
			return total, nil
		}
	}
}

// listNetwork fetches the authoritative device list in one scope.
func (s *ReconcileService) listNetwork(ctx context.Context) ([]core.NetworkDevice, error) {
	if s.session == nil {
		return nil, fmt.Errorf("%w: directory is not configured", tailnet.ErrUpstream)
	}
	token, network, err := s.session.Open(ctx)
	if err != nil {
		return nil, err
	}
	return s.session.Directory().ListDevices(ctx, token, network)
}

func connectedResult(d *models.Device) *ReconcileResult {
	return &ReconcileResult{
		Connected: true,
		Status:    d.Status,
		Hostname:  d.ExternalHostname,
		IP:        d.ExternalIP,
	}
}

func applyNetworkMetadata(meta datatypes.JSONMap, d *core.NetworkDevice) {
	meta[models.MetaOnline] = d.Online
	if d.OS != "" {
		meta[models.MetaExternalOS] = d.OS
	}
	if len(d.Tags) > 0 {
		meta[models.MetaExternalTags] = d.Tags
	}
	if !d.LastSeen.IsZero() {
		meta[models.MetaExternalLastSeen] = d.LastSeen.UTC().Format(time.RFC3339)
	}
}

// NormalizeHostname turns a display name into the hostname a device would
// most likely register with: lowercase, spaces and underscores as hyphens,
// everything else outside [a-z0-9-] dropped.
func NormalizeHostname(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '.':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
