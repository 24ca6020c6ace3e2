package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/store"
	"github.com/go-authgate/meshgate/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// enrollmentTokenBytes is the entropy of an enrollment token before encoding.
const enrollmentTokenBytes = 32

// maxDeviceNameLength matches the device_name validation bound, in runes.
const maxDeviceNameLength = 100

// Token verification outcomes reported to metrics.
const (
	verifySuccess  = "success"
	verifyNotFound = "not_found"
	verifyExpired  = "expired"
	verifyNoKey    = "no_key"
	verifyError    = "error"
)

type GenerateTokenRequest struct {
	OwnerID      string            `json:"-"             validate:"required"`
	TenantID     string            `json:"tenant_id"`
	DeviceName   string            `json:"device_name"   validate:"required,min=1,max=100"`
	DeviceType   models.DeviceType `json:"device_type"   validate:"required,devicetype"`
	OS           string            `json:"os"            validate:"omitempty,min=1,max=50"`
	HostnameHint string            `json:"hostname_hint" validate:"omitempty,min=3,max=255"`
}

type CreatePendingRequest struct {
	TargetUserID string            `json:"user_id"       validate:"required"`
	TenantID     string            `json:"tenant_id"`
	DeviceName   string            `json:"device_name"   validate:"omitempty,min=1,max=100"`
	DeviceType   models.DeviceType `json:"device_type"   validate:"omitempty,devicetype"`
	OS           string            `json:"os"            validate:"omitempty,min=1,max=50"`
	AuthKey      string            `json:"auth_key"      validate:"omitempty,max=255"`
	HostnameHint string            `json:"hostname_hint" validate:"omitempty,min=3,max=255"`
}

type VerifyRequest struct {
	Token       string            `json:"token"       validate:"required,max=256"`
	Fingerprint string            `json:"fingerprint" validate:"omitempty,fingerprint"`
	DeviceType  models.DeviceType `json:"device_type" validate:"omitempty,devicetype"`
}

type SilentEnrollRequest struct {
	OwnerID     string            `json:"-"           validate:"required"`
	TenantID    string            `json:"tenant_id"`
	DeviceName  string            `json:"device_name" validate:"required,min=1,max=100"`
	DeviceType  models.DeviceType `json:"device_type" validate:"required,devicetype"`
	OS          string            `json:"os"          validate:"omitempty,min=1,max=50"`
	Fingerprint string            `json:"fingerprint" validate:"required,fingerprint"`
}

// EnrollmentTicket is handed to whoever will enroll the device. Token is the
// only copy of the plaintext token; it is never stored.
type EnrollmentTicket struct {
	DeviceID       string              `json:"device_id"`
	Token          string              `json:"token"`
	ExpiresAt      time.Time           `json:"expires_at"`
	HasExternalKey bool                `json:"has_external_key"`
	Status         models.DeviceStatus `json:"status"`
}

type VerifyResult struct {
	DeviceID        string    `json:"device_id"`
	DeviceName      string    `json:"device_name"`
	TenantName      string    `json:"tenant_name,omitempty"`
	ExternalAuthKey string    `json:"auth_key"`
	ExternalTags    []string  `json:"tags"`
	ExternalGroup   string    `json:"group,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type SilentEnrollResult struct {
	DeviceID string              `json:"device_id"`
	Status   models.DeviceStatus `json:"status"`
	Created  bool                `json:"created"`
}

// EnrollmentService issues and validates enrollment tokens.
//
// A token binds one pending device. Verify hands out the device's
// pre-authorization key without consuming the token; the token is cleared
// only when reconciliation sees the device in the network.
type EnrollmentService struct {
	store    *store.Store
	users    *UserService
	keys     *KeyResolver
	audit    *AuditService
	notifier *DeviceNotifier
	metrics  core.Recorder
	logger   *zap.Logger

	tokenTTL time.Duration
	pepper   string
	now      func() time.Time

	silent singleflight.Group
}

func NewEnrollmentService(
	s *store.Store,
	cfg *config.Config,
	users *UserService,
	keys *KeyResolver,
	audit *AuditService,
	notifier *DeviceNotifier,
	m core.Recorder,
	logger *zap.Logger,
) *EnrollmentService {
	ttl := cfg.EnrollmentTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EnrollmentService{
		store:    s,
		users:    users,
		keys:     keys,
		audit:    audit,
		notifier: notifier,
		metrics:  m,
		logger:   logger.Named("enrollment"),
		tokenTTL: ttl,
		pepper:   cfg.EnrollmentTokenPepper,
		now:      time.Now,
	}
}

// GenerateToken creates a pending device for the caller and returns its
// enrollment token. A missing pre-authorization key is not fatal here; it is
// resolved again at verify time.
func (s *EnrollmentService) GenerateToken(
	ctx context.Context,
	req GenerateTokenRequest,
) (*EnrollmentTicket, error) {
	req.DeviceName = strings.TrimSpace(req.DeviceName)
	req.OS = strings.TrimSpace(req.OS)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	tenantID, err := s.tenantFor(ctx, req.OwnerID, req.TenantID)
	if err != nil {
		return nil, err
	}

	var key *ResolvedKey
	key, err = s.keys.Resolve(ctx, tenantID, "", keyDescription(req.DeviceName))
	if err != nil {
		if !errors.Is(err, ErrNoAuthKey) {
			return nil, err
		}
		s.logger.Debug("no pre-authorization key at token generation",
			zap.String("tenant_id", tenantID), zap.Error(err))
		key = nil
	}

	meta := datatypes.JSONMap{models.MetaEnrollmentMethod: models.EnrollmentMethodToken}
	if req.HostnameHint != "" {
		meta[models.MetaHostnameHint] = strings.TrimSpace(req.HostnameHint)
	}

	device := &models.Device{
		ID:         uuid.New().String(),
		OwnerID:    req.OwnerID,
		TenantID:   tenantID,
		Name:       req.DeviceName,
		DeviceType: req.DeviceType,
		OS:         req.OS,
		Status:     models.DeviceStatusPending,
		TrustLevel: models.TrustLow,
		Metadata:   meta,
	}
	if key != nil {
		device.ExternalAuthKey = key.Key
		meta[models.MetaKeySource] = key.Source
	}

	ticket, err := s.createPending(ctx, device, models.DeviceEventEnrollmentInitiated, nil)
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventEnrollmentTokenIssued,
		Severity:     models.SeverityInfo,
		ActorUserID:  req.OwnerID,
		TenantID:     tenantID,
		ResourceType: models.ResourceDevice,
		ResourceID:   device.ID,
		ResourceName: device.Name,
		Action:       "Enrollment token issued",
		Details: models.AuditDetails{
			"device_type":      string(device.DeviceType),
			"has_external_key": ticket.HasExternalKey,
		},
		Success: true,
	})
	s.metrics.RecordEnrollmentStarted(models.EnrollmentMethodToken, ticket.HasExternalKey)
	return ticket, nil
}

// CreatePendingForUser is the administrator-initiated variant. Unlike
// GenerateToken it refuses to create a device without a key.
func (s *EnrollmentService) CreatePendingForUser(
	ctx context.Context,
	actor *models.User,
	req CreatePendingRequest,
) (*EnrollmentTicket, error) {
	if actor == nil || !actor.CanManageDevices() {
		return nil, fmt.Errorf("%w: creating devices for other users requires a manager role", ErrForbidden)
	}

	req.DeviceName = strings.TrimSpace(req.DeviceName)
	req.OS = strings.TrimSpace(req.OS)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	target, err := s.users.GetUserByID(ctx, req.TargetUserID)
	if err != nil {
		return nil, err
	}
	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = target.TenantID
	}
	if !actor.CanAccessTenant(tenantID) || !actor.CanAccessTenant(target.TenantID) {
		return nil, fmt.Errorf("%w: organization is outside your scope", ErrForbidden)
	}

	if req.DeviceName == "" {
		req.DeviceName = defaultDeviceName(target)
	}
	if req.DeviceType == "" {
		req.DeviceType = models.DeviceTypeLaptop
	}

	key, err := s.keys.Resolve(ctx, tenantID, req.AuthKey, keyDescription(req.DeviceName))
	if err != nil {
		return nil, err
	}

	meta := datatypes.JSONMap{
		models.MetaEnrollmentMethod: models.EnrollmentMethodAdmin,
		models.MetaKeySource:        key.Source,
		models.MetaCreatedBy:        actor.ID,
	}
	if req.HostnameHint != "" {
		meta[models.MetaHostnameHint] = strings.TrimSpace(req.HostnameHint)
	}

	device := &models.Device{
		ID:              uuid.New().String(),
		OwnerID:         target.ID,
		TenantID:        tenantID,
		Name:            req.DeviceName,
		DeviceType:      req.DeviceType,
		OS:              req.OS,
		Status:          models.DeviceStatusPending,
		TrustLevel:      models.TrustLow,
		ExternalAuthKey: key.Key,
		Metadata:        meta,
	}

	ticket, err := s.createPending(ctx, device, models.DeviceEventPendingDeviceCreated,
		datatypes.JSONMap{"created_by": actor.ID})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventPendingDeviceCreated,
		Severity:      models.SeverityInfo,
		ActorUserID:   actor.ID,
		ActorUsername: actor.Username,
		TenantID:      tenantID,
		ResourceType:  models.ResourceDevice,
		ResourceID:    device.ID,
		ResourceName:  device.Name,
		Action:        "Pending device created for " + target.Username,
		Details: models.AuditDetails{
			"target_user_id": target.ID,
			"key_source":     key.Source,
		},
		Success: true,
	})
	s.metrics.RecordEnrollmentStarted(models.EnrollmentMethodAdmin, true)
	return ticket, nil
}

// createPending mints the token and inserts the device with its first event.
func (s *EnrollmentService) createPending(
	ctx context.Context,
	device *models.Device,
	eventType string,
	details datatypes.JSONMap,
) (*EnrollmentTicket, error) {
	token, err := util.RandomToken(enrollmentTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: generate token: %v", ErrPersistence, err)
	}
	hash := util.HashToken(token, s.pepper)
	expiresAt := s.now().Add(s.tokenTTL)
	device.EnrollmentTokenHash = &hash
	device.EnrollmentExpiresAt = &expiresAt

	if details == nil {
		details = datatypes.JSONMap{}
	}
	details["device_name"] = device.Name
	details["has_external_key"] = device.HasExternalKey()

	event := &models.DeviceEvent{
		EventType: eventType,
		Details:   details,
		SourceIP:  util.GetIPFromContext(ctx),
	}
	if err := s.store.CreateDevice(ctx, device, event); err != nil {
		s.metrics.RecordDatabaseQueryError("create_device")
		s.logger.Error("failed to create pending device",
			zap.String("owner_id", device.OwnerID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.notifier.Publish(DeviceChange{DeviceID: device.ID, OwnerID: device.OwnerID, Status: device.Status})
	return &EnrollmentTicket{
		DeviceID:       device.ID,
		Token:          token,
		ExpiresAt:      expiresAt,
		HasExternalKey: device.HasExternalKey(),
		Status:         device.Status,
	}, nil
}

// Verify validates a token and returns the key the device should join with.
// It is safe to call repeatedly: the token stays valid until reconciliation
// activates the device or the enrollment window closes.
func (s *EnrollmentService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	req.Token = strings.TrimSpace(req.Token)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	result, err := s.verify(ctx, req)
	s.metrics.RecordTokenVerification(verifyOutcome(err))
	return result, err
}

func (s *EnrollmentService) verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	hash := util.HashToken(req.Token, s.pepper)
	device, err := s.store.GetPendingDeviceByTokenHash(ctx, hash)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrTokenNotFound
		}
		s.metrics.RecordDatabaseQueryError("get_pending_device")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if device.IsEnrollmentExpired(s.now()) {
		return nil, ErrTokenExpired
	}

	profile, _, err := s.keys.Profile(ctx, device.TenantID)
	if err != nil {
		return nil, err
	}

	keySource := device.MetaString(models.MetaKeySource)
	if !device.HasExternalKey() {
		key, err := s.keys.Resolve(ctx, device.TenantID, "", keyDescription(device.Name))
		if err != nil {
			return nil, err
		}
		stored, err := s.store.SetExternalAuthKeyIfEmpty(ctx, device.ID, key.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if stored {
			keySource = key.Source
		}
		// Re-read so concurrent verifiers agree on the stored key.
		if device, err = s.store.GetDeviceByID(ctx, device.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !device.IsPending() {
			return nil, ErrTokenNotFound
		}
	}

	meta := datatypes.JSONMap{}
	maps.Copy(meta, device.Metadata)
	meta[models.MetaTokenValidatedAt] = s.now().UTC().Format(time.RFC3339)
	if keySource != "" {
		meta[models.MetaKeySource] = keySource
	}

	updates := map[string]any{"metadata": meta}
	if req.Fingerprint != "" {
		updates["fingerprint"] = req.Fingerprint
	}
	if req.DeviceType != "" {
		updates["device_type"] = req.DeviceType
	}

	event := &models.DeviceEvent{
		EventType: models.DeviceEventTokenValidated,
		Details: datatypes.JSONMap{
			"fingerprint_supplied": req.Fingerprint != "",
			"device_type":          string(req.DeviceType),
		},
		SourceIP: util.GetIPFromContext(ctx),
	}
	err = s.store.CompareAndUpdateDevice(ctx, device.ID,
		[]models.DeviceStatus{models.DeviceStatusPending}, updates, event)
	if err != nil {
		if errors.Is(err, store.ErrDeviceStateChanged) {
			// Reconciled between read and write; the token is spent.
			return nil, ErrTokenNotFound
		}
		s.metrics.RecordDatabaseQueryError("verify_device")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventEnrollmentTokenVerified,
		Severity:     models.SeverityInfo,
		ActorUserID:  device.OwnerID,
		TenantID:     device.TenantID,
		ResourceType: models.ResourceDevice,
		ResourceID:   device.ID,
		ResourceName: device.Name,
		Action:       "Enrollment token verified",
		Details:      models.AuditDetails{"key_source": keySource},
		Success:      true,
	})

	var expiresAt time.Time
	if device.EnrollmentExpiresAt != nil {
		expiresAt = *device.EnrollmentExpiresAt
	}
	return &VerifyResult{
		DeviceID:        device.ID,
		DeviceName:      device.Name,
		TenantName:      profile.TenantName,
		ExternalAuthKey: device.ExternalAuthKey,
		ExternalTags:    profile.Tags,
		ExternalGroup:   profile.Group,
		ExpiresAt:       expiresAt,
	}, nil
}

// SilentEnroll registers the caller's current device without the token
// handshake. Nothing confirms the device is in the network, so it is trusted
// less than a reconciled device (medium rather than high).
func (s *EnrollmentService) SilentEnroll(
	ctx context.Context,
	req SilentEnrollRequest,
) (*SilentEnrollResult, error) {
	req.DeviceName = strings.TrimSpace(req.DeviceName)
	req.OS = strings.TrimSpace(req.OS)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// Collapse a double-submit from the same browser onto one insert.
	v, err, _ := s.silent.Do(req.OwnerID+"|"+req.Fingerprint, func() (any, error) {
		return s.silentEnroll(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SilentEnrollResult), nil
}

func (s *EnrollmentService) silentEnroll(
	ctx context.Context,
	req SilentEnrollRequest,
) (*SilentEnrollResult, error) {
	now := s.now()

	existing, err := s.store.GetDeviceByOwnerFingerprint(ctx, req.OwnerID, req.Fingerprint)
	switch {
	case err == nil:
		if !existing.IsRevoked() {
			if err := s.store.TouchDevice(ctx, existing.ID, now); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			heartbeat := &models.DeviceEvent{
				DeviceID:  existing.ID,
				EventType: models.DeviceEventHeartbeat,
				Details:   datatypes.JSONMap{"method": models.EnrollmentMethodSilent},
				SourceIP:  util.GetIPFromContext(ctx),
				CreatedAt: now,
			}
			if err := s.store.AppendDeviceEvent(ctx, heartbeat); err != nil {
				s.logger.Warn("failed to record heartbeat",
					zap.String("device_id", existing.ID),
					zap.Error(err),
				)
			}
		}
		s.metrics.RecordSilentEnrollment(false)
		return &SilentEnrollResult{DeviceID: existing.ID, Status: existing.Status}, nil
	case !store.IsNotFound(err):
		s.metrics.RecordDatabaseQueryError("get_device_by_fingerprint")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	tenantID, err := s.tenantFor(ctx, req.OwnerID, req.TenantID)
	if err != nil {
		return nil, err
	}

	device := &models.Device{
		ID:          uuid.New().String(),
		OwnerID:     req.OwnerID,
		TenantID:    tenantID,
		Name:        req.DeviceName,
		DeviceType:  req.DeviceType,
		OS:          req.OS,
		Status:      models.DeviceStatusActive,
		TrustLevel:  models.TrustMedium,
		Fingerprint: req.Fingerprint,
		LastSeenAt:  &now,
		EnrolledAt:  &now,
		Metadata:    datatypes.JSONMap{models.MetaEnrollmentMethod: models.EnrollmentMethodSilent},
	}
	event := &models.DeviceEvent{
		EventType: models.DeviceEventEnrolled,
		Details: datatypes.JSONMap{
			"method":      models.EnrollmentMethodSilent,
			"trust_level": string(models.TrustMedium),
		},
		SourceIP: util.GetIPFromContext(ctx),
	}
	if err := s.store.CreateDevice(ctx, device, event); err != nil {
		s.metrics.RecordDatabaseQueryError("create_device")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventDeviceSilentEnrolled,
		Severity:     models.SeverityInfo,
		ActorUserID:  req.OwnerID,
		TenantID:     tenantID,
		ResourceType: models.ResourceDevice,
		ResourceID:   device.ID,
		ResourceName: device.Name,
		Action:       "Device enrolled without token",
		Details:      models.AuditDetails{"trust_level": string(models.TrustMedium)},
		Success:      true,
	})
	s.metrics.RecordSilentEnrollment(true)
	s.notifier.Publish(DeviceChange{DeviceID: device.ID, OwnerID: device.OwnerID, Status: device.Status})

	return &SilentEnrollResult{DeviceID: device.ID, Status: device.Status, Created: true}, nil
}

// tenantFor returns tenantID, or the owner's tenant when it is empty.
func (s *EnrollmentService) tenantFor(ctx context.Context, ownerID, tenantID string) (string, error) {
	if tenantID != "" {
		return tenantID, nil
	}
	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return "", err
	}
	return owner.TenantID, nil
}

func verifyOutcome(err error) string {
	switch {
	case err == nil:
		return verifySuccess
	case errors.Is(err, ErrTokenNotFound):
		return verifyNotFound
	case errors.Is(err, ErrTokenExpired):
		return verifyExpired
	case errors.Is(err, ErrNoAuthKey):
		return verifyNoKey
	default:
		return verifyError
	}
}

func keyDescription(deviceName string) string {
	return "meshgate: " + deviceName
}

func defaultDeviceName(u *models.User) string {
	name := u.FullName
	if name == "" {
		name = u.Username
	}
	name += " device"
	if runes := []rune(name); len(runes) > maxDeviceNameLength {
		name = string(runes[:maxDeviceNameLength])
	}
	return name
}
