package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/store"
	"github.com/go-authgate/meshgate/internal/util"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type ListDevicesParams struct {
	Status   models.DeviceStatus
	OwnerID  string
	Search   string
	Page     int
	PageSize int
}

type DeviceService struct {
	store    *store.Store
	audit    *AuditService
	notifier *DeviceNotifier
	logger   *zap.Logger
}

func NewDeviceService(
	s *store.Store,
	audit *AuditService,
	notifier *DeviceNotifier,
	logger *zap.Logger,
) *DeviceService {
	return &DeviceService{
		store:    s,
		audit:    audit,
		notifier: notifier,
		logger:   logger.Named("devices"),
	}
}

// CanView reports whether actor may see device. Owners always can; managers
// can within their tenant scope.
func CanView(actor *models.User, device *models.Device) bool {
	if actor == nil {
		return false
	}
	if device.OwnerID == actor.ID {
		return true
	}
	return actor.CanManageDevices() && actor.CanAccessTenant(device.TenantID)
}

// ListDevices scopes the listing by role: plain users see their own devices,
// org admins their tenant, admins and support everything.
func (s *DeviceService) ListDevices(
	ctx context.Context,
	actor *models.User,
	params ListDevicesParams,
) ([]models.Device, store.PaginationResult, error) {
	if actor == nil {
		return nil, store.PaginationResult{}, ErrForbidden
	}

	filter := store.DeviceFilter{Status: params.Status, OwnerID: params.OwnerID}
	switch actor.Role {
	case models.RoleAdmin, models.RoleSupport:
	case models.RoleOrgAdmin:
		filter.TenantID = actor.TenantID
	default:
		filter.OwnerID = actor.ID
	}

	devices, page, err := s.store.ListDevices(ctx, filter,
		store.NewPaginationParams(params.Page, params.PageSize, params.Search))
	if err != nil {
		return nil, store.PaginationResult{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return devices, page, nil
}

// GetDevice returns a device the actor may see. Devices outside the actor's
// scope are reported as not found.
func (s *DeviceService) GetDevice(ctx context.Context, actor *models.User, id string) (*models.Device, error) {
	device, err := s.store.GetDeviceByID(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !CanView(actor, device) {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

func (s *DeviceService) ListEvents(
	ctx context.Context,
	actor *models.User,
	id string,
	limit int,
) ([]models.DeviceEvent, error) {
	if _, err := s.GetDevice(ctx, actor, id); err != nil {
		return nil, err
	}
	events, err := s.store.ListDeviceEvents(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return events, nil
}

// RevokeDevice is terminal. Secrets are cleared with the transition and no
// later reconcile or sync can bring the device back.
func (s *DeviceService) RevokeDevice(
	ctx context.Context,
	actor *models.User,
	id, reason string,
) (*models.Device, error) {
	device, err := s.GetDevice(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageDevices() {
		return nil, fmt.Errorf("%w: revoking devices requires a manager role", ErrForbidden)
	}
	if device.IsRevoked() {
		return device, nil
	}

	updates := map[string]any{
		"status":                models.DeviceStatusRevoked,
		"enrollment_token_hash": nil,
		"external_auth_key":     "",
	}
	event := &models.DeviceEvent{
		EventType: models.DeviceEventRevoked,
		Details:   datatypes.JSONMap{"revoked_by": actor.ID, "reason": reason},
		SourceIP:  util.GetIPFromContext(ctx),
	}
	err = s.store.CompareAndUpdateDevice(ctx, id,
		[]models.DeviceStatus{models.DeviceStatusPending, models.DeviceStatusActive}, updates, event)
	if err != nil && !errors.Is(err, store.ErrDeviceStateChanged) {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:     models.EventDeviceRevoked,
		Severity:      models.SeverityWarning,
		ActorUserID:   actor.ID,
		ActorUsername: actor.Username,
		TenantID:      device.TenantID,
		ResourceType:  models.ResourceDevice,
		ResourceID:    device.ID,
		ResourceName:  device.Name,
		Action:        "Device revoked",
		Details:       models.AuditDetails{"reason": reason, "previous_status": string(device.Status)},
		Success:       true,
	})
	s.logger.Info("device revoked",
		zap.String("device_id", device.ID),
		zap.String("actor_id", actor.ID),
	)
	s.notifier.Publish(DeviceChange{DeviceID: device.ID, OwnerID: device.OwnerID, Status: models.DeviceStatusRevoked})

	return s.store.GetDeviceByID(ctx, id)
}
