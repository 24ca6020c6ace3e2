package store

import (
	"context"
	"time"

	"github.com/go-authgate/meshgate/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceFilter narrows device listings.
type DeviceFilter struct {
	OwnerID  string
	TenantID string
	Status   models.DeviceStatus
}

// CreateDevice inserts a device and its first event atomically.
func (s *Store) CreateDevice(
	ctx context.Context,
	device *models.Device,
	event *models.DeviceEvent,
) error {
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(device).Error; err != nil {
			return err
		}
		return createEvent(tx, device.ID, event)
	})
}

func (s *Store) GetDeviceByID(ctx context.Context, id string) (*models.Device, error) {
	var device models.Device
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&device).Error; err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

// GetPendingDeviceByTokenHash returns the pending device owning the token.
// Consumed tokens are NULL on the row, so they never match.
func (s *Store) GetPendingDeviceByTokenHash(
	ctx context.Context,
	tokenHash string,
) (*models.Device, error) {
	var device models.Device
	err := s.db.WithContext(ctx).
		Where("enrollment_token_hash = ? AND status = ?", tokenHash, models.DeviceStatusPending).
		First(&device).Error
	if err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

// GetDeviceByOwnerFingerprint returns the oldest device an owner registered
// with the given fingerprint.
func (s *Store) GetDeviceByOwnerFingerprint(
	ctx context.Context,
	ownerID, fingerprint string,
) (*models.Device, error) {
	var device models.Device
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND fingerprint = ?", ownerID, fingerprint).
		Order("created_at ASC").
		First(&device).Error
	if err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (s *Store) ListDevicesByStatus(
	ctx context.Context,
	status models.DeviceStatus,
) ([]models.Device, error) {
	var devices []models.Device
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&devices).Error
	return devices, err
}

// ListActiveDevicesByOwner returns the owner's active devices, most recently
// seen first. Devices never seen sort last on every driver.
func (s *Store) ListActiveDevicesByOwner(
	ctx context.Context,
	ownerID string,
) ([]models.Device, error) {
	var devices []models.Device
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, models.DeviceStatusActive).
		Order("last_seen_at IS NULL, last_seen_at DESC, created_at DESC").
		Find(&devices).Error
	return devices, err
}

// ListDevices returns a filtered, paginated device listing.
func (s *Store) ListDevices(
	ctx context.Context,
	filter DeviceFilter,
	params PaginationParams,
) ([]models.Device, PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.Device{})
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if params.Search != "" {
		like := "%" + params.Search + "%"
		query = query.Where("name LIKE ? OR external_hostname LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var devices []models.Device
	err := query.
		Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&devices).Error
	if err != nil {
		return nil, PaginationResult{}, err
	}

	return devices, CalculatePagination(total, params.Page, params.PageSize), nil
}

// CompareAndUpdateDevice applies updates only while the device is in one of
// the expected statuses, recording event in the same transaction. When no
// row matches it returns ErrDeviceStateChanged and writes nothing.
func (s *Store) CompareAndUpdateDevice(
	ctx context.Context,
	id string,
	expected []models.DeviceStatus,
	updates map[string]any,
	event *models.DeviceEvent,
) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Device{}).
			Where("id = ? AND status IN ?", id, expected).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrDeviceStateChanged
		}
		return createEvent(tx, id, event)
	})
}

// SetExternalAuthKeyIfEmpty attaches a pre-authorization key to a pending
// device that has none. It reports whether this call stored the key; a
// false result means another writer got there first.
func (s *Store) SetExternalAuthKeyIfEmpty(ctx context.Context, id, key string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ? AND status = ? AND (external_auth_key = '' OR external_auth_key IS NULL)",
			id, models.DeviceStatusPending).
		UpdateColumn("external_auth_key", key)
	return result.RowsAffected > 0, result.Error
}

// TouchDevice stamps last_seen_at without touching any other column.
// Revoked devices are left alone.
func (s *Store) TouchDevice(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ? AND status <> ?", id, models.DeviceStatusRevoked).
		UpdateColumn("last_seen_at", at).Error
}

// IsExternalDeviceClaimed reports whether another local device already links
// to the given external device id.
func (s *Store) IsExternalDeviceClaimed(
	ctx context.Context,
	externalID, exceptDeviceID string,
) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("external_device_id = ? AND id <> ? AND status <> ?",
			externalID, exceptDeviceID, models.DeviceStatusRevoked).
		Count(&count).Error
	return count > 0, err
}

// ListExpiredPendingDevices returns pending devices whose enrollment window
// closed before cutoff.
func (s *Store) ListExpiredPendingDevices(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]models.Device, error) {
	var devices []models.Device
	err := s.db.WithContext(ctx).
		Where("status = ? AND enrollment_expires_at < ?", models.DeviceStatusPending, cutoff).
		Order("enrollment_expires_at ASC").
		Limit(limit).
		Find(&devices).Error
	return devices, err
}

// CountDevicesByStatus counts devices in a lifecycle state.
func (s *Store) CountDevicesByStatus(
	ctx context.Context,
	status models.DeviceStatus,
) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

// Device events

// ListDeviceEvents returns the newest events for a device.
func (s *Store) ListDeviceEvents(
	ctx context.Context,
	deviceID string,
	limit int,
) ([]models.DeviceEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.DeviceEvent
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// AppendDeviceEvent records an event outside a state transition.
func (s *Store) AppendDeviceEvent(ctx context.Context, event *models.DeviceEvent) error {
	return createEvent(s.db.WithContext(ctx), event.DeviceID, event)
}

func createEvent(tx *gorm.DB, deviceID string, event *models.DeviceEvent) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.DeviceID = deviceID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return tx.Create(event).Error
}
