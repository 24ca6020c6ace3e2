package models

import (
	"time"

	"gorm.io/datatypes"
)

// Device event types. Events are an append-only trail per device.
const (
	DeviceEventEnrollmentInitiated  = "enrollment_initiated"
	DeviceEventPendingDeviceCreated = "pending_device_created"
	DeviceEventTokenValidated       = "token_validated"
	DeviceEventEnrolled             = "enrolled"
	DeviceEventTailscaleConnected   = "tailscale_connected"
	DeviceEventHeartbeat            = "heartbeat"
	DeviceEventSynced               = "device_synced"
	DeviceEventEnrollmentExpired    = "enrollment_expired"
	DeviceEventRevoked              = "device_revoked"
)

// DeviceEvent records one state-changing operation on a device.
// Rows are never updated or deleted.
type DeviceEvent struct {
	ID        string            `gorm:"primaryKey;type:varchar(36)"     json:"id"`
	DeviceID  string            `gorm:"type:varchar(36);index;not null" json:"device_id"`
	EventType string            `gorm:"type:varchar(50);index;not null" json:"event_type"`
	Details   datatypes.JSONMap `gorm:"type:json"                       json:"details,omitempty"`
	SourceIP  string            `gorm:"type:varchar(45)"                json:"source_ip,omitempty"`
	CreatedAt time.Time         `gorm:"index;not null"                  json:"created_at"`
}

// TableName specifies the table name for GORM
func (DeviceEvent) TableName() string {
	return "device_events"
}
