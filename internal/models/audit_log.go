package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Enrollment events
	EventEnrollmentTokenIssued   EventType = "ENROLLMENT_TOKEN_ISSUED" //nolint:gosec // G101: event name, not a credential
	EventPendingDeviceCreated    EventType = "PENDING_DEVICE_CREATED"
	EventEnrollmentTokenVerified EventType = "ENROLLMENT_TOKEN_VERIFIED" //nolint:gosec // G101: event name, not a credential
	EventDeviceSilentEnrolled    EventType = "DEVICE_SILENT_ENROLLED"
	EventEnrollmentExpired       EventType = "ENROLLMENT_EXPIRED"

	// Reconciliation events
	EventDeviceConnected EventType = "DEVICE_CONNECTED"
	EventDevicesSynced   EventType = "DEVICES_SYNCED"

	// Admin operations
	EventDeviceRevoked EventType = "DEVICE_REVOKED"

	// Security events
	EventRateLimitExceeded EventType = "RATE_LIMIT_EXCEEDED"

	// Audit events
	EventTypeAuditLogView     EventType = "AUDIT_LOG_VIEWED"
	EventTypeAuditLogExported EventType = "AUDIT_LOG_EXPORTED"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityError    EventSeverity = "ERROR"
	SeverityCritical EventSeverity = "CRITICAL"
)

// ResourceType represents the type of resource being operated on
type ResourceType string

const (
	ResourceDevice       ResourceType = "DEVICE"
	ResourceUser         ResourceType = "USER"
	ResourceOrganization ResourceType = "ORGANIZATION"
	ResourceAuditLog     ResourceType = "AUDIT_LOG"
)

// AuditDetails stores additional event-specific information as JSON
type AuditDetails map[string]any

// Value implements the driver.Valuer interface for database storage
func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // nil driver.Value represents SQL NULL, which is valid here
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database retrieval
func (a *AuditDetails) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal AuditDetails value: %v", value)
	}

	result := make(AuditDetails)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}

	*a = result
	return nil
}

// AuditLog represents an audit log entry. It is the administrative trail,
// kept apart from the per-device event history.
type AuditLog struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`

	// Event information
	EventType EventType     `gorm:"type:varchar(50);index;not null" json:"event_type"`
	EventTime time.Time     `gorm:"index;not null"                  json:"event_time"`
	Severity  EventSeverity `gorm:"type:varchar(20);not null"       json:"severity"`

	// Actor information
	ActorUserID   string `gorm:"type:varchar(36);index" json:"actor_user_id"`
	ActorUsername string `gorm:"type:varchar(100)"      json:"actor_username"`
	ActorIP       string `gorm:"type:varchar(45);index" json:"actor_ip"` // Support IPv6
	TenantID      string `gorm:"type:varchar(36);index" json:"tenant_id,omitempty"`

	// Resource information
	ResourceType ResourceType `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceID   string       `gorm:"type:varchar(36);index" json:"resource_id"`
	ResourceName string       `gorm:"type:varchar(255)"      json:"resource_name"`

	// Operation details
	Action       string       `gorm:"type:varchar(255);not null" json:"action"`
	Details      AuditDetails `gorm:"type:json"                  json:"details"`
	Success      bool         `gorm:"index;not null"             json:"success"`
	ErrorMessage string       `gorm:"type:text"                  json:"error_message,omitempty"`

	// Request metadata
	UserAgent     string `gorm:"type:varchar(500)" json:"user_agent,omitempty"`
	RequestPath   string `gorm:"type:varchar(500)" json:"request_path,omitempty"`
	RequestMethod string `gorm:"type:varchar(10)"  json:"request_method,omitempty"`

	// Timestamps (no UpdatedAt - immutable logs)
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}
