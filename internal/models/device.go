package models

import (
	"time"

	"gorm.io/datatypes"
)

// DeviceStatus is the lifecycle state of an enrolled device.
type DeviceStatus string

const (
	DeviceStatusPending DeviceStatus = "pending"
	DeviceStatusActive  DeviceStatus = "active"
	DeviceStatusRevoked DeviceStatus = "revoked"
)

// TrustLevel reflects how strongly the device's identity was established.
type TrustLevel string

const (
	TrustLow    TrustLevel = "low"
	TrustMedium TrustLevel = "medium"
	TrustHigh   TrustLevel = "high"
)

// DeviceType classifies the endpoint.
type DeviceType string

const (
	DeviceTypeLaptop  DeviceType = "laptop"
	DeviceTypeDesktop DeviceType = "desktop"
	DeviceTypeMobile  DeviceType = "mobile"
	DeviceTypeTablet  DeviceType = "tablet"
	DeviceTypeWindows DeviceType = "windows"
	DeviceTypeMacOS   DeviceType = "macos"
)

// IsValid reports whether t is one of the known device types.
func (t DeviceType) IsValid() bool {
	switch t {
	case DeviceTypeLaptop, DeviceTypeDesktop, DeviceTypeMobile,
		DeviceTypeTablet, DeviceTypeWindows, DeviceTypeMacOS:
		return true
	}
	return false
}

// Enrollment methods recorded in Device.Metadata["enrollment_method"].
const (
	EnrollmentMethodToken  = "token"
	EnrollmentMethodAdmin  = "admin"
	EnrollmentMethodSilent = "silent"
)

// Well-known metadata keys.
const (
	MetaEnrollmentMethod = "enrollment_method"
	MetaHostnameHint     = "hostname_hint"
	MetaTokenValidatedAt = "token_validated_at"
	MetaOnline           = "online"
	MetaExternalOS       = "external_os"
	MetaExternalTags     = "external_tags"
	MetaExternalLastSeen = "external_last_seen"
	MetaKeySource        = "key_source"
	MetaCreatedBy        = "created_by"
)

// Device is one physical or logical endpoint owned by a user inside a tenant.
//
// The enrollment token is stored only as a peppered hash. A NULL hash means
// no live token; the unique index allows any number of NULLs.
type Device struct {
	ID         string       `gorm:"primaryKey;type:varchar(36)"         json:"id"`
	OwnerID    string       `gorm:"type:varchar(36);index;not null"     json:"owner_id"`
	TenantID   string       `gorm:"type:varchar(36);index"              json:"tenant_id"`
	Name       string       `gorm:"type:varchar(100);not null"          json:"name"`
	DeviceType DeviceType   `gorm:"type:varchar(20);not null"           json:"device_type"`
	OS         string       `gorm:"type:varchar(50)"                    json:"os,omitempty"`
	Status     DeviceStatus `gorm:"type:varchar(20);index;not null"     json:"status"`
	TrustLevel TrustLevel   `gorm:"type:varchar(20);not null"           json:"trust_level"`

	Fingerprint string `gorm:"type:varchar(128);index" json:"fingerprint,omitempty"`

	EnrollmentTokenHash *string    `gorm:"type:varchar(100);uniqueIndex" json:"-"`
	EnrollmentExpiresAt *time.Time `                                     json:"enrollment_expires_at,omitempty"`
	ExternalAuthKey     string     `gorm:"type:varchar(255)"             json:"-"`

	ExternalDeviceID string `gorm:"type:varchar(64);index" json:"external_device_id,omitempty"`
	ExternalHostname string `gorm:"type:varchar(255)"      json:"external_hostname,omitempty"`
	ExternalIP       string `gorm:"type:varchar(45)"       json:"external_ip,omitempty"`

	LastSeenAt *time.Time        `gorm:"index"     json:"last_seen_at,omitempty"`
	EnrolledAt *time.Time        `                 json:"enrolled_at,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Device) TableName() string {
	return "devices"
}

// IsPending returns true while the device awaits external confirmation.
func (d *Device) IsPending() bool {
	return d.Status == DeviceStatusPending
}

// IsActive returns true once the device has been confirmed.
func (d *Device) IsActive() bool {
	return d.Status == DeviceStatusActive
}

// IsRevoked returns true for administratively revoked devices.
func (d *Device) IsRevoked() bool {
	return d.Status == DeviceStatusRevoked
}

// IsEnrollmentExpired checks the enrollment window against now.
// A device with no expiry is never considered expired.
func (d *Device) IsEnrollmentExpired(now time.Time) bool {
	return d.EnrollmentExpiresAt != nil && now.After(*d.EnrollmentExpiresAt)
}

// HasExternalKey reports whether a pre-authorization key is attached.
func (d *Device) HasExternalKey() bool {
	return d.ExternalAuthKey != ""
}

// MetaString returns a string metadata value, or "" when absent.
func (d *Device) MetaString(key string) string {
	if d.Metadata == nil {
		return ""
	}
	s, _ := d.Metadata[key].(string)
	return s
}
