package models

import (
	"time"
)

// Role names
const (
	RoleAdmin    = "admin"
	RoleOrgAdmin = "org_admin"
	RoleSupport  = "support"
	RoleUser     = "user"
)

// User is the identity profile the enrollment core depends on: who the caller
// is, which tenant they belong to and what they may do.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"        json:"id"`
	Username  string    `gorm:"uniqueIndex;not null"               json:"username"`
	Email     string    `gorm:"uniqueIndex;not null"               json:"email"`
	FullName  string    `                                          json:"full_name,omitempty"`
	TenantID  string    `gorm:"type:varchar(36);index"             json:"tenant_id,omitempty"`
	Role      string    `gorm:"not null;default:'user'"            json:"role"`
	CreatedAt time.Time `                                          json:"created_at"`
	UpdatedAt time.Time `                                          json:"updated_at"`
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanManageDevices reports whether the user may create and revoke devices
// on behalf of other users.
func (u *User) CanManageDevices() bool {
	switch u.Role {
	case RoleAdmin, RoleOrgAdmin, RoleSupport:
		return true
	}
	return false
}

// CanAccessTenant reports whether the user may act inside tenantID.
// Org admins and plain users are confined to their own tenant.
func (u *User) CanAccessTenant(tenantID string) bool {
	if u.Role == RoleAdmin || u.Role == RoleSupport {
		return true
	}
	return u.TenantID != "" && u.TenantID == tenantID
}
