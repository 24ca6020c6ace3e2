package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceType_IsValid(t *testing.T) {
	for _, dt := range []DeviceType{"laptop", "desktop", "mobile", "tablet", "windows", "macos"} {
		assert.True(t, dt.IsValid(), dt)
	}
	assert.False(t, DeviceType("toaster").IsValid())
	assert.False(t, DeviceType("").IsValid())
	assert.False(t, DeviceType("Laptop").IsValid())
}

func TestDevice_IsEnrollmentExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Minute)
	d := &Device{EnrollmentExpiresAt: &expires}

	assert.False(t, d.IsEnrollmentExpired(now))
	assert.False(t, d.IsEnrollmentExpired(expires), "expiry is exclusive: now > expiresAt")
	assert.True(t, d.IsEnrollmentExpired(expires.Add(time.Nanosecond)))

	assert.False(t, (&Device{}).IsEnrollmentExpired(now))
}

func TestUser_Roles(t *testing.T) {
	tests := []struct {
		role   string
		manage bool
	}{
		{RoleAdmin, true},
		{RoleOrgAdmin, true},
		{RoleSupport, true},
		{RoleUser, false},
		{"", false},
	}
	for _, tt := range tests {
		u := &User{Role: tt.role}
		assert.Equal(t, tt.manage, u.CanManageDevices(), tt.role)
	}
}

func TestUser_CanAccessTenant(t *testing.T) {
	orgAdmin := &User{Role: RoleOrgAdmin, TenantID: "t1"}
	assert.True(t, orgAdmin.CanAccessTenant("t1"))
	assert.False(t, orgAdmin.CanAccessTenant("t2"))

	admin := &User{Role: RoleAdmin}
	assert.True(t, admin.CanAccessTenant("t2"))

	noTenant := &User{Role: RoleUser}
	assert.False(t, noTenant.CanAccessTenant(""))
}

func TestStringArray_RoundTrip(t *testing.T) {
	v, err := StringArray{"tag:a", "tag:b"}.Value()
	require.NoError(t, err)

	var got StringArray
	require.NoError(t, got.Scan(v))
	assert.Equal(t, StringArray{"tag:a", "tag:b"}, got)

	require.NoError(t, got.Scan([]byte(`["x"]`)))
	assert.Equal(t, StringArray{"x"}, got)

	require.NoError(t, got.Scan(nil))
	assert.Empty(t, got)

	assert.Error(t, got.Scan(42))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, ok := UserFromContext(ctx)
	assert.False(t, ok)

	ctx = WithUser(ctx, &User{ID: "u1"})
	user, ok := UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)

	assert.Empty(t, ClientIPFromContext(ctx))
	ctx = WithClientIP(ctx, "10.0.0.1")
	assert.Equal(t, "10.0.0.1", ClientIPFromContext(ctx))
}
