package core

import (
	"context"
	"time"
)

// NetworkDevice is a node as reported by the external mesh network,
// already parsed out of the provider's wire shape.
type NetworkDevice struct {
	ID        string
	NodeID    string
	Name      string // fully qualified name, e.g. laptop.tailnet.ts.net
	Hostname  string
	Addresses []string
	OS        string
	Tags      []string
	Online    bool
	LastSeen  time.Time
}

// PrimaryIP returns the first address, or "".
func (d *NetworkDevice) PrimaryIP() string {
	if len(d.Addresses) == 0 {
		return ""
	}
	return d.Addresses[0]
}

// PreAuthKey is a key a device can use to join the network without
// interactive login.
type PreAuthKey struct {
	Key           string
	ExpiresAt     time.Time
	Reusable      bool
	Ephemeral     bool
	Preauthorized bool
	Tags          []string
	Provisioned   bool // operator supplied rather than minted through the API
}

// Directory is the external network's device directory. Implementations
// never retry; callers own retry policy and must bound calls with a timeout.
type Directory interface {
	// Authenticate exchanges service credentials for a short-lived token.
	Authenticate(ctx context.Context) (string, error)

	// ResolveNetworkName discovers the network scope for accessToken. It
	// never fails; when discovery does not succeed it returns a degraded
	// sentinel scope and discovered is false.
	ResolveNetworkName(ctx context.Context, accessToken string) (network string, discovered bool)

	// ListDevices returns every device in the network.
	ListDevices(ctx context.Context, accessToken, network string) ([]NetworkDevice, error)

	// FindDeviceByIdentifier matches hostname, name or IP case-insensitively.
	// It returns nil, nil when nothing matches.
	FindDeviceByIdentifier(
		ctx context.Context,
		accessToken, network, identifier string,
	) (*NetworkDevice, error)

	// IssuePreAuthKey returns a provisioned key or mints one.
	IssuePreAuthKey(
		ctx context.Context,
		accessToken, network string,
		tags []string,
		description string,
	) (*PreAuthKey, error)
}
