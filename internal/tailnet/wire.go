package tailnet

import (
	"strings"
	"time"

	"github.com/go-authgate/meshgate/internal/core"
)

// apiDevice is the provider's device JSON. It never leaves this package.
type apiDevice struct {
	ID                 string   `json:"id"`
	NodeID             string   `json:"nodeId"`
	Name               string   `json:"name"`
	Hostname           string   `json:"hostname"`
	Addresses          []string `json:"addresses"`
	OS                 string   `json:"os"`
	Tags               []string `json:"tags"`
	Online             *bool    `json:"online"`
	ConnectedToControl *bool    `json:"connectedToControl"`
	LastSeen           string   `json:"lastSeen"`
}

type deviceListResponse struct {
	Devices []apiDevice `json:"devices"`
}

type whoamiResponse struct {
	Tailnet struct {
		Name string `json:"name"`
	} `json:"tailnet"`
	Domain string `json:"domain"`
}

type keyCapabilities struct {
	Devices struct {
		Create struct {
			Reusable      bool     `json:"reusable"`
			Ephemeral     bool     `json:"ephemeral"`
			Preauthorized bool     `json:"preauthorized"`
			Tags          []string `json:"tags,omitempty"`
		} `json:"create"`
	} `json:"devices"`
}

type createKeyRequest struct {
	Capabilities  keyCapabilities `json:"capabilities"`
	ExpirySeconds int64           `json:"expirySeconds"`
	Description   string          `json:"description,omitempty"`
}

type createKeyResponse struct {
	ID      string    `json:"id"`
	Key     string    `json:"key"`
	Expires time.Time `json:"expires"`
}

// toNetworkDevice validates one provider record. Records without an id
// cannot be linked and are dropped.
func (d apiDevice) toNetworkDevice() (core.NetworkDevice, bool) {
	if strings.TrimSpace(d.ID) == "" {
		return core.NetworkDevice{}, false
	}

	nd := core.NetworkDevice{
		ID:        d.ID,
		NodeID:    d.NodeID,
		Name:      d.Name,
		Hostname:  d.Hostname,
		Addresses: append([]string(nil), d.Addresses...),
		OS:        d.OS,
		Tags:      append([]string(nil), d.Tags...),
		Online:    (d.Online != nil && *d.Online) || (d.ConnectedToControl != nil && *d.ConnectedToControl),
	}
	if nd.Hostname == "" {
		// Short name is the first label of the MagicDNS name.
		nd.Hostname, _, _ = strings.Cut(d.Name, ".")
	}
	if t, err := time.Parse(time.RFC3339, d.LastSeen); err == nil {
		nd.LastSeen = t
	}
	return nd, true
}

func parseDevices(list []apiDevice) []core.NetworkDevice {
	devices := make([]core.NetworkDevice, 0, len(list))
	for _, d := range list {
		if nd, ok := d.toNetworkDevice(); ok {
			devices = append(devices, nd)
		}
	}
	return devices
}

// MatchDevice returns the first device whose hostname equals identifier,
// whose name contains it, or that owns it as an address. Comparison is
// case-insensitive. A blank identifier matches nothing.
func MatchDevice(devices []core.NetworkDevice, identifier string) *core.NetworkDevice {
	id := strings.ToLower(strings.TrimSpace(identifier))
	if id == "" {
		return nil
	}
	for i := range devices {
		if matches(&devices[i], id) {
			return &devices[i]
		}
	}
	return nil
}

// MatchesHostname reports whether hostname names d exactly, either as its
// machine hostname or as the first label of its MagicDNS name. Unlike
// MatchDevice it never matches a substring.
func MatchesHostname(d *core.NetworkDevice, hostname string) bool {
	host := strings.TrimSpace(hostname)
	if d == nil || host == "" {
		return false
	}
	label, _, _ := strings.Cut(d.Name, ".")
	return strings.EqualFold(d.Hostname, host) || strings.EqualFold(label, host)
}

func matches(d *core.NetworkDevice, id string) bool {
	if strings.ToLower(d.Hostname) == id || strings.Contains(strings.ToLower(d.Name), id) {
		return true
	}
	for _, addr := range d.Addresses {
		if strings.ToLower(addr) == id {
			return true
		}
	}
	return false
}
