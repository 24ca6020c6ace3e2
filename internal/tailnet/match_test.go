package tailnet

import (
	"strings"
	"testing"

	"github.com/go-authgate/meshgate/internal/core"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMatchDevice_FirstMatchWins(t *testing.T) {
	devices := []core.NetworkDevice{
		{ID: "1", Name: "laptop-old.corp.ts.net", Hostname: "laptop-old"},
		{ID: "2", Name: "laptop.corp.ts.net", Hostname: "laptop"},
	}

	// "laptop" is a substring of the first name, so the scan stops there.
	d := MatchDevice(devices, "laptop")
	if assert.NotNil(t, d) {
		assert.Equal(t, "1", d.ID)
	}
}

func TestMatchDevice_Blank(t *testing.T) {
	devices := []core.NetworkDevice{{ID: "1", Name: "a", Hostname: "a"}}
	assert.Nil(t, MatchDevice(devices, ""))
	assert.Nil(t, MatchDevice(devices, "   "))
	assert.Nil(t, MatchDevice(nil, "a"))
}

func genDevice() *rapid.Generator[core.NetworkDevice] {
	label := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9-]{0,15}`)
	return rapid.Custom(func(t *rapid.T) core.NetworkDevice {
		host := label.Draw(t, "host")
		return core.NetworkDevice{
			ID:        rapid.StringMatching(`[0-9]{1,8}`).Draw(t, "id"),
			Name:      host + ".corp.ts.net",
			Hostname:  host,
			Addresses: []string{rapid.StringMatching(`100\.64\.[0-9]{1,3}\.[0-9]{1,3}`).Draw(t, "ip")},
		}
	})
}

func TestMatchDevice_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		devices := rapid.SliceOfN(genDevice(), 1, 8).Draw(t, "devices")
		pick := devices[rapid.IntRange(0, len(devices)-1).Draw(t, "pick")]

		// Any device is found by its hostname in any case.
		ident := pick.Hostname
		if rapid.Bool().Draw(t, "upper") {
			ident = strings.ToUpper(ident)
		}
		got := MatchDevice(devices, ident)
		if got == nil {
			t.Fatalf("hostname %q not matched", ident)
		}

		// The match always satisfies one of the three rules.
		id := strings.ToLower(ident)
		ok := strings.ToLower(got.Hostname) == id || strings.Contains(strings.ToLower(got.Name), id)
		for _, a := range got.Addresses {
			ok = ok || strings.ToLower(a) == id
		}
		if !ok {
			t.Fatalf("match %+v does not satisfy any rule for %q", got, ident)
		}

		// Exact address lookups resolve to a device owning that address.
		byIP := MatchDevice(devices, pick.PrimaryIP())
		if byIP == nil {
			t.Fatalf("address %q not matched", pick.PrimaryIP())
		}
	})
}

func TestMatchesHostname(t *testing.T) {
	d := &core.NetworkDevice{
		ID:        "1",
		Name:      "Build-Box-2.corp.ts.net",
		Hostname:  "build-box",
		Addresses: []string{"100.64.0.7"},
	}
	assert.True(t, MatchesHostname(d, "BUILD-BOX"))
	assert.True(t, MatchesHostname(d, "build-box-2"))
	assert.False(t, MatchesHostname(d, "bu"))
	assert.False(t, MatchesHostname(d, "box"))
	assert.False(t, MatchesHostname(d, "100.64.0.7"))
	assert.False(t, MatchesHostname(d, ""))
	assert.False(t, MatchesHostname(nil, "build-box"))
}
