package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func intPtr(v int) *int { return &v }

func TestGenerate_Deterministic(t *testing.T) {
	s := Signals{
		UserAgent:      "Mozilla/5.0 (Macintosh)",
		Language:       "en-US",
		ScreenWidth:    1920,
		ScreenHeight:   1080,
		TimezoneOffset: intPtr(-120),
		CPUCount:       8,
		CanvasSnapshot: "data:image/png;base64,AAAA",
	}

	first := Generate(s)
	assert.Equal(t, first, Generate(s))
	assert.True(t, Valid(first))
}

func TestGenerate_MissingSignals(t *testing.T) {
	// Every missing component collapses to the same placeholder.
	assert.Equal(t, Generate(Signals{}), Generate(Signals{UserAgent: "   ", ScreenWidth: 1920}))
	assert.True(t, Valid(Generate(Signals{})))
}

func TestGenerate_ZeroTimezoneIsASignal(t *testing.T) {
	assert.NotEqual(t,
		Generate(Signals{TimezoneOffset: intPtr(0)}),
		Generate(Signals{}),
	)
}

func TestGenerate_DiffersOnSignals(t *testing.T) {
	a := Generate(Signals{UserAgent: "agent-a", Language: "en"})
	b := Generate(Signals{UserAgent: "agent-b", Language: "en"})
	assert.NotEqual(t, a, b)
}

func TestHash31_KnownValues(t *testing.T) {
	assert.Equal(t, uint32(0), hash31(""))
	assert.Equal(t, uint32(97), hash31("a"))
	assert.Equal(t, uint32(96354), hash31("abc"))

	// Characters outside the BMP hash as their surrogate pair.
	assert.Equal(t, uint32(1772899), hash31("😀"))
	assert.Equal(t, uint32(2069340306), hash31("Mozilla 😀 café"))

	// The one value whose absolute value does not fit in int32.
	assert.Equal(t, uint32(2147483648), hash31("\u0915\t\x1e\x0c\x02"))
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/enrollment", nil)
	r.Header.Set("User-Agent", "curl/8.0")
	r.Header.Set("Accept-Language", "de-CH;q=0.9, en;q=0.8")
	r.Header.Set("X-Screen", "2560 x 1440")
	r.Header.Set("X-Timezone-Offset", "60")
	r.Header.Set("X-CPU-Count", "12")
	r.Header.Set("X-Canvas-Hash", "abc123")

	s := FromRequest(r)
	assert.Equal(t, "curl/8.0", s.UserAgent)
	assert.Equal(t, "de-CH", s.Language)
	assert.Equal(t, 2560, s.ScreenWidth)
	assert.Equal(t, 1440, s.ScreenHeight)
	if assert.NotNil(t, s.TimezoneOffset) {
		assert.Equal(t, 60, *s.TimezoneOffset)
	}
	assert.Equal(t, 12, s.CPUCount)
	assert.Equal(t, "abc123", s.CanvasSnapshot)
}

func TestFromRequest_BareRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Del("User-Agent")

	s := FromRequest(r)
	assert.Nil(t, s.TimezoneOffset)
	assert.Equal(t, Generate(Signals{}), Generate(s))
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"abc-123", true},
		{"Z", true},
		{strings.Repeat("a", 128), true},
		{"", false},
		{strings.Repeat("a", 129), false},
		{"has space", false},
		{"under_score", false},
		{"semi;colon", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.in), "Valid(%q)", tt.in)
	}
}

func TestGenerate_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := Signals{
			UserAgent:      rapid.String().Draw(t, "ua"),
			Language:       rapid.String().Draw(t, "lang"),
			ScreenWidth:    rapid.IntRange(-10, 8000).Draw(t, "w"),
			ScreenHeight:   rapid.IntRange(-10, 8000).Draw(t, "h"),
			CPUCount:       rapid.IntRange(-1, 256).Draw(t, "cpu"),
			CanvasSnapshot: rapid.String().Draw(t, "canvas"),
		}
		if rapid.Bool().Draw(t, "hasTZ") {
			s.TimezoneOffset = intPtr(rapid.IntRange(-720, 840).Draw(t, "tz"))
		}

		fp := Generate(s)
		if fp != Generate(s) {
			t.Fatalf("not deterministic for %+v", s)
		}
		if !Valid(fp) {
			t.Fatalf("generated fingerprint %q is not valid", fp)
		}
		if len(fp) > 7 {
			t.Fatalf("fingerprint %q longer than a 31-bit base-36 number", fp)
		}
	})
}
