// Package fingerprint derives a best-effort, non-cryptographic identifier for
// a client device. It is a de-duplication key only and never a credential;
// collisions are expected and tolerated.
package fingerprint

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Unknown replaces any signal that is not available.
const Unknown = "unknown"

// MaxLength bounds a stored fingerprint.
const MaxLength = 128

var validPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,128}$`)

// Signals are the ambient properties a client reports about itself.
// Zero values mean "not available".
type Signals struct {
	UserAgent      string
	Language       string
	ScreenWidth    int
	ScreenHeight   int
	TimezoneOffset *int // minutes; zero is a real offset
	CPUCount       int
	CanvasSnapshot string
}

// Generate hashes the signals into a compact base-36 string. It is pure:
// the same signals always produce the same output.
func Generate(s Signals) string {
	screen := Unknown
	if s.ScreenWidth > 0 && s.ScreenHeight > 0 {
		screen = strconv.Itoa(s.ScreenWidth) + "x" + strconv.Itoa(s.ScreenHeight)
	}
	tz := Unknown
	if s.TimezoneOffset != nil {
		tz = strconv.Itoa(*s.TimezoneOffset)
	}
	cpus := Unknown
	if s.CPUCount > 0 {
		cpus = strconv.Itoa(s.CPUCount)
	}

	seed := strings.Join([]string{
		orUnknown(s.UserAgent),
		orUnknown(s.Language),
		screen,
		tz,
		cpus,
		orUnknown(s.CanvasSnapshot),
	}, "|")

	return strconv.FormatUint(uint64(hash31(seed)), 36)
}

// hash31 is the classic multiply-by-31 string hash over UTF-16 code units,
// folded into a non-negative 32-bit integer the way browser scripts compute
// it with Math.abs.
func hash31(s string) uint32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(u)
	}
	if h < 0 {
		return uint32(-int64(h))
	}
	return uint32(h)
}

func orUnknown(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return Unknown
	}
	return v
}

// FromRequest collects the signals available server-side. Browsers may send
// X-Screen ("1920x1080"), X-Timezone-Offset, X-CPU-Count and X-Canvas-Hash;
// everything else comes from standard headers.
func FromRequest(r *http.Request) Signals {
	s := Signals{
		UserAgent:      r.UserAgent(),
		Language:       primaryLanguage(r.Header.Get("Accept-Language")),
		CanvasSnapshot: r.Header.Get("X-Canvas-Hash"),
	}
	if w, h, ok := strings.Cut(r.Header.Get("X-Screen"), "x"); ok {
		s.ScreenWidth, _ = strconv.Atoi(strings.TrimSpace(w))
		s.ScreenHeight, _ = strconv.Atoi(strings.TrimSpace(h))
	}
	if v := r.Header.Get("X-Timezone-Offset"); v != "" {
		if off, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			s.TimezoneOffset = &off
		}
	}
	if v := r.Header.Get("X-CPU-Count"); v != "" {
		s.CPUCount, _ = strconv.Atoi(strings.TrimSpace(v))
	}
	return s
}

func primaryLanguage(acceptLanguage string) string {
	first, _, _ := strings.Cut(acceptLanguage, ",")
	first, _, _ = strings.Cut(first, ";")
	return strings.TrimSpace(first)
}

// Valid reports whether fp is a storable fingerprint: 1 to 128 characters
// drawn from letters, digits and hyphen.
func Valid(fp string) bool {
	return validPattern.MatchString(fp)
}
