package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Fingerprint is the structured device identity reported by the client.
// It is advisory only: a hint for new-device detection and display, never
// an authorization credential.
type Fingerprint struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	ScreenWidth    int    `json:"screen_width,omitempty"`
	ScreenHeight   int    `json:"screen_height,omitempty"`
	ColorDepth     int    `json:"color_depth,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	Language       string `json:"language,omitempty"`
	CanvasHash     string `json:"canvas_hash,omitempty"`
	WebGLHash      string `json:"webgl_hash,omitempty"`
}

// Hash returns a stable SHA-256 over the normalized fingerprint fields,
// hex-encoded. Identical environments produce identical hashes regardless
// of field casing or surrounding whitespace.
func (f Fingerprint) Hash() string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	parts := []string{
		norm(f.Browser),
		norm(f.BrowserVersion),
		norm(f.OS),
		fmt.Sprintf("%dx%dx%d", f.ScreenWidth, f.ScreenHeight, f.ColorDepth),
		norm(f.Timezone),
		norm(f.Language),
		norm(f.CanvasHash),
		norm(f.WebGLHash),
	}
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

// IsZero reports whether no fingerprint data was collected.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Device is a fingerprint seen for a user in an org. One row per distinct
// fingerprint hash; a login from a hash with no row raises a new-device event.
type Device struct {
	ID              string
	UserID          string
	OrgID           string
	Name            string
	Fingerprint     Fingerprint
	FingerprintHash string
	Trusted         bool
	LastSeenAt      *time.Time
	CreatedAt       time.Time
}
