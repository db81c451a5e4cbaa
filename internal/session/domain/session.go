package domain

import "time"

// TerminationReason records why a session stopped being active.
type TerminationReason string

const (
	ReasonUserLogout      TerminationReason = "user_logout"
	ReasonIdleTimeout     TerminationReason = "idle_timeout"
	ReasonAbsoluteTimeout TerminationReason = "absolute_timeout"
	ReasonConcurrentLimit TerminationReason = "concurrent_limit"
	ReasonAdminTerminated TerminationReason = "admin_terminated"
	ReasonSecurityEvent   TerminationReason = "security_event"
	ReasonPasswordChanged TerminationReason = "password_changed"
	ReasonAccountDisabled TerminationReason = "account_disabled"
)

// Valid reports whether r is a known termination reason.
func (r TerminationReason) Valid() bool {
	switch r {
	case ReasonUserLogout, ReasonIdleTimeout, ReasonAbsoluteTimeout,
		ReasonConcurrentLimit, ReasonAdminTerminated, ReasonSecurityEvent,
		ReasonPasswordChanged, ReasonAccountDisabled:
		return true
	}
	return false
}

// Geolocation is a best-effort location derived from the caller IP.
// All fields may be zero when the lookup failed or tracking is disabled.
type Geolocation struct {
	Country string  `json:"country,omitempty"`
	City    string  `json:"city,omitempty"`
	Region  string  `json:"region,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

// Session represents one login from one device. Rows are never deleted;
// termination flips Active and records the reason.
type Session struct {
	ID     string
	UserID string
	OrgID  string

	// TokenHash is the SHA-256 of the identity provider's session token.
	// The raw token is never stored. While Active is true, (UserID, TokenHash)
	// is unique across the table.
	TokenHash string

	DeviceID        string
	DeviceName      string
	FingerprintHash string
	Trusted         bool

	IPAddress string
	Geo       Geolocation

	LoginAt        time.Time
	LastActivityAt time.Time
	// ExpiresAt is the absolute deadline, materialized from the org policy at creation.
	ExpiresAt time.Time
	// IdleTimeoutMinutes is copied from the org policy at creation; 0 disables idle expiry.
	IdleTimeoutMinutes int
	// DurationSeconds is computed at termination; 0 while active.
	DurationSeconds int64

	Active bool
	// Reason is empty while the session is active.
	Reason      TerminationReason
	MFAVerified bool
}

// IdleExpired reports whether the session has been inactive longer than its idle timeout.
func (s *Session) IdleExpired(now time.Time) bool {
	if s.IdleTimeoutMinutes <= 0 || s.LastActivityAt.IsZero() {
		return false
	}
	return now.Sub(s.LastActivityAt) > time.Duration(s.IdleTimeoutMinutes)*time.Minute
}

// AbsoluteExpired reports whether the session is past its absolute deadline.
func (s *Session) AbsoluteExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
