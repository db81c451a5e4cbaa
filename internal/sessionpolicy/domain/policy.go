package domain

import "time"

// SessionPolicy holds org-level session lifecycle policy. Stored as a JSON
// document per org; a missing row means Default().
type SessionPolicy struct {
	IdleTimeoutMinutes     int  `json:"idle_timeout_minutes"`
	AbsoluteTimeoutHours   int  `json:"absolute_timeout_hours"`
	MaxConcurrentSessions  int  `json:"max_concurrent_sessions"` // 0 = unlimited
	RequireMFA             bool `json:"require_mfa"`
	AllowMultipleDevices   bool `json:"allow_multiple_devices"`
	GeolocationTracking    bool `json:"geolocation_tracking"`
	LockoutThreshold       int  `json:"lockout_threshold"`
	LockoutDurationMinutes int  `json:"lockout_duration_minutes"`
}

// Default returns the platform-default session policy.
func Default() SessionPolicy {
	return SessionPolicy{
		IdleTimeoutMinutes:     30,
		AbsoluteTimeoutHours:   24,
		MaxConcurrentSessions:  3,
		RequireMFA:             false,
		AllowMultipleDevices:   true,
		GeolocationTracking:    true,
		LockoutThreshold:       5,
		LockoutDurationMinutes: 15,
	}
}

// Normalize returns a copy of p with non-positive numeric fields replaced by
// defaults. Boolean fields are kept as-is. Repositories call this before
// writing so stored documents are always complete.
func (p SessionPolicy) Normalize() SessionPolicy {
	def := Default()
	if p.IdleTimeoutMinutes <= 0 {
		p.IdleTimeoutMinutes = def.IdleTimeoutMinutes
	}
	if p.AbsoluteTimeoutHours <= 0 {
		p.AbsoluteTimeoutHours = def.AbsoluteTimeoutHours
	}
	if p.MaxConcurrentSessions < 0 {
		p.MaxConcurrentSessions = def.MaxConcurrentSessions
	}
	if p.LockoutThreshold <= 0 {
		p.LockoutThreshold = def.LockoutThreshold
	}
	if p.LockoutDurationMinutes <= 0 {
		p.LockoutDurationMinutes = def.LockoutDurationMinutes
	}
	return p
}

// IdleTimeout returns the idle timeout as a duration.
func (p SessionPolicy) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutMinutes) * time.Minute
}

// AbsoluteTimeout returns the absolute session lifetime as a duration.
func (p SessionPolicy) AbsoluteTimeout() time.Duration {
	return time.Duration(p.AbsoluteTimeoutHours) * time.Hour
}

// LockoutDuration returns how long a locked-out user stays locked.
func (p SessionPolicy) LockoutDuration() time.Duration {
	return time.Duration(p.LockoutDurationMinutes) * time.Minute
}
