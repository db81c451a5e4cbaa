package domain

import "time"

// EventType identifies a lifecycle occurrence worth auditing separately
// from ordinary business-data changes.
type EventType string

const (
	EventNewDeviceLogin         EventType = "new_device_login"
	EventConcurrentSessionLimit EventType = "concurrent_session_limit"
	EventLoginLockout           EventType = "login_lockout"
	EventAdminSessionRevoked    EventType = "admin_session_revoked"
)

// Severity grades how urgently an event needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// SecurityEvent is an append-only audit record. Normal flow only inserts;
// the single permitted mutation is resolution marking by an administrator.
type SecurityEvent struct {
	ID             string
	OrgID          string
	UserID         string
	Type           EventType
	Severity       Severity
	Description    string
	RequiresAction bool
	Resolved       bool
	ResolvedBy     string
	ResolvedAt     *time.Time
	CreatedAt      time.Time
}
