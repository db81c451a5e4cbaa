// Package securityevent records lifecycle-relevant occurrences (new-device
// login, concurrent-limit eviction, lockout) separately from ordinary audit
// logging of business-data changes.
package securityevent

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"fieldops-session-control/internal/securityevent/domain"
	eventrepo "fieldops-session-control/internal/securityevent/repository"
)

// SentinelOrgID is the org_id used for events that have no org context.
const SentinelOrgID = "_system"

// EventLogger writes a single security event. Used by the lifecycle service
// and the authentication-failure path.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type EventLogger interface {
	LogEvent(ctx context.Context, orgID, userID string, t domain.EventType, sev domain.Severity, description string, requiresAction bool)
}

// Logger implements EventLogger using the security event repository.
type Logger struct {
	repo eventrepo.Repository
}

// NewLogger returns an EventLogger that persists to repo.
func NewLogger(repo eventrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// LogEvent writes one security event. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, orgID, userID string, t domain.EventType, sev domain.Severity, description string, requiresAction bool) {
	if l.repo == nil {
		return
	}
	if orgID == "" {
		orgID = SentinelOrgID
	}
	if !sev.Valid() {
		sev = domain.SeverityMedium
	}
	e := &domain.SecurityEvent{
		ID:             uuid.New().String(),
		OrgID:          orgID,
		UserID:         userID,
		Type:           t,
		Severity:       sev,
		Description:    description,
		RequiresAction: requiresAction,
		CreatedAt:      time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, e); err != nil {
		log.Printf("securityevent: failed to log %s for user %s: %v", t, userID, err)
	}
}
