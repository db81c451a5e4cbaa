package repository

import (
	"context"

	"fieldops-session-control/internal/securityevent/domain"
)

// Filter narrows security event listings. Zero values mean "no filter".
type Filter struct {
	UserID   string
	Severity domain.Severity
	// Resolved filters on resolution state when non-nil.
	Resolved *bool
}

// Repository defines persistence for security events. Events are append-only;
// the only mutation is resolution marking.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.SecurityEvent, error)
	Create(ctx context.Context, e *domain.SecurityEvent) error
	ListByOrg(ctx context.Context, orgID string, f Filter, limit, offset int32) ([]*domain.SecurityEvent, error)
	// Resolve marks the event resolved by the given admin. Returns resolved=false
	// if the event is missing or already resolved.
	Resolve(ctx context.Context, id, resolvedBy string) (resolved bool, err error)
}
