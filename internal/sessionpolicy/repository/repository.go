package repository

import (
	"context"

	"fieldops-session-control/internal/sessionpolicy/domain"
)

// Repository defines persistence for per-org session policies.
type Repository interface {
	// GetByOrgID returns the policy for the org, or nil if none is stored.
	// Callers fall back to domain.Default() for nil.
	GetByOrgID(ctx context.Context, orgID string) (*domain.SessionPolicy, error)
	// Upsert saves or replaces the policy for the org, normalized first.
	Upsert(ctx context.Context, orgID string, p domain.SessionPolicy) error
}
