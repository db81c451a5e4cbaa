package repository

import (
	"context"

	"fieldops-session-control/internal/membership/domain"
)

// Repository defines persistence for org memberships.
type Repository interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
}
