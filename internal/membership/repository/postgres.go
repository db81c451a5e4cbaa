package repository

import (
	"context"
	"database/sql"
	"errors"

	"fieldops-session-control/internal/membership/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetMembershipByUserAndOrg returns the user's membership in the org, or nil if not found.
func (r *PostgresRepository) GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error) {
	var m domain.Membership
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, org_id, role, created_at FROM memberships
		 WHERE user_id = $1 AND org_id = $2`,
		userID, orgID).Scan(&m.ID, &m.UserID, &m.OrgID, &role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.Role = domain.Role(role)
	return &m, nil
}

// Create persists the membership. The membership must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO memberships (id, user_id, org_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, org_id) DO UPDATE SET role = $4`,
		m.ID, m.UserID, m.OrgID, string(m.Role), m.CreatedAt)
	return err
}
