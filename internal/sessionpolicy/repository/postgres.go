package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"fieldops-session-control/internal/sessionpolicy/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session policy repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByOrgID returns the policy for the org, or nil if not found.
func (r *PostgresRepository) GetByOrgID(ctx context.Context, orgID string) (*domain.SessionPolicy, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT policy_json FROM session_policies WHERE org_id = $1`, orgID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var p domain.SessionPolicy
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert saves or replaces the policy for the org. Stored documents are always
// normalized so reads never see partial policies.
func (r *PostgresRepository) Upsert(ctx context.Context, orgID string, p domain.SessionPolicy) error {
	raw, err := json.Marshal(p.Normalize())
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO session_policies (org_id, policy_json, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (org_id) DO UPDATE SET policy_json = $2, updated_at = $3`,
		orgID, string(raw), time.Now().UTC())
	return err
}
