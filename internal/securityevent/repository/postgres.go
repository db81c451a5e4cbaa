package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fieldops-session-control/internal/securityevent/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a security event repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const eventColumns = `id, org_id, user_id, event_type, severity, description,
	requires_action, resolved, resolved_by, resolved_at, created_at`

// GetByID returns the event for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.SecurityEvent, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM security_events WHERE id = $1`, id)
	return scanEvent(row)
}

// Create persists the event. The event must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.SecurityEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_events (
			id, org_id, user_id, event_type, severity, description,
			requires_action, resolved, resolved_by, resolved_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, '', NULL, $8)`,
		e.ID, e.OrgID, e.UserID, string(e.Type), string(e.Severity), e.Description,
		e.RequiresAction, e.CreatedAt)
	return err
}

// ListByOrg returns events for the org matching the filter, newest first.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string, f Filter, limit, offset int32) ([]*domain.SecurityEvent, error) {
	resolvedFilter := -1
	if f.Resolved != nil {
		if *f.Resolved {
			resolvedFilter = 1
		} else {
			resolvedFilter = 0
		}
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM security_events
		 WHERE org_id = $1
		   AND ($2 = '' OR user_id = $2)
		   AND ($3 = '' OR severity = $3)
		   AND ($4 = -1 OR resolved = ($4 = 1))
		 ORDER BY created_at DESC LIMIT $5 OFFSET $6`,
		orgID, f.UserID, string(f.Severity), resolvedFilter, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.SecurityEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve marks the event resolved. Already-resolved or missing events report resolved=false.
func (r *PostgresRepository) Resolve(ctx context.Context, id, resolvedBy string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE security_events SET resolved = TRUE, resolved_by = $2, resolved_at = $3
		WHERE id = $1 AND NOT resolved`,
		id, resolvedBy, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.SecurityEvent, error) {
	var e domain.SecurityEvent
	var eventType, severity string
	var resolvedAt sql.NullTime
	err := row.Scan(
		&e.ID, &e.OrgID, &e.UserID, &eventType, &severity, &e.Description,
		&e.RequiresAction, &e.Resolved, &e.ResolvedBy, &resolvedAt, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Type = domain.EventType(eventType)
	e.Severity = domain.Severity(severity)
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.Time
	}
	return &e, nil
}
