package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fieldops-session-control/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, org_id, token_hash, device_id, device_name,
	fingerprint_hash, trusted, ip_address, geo_country, geo_city, geo_region,
	geo_lat, geo_lng, login_at, last_activity_at, expires_at,
	idle_timeout_minutes, duration_seconds, is_active, terminated_reason, mfa_verified`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetActiveByUserAndTokenHash returns the active session for (userID, tokenHash), or nil.
func (r *PostgresRepository) GetActiveByUserAndTokenHash(ctx context.Context, userID, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND token_hash = $2 AND is_active`,
		userID, tokenHash)
	return scanSession(row)
}

// GetActiveByTokenHash returns the active session bound to tokenHash, or nil.
func (r *PostgresRepository) GetActiveByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1 AND is_active`, tokenHash)
	return scanSession(row)
}

// CountActiveByUser returns the number of active sessions for the user.
func (r *PostgresRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND is_active`, userID).Scan(&n)
	return n, err
}

// OldestActiveByUser returns the active session with the earliest login_at, or nil.
// Login time ordering makes concurrent-limit eviction deterministic.
func (r *PostgresRepository) OldestActiveByUser(ctx context.Context, userID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND is_active ORDER BY login_at ASC, id ASC LIMIT 1`, userID)
	return scanSession(row)
}

// Create inserts the session. The partial unique index on
// (user_id, token_hash) WHERE is_active absorbs duplicate-creation races:
// the losing insert reports created=false instead of failing.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, org_id, token_hash, device_id, device_name,
			fingerprint_hash, trusted, ip_address, geo_country, geo_city, geo_region,
			geo_lat, geo_lng, login_at, last_activity_at, expires_at,
			idle_timeout_minutes, duration_seconds, is_active, terminated_reason, mfa_verified
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, 0, TRUE, NULL, $19
		)
		ON CONFLICT (user_id, token_hash) WHERE is_active DO NOTHING`,
		s.ID, s.UserID, s.OrgID, s.TokenHash, s.DeviceID, s.DeviceName,
		s.FingerprintHash, s.Trusted, s.IPAddress, s.Geo.Country, s.Geo.City, s.Geo.Region,
		s.Geo.Lat, s.Geo.Lng, s.LoginAt, s.LastActivityAt, s.ExpiresAt,
		s.IdleTimeoutMinutes, s.MFAVerified)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Terminate flips the session inactive and records reason, terminated_at, and
// the computed duration. Already-inactive rows are untouched (terminated=false).
func (r *PostgresRepository) Terminate(ctx context.Context, id string, reason domain.TerminationReason, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			is_active = FALSE,
			terminated_reason = $2,
			terminated_at = $3,
			duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($3::timestamptz - login_at))::bigint)
		WHERE id = $1 AND is_active`,
		id, string(reason), at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TerminateAllByUser terminates all active sessions for the user, skipping exceptID when non-empty.
func (r *PostgresRepository) TerminateAllByUser(ctx context.Context, userID, exceptID string, reason domain.TerminationReason, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			is_active = FALSE,
			terminated_reason = $2,
			terminated_at = $3,
			duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($3::timestamptz - login_at))::bigint)
		WHERE user_id = $1 AND is_active AND ($4 = '' OR id <> $4)`,
		userID, string(reason), at, exceptID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateLastActivity bumps last_activity_at on the active row for tokenHash.
// Zero rows affected is not an error: a terminated session must not be
// resurrected by a stray heartbeat.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = $2 WHERE token_hash = $1 AND is_active`,
		tokenHash, at)
	return err
}

// ListActiveByUser returns all active sessions for the user, oldest login first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND is_active ORDER BY login_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// ListByOrg returns active sessions for the org, optionally filtered by user,
// with limit and offset, most recent login first.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string, userID *string, limit, offset int32) ([]*domain.Session, error) {
	filter := ""
	if userID != nil && *userID != "" {
		filter = *userID
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE org_id = $1 AND is_active AND ($2 = '' OR user_id = $2)
		 ORDER BY login_at DESC LIMIT $3 OFFSET $4`,
		orgID, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// ListHistoryByUser returns the user's sessions, active and terminated,
// most recent login first, with limit and offset.
func (r *PostgresRepository) ListHistoryByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 ORDER BY login_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// TerminateExpired terminates active rows past their idle or absolute deadline
// as of now. Two single-statement updates; each row is claimed by exactly one.
func (r *PostgresRepository) TerminateExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			is_active = FALSE,
			terminated_reason = $2,
			terminated_at = $1,
			duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($1::timestamptz - login_at))::bigint)
		WHERE is_active AND idle_timeout_minutes > 0
		  AND last_activity_at + make_interval(mins => idle_timeout_minutes) < $1`,
		now, string(domain.ReasonIdleTimeout))
	if err != nil {
		return 0, 0, err
	}
	idle, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	res, err = r.db.ExecContext(ctx, `
		UPDATE sessions SET
			is_active = FALSE,
			terminated_reason = $2,
			terminated_at = $1,
			duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($1::timestamptz - login_at))::bigint)
		WHERE is_active AND expires_at < $1`,
		now, string(domain.ReasonAbsoluteTimeout))
	if err != nil {
		return idle, 0, err
	}
	absolute, err := res.RowsAffected()
	if err != nil {
		return idle, 0, err
	}
	return idle, absolute, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var reason sql.NullString
	err := row.Scan(
		&s.ID, &s.UserID, &s.OrgID, &s.TokenHash, &s.DeviceID, &s.DeviceName,
		&s.FingerprintHash, &s.Trusted, &s.IPAddress, &s.Geo.Country, &s.Geo.City, &s.Geo.Region,
		&s.Geo.Lat, &s.Geo.Lng, &s.LoginAt, &s.LastActivityAt, &s.ExpiresAt,
		&s.IdleTimeoutMinutes, &s.DurationSeconds, &s.Active, &reason, &s.MFAVerified,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if reason.Valid {
		s.Reason = domain.TerminationReason(reason.String)
	}
	return &s, nil
}

func scanSessions(rows *sql.Rows) ([]*domain.Session, error) {
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
