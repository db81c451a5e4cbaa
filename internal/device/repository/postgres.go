package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"fieldops-session-control/internal/device/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const deviceColumns = `id, user_id, org_id, name, fingerprint_json, fingerprint_hash,
	trusted, last_seen_at, created_at`

// GetByID returns the device, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	return scanDevice(row)
}

// GetByUserOrgAndFingerprint returns the device for the fingerprint hash, or nil if not found.
func (r *PostgresRepository) GetByUserOrgAndFingerprint(ctx context.Context, userID, orgID, fingerprintHash string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE user_id = $1 AND org_id = $2 AND fingerprint_hash = $3`,
		userID, orgID, fingerprintHash)
	return scanDevice(row)
}

// Create persists the device. The device must have ID and FingerprintHash set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Device) error {
	fp, err := json.Marshal(d.Fingerprint)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (
			id, user_id, org_id, name, fingerprint_json, fingerprint_hash,
			trusted, last_seen_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, org_id, fingerprint_hash) DO NOTHING`,
		d.ID, d.UserID, d.OrgID, d.Name, string(fp), d.FingerprintHash,
		d.Trusted, timeToNullTime(d.LastSeenAt), d.CreatedAt)
	return err
}

// UpdateLastSeen sets the device's last-seen timestamp.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

// SetTrusted updates the device's trusted flag.
func (r *PostgresRepository) SetTrusted(ctx context.Context, id string, trusted bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET trusted = $2 WHERE id = $1`, id, trusted)
	return err
}

// ListByUserAndOrg returns the user's devices in the org, oldest first.
func (r *PostgresRepository) ListByUserAndOrg(ctx context.Context, userID, orgID string) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE user_id = $1 AND org_id = $2 ORDER BY created_at ASC`,
		userID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*domain.Device, error) {
	var d domain.Device
	var fp string
	var lastSeen sql.NullTime
	err := row.Scan(
		&d.ID, &d.UserID, &d.OrgID, &d.Name, &fp, &d.FingerprintHash,
		&d.Trusted, &lastSeen, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if fp != "" {
		if err := json.Unmarshal([]byte(fp), &d.Fingerprint); err != nil {
			return nil, err
		}
	}
	if lastSeen.Valid {
		d.LastSeenAt = &lastSeen.Time
	}
	return &d, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
