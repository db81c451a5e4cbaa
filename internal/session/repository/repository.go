package repository

import (
	"context"
	"time"

	"fieldops-session-control/internal/session/domain"
)

// Repository defines persistence for sessions. Rows are only ever inserted or
// flipped inactive; there is no delete.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetActiveByUserAndTokenHash(ctx context.Context, userID, tokenHash string) (*domain.Session, error)
	GetActiveByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	OldestActiveByUser(ctx context.Context, userID string) (*domain.Session, error)
	// Create inserts the session unless an active row for (user_id, token_hash)
	// already exists. Returns created=false without error when the row lost the
	// insert race; callers re-read the surviving row.
	Create(ctx context.Context, s *domain.Session) (created bool, err error)
	// Terminate flips the row inactive, recording reason and duration. Returns
	// terminated=false when the row was already inactive or missing.
	Terminate(ctx context.Context, id string, reason domain.TerminationReason, at time.Time) (terminated bool, err error)
	// TerminateAllByUser terminates every active session for the user except
	// exceptID (pass "" to terminate all). Returns the number terminated.
	TerminateAllByUser(ctx context.Context, userID, exceptID string, reason domain.TerminationReason, at time.Time) (int64, error)
	// UpdateLastActivity bumps last_activity_at on the active row matching the
	// token hash. A missing row is a silent no-op.
	UpdateLastActivity(ctx context.Context, tokenHash string, at time.Time) error
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	ListByOrg(ctx context.Context, orgID string, userID *string, limit, offset int32) ([]*domain.Session, error)
	ListHistoryByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.Session, error)
	// TerminateExpired sweeps idle- and absolute-expired active rows as of now.
	// Returns counts per reason.
	TerminateExpired(ctx context.Context, now time.Time) (idle, absolute int64, err error)
}
