package repository

import (
	"context"
	"time"

	"fieldops-session-control/internal/device/domain"
)

// Repository defines persistence for registered devices.
type Repository interface {
	// GetByID returns the device, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	// GetByUserOrgAndFingerprint returns the device for the fingerprint hash, or nil.
	GetByUserOrgAndFingerprint(ctx context.Context, userID, orgID, fingerprintHash string) (*domain.Device, error)
	Create(ctx context.Context, d *domain.Device) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	SetTrusted(ctx context.Context, id string, trusted bool) error
	ListByUserAndOrg(ctx context.Context, userID, orgID string) ([]*domain.Device, error)
}
