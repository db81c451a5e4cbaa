// Package service implements the session lifecycle: creation with
// concurrent-limit eviction, heartbeats, validity checks with lazy timeout
// detection, and termination.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	devicedomain "fieldops-session-control/internal/device/domain"
	"fieldops-session-control/internal/lockout"
	"fieldops-session-control/internal/security"
	eventdomain "fieldops-session-control/internal/securityevent/domain"
	"fieldops-session-control/internal/session/domain"
	policydomain "fieldops-session-control/internal/sessionpolicy/domain"
)

// Sentinel errors; handlers map them to HTTP status codes.
var (
	// ErrNoAuthSession means the caller holds no valid identity-provider
	// session. Always fail closed: the caller must be treated as logged out.
	ErrNoAuthSession = errors.New("no valid identity provider session")
	// ErrSessionInvalid means the provider token is fine but the tracked
	// session row is gone, inactive, or expired.
	ErrSessionInvalid = errors.New("session is no longer active")
	// ErrPersistence means the session store is unavailable. CreateSession and
	// Validate callers must treat the user as not having a verified session.
	ErrPersistence = errors.New("session store unavailable")
	// ErrInvalidReason is returned for termination reasons outside the closed set.
	ErrInvalidReason = errors.New("invalid termination reason")
)

// SessionRepo is the minimal session repository needed by the lifecycle service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetActiveByUserAndTokenHash(ctx context.Context, userID, tokenHash string) (*domain.Session, error)
	GetActiveByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	OldestActiveByUser(ctx context.Context, userID string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) (bool, error)
	Terminate(ctx context.Context, id string, reason domain.TerminationReason, at time.Time) (bool, error)
	TerminateAllByUser(ctx context.Context, userID, exceptID string, reason domain.TerminationReason, at time.Time) (int64, error)
	UpdateLastActivity(ctx context.Context, tokenHash string, at time.Time) error
}

// DeviceRepo is the minimal device repository needed by the lifecycle service.
type DeviceRepo interface {
	GetByUserOrgAndFingerprint(ctx context.Context, userID, orgID, fingerprintHash string) (*devicedomain.Device, error)
	Create(ctx context.Context, d *devicedomain.Device) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// PolicyRepo is the minimal policy repository needed by the lifecycle service.
type PolicyRepo interface {
	GetByOrgID(ctx context.Context, orgID string) (*policydomain.SessionPolicy, error)
}

// EventLogger records security events; best-effort, never fails the caller.
type EventLogger interface {
	LogEvent(ctx context.Context, orgID, userID string, t eventdomain.EventType, sev eventdomain.Severity, description string, requiresAction bool)
}

// TokenVerifier validates identity-provider session tokens.
type TokenVerifier interface {
	Verify(token string) (*security.Identity, error)
}

// GeoLookup resolves an IP to a best-effort location.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (domain.Geolocation, error)
}

// CreateSessionInput carries everything the client supplies at login.
// The org is taken from the verified token, not from the client.
type CreateSessionInput struct {
	UserID       string
	SessionToken string
	DeviceName   string
	Fingerprint  devicedomain.Fingerprint
	IPAddress    string
	MFAVerified  bool
}

// LifecycleService owns all session mutations. Every mutation is a single-row,
// single-statement operation; there is no multi-step transaction that can
// partially fail. The service never retries; transient failures surface to the
// caller, who retries on the polling cadence.
type LifecycleService struct {
	sessions SessionRepo
	devices  DeviceRepo
	policies PolicyRepo
	events   EventLogger
	verifier TokenVerifier
	geo      GeoLookup
	lockouts *lockout.Tracker
	nowF     func() time.Time
}

// NewLifecycleService returns a LifecycleService with the given dependencies.
// geo may be nil to disable geolocation entirely.
func NewLifecycleService(
	sessions SessionRepo,
	devices DeviceRepo,
	policies PolicyRepo,
	events EventLogger,
	verifier TokenVerifier,
	geo GeoLookup,
) *LifecycleService {
	return &LifecycleService{
		sessions: sessions,
		devices:  devices,
		policies: policies,
		events:   events,
		verifier: verifier,
		geo:      geo,
		lockouts: lockout.NewTracker(),
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession registers a session for a caller that just authenticated
// against the identity provider. Idempotent on (user, token): a duplicate call
// returns the existing row. At the org's concurrent-session limit the single
// oldest session is evicted first.
func (s *LifecycleService) CreateSession(ctx context.Context, in CreateSessionInput) (*domain.Session, error) {
	ident, err := s.verifier.Verify(in.SessionToken)
	if err != nil {
		return nil, ErrNoAuthSession
	}
	if in.UserID == "" || ident.UserID != in.UserID {
		return nil, ErrNoAuthSession
	}
	orgID := ident.OrgID
	tokenHash := security.HashSessionToken(in.SessionToken)

	existing, err := s.sessions.GetActiveByUserAndTokenHash(ctx, in.UserID, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if existing != nil {
		return existing, nil
	}

	policy, err := s.policyFor(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	maxSessions := policy.MaxConcurrentSessions
	if !policy.AllowMultipleDevices {
		maxSessions = 1
	}
	now := s.nowF()
	if maxSessions > 0 {
		count, err := s.sessions.CountActiveByUser(ctx, in.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if count >= maxSessions {
			oldest, err := s.sessions.OldestActiveByUser(ctx, in.UserID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			if oldest != nil {
				terminated, err := s.sessions.Terminate(ctx, oldest.ID, domain.ReasonConcurrentLimit, now)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
				}
				if terminated && s.events != nil {
					s.events.LogEvent(ctx, orgID, in.UserID,
						eventdomain.EventConcurrentSessionLimit, eventdomain.SeverityMedium,
						fmt.Sprintf("session %s evicted: concurrent session limit of %d reached", oldest.ID, maxSessions),
						false)
				}
			}
		}
	}

	var dev *devicedomain.Device
	fingerprintHash := ""
	trusted := false
	if !in.Fingerprint.IsZero() {
		fingerprintHash = in.Fingerprint.Hash()
		dev, err = s.devices.GetByUserOrgAndFingerprint(ctx, in.UserID, orgID, fingerprintHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if dev != nil {
			trusted = dev.Trusted
		}
	}

	geo := domain.Geolocation{}
	if s.geo != nil && policy.GeolocationTracking && in.IPAddress != "" {
		if loc, err := s.geo.Lookup(ctx, in.IPAddress); err == nil {
			geo = loc
		}
	}

	sess := &domain.Session{
		ID:                 uuid.New().String(),
		UserID:             in.UserID,
		OrgID:              orgID,
		TokenHash:          tokenHash,
		DeviceName:         in.DeviceName,
		FingerprintHash:    fingerprintHash,
		Trusted:            trusted,
		IPAddress:          in.IPAddress,
		Geo:                geo,
		LoginAt:            now,
		LastActivityAt:     now,
		ExpiresAt:          now.Add(policy.AbsoluteTimeout()),
		IdleTimeoutMinutes: policy.IdleTimeoutMinutes,
		Active:             true,
		MFAVerified:        in.MFAVerified,
	}
	if dev != nil {
		sess.DeviceID = dev.ID
	}

	created, err := s.sessions.Create(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !created {
		// Lost the insert race to a concurrent duplicate call; the surviving
		// row is the session.
		winner, err := s.sessions.GetActiveByUserAndTokenHash(ctx, in.UserID, tokenHash)
		if err != nil || winner == nil {
			return nil, fmt.Errorf("%w: duplicate insert race lookup failed", ErrPersistence)
		}
		return winner, nil
	}

	if fingerprintHash != "" {
		if dev == nil {
			newDev := &devicedomain.Device{
				ID:              uuid.New().String(),
				UserID:          in.UserID,
				OrgID:           orgID,
				Name:            in.DeviceName,
				Fingerprint:     in.Fingerprint,
				FingerprintHash: fingerprintHash,
				CreatedAt:       now,
			}
			if err := s.devices.Create(ctx, newDev); err == nil {
				sess.DeviceID = newDev.ID
			}
			if s.events != nil {
				s.events.LogEvent(ctx, orgID, in.UserID,
					eventdomain.EventNewDeviceLogin, eventdomain.SeverityMedium,
					fmt.Sprintf("login from previously unseen device %q", in.DeviceName),
					false)
			}
		} else {
			_ = s.devices.UpdateLastSeen(ctx, dev.ID, now)
		}
	}

	s.lockouts.RecordSuccess(in.UserID)
	return sess, nil
}

// TerminateSession marks the session inactive with the given reason.
// Terminating an already-inactive session is a no-op success.
func (s *LifecycleService) TerminateSession(ctx context.Context, sessionID string, reason domain.TerminationReason) error {
	if !reason.Valid() {
		return ErrInvalidReason
	}
	if _, err := s.sessions.Terminate(ctx, sessionID, reason, s.nowF()); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// TerminateAllSessions terminates every active session for the user except
// exceptID ("" terminates all). Returns the number terminated.
func (s *LifecycleService) TerminateAllSessions(ctx context.Context, userID, exceptID string, reason domain.TerminationReason) (int64, error) {
	if !reason.Valid() {
		return 0, ErrInvalidReason
	}
	n, err := s.sessions.TerminateAllByUser(ctx, userID, exceptID, reason, s.nowF())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return n, nil
}

// CurrentSession returns the active session bound to token, or nil when none.
func (s *LifecycleService) CurrentSession(ctx context.Context, token string) (*domain.Session, error) {
	sess, err := s.sessions.GetActiveByTokenHash(ctx, security.HashSessionToken(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return sess, nil
}

// Logout terminates the session bound to token with reason user_logout.
// Logging out an already-terminated or unknown session is a no-op success.
func (s *LifecycleService) Logout(ctx context.Context, token string) error {
	sess, err := s.CurrentSession(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	if _, err := s.sessions.Terminate(ctx, sess.ID, domain.ReasonUserLogout, s.nowF()); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// UpdateActivity records a heartbeat for the session bound to token.
// A heartbeat against a terminated or unknown session is a silent no-op.
func (s *LifecycleService) UpdateActivity(ctx context.Context, token string) error {
	if err := s.sessions.UpdateLastActivity(ctx, security.HashSessionToken(token), s.nowF()); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Validate is the server half of the validity monitor: it confirms the
// provider token is live, the tracked row is still active, and the session has
// not passed its idle or absolute deadline. Expired sessions are terminated
// here — timeout enforcement is lazy, with latency bounded by the polling
// interval. A passing check counts as activity.
func (s *LifecycleService) Validate(ctx context.Context, token string) (*domain.Session, error) {
	if _, err := s.verifier.Verify(token); err != nil {
		return nil, ErrNoAuthSession
	}
	sess, err := s.sessions.GetActiveByTokenHash(ctx, security.HashSessionToken(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if sess == nil {
		return nil, ErrSessionInvalid
	}
	now := s.nowF()
	if sess.AbsoluteExpired(now) {
		if _, err := s.sessions.Terminate(ctx, sess.ID, domain.ReasonAbsoluteTimeout, now); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return nil, ErrSessionInvalid
	}
	if sess.IdleExpired(now) {
		if _, err := s.sessions.Terminate(ctx, sess.ID, domain.ReasonIdleTimeout, now); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return nil, ErrSessionInvalid
	}
	if err := s.sessions.UpdateLastActivity(ctx, sess.TokenHash, now); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	sess.LastActivityAt = now
	return sess, nil
}

// RecordLoginFailure counts a failed authentication attempt. Crossing the
// org's lockout threshold emits a single high-severity lockout event per
// lock window.
func (s *LifecycleService) RecordLoginFailure(ctx context.Context, orgID, userID string) error {
	policy, err := s.policyFor(ctx, orgID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	locked := s.lockouts.RecordFailure(userID, policy.LockoutThreshold, policy.LockoutDuration())
	if locked && s.events != nil {
		s.events.LogEvent(ctx, orgID, userID,
			eventdomain.EventLoginLockout, eventdomain.SeverityHigh,
			fmt.Sprintf("user locked out after %d consecutive failed logins", policy.LockoutThreshold),
			true)
	}
	return nil
}

// IsLockedOut reports whether the user is inside an active lockout window.
func (s *LifecycleService) IsLockedOut(userID string) bool {
	return s.lockouts.Locked(userID)
}

func (s *LifecycleService) policyFor(ctx context.Context, orgID string) (policydomain.SessionPolicy, error) {
	p, err := s.policies.GetByOrgID(ctx, orgID)
	if err != nil {
		return policydomain.SessionPolicy{}, err
	}
	if p == nil {
		return policydomain.Default(), nil
	}
	return p.Normalize(), nil
}
