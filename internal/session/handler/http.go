// Package handler exposes the session lifecycle over HTTP+JSON.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	devicedomain "fieldops-session-control/internal/device/domain"
	"fieldops-session-control/internal/httpapi"
	"fieldops-session-control/internal/platform/rbac"
	"fieldops-session-control/internal/server/middleware"
	"fieldops-session-control/internal/session/domain"
	"fieldops-session-control/internal/session/repository"
	"fieldops-session-control/internal/session/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler serves the session endpoints.
type Handler struct {
	svc         *service.LifecycleService
	sessions    repository.Repository
	memberships rbac.OrgMembershipGetter
}

// NewHandler returns a session handler.
func NewHandler(svc *service.LifecycleService, sessions repository.Repository, memberships rbac.OrgMembershipGetter) *Handler {
	return &Handler{svc: svc, sessions: sessions, memberships: memberships}
}

type sessionResponse struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"user_id"`
	OrgID              string             `json:"org_id"`
	DeviceID           string             `json:"device_id,omitempty"`
	DeviceName         string             `json:"device_name,omitempty"`
	Trusted            bool               `json:"trusted"`
	IPAddress          string             `json:"ip_address,omitempty"`
	Geo                domain.Geolocation `json:"geo,omitempty"`
	LoginAt            time.Time          `json:"login_at"`
	LastActivityAt     time.Time          `json:"last_activity_at"`
	ExpiresAt          time.Time          `json:"expires_at"`
	IdleTimeoutMinutes int                `json:"idle_timeout_minutes"`
	DurationSeconds    int64              `json:"duration_seconds,omitempty"`
	Active             bool               `json:"active"`
	TerminatedReason   string             `json:"terminated_reason,omitempty"`
	MFAVerified        bool               `json:"mfa_verified"`
}

func toResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:                 s.ID,
		UserID:             s.UserID,
		OrgID:              s.OrgID,
		DeviceID:           s.DeviceID,
		DeviceName:         s.DeviceName,
		Trusted:            s.Trusted,
		IPAddress:          s.IPAddress,
		Geo:                s.Geo,
		LoginAt:            s.LoginAt,
		LastActivityAt:     s.LastActivityAt,
		ExpiresAt:          s.ExpiresAt,
		IdleTimeoutMinutes: s.IdleTimeoutMinutes,
		DurationSeconds:    s.DurationSeconds,
		Active:             s.Active,
		TerminatedReason:   string(s.Reason),
		MFAVerified:        s.MFAVerified,
	}
}

func toResponses(ss []*domain.Session) []sessionResponse {
	out := make([]sessionResponse, 0, len(ss))
	for _, s := range ss {
		out = append(out, toResponse(s))
	}
	return out
}

type sessionListResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

// writeServiceError maps lifecycle sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoAuthSession):
		httpapi.Error(w, http.StatusUnauthorized, "no valid identity provider session")
	case errors.Is(err, service.ErrSessionInvalid):
		httpapi.Error(w, http.StatusGone, "session is no longer active")
	case errors.Is(err, service.ErrInvalidReason):
		httpapi.Error(w, http.StatusBadRequest, "invalid termination reason")
	case errors.Is(err, service.ErrPersistence):
		httpapi.Error(w, http.StatusServiceUnavailable, "session store unavailable")
	default:
		httpapi.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func pageParams(r *http.Request) (limit, offset int32) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = int32(v)
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = int32(v)
	}
	return limit, offset
}

type createRequest struct {
	UserID      string                   `json:"user_id"`
	DeviceName  string                   `json:"device_name"`
	Fingerprint devicedomain.Fingerprint `json:"fingerprint"`
	MFAVerified bool                     `json:"mfa_verified"`
}

// Create handles POST /v1/sessions. The identity-provider token comes in the
// Authorization header; this route is outside the auth middleware because the
// lifecycle service does its own fail-closed verification.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractBearer(r)
	if token == "" {
		httpapi.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	var req createRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := h.svc.CreateSession(r.Context(), service.CreateSessionInput{
		UserID:       req.UserID,
		SessionToken: token,
		DeviceName:   req.DeviceName,
		Fingerprint:  req.Fingerprint,
		IPAddress:    middleware.ClientIP(r),
		MFAVerified:  req.MFAVerified,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, toResponse(sess))
}

// Validate handles POST /v1/sessions/validate: the server half of the client
// validity monitor. 200 with the session on success, 410 when the session is
// gone, 401 when the provider token itself is invalid.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.GetBearerToken(r.Context())
	sess, err := h.svc.Validate(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, toResponse(sess))
}

// Heartbeat handles POST /v1/sessions/heartbeat. Always 200; a heartbeat
// against a terminated session is a silent no-op.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.GetBearerToken(r.Context())
	if err := h.svc.UpdateActivity(r.Context(), token); err != nil {
		writeServiceError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, struct{}{})
}

// Logout handles DELETE /v1/sessions/current. Idempotent: 200 whether or not
// an active session existed.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.GetBearerToken(r.Context())
	if err := h.svc.Logout(r.Context(), token); err != nil {
		writeServiceError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, struct{}{})
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

// TerminateByID handles POST /v1/sessions/{id}/terminate (org admin).
// Sessions outside the caller's org are reported as 404.
func (h *Handler) TerminateByID(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := rbac.RequireOrgAdmin(r.Context(), h.memberships)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	sess, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	if sess == nil || sess.OrgID != orgID {
		httpapi.Error(w, http.StatusNotFound, "session not found")
		return
	}
	var req terminateRequest
	if err := httpapi.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpapi.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	reason := domain.ReasonAdminTerminated
	if req.Reason != "" {
		reason = domain.TerminationReason(req.Reason)
	}
	if err := h.svc.TerminateSession(r.Context(), id, reason); err != nil {
		writeServiceError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, struct{}{})
}

type terminateAllRequest struct {
	// KeepCurrent spares the caller's own session ("log out everywhere else").
	KeepCurrent bool `json:"keep_current"`
}

type terminateAllResponse struct {
	TerminatedCount int64 `json:"terminated_count"`
}

// TerminateAllForUser handles POST /v1/users/{user_id}/sessions/terminate.
// Users may log themselves out everywhere; org admins may do it for any member.
func (h *Handler) TerminateAllForUser(w http.ResponseWriter, r *http.Request) {
	targetUserID := mux.Vars(r)["user_id"]
	callerID, _ := middleware.GetUserID(r.Context())

	var req terminateAllRequest
	if err := httpapi.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpapi.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}

	reason := domain.ReasonAdminTerminated
	exceptID := ""
	if callerID == targetUserID {
		reason = domain.ReasonUserLogout
		if req.KeepCurrent {
			token, _ := middleware.GetBearerToken(r.Context())
			current, err := h.svc.CurrentSession(r.Context(), token)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if current != nil {
				exceptID = current.ID
			}
		}
	} else {
		orgID, _, err := rbac.RequireOrgAdmin(r.Context(), h.memberships)
		if err != nil {
			writeAccessError(w, err)
			return
		}
		target, err := h.memberships.GetMembershipByUserAndOrg(r.Context(), targetUserID, orgID)
		if err != nil {
			httpapi.Error(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		if target == nil {
			httpapi.Error(w, http.StatusNotFound, "user not found in organization")
			return
		}
	}

	n, err := h.svc.TerminateAllSessions(r.Context(), targetUserID, exceptID, reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, terminateAllResponse{TerminatedCount: n})
}

// ListOrgSessions handles GET /v1/sessions (manager and above). Lists active
// sessions in the caller's org, optionally filtered by user_id.
func (h *Handler) ListOrgSessions(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := rbac.RequireManager(r.Context(), h.memberships)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	limit, offset := pageParams(r)
	var userFilter *string
	if v := r.URL.Query().Get("user_id"); v != "" {
		userFilter = &v
	}
	sessions, err := h.sessions.ListByOrg(r.Context(), orgID, userFilter, limit, offset)
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	httpapi.JSON(w, http.StatusOK, sessionListResponse{Sessions: toResponses(sessions)})
}

// GetOrgSession handles GET /v1/sessions/{id} (manager and above, org-scoped).
func (h *Handler) GetOrgSession(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := rbac.RequireManager(r.Context(), h.memberships)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	sess, err := h.sessions.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	if sess == nil || sess.OrgID != orgID {
		httpapi.Error(w, http.StatusNotFound, "session not found")
		return
	}
	httpapi.JSON(w, http.StatusOK, toResponse(sess))
}

// ListMySessions handles GET /v1/me/sessions: the caller's active sessions
// across devices.
func (h *Handler) ListMySessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok || userID == "" {
		httpapi.Error(w, http.StatusUnauthorized, "user context required")
		return
	}
	sessions, err := h.sessions.ListActiveByUser(r.Context(), userID)
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	httpapi.JSON(w, http.StatusOK, sessionListResponse{Sessions: toResponses(sessions)})
}

// ListMyHistory handles GET /v1/me/sessions/history: most-recent-first,
// bounded page.
func (h *Handler) ListMyHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok || userID == "" {
		httpapi.Error(w, http.StatusUnauthorized, "user context required")
		return
	}
	limit, offset := pageParams(r)
	sessions, err := h.sessions.ListHistoryByUser(r.Context(), userID, limit, offset)
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	httpapi.JSON(w, http.StatusOK, sessionListResponse{Sessions: toResponses(sessions)})
}

type authFailureRequest struct {
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id"`
}

type authFailureResponse struct {
	Locked bool `json:"locked"`
}

// RecordAuthFailure handles POST /v1/auth/failures, reported by the login
// front end after a rejected credential attempt.
func (h *Handler) RecordAuthFailure(w http.ResponseWriter, r *http.Request) {
	var req authFailureRequest
	if err := httpapi.Decode(r, &req); err != nil || req.UserID == "" {
		httpapi.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := h.svc.RecordLoginFailure(r.Context(), req.OrgID, req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, authFailureResponse{Locked: h.svc.IsLockedOut(req.UserID)})
}

func writeAccessError(w http.ResponseWriter, err error) {
	var ae *rbac.AccessError
	if errors.As(err, &ae) {
		httpapi.Error(w, ae.Status, ae.Msg)
		return
	}
	httpapi.Error(w, http.StatusInternalServerError, "internal error")
}
