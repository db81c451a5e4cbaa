// Package handler exposes the security event review surface over HTTP+JSON.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"fieldops-session-control/internal/httpapi"
	"fieldops-session-control/internal/platform/rbac"
	"fieldops-session-control/internal/securityevent/domain"
	"fieldops-session-control/internal/securityevent/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler serves the security event endpoints.
type Handler struct {
	events      repository.Repository
	memberships rbac.OrgMembershipGetter
}

// NewHandler returns a security event handler.
func NewHandler(events repository.Repository, memberships rbac.OrgMembershipGetter) *Handler {
	return &Handler{events: events, memberships: memberships}
}

type eventResponse struct {
	ID             string     `json:"id"`
	OrgID          string     `json:"org_id"`
	UserID         string     `json:"user_id"`
	Type           string     `json:"type"`
	Severity       string     `json:"severity"`
	Description    string     `json:"description"`
	RequiresAction bool       `json:"requires_action"`
	Resolved       bool       `json:"resolved"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toResponse(e *domain.SecurityEvent) eventResponse {
	return eventResponse{
		ID:             e.ID,
		OrgID:          e.OrgID,
		UserID:         e.UserID,
		Type:           string(e.Type),
		Severity:       string(e.Severity),
		Description:    e.Description,
		RequiresAction: e.RequiresAction,
		Resolved:       e.Resolved,
		ResolvedBy:     e.ResolvedBy,
		ResolvedAt:     e.ResolvedAt,
		CreatedAt:      e.CreatedAt,
	}
}

type eventListResponse struct {
	Events []eventResponse `json:"events"`
}

// List handles GET /v1/security-events (manager and above). Supports
// user_id, severity, and resolved filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := rbac.RequireManager(r.Context(), h.memberships)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	q := r.URL.Query()
	f := repository.Filter{UserID: q.Get("user_id")}
	if v := q.Get("severity"); v != "" {
		sev := domain.Severity(v)
		if !sev.Valid() {
			httpapi.Error(w, http.StatusBadRequest, "invalid severity")
			return
		}
		f.Severity = sev
	}
	if v := q.Get("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			httpapi.Error(w, http.StatusBadRequest, "invalid resolved filter")
			return
		}
		f.Resolved = &resolved
	}
	limit, offset := pageParams(r)
	events, err := h.events.ListByOrg(r.Context(), orgID, f, limit, offset)
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toResponse(e))
	}
	httpapi.JSON(w, http.StatusOK, eventListResponse{Events: out})
}

type resolveResponse struct {
	Resolved bool `json:"resolved"`
}

// Resolve handles POST /v1/security-events/{id}/resolve (org admin). Marking
// an already-resolved event again reports resolved=false and changes nothing.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := rbac.RequireOrgAdmin(r.Context(), h.memberships)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	event, err := h.events.GetByID(r.Context(), id)
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}
	if event == nil || event.OrgID != orgID {
		httpapi.Error(w, http.StatusNotFound, "security event not found")
		return
	}
	resolved, err := h.events.Resolve(r.Context(), id, userID)
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}
	httpapi.JSON(w, http.StatusOK, resolveResponse{Resolved: resolved})
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

func writeAccessError(w http.ResponseWriter, err error) {
	if ae, ok := err.(*rbac.AccessError); ok {
		httpapi.Error(w, ae.Status, ae.Msg)
		return
	}
	httpapi.Error(w, http.StatusInternalServerError, "internal error")
}
