// Package handler exposes the org session policy document over HTTP+JSON.
package handler

import (
	"net/http"

	"fieldops-session-control/internal/httpapi"
	"fieldops-session-control/internal/platform/rbac"
	"fieldops-session-control/internal/sessionpolicy/domain"
	"fieldops-session-control/internal/sessionpolicy/repository"
)

// Handler serves the session policy endpoints.
type Handler struct {
	policies    repository.Repository
	memberships rbac.OrgMembershipGetter
}

// NewHandler returns a session policy handler.
func NewHandler(policies repository.Repository, memberships rbac.OrgMembershipGetter) *Handler {
	return &Handler{policies: policies, memberships: memberships}
}

// Get handles GET /v1/session-policy (manager and above). Orgs without a
// stored policy see the platform defaults.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := rbac.RequireManager(r.Context(), h.memberships)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	policy, err := h.policies.GetByOrgID(r.Context(), orgID)
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "policy store unavailable")
		return
	}
	if policy == nil {
		def := domain.Default()
		httpapi.JSON(w, http.StatusOK, def)
		return
	}
	httpapi.JSON(w, http.StatusOK, policy.Normalize())
}

// Put handles PUT /v1/session-policy (org admin). The stored document is
// normalized so partial updates fall back to defaults rather than zeroes.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := rbac.RequireOrgAdmin(r.Context(), h.memberships)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	var policy domain.SessionPolicy
	if err := httpapi.Decode(r, &policy); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "malformed policy document")
		return
	}
	if err := h.policies.Upsert(r.Context(), orgID, policy); err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "policy store unavailable")
		return
	}
	httpapi.JSON(w, http.StatusOK, policy.Normalize())
}

func writeAccessError(w http.ResponseWriter, err error) {
	if ae, ok := err.(*rbac.AccessError); ok {
		httpapi.Error(w, ae.Status, ae.Msg)
		return
	}
	httpapi.Error(w, http.StatusInternalServerError, "internal error")
}
