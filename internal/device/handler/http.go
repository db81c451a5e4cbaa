// Package handler exposes the device registry over HTTP+JSON.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fieldops-session-control/internal/device/domain"
	"fieldops-session-control/internal/httpapi"
	"fieldops-session-control/internal/platform/rbac"
	"fieldops-session-control/internal/server/middleware"
)

// Handler serves the device endpoints.
type Handler struct {
	devices     DeviceRepo
	memberships rbac.OrgMembershipGetter
}

// DeviceRepo is the slice of the device repository the handler needs.
type DeviceRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	ListByUserAndOrg(ctx context.Context, userID, orgID string) ([]*domain.Device, error)
	SetTrusted(ctx context.Context, id string, trusted bool) error
}

// NewHandler returns a device handler.
func NewHandler(devices DeviceRepo, memberships rbac.OrgMembershipGetter) *Handler {
	return &Handler{devices: devices, memberships: memberships}
}

type deviceResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Name            string     `json:"name,omitempty"`
	FingerprintHash string     `json:"fingerprint_hash"`
	Trusted         bool       `json:"trusted"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toResponse(d *domain.Device) deviceResponse {
	return deviceResponse{
		ID:              d.ID,
		UserID:          d.UserID,
		Name:            d.Name,
		FingerprintHash: d.FingerprintHash,
		Trusted:         d.Trusted,
		LastSeenAt:      d.LastSeenAt,
		CreatedAt:       d.CreatedAt,
	}
}

type deviceListResponse struct {
	Devices []deviceResponse `json:"devices"`
}

// ListMyDevices handles GET /v1/me/devices: every device the caller has
// logged in from in this org, oldest first.
func (h *Handler) ListMyDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	orgID, _ := middleware.GetOrgID(r.Context())
	if !ok || userID == "" {
		httpapi.Error(w, http.StatusUnauthorized, "user context required")
		return
	}
	devices, err := h.devices.ListByUserAndOrg(r.Context(), userID, orgID)
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "device store unavailable")
		return
	}
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, toResponse(d))
	}
	httpapi.JSON(w, http.StatusOK, deviceListResponse{Devices: out})
}

type trustRequest struct {
	Trusted bool `json:"trusted"`
}

// SetTrusted handles POST /v1/devices/{id}/trust (org admin, org-scoped).
// Trust is advisory: it flows into session listings so reviewers can tell
// known hardware from first sightings.
func (h *Handler) SetTrusted(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := rbac.RequireOrgAdmin(r.Context(), h.memberships)
	if err != nil {
		writeAccessError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	dev, err := h.devices.GetByID(r.Context(), id)
	if err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "device store unavailable")
		return
	}
	if dev == nil || dev.OrgID != orgID {
		httpapi.Error(w, http.StatusNotFound, "device not found")
		return
	}
	req := trustRequest{Trusted: true}
	if err := httpapi.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpapi.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.devices.SetTrusted(r.Context(), id, req.Trusted); err != nil {
		httpapi.Error(w, http.StatusServiceUnavailable, "device store unavailable")
		return
	}
	dev.Trusted = req.Trusted
	httpapi.JSON(w, http.StatusOK, toResponse(dev))
}

func writeAccessError(w http.ResponseWriter, err error) {
	var ae *rbac.AccessError
	if errors.As(err, &ae) {
		httpapi.Error(w, ae.Status, ae.Msg)
		return
	}
	httpapi.Error(w, http.StatusInternalServerError, "internal error")
}
