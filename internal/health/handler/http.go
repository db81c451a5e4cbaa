// Package handler exposes the liveness and readiness probe.
package handler

import (
	"context"
	"net/http"
	"time"

	"fieldops-session-control/internal/httpapi"
)

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves GET /v1/healthz.
type Handler struct {
	db Pinger
}

// NewHandler returns a health handler. db may be nil to skip the readiness check.
func NewHandler(db Pinger) *Handler {
	return &Handler{db: db}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// Healthz reports liveness and, when a database is attached, readiness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		httpapi.JSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		httpapi.JSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Database: "unreachable"})
		return
	}
	httpapi.JSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
}
