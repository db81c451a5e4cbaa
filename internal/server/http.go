// Package server assembles the HTTP router: routes, auth middleware, and
// request telemetry.
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	devicehandler "fieldops-session-control/internal/device/handler"
	healthhandler "fieldops-session-control/internal/health/handler"
	"fieldops-session-control/internal/platform/rbac"
	eventhandler "fieldops-session-control/internal/securityevent/handler"
	eventrepo "fieldops-session-control/internal/securityevent/repository"
	"fieldops-session-control/internal/server/middleware"
	sessionhandler "fieldops-session-control/internal/session/handler"
	sessionrepo "fieldops-session-control/internal/session/repository"
	sessionservice "fieldops-session-control/internal/session/service"
	policyhandler "fieldops-session-control/internal/sessionpolicy/handler"
	policyrepo "fieldops-session-control/internal/sessionpolicy/repository"
	"fieldops-session-control/internal/telemetry"
)

// Deps holds the handler dependencies for the HTTP router.
type Deps struct {
	// Lifecycle is the session lifecycle service; required.
	Lifecycle *sessionservice.LifecycleService
	// SessionRepo backs the read-only session listings.
	SessionRepo sessionrepo.Repository
	// EventRepo backs the security event review surface.
	EventRepo eventrepo.Repository
	// DeviceRepo backs the device registry endpoints.
	DeviceRepo devicehandler.DeviceRepo
	// PolicyRepo backs the session policy endpoints.
	PolicyRepo policyrepo.Repository
	// Memberships resolves caller roles for the admin endpoints.
	Memberships rbac.OrgMembershipGetter
	// Verifier validates bearer tokens on the protected routes.
	Verifier middleware.TokenVerifier
	// Telemetry emits http_request events. Nil disables request telemetry.
	Telemetry telemetry.EventEmitter
	// HealthPinger is used for readiness (e.g. *sql.DB). Nil skips the DB ping.
	HealthPinger healthhandler.Pinger
}

// NewRouter builds the full route table.
//
// Route → handler mapping:
//   - /v1/healthz                → internal/health/handler
//   - /v1/sessions*, /v1/me/*,
//     /v1/users/*, /v1/auth/*    → internal/session/handler
//   - /v1/security-events*       → internal/securityevent/handler
//   - /v1/me/devices, /v1/devices* → internal/device/handler
//   - /v1/session-policy         → internal/sessionpolicy/handler
//
// POST /v1/sessions and POST /v1/auth/failures sit outside the auth
// middleware: session creation does its own fail-closed token verification,
// and auth failures are reported before any token exists.
func NewRouter(deps Deps) *mux.Router {
	sessions := sessionhandler.NewHandler(deps.Lifecycle, deps.SessionRepo, deps.Memberships)
	events := eventhandler.NewHandler(deps.EventRepo, deps.Memberships)
	devices := devicehandler.NewHandler(deps.DeviceRepo, deps.Memberships)
	policies := policyhandler.NewHandler(deps.PolicyRepo, deps.Memberships)
	health := healthhandler.NewHandler(deps.HealthPinger)

	r := mux.NewRouter()
	r.Use(middleware.Telemetry(deps.Telemetry, map[string]bool{"/v1/healthz": true}))

	r.HandleFunc("/v1/healthz", health.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/v1/sessions", sessions.Create).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/failures", sessions.RecordAuthFailure).Methods(http.MethodPost)

	p := r.PathPrefix("/v1").Subrouter()
	p.Use(middleware.Auth(deps.Verifier))
	p.HandleFunc("/sessions/validate", sessions.Validate).Methods(http.MethodPost)
	p.HandleFunc("/sessions/heartbeat", sessions.Heartbeat).Methods(http.MethodPost)
	p.HandleFunc("/sessions/current", sessions.Logout).Methods(http.MethodDelete)
	p.HandleFunc("/sessions/{id}/terminate", sessions.TerminateByID).Methods(http.MethodPost)
	p.HandleFunc("/sessions/{id}", sessions.GetOrgSession).Methods(http.MethodGet)
	p.HandleFunc("/sessions", sessions.ListOrgSessions).Methods(http.MethodGet)
	p.HandleFunc("/users/{user_id}/sessions/terminate", sessions.TerminateAllForUser).Methods(http.MethodPost)
	p.HandleFunc("/me/sessions", sessions.ListMySessions).Methods(http.MethodGet)
	p.HandleFunc("/me/sessions/history", sessions.ListMyHistory).Methods(http.MethodGet)
	p.HandleFunc("/me/devices", devices.ListMyDevices).Methods(http.MethodGet)
	p.HandleFunc("/devices/{id}/trust", devices.SetTrusted).Methods(http.MethodPost)
	p.HandleFunc("/security-events", events.List).Methods(http.MethodGet)
	p.HandleFunc("/security-events/{id}/resolve", events.Resolve).Methods(http.MethodPost)
	p.HandleFunc("/session-policy", policies.Get).Methods(http.MethodGet)
	p.HandleFunc("/session-policy", policies.Put).Methods(http.MethodPut)

	return r
}
