package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fieldops-session-control/internal/telemetry"
	"fieldops-session-control/internal/telemetry/domain"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for
// http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// statusRecorder captures the response status for the telemetry event.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Telemetry returns middleware that emits a telemetry event after each
// request. Best-effort: failures are logged and do not fail the request. If
// emitter is nil the middleware no-ops. skipPaths lists paths to not emit
// (e.g. /v1/healthz).
func Telemetry(emitter telemetry.EventEmitter, skipPaths map[string]bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if emitter == nil || skipPaths[r.URL.Path] {
				return
			}
			meta := httpRequestMetadata{
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: rec.status,
				DurationMs: time.Since(start).Milliseconds(),
				ClientIP:   ClientIP(r),
			}
			metaJSON, _ := json.Marshal(meta)
			orgID, _ := GetOrgID(r.Context())
			userID, _ := GetUserID(r.Context())
			telemetry.EmitAsync(emitter, r.Context(), &domain.Event{
				OrgID:     orgID,
				UserID:    userID,
				EventType: "http_request",
				Source:    "http_middleware",
				Metadata:  metaJSON,
				CreatedAt: time.Now().UTC(),
			})
		})
	}
}
