package domain

import (
	"encoding/json"
	"time"
)

// Event is a single operational telemetry record. Events are serialized as
// JSON onto the telemetry topic and consumed by the log-shipping worker;
// field names are part of the wire contract.
type Event struct {
	OrgID     string          `json:"orgId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
