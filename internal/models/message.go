package models

import "encoding/json"

// Message types exchanged over the dashboard WebSocket.
const (
	TypePing         = "PING"
	TypePong         = "PONG"
	TypeHealthUpdate = "HEALTH_UPDATE"
)

// Envelope is the wire format for every WebSocket message. Unknown or
// malformed envelopes are dropped, never treated as protocol errors.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HealthUpdate wraps a snapshot for broadcast to connected dashboards.
type HealthUpdate struct {
	Type string        `json:"type"`
	Data StatsSnapshot `json:"data"`
}
