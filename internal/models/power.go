package models

import "time"

// IdleShutdownEvent is the structured diagnostic published to the debug log
// topic when the idle monitor cuts power.
type IdleShutdownEvent struct {
	Reason   string    `json:"reason"`
	LastPing time.Time `json:"last_ping"`
	Uptime   string    `json:"uptime"`
}

// DriverRequest is one line-delimited JSON request written to a driver
// subprocess on stdin.
type DriverRequest struct {
	Command string   `json:"command,omitempty"`
	Keys    []string `json:"keys,omitempty"`
}

// DriverReading is one line-delimited JSON event emitted by the voltage
// monitor subprocess on stdout.
type DriverReading struct {
	Type     string  `json:"type"`
	Value    float64 `json:"value"`
	Distance float64 `json:"distance"`
}
