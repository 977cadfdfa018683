package models

// Unavailable is the sentinel for numeric snapshot fields whose sensor source
// failed during the aggregation cycle.
const Unavailable = float64(-1)

// Position is an optional GPS fix included when the serial GPS source is
// enabled and produced a reading.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// StatsSnapshot is one complete telemetry reading broadcast to every
// connected dashboard. Fields hold Unavailable (or empty string) when their
// source failed; a partial snapshot is still broadcast.
type StatsSnapshot struct {
	CPUTemp    float64   `json:"cpuTemp"`
	CPULoadPct float64   `json:"cpuLoad"`
	BatteryPct float64   `json:"battery"`
	Voltage    float64   `json:"voltage"`
	Distance   float64   `json:"distance"`
	WifiSignal float64   `json:"wifiSignal"`
	USBPower   string    `json:"usbPower"`
	Position   *Position `json:"position,omitempty"`
	Timestamp  string    `json:"timestamp"`
}

// NewStatsSnapshot returns a snapshot with every field set to its sentinel.
func NewStatsSnapshot() StatsSnapshot {
	return StatsSnapshot{
		CPUTemp:    Unavailable,
		CPULoadPct: Unavailable,
		BatteryPct: Unavailable,
		Voltage:    Unavailable,
		Distance:   Unavailable,
		WifiSignal: Unavailable,
		USBPower:   "",
	}
}
