package telemetry

import (
	"sync"

	"github.com/mxl983/mango-rover/internal/models"
)

// VoltageState is the latest damped view of the pack produced by the
// tracker.
type VoltageState struct {
	Voltage    float64 // most recent raw sample
	AvgVoltage float64 // rolling average over the history window
	Distance   float64 // ultrasonic range reported alongside the voltage
	HasReading bool
}

// VoltageTracker consumes readings from the voltage monitor subprocess and
// maintains the rolling history. Observe is called from the subprocess
// reader goroutine; State from the aggregation tick.
type VoltageTracker struct {
	mu       sync.Mutex
	history  *VoltageHistory
	latest   float64
	distance float64
	seen     bool
}

// NewVoltageTracker creates a tracker with the given history window.
func NewVoltageTracker(historySize int) *VoltageTracker {
	return &VoltageTracker{
		history: NewVoltageHistory(historySize),
	}
}

// Observe records one reading from the voltage monitor.
func (t *VoltageTracker) Observe(reading models.DriverReading) {
	if reading.Type != "voltage" || reading.Value == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.history.Add(reading.Value)
	t.latest = reading.Value
	t.distance = reading.Distance
	t.seen = true
}

// State returns the current damped view of the pack.
func (t *VoltageTracker) State() VoltageState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return VoltageState{
		Voltage:    t.latest,
		AvgVoltage: t.history.Average(),
		Distance:   t.distance,
		HasReading: t.seen,
	}
}
