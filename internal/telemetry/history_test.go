package telemetry

import (
	"testing"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/stretchr/testify/assert"
)

// TestVoltageHistory_EvictsOldest tests that the window drops the oldest
// reading once full.
func TestVoltageHistory_EvictsOldest(t *testing.T) {
	h := NewVoltageHistory(3)

	h.Add(1)
	h.Add(2)
	h.Add(3)
	h.Add(4)

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []float64{2, 3, 4}, h.Values())
	assert.InDelta(t, 3.0, h.Average(), 1e-9)
}

// TestVoltageHistory_EmptyAverage tests the empty-window average.
func TestVoltageHistory_EmptyAverage(t *testing.T) {
	h := NewVoltageHistory(5)
	assert.Equal(t, 0.0, h.Average())
	assert.Equal(t, 0, h.Len())
}

// TestVoltageHistory_ZeroCapacity tests that a nonsensical capacity still
// yields a usable window.
func TestVoltageHistory_ZeroCapacity(t *testing.T) {
	h := NewVoltageHistory(0)
	h.Add(12.0)
	h.Add(11.0)

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, []float64{11.0}, h.Values())
}

// TestBatteryCalibration_Percent tests the voltage-to-percentage mapping,
// including clamping outside the calibrated range.
func TestBatteryCalibration_Percent(t *testing.T) {
	cal := BatteryCalibration{EmptyVoltage: 9.0, FullVoltage: 12.6}

	assert.InDelta(t, 0.0, cal.Percent(9.0), 1e-9)
	assert.InDelta(t, 100.0, cal.Percent(12.6), 1e-9)
	assert.InDelta(t, 80.5555, cal.Percent(11.9), 0.001)

	// Out-of-range readings clamp instead of going negative or above 100.
	assert.Equal(t, 0.0, cal.Percent(8.2))
	assert.Equal(t, 100.0, cal.Percent(13.1))
}

// TestVoltageTracker_FiltersReadings tests that only voltage readings with a
// non-zero value land in the history.
func TestVoltageTracker_FiltersReadings(t *testing.T) {
	tr := NewVoltageTracker(20)

	tr.Observe(models.DriverReading{Type: "status", Value: 12.0})
	tr.Observe(models.DriverReading{Type: "voltage", Value: 0})

	state := tr.State()
	assert.False(t, state.HasReading)

	tr.Observe(models.DriverReading{Type: "voltage", Value: 11.8, Distance: 42.5})

	state = tr.State()
	assert.True(t, state.HasReading)
	assert.Equal(t, 11.8, state.Voltage)
	assert.Equal(t, 42.5, state.Distance)
	assert.InDelta(t, 11.8, state.AvgVoltage, 1e-9)
}

// TestVoltageTracker_AveragesWindow tests that the damped average follows
// the rolling window rather than the latest sample.
func TestVoltageTracker_AveragesWindow(t *testing.T) {
	tr := NewVoltageTracker(2)

	tr.Observe(models.DriverReading{Type: "voltage", Value: 12.0})
	tr.Observe(models.DriverReading{Type: "voltage", Value: 11.0})
	tr.Observe(models.DriverReading{Type: "voltage", Value: 10.0})

	state := tr.State()
	assert.Equal(t, 10.0, state.Voltage)
	assert.InDelta(t, 10.5, state.AvgVoltage, 1e-9)
}
