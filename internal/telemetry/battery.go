package telemetry

// BatteryCalibration maps a pack voltage to a charge percentage by linear
// interpolation between the empty and full bounds.
type BatteryCalibration struct {
	EmptyVoltage float64
	FullVoltage  float64
}

// Percent returns the charge percentage for the given voltage, clamped to
// [0, 100]. Callers must pass the damped average, never a raw sample.
func (c BatteryCalibration) Percent(voltage float64) float64 {
	span := c.FullVoltage - c.EmptyVoltage
	if span <= 0 {
		return 0
	}

	pct := (voltage - c.EmptyVoltage) / span * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
