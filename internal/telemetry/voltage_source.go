package telemetry

import (
	"context"
	"errors"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/internal/sensors"
)

// VoltageRequester asks the voltage monitor subprocess for a fresh sample.
// The reply arrives asynchronously through the tracker.
type VoltageRequester interface {
	RequestVoltage() error
}

// VoltageSource exposes the tracker state as a sensor source: each collect
// kicks off the next sample request and reports the current damped state.
type VoltageSource struct {
	Tracker     *VoltageTracker
	Requester   VoltageRequester
	Calibration BatteryCalibration
}

func (v *VoltageSource) Name() string {
	return "voltage"
}

func (v *VoltageSource) Collect(ctx context.Context) (sensors.Reading, error) {
	if v.Requester != nil {
		// Best effort; the cached state still serves this cycle.
		_ = v.Requester.RequestVoltage()
	}

	state := v.Tracker.State()
	if !state.HasReading {
		return nil, errors.New("no voltage reading yet")
	}

	pct := v.Calibration.Percent(state.AvgVoltage)

	return func(snap *models.StatsSnapshot) {
		snap.Voltage = state.Voltage
		snap.BatteryPct = pct
		snap.Distance = state.Distance
	}, nil
}
