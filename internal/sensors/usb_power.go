package sensors

import (
	"context"
	"sync/atomic"

	"github.com/mxl983/mango-rover/internal/models"
)

// USBPowerState tracks whether the downstream USB rail (lights, audio) is
// powered. It is toggled by the system API and read by the aggregator.
type USBPowerState struct {
	on atomic.Bool
}

// NewUSBPowerState returns the rail state, which boots powered.
func NewUSBPowerState() *USBPowerState {
	s := &USBPowerState{}
	s.on.Store(true)
	return s
}

func (s *USBPowerState) Set(on bool) {
	s.on.Store(on)
}

func (s *USBPowerState) On() bool {
	return s.on.Load()
}

// USBPowerSource reports the USB rail state into the snapshot.
type USBPowerSource struct {
	State *USBPowerState
}

func (u *USBPowerSource) Name() string {
	return "usb_power"
}

func (u *USBPowerSource) Collect(ctx context.Context) (Reading, error) {
	state := "off"
	if u.State.On() {
		state = "on"
	}

	return func(snap *models.StatsSnapshot) {
		snap.USBPower = state
	}, nil
}
