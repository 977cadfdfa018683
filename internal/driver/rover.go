package driver

import (
	"encoding/json"
	"time"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/rs/zerolog"
)

// MotorDriver drives the motor controller script. The wire format is the
// bare array of held keys, matching what the script reads off stdin.
type MotorDriver struct {
	*Client
}

// NewMotorDriver supervises the motor controller script.
func NewMotorDriver(pythonPath, script string, maxRestarts int, restartDelay time.Duration, logger zerolog.Logger) *MotorDriver {
	return &MotorDriver{
		Client: NewClient("motor", pythonPath, script, nil, maxRestarts, restartDelay, logger),
	}
}

// Drive forwards the normalized held-key set to the motor controller.
func (m *MotorDriver) Drive(keys []string) error {
	return m.Send(keys)
}

// VoltageMonitor supervises the voltage/distance monitor script and feeds
// its readings into an observer (the telemetry tracker).
type VoltageMonitor struct {
	*Client
}

// ReadingObserver consumes parsed voltage readings.
type ReadingObserver interface {
	Observe(reading models.DriverReading)
}

// NewVoltageMonitor supervises the voltage monitor script, forwarding every
// parsed reading to the observer. Malformed lines are logged and dropped.
func NewVoltageMonitor(pythonPath, script string, observer ReadingObserver,
	maxRestarts int, restartDelay time.Duration, logger zerolog.Logger) *VoltageMonitor {

	handler := func(line []byte) {
		var reading models.DriverReading
		if err := json.Unmarshal(line, &reading); err != nil {
			logger.Error().Err(err).Str("line", string(line)).Msg("Failed to parse voltage data")
			return
		}
		observer.Observe(reading)
	}

	return &VoltageMonitor{
		Client: NewClient("voltage", pythonPath, script, handler, maxRestarts, restartDelay, logger),
	}
}

// RequestVoltage asks the monitor for a fresh sample; the reply arrives
// asynchronously on stdout.
func (v *VoltageMonitor) RequestVoltage() error {
	return v.Send(models.DriverRequest{Command: "get_voltage"})
}
