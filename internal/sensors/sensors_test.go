package sensors

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedRunner struct {
	mu       sync.Mutex
	output   string
	err      error
	commands []string
}

func (c *cannedRunner) Run(_ context.Context, cmd string) (string, error) {
	c.mu.Lock()
	c.commands = append(c.commands, cmd)
	c.mu.Unlock()
	return c.output, c.err
}

// TestParseVcgencmdTemp tests the vcgencmd output parser.
func TestParseVcgencmdTemp(t *testing.T) {
	temp, err := parseVcgencmdTemp("temp=48.3'C\n")
	require.NoError(t, err)
	assert.Equal(t, 48.3, temp)

	_, err = parseVcgencmdTemp("")
	assert.ErrorIs(t, err, errEmptyReading)

	_, err = parseVcgencmdTemp("temp=not-a-number'C")
	assert.Error(t, err)
}

// TestCPUTempSource_Collect tests the end-to-end temperature reading.
func TestCPUTempSource_Collect(t *testing.T) {
	runner := &cannedRunner{output: "temp=51.0'C"}
	src := &CPUTempSource{Runner: runner, Logger: zerolog.Nop()}

	reading, err := src.Collect(context.Background())
	require.NoError(t, err)

	snap := models.NewStatsSnapshot()
	reading(&snap)
	assert.Equal(t, 51.0, snap.CPUTemp)
	assert.Equal(t, []string{"vcgencmd measure_temp"}, runner.commands)
}

// TestCPUTempSource_RunnerFailure tests that a missing vcgencmd surfaces as
// a source error when the thermal sensors are unreadable too.
func TestCPUTempSource_RunnerFailure(t *testing.T) {
	runner := &cannedRunner{err: errors.New("command not found")}
	src := &CPUTempSource{
		Runner:  runner,
		Logger:  zerolog.Nop(),
		Sensors: func() ([]host.TemperatureStat, error) { return nil, errors.New("no sensors") },
	}

	_, err := src.Collect(context.Background())
	assert.Error(t, err)
}

// TestCPUTempSource_SensorFallback tests the thermal sensor path used when
// vcgencmd is not installed.
func TestCPUTempSource_SensorFallback(t *testing.T) {
	runner := &cannedRunner{err: errors.New("command not found")}
	src := &CPUTempSource{
		Runner: runner,
		Logger: zerolog.Nop(),
		Sensors: func() ([]host.TemperatureStat, error) {
			return []host.TemperatureStat{
				{SensorKey: "acpitz", Temperature: 30.0},
				{SensorKey: "cpu_thermal", Temperature: 49.5},
			}, nil
		},
	}

	reading, err := src.Collect(context.Background())
	require.NoError(t, err)

	snap := models.NewStatsSnapshot()
	reading(&snap)
	assert.Equal(t, 49.5, snap.CPUTemp)
}

// TestParseSignalLevel tests the iwconfig output parser.
func TestParseSignalLevel(t *testing.T) {
	out := `wlan0     IEEE 802.11  ESSID:"rover-net"
          Link Quality=58/70  Signal level=-52 dBm`

	dbm, err := parseSignalLevel(out)
	require.NoError(t, err)
	assert.Equal(t, -52.0, dbm)

	_, err = parseSignalLevel("wlan0: no wireless extensions.")
	assert.ErrorIs(t, err, errEmptyReading)
}

// TestWifiSignalSource_DefaultsInterface tests the wlan0 fallback.
func TestWifiSignalSource_DefaultsInterface(t *testing.T) {
	runner := &cannedRunner{output: "Signal level=-60 dBm"}
	src := &WifiSignalSource{Runner: runner, Logger: zerolog.Nop()}

	reading, err := src.Collect(context.Background())
	require.NoError(t, err)

	snap := models.NewStatsSnapshot()
	reading(&snap)
	assert.Equal(t, -60.0, snap.WifiSignal)
	assert.Equal(t, []string{"iwconfig wlan0"}, runner.commands)
}

// TestUSBPowerState tests the boot default and the snapshot mirror.
func TestUSBPowerState(t *testing.T) {
	state := NewUSBPowerState()
	assert.True(t, state.On())

	src := &USBPowerSource{State: state}

	reading, err := src.Collect(context.Background())
	require.NoError(t, err)

	snap := models.NewStatsSnapshot()
	reading(&snap)
	assert.Equal(t, "on", snap.USBPower)

	state.Set(false)
	reading, err = src.Collect(context.Background())
	require.NoError(t, err)
	reading(&snap)
	assert.Equal(t, "off", snap.USBPower)
}
