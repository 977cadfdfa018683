package sensors

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/pkg/shell"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/host"
)

var errEmptyReading = errors.New("sensor returned no data")

// CPUTempSource reads the SoC temperature through vcgencmd, falling back to
// the kernel thermal sensors when vcgencmd is unavailable.
type CPUTempSource struct {
	Runner shell.Runner
	Logger zerolog.Logger

	// Sensors overrides the thermal sensor read, nil means gopsutil.
	Sensors func() ([]host.TemperatureStat, error)
}

func (c *CPUTempSource) Name() string {
	return "cpu_temp"
}

func (c *CPUTempSource) Collect(ctx context.Context) (Reading, error) {
	temp, err := c.read(ctx)
	if err != nil {
		return nil, err
	}

	c.Logger.Debug().Float64("cpu_temp", temp).Msg("CPU temperature collected")

	return func(snap *models.StatsSnapshot) {
		snap.CPUTemp = temp
	}, nil
}

func (c *CPUTempSource) read(ctx context.Context) (float64, error) {
	out, err := c.Runner.Run(ctx, "vcgencmd measure_temp")
	if err == nil {
		return parseVcgencmdTemp(out)
	}

	c.Logger.Debug().Err(err).Msg("vcgencmd unavailable, trying thermal sensors")

	readSensors := c.Sensors
	if readSensors == nil {
		readSensors = host.SensorsTemperatures
	}
	sensors, sensErr := readSensors()
	if sensErr != nil {
		return 0, err
	}
	for _, s := range sensors {
		if strings.Contains(s.SensorKey, "cpu") || strings.Contains(s.SensorKey, "thermal") {
			return s.Temperature, nil
		}
	}
	return 0, err
}

// parseVcgencmdTemp extracts the numeric value from output shaped like
// "temp=48.3'C".
func parseVcgencmdTemp(out string) (float64, error) {
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "temp=")
	out = strings.TrimSuffix(out, "'C")
	if out == "" {
		return 0, errEmptyReading
	}

	temp, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, err
	}
	return temp, nil
}
