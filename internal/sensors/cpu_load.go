package sensors

import (
	"context"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
)

// CPULoadSource collects CPU utilization.
type CPULoadSource struct {
	Logger zerolog.Logger
}

func (c *CPULoadSource) Name() string {
	return "cpu_load"
}

func (c *CPULoadSource) Collect(ctx context.Context) (Reading, error) {
	cpuPercentages, err := cpu.Percent(0, false)
	if err != nil {
		return nil, err
	}

	if len(cpuPercentages) == 0 {
		return nil, errEmptyReading
	}

	pct := cpuPercentages[0]
	c.Logger.Debug().Float64("cpu_load", pct).Msg("CPU load collected")

	return func(snap *models.StatsSnapshot) {
		snap.CPULoadPct = pct
	}, nil
}
