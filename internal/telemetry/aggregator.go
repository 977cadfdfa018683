package telemetry

import (
	"context"
	"time"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/internal/sensors"
	"github.com/mxl983/mango-rover/internal/utils"
	"github.com/mxl983/mango-rover/pkg/clock"
	"github.com/rs/zerolog"
)

// Aggregator merges independent sensor sources into one StatsSnapshot per
// collection cycle. Each source is isolated: a failing or slow source leaves
// its field at the sentinel and never blocks the rest of the cycle. There
// are no in-cycle retries; the next tick is the retry.
type Aggregator struct {
	registry *sensors.Registry
	pool     *utils.WorkerPool
	timeout  time.Duration
	clk      clock.Clock
	logger   zerolog.Logger
}

// NewAggregator creates an Aggregator over the registered sources.
func NewAggregator(registry *sensors.Registry, pool *utils.WorkerPool, timeout time.Duration,
	clk clock.Clock, logger zerolog.Logger) *Aggregator {

	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Aggregator{
		registry: registry,
		pool:     pool,
		timeout:  timeout,
		clk:      clk,
		logger:   logger,
	}
}

type sourceResult struct {
	name    string
	reading sensors.Reading
	err     error
}

// Collect runs every source and returns the assembled snapshot. Readings
// are applied here, on the calling goroutine, so the snapshot is built by a
// single writer and replaced atomically by the caller.
func (a *Aggregator) Collect(ctx context.Context) models.StatsSnapshot {
	snap := models.NewStatsSnapshot()

	sources := a.registry.Sources()
	results := make(chan sourceResult, len(sources))

	collectCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	for _, source := range sources {
		src := source
		a.pool.Submit(func() {
			reading, err := src.Collect(collectCtx)
			results <- sourceResult{name: src.Name(), reading: reading, err: err}
		})
	}

	for range sources {
		select {
		case res := <-results:
			if res.err != nil {
				a.logger.Warn().Err(res.err).Str("source", res.name).Msg("Sensor source unavailable")
				continue
			}
			res.reading(&snap)
		case <-collectCtx.Done():
			a.logger.Warn().Msg("Sensor collection cycle timed out; broadcasting partial snapshot")
			snap.Timestamp = a.clk.Now().Format("15:04:05")
			return snap
		}
	}

	snap.Timestamp = a.clk.Now().Format("15:04:05")
	return snap
}
