package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/internal/telemetry"
	"github.com/rs/zerolog"
)

// SnapshotBroadcaster fans a completed snapshot out to connected clients.
type SnapshotBroadcaster interface {
	Broadcast(snap models.StatsSnapshot)
}

// TelemetryService runs the periodic aggregation and broadcast cycle. The
// broadcast tick is strictly periodic and independent of the idle monitor's
// tick; neither suppresses the other.
type TelemetryService struct {
	aggregator  *telemetry.Aggregator
	broadcaster SnapshotBroadcaster
	interval    time.Duration
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTelemetryService initializes a new TelemetryService.
func NewTelemetryService(aggregator *telemetry.Aggregator, broadcaster SnapshotBroadcaster,
	interval time.Duration, logger zerolog.Logger) *TelemetryService {

	return &TelemetryService{
		aggregator:  aggregator,
		broadcaster: broadcaster,
		interval:    interval,
		logger:      logger,
	}
}

// Start launches the aggregation loop in a separate goroutine.
func (t *TelemetryService) Start() error {
	if t.ctx != nil {
		t.logger.Warn().Msg("TelemetryService is already running")
		return errors.New("telemetry service is already running")
	}

	t.ctx, t.cancel = context.WithCancel(context.Background())

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.runBroadcastLoop()
	}()

	t.logger.Info().Dur("interval", t.interval).Msg("TelemetryService started successfully")
	return nil
}

// Stop gracefully stops the telemetry service.
func (t *TelemetryService) Stop() error {
	if t.ctx == nil {
		t.logger.Warn().Msg("TelemetryService is not running")
		return errors.New("telemetry service is not running")
	}

	t.cancel()
	t.wg.Wait()

	t.ctx = nil
	t.cancel = nil

	t.logger.Info().Msg("TelemetryService stopped successfully")
	return nil
}

// runBroadcastLoop aggregates and broadcasts a snapshot every interval.
func (t *TelemetryService) runBroadcastLoop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := t.aggregator.Collect(t.ctx)
			t.broadcaster.Broadcast(snap)

		case <-t.ctx.Done():
			t.logger.Info().Msg("TelemetryService stopping gracefully")
			return
		}
	}
}
