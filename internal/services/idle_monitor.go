package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/pkg/clock"
	"github.com/mxl983/mango-rover/pkg/file"
	"github.com/rs/zerolog"
)

// PowerPublisher is the slice of the power channel the idle monitor needs.
type PowerPublisher interface {
	Log(message string)
	TriggerIdleShutdown(event models.IdleShutdownEvent, piOffDelayMs int)
}

// IdleMonitorConfig carries the timing knobs for the idle monitor.
type IdleMonitorConfig struct {
	Tick               time.Duration
	GracePeriod        time.Duration
	IdleTimeout        time.Duration
	ClockJumpThreshold time.Duration
	PiOffDelayMs       int
	ShutdownGraceDelay time.Duration
	SharedDir          string
}

// IdleMonitor powers the rover down after prolonged client silence. It owns
// all of its timestamps explicitly: startup time, last ping, last tick, and
// the one-shot shutdown latch.
type IdleMonitor struct {
	cfg        IdleMonitorConfig
	power      PowerPublisher
	fileClient file.FileOperations
	clk        clock.Clock
	exit       func() // terminates the owning process after the grace delay
	logger     zerolog.Logger

	mu           sync.Mutex
	startupAt    time.Time
	lastPingAt   time.Time
	lastCheckAt  time.Time
	shuttingDown bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIdleMonitor initializes a new IdleMonitor. exit is invoked after the
// shutdown sequence completes and the grace delay has elapsed.
func NewIdleMonitor(cfg IdleMonitorConfig, power PowerPublisher, fileClient file.FileOperations,
	clk clock.Clock, exit func(), logger zerolog.Logger) *IdleMonitor {

	now := clk.Now()
	return &IdleMonitor{
		cfg:         cfg,
		power:       power,
		fileClient:  fileClient,
		clk:         clk,
		exit:        exit,
		logger:      logger,
		startupAt:   now,
		lastPingAt:  now,
		lastCheckAt: now,
	}
}

// RecordPing notes a client liveness confirmation. The hub calls this on
// every heartbeat ping.
func (m *IdleMonitor) RecordPing() {
	m.mu.Lock()
	m.lastPingAt = m.clk.Now()
	m.mu.Unlock()
}

// IsShuttingDown reports whether the shutdown latch is set.
func (m *IdleMonitor) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shuttingDown
}

// Start launches the idle-check loop in a separate goroutine.
func (m *IdleMonitor) Start() error {
	if m.ctx != nil {
		m.logger.Warn().Msg("IdleMonitor is already running")
		return errors.New("idle monitor is already running")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runCheckLoop()
	}()

	m.logger.Info().
		Dur("grace_period", m.cfg.GracePeriod).
		Dur("idle_timeout", m.cfg.IdleTimeout).
		Msg("IdleMonitor started successfully")
	return nil
}

// Stop gracefully stops the idle monitor.
func (m *IdleMonitor) Stop() error {
	if m.ctx == nil {
		m.logger.Warn().Msg("IdleMonitor is not running")
		return errors.New("idle monitor is not running")
	}

	m.cancel()
	m.wg.Wait()

	m.ctx = nil
	m.cancel = nil

	m.logger.Info().Msg("IdleMonitor stopped successfully")
	return nil
}

func (m *IdleMonitor) runCheckLoop() {
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runTick()
		case <-m.ctx.Done():
			m.logger.Info().Msg("IdleMonitor stopping gracefully")
			return
		}
	}
}

// runTick performs one idle evaluation.
func (m *IdleMonitor) runTick() {
	now := m.clk.Now()

	m.mu.Lock()

	// A wall-clock jump far beyond the tick period means the system clock
	// was corrected (NTP sync). Reset the idle baseline instead of treating
	// the artifact as real elapsed idle time.
	if now.Sub(m.lastCheckAt) > m.cfg.ClockJumpThreshold {
		m.logger.Warn().Msg("Clock jump detected (NTP sync). Resetting timers...")
		m.lastPingAt = now
		m.lastCheckAt = now
		m.mu.Unlock()
		m.power.Log("Clock jump detected (NTP sync). Resetting timers...")
		return
	}
	m.lastCheckAt = now

	timeSinceStartup := now.Sub(m.startupAt)
	timeSinceLastPing := now.Sub(m.lastPingAt)

	if timeSinceStartup <= m.cfg.GracePeriod || timeSinceLastPing <= m.cfg.IdleTimeout || m.shuttingDown {
		m.mu.Unlock()
		return
	}

	// Latch before any I/O so subsequent ticks cannot re-enter while the
	// shutdown sequence is in flight.
	m.shuttingDown = true
	lastPing := m.lastPingAt
	m.mu.Unlock()

	m.logger.Warn().
		Dur("time_since_last_ping", timeSinceLastPing).
		Msg("System idle: initiating shutdown")

	if err := m.runShutdownSequence(lastPing, timeSinceStartup); err != nil {
		m.logger.Error().Err(err).Msg("Shutdown sequence failed")

		// Re-arm so a future tick can retry.
		m.mu.Lock()
		m.shuttingDown = false
		m.mu.Unlock()
	}
}

// runShutdownSequence broadcasts the power-off commands, persists the
// shutdown intent for the host watcher, and schedules process exit.
func (m *IdleMonitor) runShutdownSequence(lastPing time.Time, uptime time.Duration) error {
	m.power.TriggerIdleShutdown(models.IdleShutdownEvent{
		Reason:   "idle_timeout",
		LastPing: lastPing,
		Uptime:   uptime.String(),
	}, m.cfg.PiOffDelayMs)

	marker := filepath.Join(m.cfg.SharedDir, "shutdown.req")
	content := fmt.Sprintf("Idle shutdown at %s", m.clk.Now().UTC().Format(time.RFC3339))
	if err := m.fileClient.WriteFile(marker, content); err != nil {
		return fmt.Errorf("failed to write shutdown intent marker: %w", err)
	}

	if m.exit != nil {
		time.AfterFunc(m.cfg.ShutdownGraceDelay, m.exit)
	}
	return nil
}
