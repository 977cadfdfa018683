package services

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/pkg/clock"
	"github.com/mxl983/mango-rover/tests/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPowerPublisher struct {
	mock.Mock
}

func (m *mockPowerPublisher) Log(message string) {
	m.Called(message)
}

func (m *mockPowerPublisher) TriggerIdleShutdown(event models.IdleShutdownEvent, piOffDelayMs int) {
	m.Called(event, piOffDelayMs)
}

func idleTestConfig() IdleMonitorConfig {
	return IdleMonitorConfig{
		Tick:               time.Second,
		GracePeriod:        2 * time.Minute,
		IdleTimeout:        time.Minute,
		ClockJumpThreshold: time.Hour, // large so test clock advances are not mistaken for NTP jumps
		PiOffDelayMs:       15000,
		ShutdownGraceDelay: time.Millisecond,
		SharedDir:          "/shared",
	}
}

// TestIdleMonitor_NeverTriggersDuringGracePeriod tests that the shutdown
// cannot fire before the startup grace period has elapsed, even when the
// idle timeout is long exceeded.
func TestIdleMonitor_NeverTriggersDuringGracePeriod(t *testing.T) {
	power := new(mockPowerPublisher)
	fileClient := new(mocks.MockFileOperations)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	m := NewIdleMonitor(idleTestConfig(), power, fileClient, clk, nil, zerolog.Nop())

	clk.Advance(90 * time.Second) // past the idle timeout, inside the grace period
	m.runTick()

	assert.False(t, m.IsShuttingDown())
	power.AssertNotCalled(t, "TriggerIdleShutdown", mock.Anything, mock.Anything)
}

// TestIdleMonitor_TriggersExactlyOnce tests the one-shot latch: the first
// qualifying tick runs the shutdown sequence and later ticks are no-ops.
func TestIdleMonitor_TriggersExactlyOnce(t *testing.T) {
	power := new(mockPowerPublisher)
	power.On("TriggerIdleShutdown", mock.Anything, 15000).Return()

	fileClient := new(mocks.MockFileOperations)
	fileClient.On("WriteFile", "/shared/shutdown.req", mock.Anything).Return(nil)

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	var exited atomic.Bool
	m := NewIdleMonitor(idleTestConfig(), power, fileClient, clk,
		func() { exited.Store(true) }, zerolog.Nop())

	clk.Advance(5 * time.Minute)
	m.runTick()

	assert.True(t, m.IsShuttingDown())
	power.AssertNumberOfCalls(t, "TriggerIdleShutdown", 1)
	fileClient.AssertNumberOfCalls(t, "WriteFile", 1)

	event := power.Calls[0].Arguments.Get(0).(models.IdleShutdownEvent)
	assert.Equal(t, "idle_timeout", event.Reason)

	// The latch holds across further ticks.
	clk.Advance(time.Minute)
	m.runTick()
	power.AssertNumberOfCalls(t, "TriggerIdleShutdown", 1)

	assert.Eventually(t, exited.Load, time.Second, 5*time.Millisecond)
}

// TestIdleMonitor_PingResetsIdleTimer tests that a heartbeat ping defers the
// shutdown.
func TestIdleMonitor_PingResetsIdleTimer(t *testing.T) {
	power := new(mockPowerPublisher)
	fileClient := new(mocks.MockFileOperations)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	m := NewIdleMonitor(idleTestConfig(), power, fileClient, clk, nil, zerolog.Nop())

	clk.Advance(3 * time.Minute) // past the grace period
	m.RecordPing()

	clk.Advance(30 * time.Second) // inside the idle timeout again
	m.runTick()

	assert.False(t, m.IsShuttingDown())
	power.AssertNotCalled(t, "TriggerIdleShutdown", mock.Anything, mock.Anything)
}

// TestIdleMonitor_ReArmsAfterMarkerFailure tests that a failed intent-marker
// write releases the latch so a later tick retries the whole sequence.
func TestIdleMonitor_ReArmsAfterMarkerFailure(t *testing.T) {
	power := new(mockPowerPublisher)
	power.On("TriggerIdleShutdown", mock.Anything, 15000).Return()

	fileClient := new(mocks.MockFileOperations)
	fileClient.On("WriteFile", "/shared/shutdown.req", mock.Anything).
		Return(errors.New("read-only filesystem")).Once()
	fileClient.On("WriteFile", "/shared/shutdown.req", mock.Anything).Return(nil)

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	m := NewIdleMonitor(idleTestConfig(), power, fileClient, clk, nil, zerolog.Nop())

	clk.Advance(5 * time.Minute)
	m.runTick()

	// The failure released the latch.
	assert.False(t, m.IsShuttingDown())

	clk.Advance(time.Second)
	m.runTick()

	assert.True(t, m.IsShuttingDown())
	power.AssertNumberOfCalls(t, "TriggerIdleShutdown", 2)
	fileClient.AssertNumberOfCalls(t, "WriteFile", 2)
}

// TestIdleMonitor_ClockJumpResetsTimers tests that an NTP correction resets
// the idle baseline instead of counting as elapsed idle time.
func TestIdleMonitor_ClockJumpResetsTimers(t *testing.T) {
	power := new(mockPowerPublisher)
	power.On("Log", mock.Anything).Return()

	fileClient := new(mocks.MockFileOperations)

	cfg := idleTestConfig()
	cfg.ClockJumpThreshold = 15 * time.Second

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewIdleMonitor(cfg, power, fileClient, clk, nil, zerolog.Nop())

	clk.Advance(10 * time.Minute) // looks like an NTP sync, not real idle time
	m.runTick()

	assert.False(t, m.IsShuttingDown())
	power.AssertCalled(t, "Log", mock.Anything)
	power.AssertNotCalled(t, "TriggerIdleShutdown", mock.Anything, mock.Anything)

	// After the reset the idle timer starts over.
	clk.Advance(10 * time.Second)
	m.runTick()
	assert.False(t, m.IsShuttingDown())
}

// TestIdleMonitor_StartStop tests the service lifecycle guards.
func TestIdleMonitor_StartStop(t *testing.T) {
	power := new(mockPowerPublisher)
	fileClient := new(mocks.MockFileOperations)

	m := NewIdleMonitor(idleTestConfig(), power, fileClient, clock.NewRealClock(), nil, zerolog.Nop())

	err := m.Stop()
	assert.Error(t, err)
	assert.Equal(t, "idle monitor is not running", err.Error())

	assert.NoError(t, m.Start())

	err = m.Start()
	assert.Error(t, err)
	assert.Equal(t, "idle monitor is already running", err.Error())

	assert.NoError(t, m.Stop())
}
