package constants

import "time"

// Battery voltage mapping for a 3S LiPo pack.
const (
	DefaultEmptyVoltage = 9.0
	DefaultFullVoltage  = 12.6
)

// DefaultVoltageHistorySize bounds the rolling window used to damp sensor
// noise before mapping voltage to a percentage.
const DefaultVoltageHistorySize = 20

// Liveness and idle-shutdown defaults.
const (
	DefaultOnlineThreshold    = 10 * time.Second
	DefaultGracePeriod        = 2 * time.Minute
	DefaultIdleTimeout        = 5 * time.Minute
	DefaultIdleTick           = 1 * time.Second
	DefaultClockJumpThreshold = 15 * time.Second
	DefaultShutdownGraceDelay = 3 * time.Second
)
