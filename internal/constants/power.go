package constants

// Out-of-band power channel topics. The ESP32 power controller listens on
// the rover/power/# hierarchy; payloads are "On" or "Off[ <delay-ms>]".
const (
	TopicPowerPi    = "rover/power/pi"
	TopicPowerAux   = "rover/power/aux"
	TopicLogs       = "rover/logs"
	TopicLogsDebug  = "rover/logs/debug"
	TopicUSBStatus  = "rover/status/usb"
	TopicHeartbeat  = "rover/heartbeat"
	TopicCommandSub = "rover/commands/#"
)

const (
	PayloadPowerOn  = "On"
	PayloadPowerOff = "Off"
)

// DefaultPiOffDelayMs is how long the power controller waits before cutting
// the main compute rail, giving the host time to halt cleanly.
const DefaultPiOffDelayMs = 15000
