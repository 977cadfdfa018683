package power

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mxl983/mango-rover/internal/constants"
	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/pkg/mqtt"
	"github.com/rs/zerolog"
)

// Channel is the out-of-band power/diagnostics path to the cloud broker,
// independent of the dashboard WebSocket. Publishes are best effort: when
// the broker is unreachable they are logged and dropped, never surfaced as
// errors to callers.
type Channel struct {
	client mqtt.MQTTClient
	qos    byte
	logger zerolog.Logger

	mu         sync.Mutex
	connected  bool
	retryCount int
}

// NewChannel wraps an MQTT client as a power control channel.
func NewChannel(client mqtt.MQTTClient, qos byte, logger zerolog.Logger) *Channel {
	return &Channel{
		client: client,
		qos:    qos,
		logger: logger,
	}
}

// Connect establishes the broker connection. Calling it while already
// connected is a warned no-op, never a duplicate connection.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		c.logger.Warn().Msg("Power channel already connected; skipping")
		return nil
	}
	c.mu.Unlock()

	token := c.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect power channel: %w", err)
	}

	c.HandleConnect()
	return nil
}

// HandleConnect marks the channel connected and resets the retry counter.
// Wired as the MQTT on-connect handler so paho's auto-reconnect also lands
// here.
func (c *Channel) HandleConnect() {
	c.mu.Lock()
	c.connected = true
	c.retryCount = 0
	c.mu.Unlock()

	c.logger.Info().Msg("Power channel connected to broker")
}

// HandleConnectionLost marks the channel disconnected. Reconnection itself
// is handled by the underlying transport.
func (c *Channel) HandleConnectionLost(err error) {
	c.mu.Lock()
	c.connected = false
	c.retryCount++
	attempts := c.retryCount
	c.mu.Unlock()

	c.logger.Error().Err(err).Int("retry", attempts).Msg("Power channel connection lost")
}

// IsConnected reports the channel's view of the broker connection.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// RetryCount returns the reconnect attempts since the last successful
// connect.
func (c *Channel) RetryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

// Publish sends payload to topic. Structs are serialized to JSON, strings
// and byte slices pass through. Fails silently (logs) when disconnected.
func (c *Channel) Publish(topic string, payload any, retained bool) {
	if !c.IsConnected() {
		c.logger.Error().Str("topic", topic).Msg("Power channel not connected; dropping publish")
		return
	}

	var message []byte
	switch p := payload.(type) {
	case string:
		message = []byte(p)
	case []byte:
		message = p
	default:
		var err error
		message, err = json.Marshal(p)
		if err != nil {
			c.logger.Error().Err(err).Str("topic", topic).Msg("Failed to serialize publish payload")
			return
		}
	}

	token := c.client.Publish(topic, c.qos, retained, message)
	token.Wait()
	if err := token.Error(); err != nil {
		c.logger.Error().Err(err).Str("topic", topic).Msg("Publish failed")
	}
}

// Log mirrors a diagnostic line to the cloud log topic.
func (c *Channel) Log(message string) {
	c.logger.Info().Msg(message)
	formatted := fmt.Sprintf("[%s] [PI]: %s", time.Now().UTC().Format(time.RFC3339), message)
	c.Publish(constants.TopicLogs, formatted, false)
}

// PublishUSBState mirrors the USB rail state to the status topic.
func (c *Channel) PublishUSBState(on bool) {
	state := "OFF"
	if on {
		state = "ON"
	}
	c.Publish(constants.TopicUSBStatus, state, false)
}

// TriggerIdleShutdown broadcasts the idle-shutdown diagnostics and the
// power-off commands for both independently controlled rails. The main rail
// gets a delay so the host can halt cleanly.
func (c *Channel) TriggerIdleShutdown(event models.IdleShutdownEvent, piOffDelayMs int) {
	c.Log("IDLE SHUTDOWN TRIGGERED")

	// Telemetry context so the operator can see why it happened.
	c.Publish(constants.TopicLogsDebug, event, false)

	if piOffDelayMs <= 0 {
		piOffDelayMs = constants.DefaultPiOffDelayMs
	}

	c.Publish(constants.TopicPowerPi, constants.PayloadPowerOff+" "+strconv.Itoa(piOffDelayMs), false)
	c.Publish(constants.TopicPowerAux, constants.PayloadPowerOff, false)

	c.Log("Power-off commands broadcasted to power controller")
}
