package power

import (
	"fmt"

	"github.com/mxl983/mango-rover/internal/constants"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// ListenForCommands subscribes to the remote command hierarchy so an
// authenticated operator can reach the rover even when the dashboard link
// is down.
func (c *Channel) ListenForCommands(handler MQTT.MessageHandler) error {
	token := c.client.Subscribe(constants.TopicCommandSub, c.qos, handler)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", constants.TopicCommandSub, err)
	}

	c.logger.Info().Str("topic", constants.TopicCommandSub).Msg("Subscribed to remote commands")
	return nil
}
