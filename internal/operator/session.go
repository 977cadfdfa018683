package operator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mxl983/mango-rover/internal/constants"
	"github.com/mxl983/mango-rover/pkg/clock"
	"github.com/mxl983/mango-rover/pkg/mqtt"
	"github.com/rs/zerolog"
)

// BrokerSession is the operator's authenticated broker connection. The
// broker accepting the credentials is the authentication; on success the
// session publishes the retained power-up commands and then keeps a
// periodic liveness timestamp on the heartbeat topic.
type BrokerSession struct {
	client            mqtt.MQTTClient
	qos               byte
	heartbeatInterval time.Duration
	clk               clock.Clock
	logger            zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBrokerSession initializes a new BrokerSession over a connected client.
func NewBrokerSession(client mqtt.MQTTClient, qos byte, heartbeatInterval time.Duration,
	clk clock.Clock, logger zerolog.Logger) *BrokerSession {

	return &BrokerSession{
		client:            client,
		qos:               qos,
		heartbeatInterval: heartbeatInterval,
		clk:               clk,
		logger:            logger,
	}
}

// Start publishes the power-up commands and launches the heartbeat loop.
// Both rails get a retained "On" so a powered-down controller sees the
// command as soon as it reconnects.
func (s *BrokerSession) Start() error {
	if s.ctx != nil {
		return errors.New("broker session is already running")
	}

	for _, topic := range []string{constants.TopicPowerPi, constants.TopicPowerAux} {
		token := s.client.Publish(topic, s.qos, true, constants.PayloadPowerOn)
		token.Wait()
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to publish power-up to %s: %w", topic, err)
		}
		s.logger.Info().Str("topic", topic).Msg("Power-up command confirmed by broker")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runHeartbeatLoop()
	}()

	s.logger.Info().Msg("Broker session started")
	return nil
}

// Stop halts the heartbeat loop. Disconnecting the client is the caller's
// responsibility.
func (s *BrokerSession) Stop() error {
	if s.ctx == nil {
		return errors.New("broker session is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.logger.Info().Msg("Broker session stopped")
	return nil
}

func (s *BrokerSession) runHeartbeatLoop() {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			timestamp := s.clk.Now().UTC().Format(time.RFC3339)
			token := s.client.Publish(constants.TopicHeartbeat, s.qos, false, timestamp)
			token.Wait()
			if err := token.Error(); err != nil {
				s.logger.Warn().Err(err).Msg("Operator heartbeat publish failed")
			}

		case <-s.ctx.Done():
			return
		}
	}
}
