package operator

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mxl983/mango-rover/internal/constants"
	"github.com/mxl983/mango-rover/pkg/clock"
	"github.com/mxl983/mango-rover/tests/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sessionToken(err error) *mocks.MockToken {
	token := new(mocks.MockToken)
	token.On("Wait").Return(true)
	token.On("Error").Return(err)
	return token
}

// TestBrokerSession_PublishesRetainedPowerUp tests that a successful login
// immediately pushes the retained "On" command to both power rails.
func TestBrokerSession_PublishesRetainedPowerUp(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Publish", constants.TopicPowerPi, byte(1), true, constants.PayloadPowerOn).
		Return(sessionToken(nil))
	client.On("Publish", constants.TopicPowerAux, byte(1), true, constants.PayloadPowerOn).
		Return(sessionToken(nil))
	client.On("Publish", constants.TopicHeartbeat, byte(1), false, mock.Anything).
		Return(sessionToken(nil)).Maybe()

	s := NewBrokerSession(client, 1, time.Hour, clock.NewRealClock(), zerolog.Nop())

	require.NoError(t, s.Start())
	defer s.Stop()

	client.AssertCalled(t, "Publish", constants.TopicPowerPi, byte(1), true, constants.PayloadPowerOn)
	client.AssertCalled(t, "Publish", constants.TopicPowerAux, byte(1), true, constants.PayloadPowerOn)
}

// TestBrokerSession_PowerUpFailureAbortsStart tests that a rejected publish
// keeps the session down.
func TestBrokerSession_PowerUpFailureAbortsStart(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Publish", constants.TopicPowerPi, byte(1), true, constants.PayloadPowerOn).
		Return(sessionToken(errors.New("not authorized")))

	s := NewBrokerSession(client, 1, time.Hour, clock.NewRealClock(), zerolog.Nop())

	err := s.Start()
	assert.Error(t, err)

	// The session never started, so Stop reports that.
	assert.Error(t, s.Stop())
}

// TestBrokerSession_HeartbeatCarriesTimestamp tests the periodic liveness
// publish.
func TestBrokerSession_HeartbeatCarriesTimestamp(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	var heartbeats atomic.Int32

	client := new(mocks.MockMQTTClient)
	client.On("Publish", mock.Anything, byte(1), true, mock.Anything).Return(sessionToken(nil))
	client.On("Publish", constants.TopicHeartbeat, byte(1), false, "2025-06-01T12:00:00Z").
		Run(func(mock.Arguments) { heartbeats.Add(1) }).
		Return(sessionToken(nil))

	s := NewBrokerSession(client, 1, 5*time.Millisecond, clk, zerolog.Nop())

	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return heartbeats.Load() >= 2 }, 2*time.Second, time.Millisecond)

	require.NoError(t, s.Stop())

	// Double start after stop works again.
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
}
