package operator

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/pkg/backoff"
	"github.com/mxl983/mango-rover/pkg/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConn is an in-memory Conn. Inbound frames are queued on a channel;
// written pings can be answered automatically.
type scriptedConn struct {
	inbound  chan []byte
	autoPong bool

	mu     sync.Mutex
	closed bool
	writes [][]byte
}

func newScriptedConn(autoPong bool) *scriptedConn {
	return &scriptedConn{
		inbound:  make(chan []byte, 16),
		autoPong: autoPong,
	}
}

func (c *scriptedConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("connection closed")
	}
	c.writes = append(c.writes, data)

	if c.autoPong {
		pong, _ := json.Marshal(models.Envelope{Type: models.TypePong})
		select {
		case c.inbound <- pong:
		default:
		}
	}
	return nil
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	payload, ok := <-c.inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return 1, payload, nil
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbound)
	}
	return nil
}

// queueDialer returns its scripted conns in order, then errors forever.
type queueDialer struct {
	mu    sync.Mutex
	conns []*scriptedConn
	dials int
}

func (d *queueDialer) Dial(_ string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *queueDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func testUplinkConfig() UplinkConfig {
	return UplinkConfig{
		URL:          "ws://rover.local/ws",
		PingInterval: 5 * time.Millisecond,
		PongTimeout:  time.Second,
		Reconnect:    backoff.NewFixed(time.Millisecond),
	}
}

// TestUplink_ReconnectsAfterDialFailure tests that failed dials are counted
// and retried without giving up.
func TestUplink_ReconnectsAfterDialFailure(t *testing.T) {
	dialer := &queueDialer{}
	u := NewUplink(testUplinkConfig(), dialer, clock.NewRealClock(), zerolog.Nop())

	require.NoError(t, u.Start())

	assert.Eventually(t, func() bool { return u.Reconnects() >= 3 }, 2*time.Second, time.Millisecond)
	assert.False(t, u.Online())

	require.NoError(t, u.Stop())
}

// TestUplink_PongConfirmsLiveness tests the ping/pong round trip and the
// latency measurement.
func TestUplink_PongConfirmsLiveness(t *testing.T) {
	conn := newScriptedConn(true)
	dialer := &queueDialer{conns: []*scriptedConn{conn}}

	u := NewUplink(testUplinkConfig(), dialer, clock.NewRealClock(), zerolog.Nop())
	require.NoError(t, u.Start())

	assert.Eventually(t, u.Online, 2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, u.Latency(), time.Duration(0))

	require.NoError(t, u.Stop())
}

// TestUplink_ConnectionLossTriggersReconnect tests the CLOSED -> CONNECTING
// transition once an open connection dies.
func TestUplink_ConnectionLossTriggersReconnect(t *testing.T) {
	conn := newScriptedConn(true)
	dialer := &queueDialer{conns: []*scriptedConn{conn}}

	u := NewUplink(testUplinkConfig(), dialer, clock.NewRealClock(), zerolog.Nop())
	require.NoError(t, u.Start())

	assert.Eventually(t, u.Online, 2*time.Second, time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool {
		return !u.Online() && u.Reconnects() >= 1 && dialer.dialCount() >= 2
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, u.Stop())
}

// TestUplink_PongTimeoutMarksOffline tests the half-open defense: a silent
// but technically open connection goes offline after the pong timeout.
func TestUplink_PongTimeoutMarksOffline(t *testing.T) {
	conn := newScriptedConn(false) // accepts pings, never answers
	dialer := &queueDialer{conns: []*scriptedConn{conn}}

	cfg := testUplinkConfig()
	cfg.PongTimeout = time.Millisecond

	u := NewUplink(cfg, dialer, clock.NewRealClock(), zerolog.Nop())
	require.NoError(t, u.Start())

	assert.Eventually(t, func() bool { return !u.Online() && dialer.dialCount() == 1 },
		2*time.Second, time.Millisecond)

	require.NoError(t, u.Stop())
}

// TestUplink_HealthUpdateIsRecorded tests that telemetry snapshots are
// parsed and retained for the dashboard.
func TestUplink_HealthUpdateIsRecorded(t *testing.T) {
	conn := newScriptedConn(true)

	snap := models.NewStatsSnapshot()
	snap.CPUTemp = 47.0
	snap.BatteryPct = 81.5
	data, _ := json.Marshal(snap)
	update, _ := json.Marshal(models.Envelope{Type: models.TypeHealthUpdate, Data: data})
	conn.inbound <- update

	dialer := &queueDialer{conns: []*scriptedConn{conn}}
	u := NewUplink(testUplinkConfig(), dialer, clock.NewRealClock(), zerolog.Nop())
	require.NoError(t, u.Start())

	assert.Eventually(t, func() bool {
		got, ok := u.LastSnapshot()
		return ok && got.CPUTemp == 47.0 && got.BatteryPct == 81.5
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, u.Stop())
}

// TestUplink_MalformedMessageIgnored tests that garbage frames are dropped
// without killing the read loop.
func TestUplink_MalformedMessageIgnored(t *testing.T) {
	conn := newScriptedConn(true)
	conn.inbound <- []byte("{not json")

	dialer := &queueDialer{conns: []*scriptedConn{conn}}
	u := NewUplink(testUplinkConfig(), dialer, clock.NewRealClock(), zerolog.Nop())
	require.NoError(t, u.Start())

	assert.Eventually(t, u.Online, 2*time.Second, time.Millisecond)

	require.NoError(t, u.Stop())
}
