package operator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/pkg/backoff"
	"github.com/mxl983/mango-rover/pkg/clock"
	"github.com/rs/zerolog"
)

// Conn is the slice of a WebSocket connection the uplink uses.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens uplink connections.
type Dialer interface {
	Dial(url string) (Conn, error)
}

// WebsocketDialer dials with the default gorilla dialer.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// UplinkConfig carries the uplink timing knobs.
type UplinkConfig struct {
	URL          string
	PingInterval time.Duration
	PongTimeout  time.Duration
	Reconnect    backoff.Policy
}

// Uplink maintains the control connection to the rover: it sends periodic
// pings, derives a single online/offline boolean, and reconnects forever
// until torn down. Pings and snapshots share the connection; liveness is
// judged by pong arrival only.
type Uplink struct {
	cfg    UplinkConfig
	dialer Dialer
	clk    clock.Clock
	logger zerolog.Logger

	mu         sync.Mutex
	online     bool
	lastPongAt time.Time
	pingSentAt time.Time
	latency    time.Duration
	snapshot   models.StatsSnapshot
	hasSnap    bool
	reconnects int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewUplink initializes a new Uplink.
func NewUplink(cfg UplinkConfig, dialer Dialer, clk clock.Clock, logger zerolog.Logger) *Uplink {
	return &Uplink{
		cfg:    cfg,
		dialer: dialer,
		clk:    clk,
		logger: logger,
	}
}

// Start launches the connect/read/ping loops.
func (u *Uplink) Start() error {
	if u.ctx != nil {
		return errors.New("uplink is already running")
	}

	u.ctx, u.cancel = context.WithCancel(context.Background())

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.runConnectLoop()
	}()

	u.logger.Info().Str("url", u.cfg.URL).Msg("Uplink started")
	return nil
}

// Stop tears the uplink down, cancelling every pending timer.
func (u *Uplink) Stop() error {
	if u.ctx == nil {
		return errors.New("uplink is not running")
	}

	u.cancel()
	u.wg.Wait()

	u.ctx = nil
	u.cancel = nil

	u.logger.Info().Msg("Uplink stopped")
	return nil
}

// Online reports the derived liveness state.
func (u *Uplink) Online() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.online
}

// Latency returns the most recent ping round-trip time.
func (u *Uplink) Latency() time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.latency
}

// LastSnapshot returns the most recent health update, if any arrived.
func (u *Uplink) LastSnapshot() (models.StatsSnapshot, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snapshot, u.hasSnap
}

// Reconnects returns how many reconnect attempts have been made.
func (u *Uplink) Reconnects() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.reconnects
}

func (u *Uplink) setOnline(online bool) {
	u.mu.Lock()
	u.online = online
	u.mu.Unlock()
}

// runConnectLoop cycles CONNECTING -> OPEN -> CLOSED forever. Each cycle's
// ping ticker lives only as long as its connection, so reconnects never
// accumulate timers.
func (u *Uplink) runConnectLoop() {
	attempt := 0
	for {
		select {
		case <-u.ctx.Done():
			return
		default:
		}

		conn, err := u.dialer.Dial(u.cfg.URL)
		if err != nil {
			u.setOnline(false)
			u.logger.Warn().Err(err).Msg("Uplink dial failed; scheduling reconnect")
			if !u.sleepBackoff(attempt) {
				return
			}
			attempt++
			u.countReconnect()
			continue
		}

		u.logger.Info().Msg("Uplink connected")
		attempt = 0
		u.mu.Lock()
		u.online = true
		u.lastPongAt = u.clk.Now()
		u.mu.Unlock()

		u.serveConn(conn)

		// Connection lost; back off before the next attempt.
		u.setOnline(false)
		select {
		case <-u.ctx.Done():
			return
		default:
		}
		u.logger.Warn().Msg("Uplink closed; scheduling reconnect")
		if !u.sleepBackoff(attempt) {
			return
		}
		attempt++
		u.countReconnect()
	}
}

func (u *Uplink) countReconnect() {
	u.mu.Lock()
	u.reconnects++
	u.mu.Unlock()
}

// sleepBackoff waits for the reconnect delay. Returns false on teardown.
func (u *Uplink) sleepBackoff(attempt int) bool {
	timer := time.NewTimer(u.cfg.Reconnect.Delay(attempt))
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-u.ctx.Done():
		return false
	}
}

// serveConn reads and pings one connection until it dies or the uplink is
// torn down.
func (u *Uplink) serveConn(conn Conn) {
	connCtx, connCancel := context.WithCancel(u.ctx)
	defer connCancel()
	defer conn.Close()

	var readerWg sync.WaitGroup
	readerWg.Add(1)
	go func() {
		defer readerWg.Done()
		defer connCancel()
		u.readLoop(conn)
	}()

	ticker := time.NewTicker(u.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			u.sendPing(conn)
			u.checkPongTimeout()
		case <-connCtx.Done():
			_ = conn.Close()
			readerWg.Wait()
			return
		}
	}
}

func (u *Uplink) sendPing(conn Conn) {
	payload, _ := json.Marshal(models.Envelope{Type: models.TypePing})

	u.mu.Lock()
	u.pingSentAt = u.clk.Now()
	u.mu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		u.logger.Warn().Err(err).Msg("Ping send failed")
	}
}

// checkPongTimeout marks the uplink offline when pongs stop arriving even
// though the transport has not reported a close yet (half-open defense).
func (u *Uplink) checkPongTimeout() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.online && u.clk.Now().Sub(u.lastPongAt) > u.cfg.PongTimeout {
		u.online = false
		u.logger.Warn().Msg("Pong timeout; marking uplink offline")
	}
}

func (u *Uplink) readLoop(conn Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var envelope models.Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			u.logger.Debug().Err(err).Msg("Dropping malformed uplink message")
			continue
		}

		switch envelope.Type {
		case models.TypePong:
			now := u.clk.Now()
			u.mu.Lock()
			u.lastPongAt = now
			u.latency = now.Sub(u.pingSentAt)
			u.online = true
			u.mu.Unlock()

		case models.TypeHealthUpdate:
			var snap models.StatsSnapshot
			if err := json.Unmarshal(envelope.Data, &snap); err != nil {
				u.logger.Debug().Err(err).Msg("Dropping malformed health update")
				continue
			}
			u.mu.Lock()
			u.snapshot = snap
			u.hasSnap = true
			u.mu.Unlock()
		}
	}
}
