package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/pkg/clock"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// PingSink is notified on every heartbeat ping, regardless of which
// connection carried it. The idle monitor implements it.
type PingSink interface {
	RecordPing()
}

// Hub owns all dashboard WebSocket connections. It answers client pings and
// fans snapshot broadcasts out to every open link; a slow or dead link never
// delays the others.
type Hub struct {
	links           cmap.ConcurrentMap[string, *Link]
	sink            PingSink
	onlineThreshold time.Duration
	clk             clock.Clock
	logger          zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(sink PingSink, onlineThreshold time.Duration, clk clock.Clock, logger zerolog.Logger) *Hub {
	return &Hub{
		links:           cmap.New[*Link](),
		sink:            sink,
		onlineThreshold: onlineThreshold,
		clk:             clk,
		logger:          logger,
	}
}

// Handle registers the connection and blocks reading it until it closes.
func (h *Hub) Handle(conn *websocket.Conn) {
	link := newLink(uuid.New().String(), conn, h.clk)
	h.links.Set(link.ID(), link)
	h.logger.Info().Str("link_id", link.ID()).Msg("Dashboard client connected")

	defer func() {
		h.links.Remove(link.ID())
		link.close()
		_ = conn.Close()
		h.logger.Info().Str("link_id", link.ID()).Msg("Dashboard client disconnected")
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleMessage(link, payload)
	}
}

// handleMessage processes one inbound frame. Malformed or unknown payloads
// are dropped without closing the connection.
func (h *Hub) handleMessage(link *Link, payload []byte) {
	var envelope models.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		h.logger.Error().Err(err).Str("link_id", link.ID()).Str("payload", string(payload)).
			Msg("Invalid JSON received")
		return
	}

	switch envelope.Type {
	case models.TypePing:
		link.touch()
		if h.sink != nil {
			h.sink.RecordPing()
		}

		pong, _ := json.Marshal(models.Envelope{Type: models.TypePong})
		if err := link.send(pong); err != nil {
			h.logger.Warn().Err(err).Str("link_id", link.ID()).Msg("Failed to send pong")
		}
	default:
		// Not liveness-bearing; ignored.
	}
}

// Broadcast sends the snapshot to every connected link.
func (h *Hub) Broadcast(snap models.StatsSnapshot) {
	payload, err := json.Marshal(models.HealthUpdate{
		Type: models.TypeHealthUpdate,
		Data: snap,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize health update")
		return
	}

	for item := range h.links.IterBuffered() {
		link := item.Val
		if err := link.send(payload); err != nil {
			h.logger.Warn().Err(err).Str("link_id", link.ID()).Msg("Failed to broadcast health update")
		}
	}
}

// ClientCount returns the number of registered links.
func (h *Hub) ClientCount() int {
	return h.links.Count()
}

// OnlineCount returns the number of links that confirmed liveness within
// the online threshold.
func (h *Hub) OnlineCount() int {
	count := 0
	for item := range h.links.IterBuffered() {
		if item.Val.Online(h.onlineThreshold) {
			count++
		}
	}
	return count
}
