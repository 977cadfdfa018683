package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mxl983/mango-rover/pkg/clock"
)

// One stalled connection must never hold up traffic to the others: writes go
// through a bounded per-link queue drained by a dedicated writer goroutine,
// and a link that overflows its backlog or misses the write deadline is
// disconnected.
const (
	writeWait       = 10 * time.Second
	outboundBacklog = 16
)

var (
	errLinkClosed   = errors.New("link is closed")
	errSlowConsumer = errors.New("link outbound backlog full")
)

// Link is the server-side view of one dashboard connection. Liveness is
// client-driven: only a received PING refreshes lastSeenAt; other traffic is
// not liveness-bearing.
type Link struct {
	id   string
	conn *websocket.Conn
	clk  clock.Clock

	sendMu   sync.Mutex
	closed   bool
	outbound chan []byte

	stateMu    sync.Mutex
	lastSeenAt time.Time
}

func newLink(id string, conn *websocket.Conn, clk clock.Clock) *Link {
	l := &Link{
		id:         id,
		conn:       conn,
		clk:        clk,
		outbound:   make(chan []byte, outboundBacklog),
		lastSeenAt: clk.Now(),
	}
	go l.writeLoop()
	return l
}

// ID returns the connection identifier.
func (l *Link) ID() string {
	return l.id
}

// touch records a liveness confirmation.
func (l *Link) touch() {
	l.stateMu.Lock()
	l.lastSeenAt = l.clk.Now()
	l.stateMu.Unlock()
}

// LastSeen returns the time of the most recent liveness confirmation.
func (l *Link) LastSeen() time.Time {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.lastSeenAt
}

// Online reports whether the link confirmed liveness within the threshold.
func (l *Link) Online(threshold time.Duration) bool {
	return l.clk.Now().Sub(l.LastSeen()) < threshold
}

// send queues one message for delivery without blocking. A full backlog
// means the client stopped reading; the link is closed instead of making
// the caller wait on it.
func (l *Link) send(payload []byte) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	if l.closed {
		return errLinkClosed
	}

	select {
	case l.outbound <- payload:
		return nil
	default:
		l.closed = true
		close(l.outbound)
		return errSlowConsumer
	}
}

// close stops the writer goroutine. Safe to call more than once.
func (l *Link) close() {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	if !l.closed {
		l.closed = true
		close(l.outbound)
	}
}

// writeLoop is the single writer on the connection. Closing the connection
// on exit unblocks the reader in Hub.Handle, which unregisters the link.
func (l *Link) writeLoop() {
	defer l.conn.Close()

	for payload := range l.outbound {
		_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := l.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
