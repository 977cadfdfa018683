package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MediaTransport is one live peer connection for a single media kind. The
// session manager only drives its lifecycle; frame handling stays inside.
type MediaTransport interface {
	// Start applies the remote answer and begins receiving.
	Start(answer string) error
	// FirstFrame is closed when the first inbound media arrives.
	FirstFrame() <-chan struct{}
	// Done yields the terminal failure of the transport.
	Done() <-chan error
	Close() error
}

// TransportFactory creates a fresh transport and its local SDP offer. A new
// transport is created for every negotiation attempt; failed transports are
// discarded, never repaired in place.
type TransportFactory func(kind string) (offer string, transport MediaTransport, err error)

// MediaSession keeps one media kind (video or audio) alive through
// WHEP-style offer/answer negotiation and full renegotiation on failure.
// Sessions are fully independent: the audio session failing never touches
// the video session.
type MediaSession struct {
	kind       string
	endpoint   string
	retryDelay time.Duration
	factory    TransportFactory
	httpClient *http.Client
	logger     zerolog.Logger

	mu      sync.Mutex
	ready   bool
	playing bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMediaSession initializes a session for one media kind.
func NewMediaSession(kind, endpoint string, retryDelay time.Duration,
	factory TransportFactory, logger zerolog.Logger) *MediaSession {

	return &MediaSession{
		kind:       kind,
		endpoint:   endpoint,
		retryDelay: retryDelay,
		factory:    factory,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With().Str("media", kind).Logger(),
	}
}

// Start launches the negotiate/renegotiate loop.
func (m *MediaSession) Start() error {
	if m.ctx != nil {
		return errors.New("media session is already running")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runSessionLoop()
	}()

	m.logger.Info().Str("endpoint", m.endpoint).Msg("Media session started")
	return nil
}

// Stop tears the session down, cancelling any pending renegotiation timer.
func (m *MediaSession) Stop() error {
	if m.ctx == nil {
		return errors.New("media session is not running")
	}

	m.cancel()
	m.wg.Wait()

	m.ctx = nil
	m.cancel = nil

	m.logger.Info().Msg("Media session stopped")
	return nil
}

// Ready reports whether the first inbound media arrived on the current
// transport.
func (m *MediaSession) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// SetPlayback toggles local playback. Playback is user state, independent
// of connection state, so platform autoplay restrictions can be honored.
func (m *MediaSession) SetPlayback(enabled bool) {
	m.mu.Lock()
	m.playing = enabled
	m.mu.Unlock()
}

// PlaybackEnabled reports the playback toggle.
func (m *MediaSession) PlaybackEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *MediaSession) setReady(ready bool) {
	m.mu.Lock()
	m.ready = ready
	m.mu.Unlock()
}

// runSessionLoop negotiates a transport and replaces it wholesale whenever
// it fails.
func (m *MediaSession) runSessionLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if err := m.runOnce(); err != nil {
			m.logger.Warn().Err(err).Msg("Media session failed; renegotiating")
		}

		m.setReady(false)

		timer := time.NewTimer(m.retryDelay)
		select {
		case <-timer.C:
		case <-m.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// runOnce negotiates one transport and serves it until it dies.
func (m *MediaSession) runOnce() error {
	offer, transport, err := m.factory(m.kind)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}
	defer transport.Close()

	answer, err := m.negotiate(offer)
	if err != nil {
		return fmt.Errorf("negotiation failed: %w", err)
	}

	if err := transport.Start(answer); err != nil {
		return fmt.Errorf("failed to apply answer: %w", err)
	}

	for {
		select {
		case <-transport.FirstFrame():
			m.setReady(true)
			m.logger.Info().Msg("First media frame received")
			// Block on terminal events only from here on.
			select {
			case err := <-transport.Done():
				return err
			case <-m.ctx.Done():
				return nil
			}
		case err := <-transport.Done():
			return err
		case <-m.ctx.Done():
			return nil
		}
	}
}

// negotiate POSTs the SDP offer and returns the remote answer.
func (m *MediaSession) negotiate(offer string) (string, error) {
	req, err := http.NewRequestWithContext(m.ctx, http.MethodPost, m.endpoint, strings.NewReader(offer))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("media endpoint returned status %d", resp.StatusCode)
	}

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(answer), nil
}
