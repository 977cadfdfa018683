package operator

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// WebRTCTransport is a recvonly peer connection for one media kind. It
// satisfies MediaTransport; the session manager owns its lifecycle.
type WebRTCTransport struct {
	pc     *webrtc.PeerConnection
	logger zerolog.Logger

	frameOnce  sync.Once
	firstFrame chan struct{}

	doneOnce sync.Once
	done     chan error
}

// NewWebRTCTransportFactory returns a TransportFactory that builds a fresh
// recvonly peer connection per negotiation attempt. The offer is returned
// after ICE gathering completes so the endpoint sees all candidates inline.
func NewWebRTCTransportFactory(logger zerolog.Logger) TransportFactory {
	return func(kind string) (string, MediaTransport, error) {
		codecKind := webrtc.RTPCodecTypeAudio
		if kind == "video" {
			codecKind = webrtc.RTPCodecTypeVideo
		}

		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
		if err != nil {
			return "", nil, fmt.Errorf("failed to create peer connection: %w", err)
		}

		t := &WebRTCTransport{
			pc:         pc,
			logger:     logger.With().Str("media", kind).Logger(),
			firstFrame: make(chan struct{}),
			done:       make(chan error, 1),
		}

		if _, err := pc.AddTransceiverFromKind(codecKind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return "", nil, fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}

		pc.OnTrack(t.handleTrack)
		pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
			switch state {
			case webrtc.PeerConnectionStateFailed:
				t.fail(fmt.Errorf("peer connection failed"))
			case webrtc.PeerConnectionStateClosed:
				t.fail(fmt.Errorf("peer connection closed"))
			}
		})

		offer, err := pc.CreateOffer(nil)
		if err != nil {
			pc.Close()
			return "", nil, fmt.Errorf("failed to create offer: %w", err)
		}

		gathered := webrtc.GatheringCompletePromise(pc)
		if err := pc.SetLocalDescription(offer); err != nil {
			pc.Close()
			return "", nil, fmt.Errorf("failed to set local description: %w", err)
		}
		<-gathered

		return pc.LocalDescription().SDP, t, nil
	}
}

// Start applies the remote answer and begins receiving.
func (t *WebRTCTransport) Start(answer string) error {
	return t.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
}

// FirstFrame is closed when the first inbound packet arrives.
func (t *WebRTCTransport) FirstFrame() <-chan struct{} {
	return t.firstFrame
}

// Done yields the terminal failure of the transport.
func (t *WebRTCTransport) Done() <-chan error {
	return t.done
}

// Close tears the peer connection down.
func (t *WebRTCTransport) Close() error {
	return t.pc.Close()
}

func (t *WebRTCTransport) fail(err error) {
	t.doneOnce.Do(func() {
		t.done <- err
	})
}

// handleTrack drains inbound RTP so the receiver keeps feeding stats and
// NACKs. The payload itself is not decoded here.
func (t *WebRTCTransport) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	t.logger.Info().Str("codec", track.Codec().MimeType).Msg("Inbound track opened")

	for {
		if _, _, err := track.ReadRTP(); err != nil {
			t.fail(fmt.Errorf("track read failed: %w", err))
			return
		}
		t.frameOnce.Do(func() { close(t.firstFrame) })
	}
}
