/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import (
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/asterlink/softphone-go-sdk/media"
	"github.com/asterlink/softphone-go-sdk/phonesdk"
	"github.com/asterlink/softphone-go-sdk/signaling"
)

// PeerConfig holds configuration for the peer connection manager
type PeerConfig struct {
	// ICEServers is the list of ICE servers (STUN/TURN) to use
	ICEServers []webrtc.ICEServer
	// CandidatePoolSize pre-gathers candidates before negotiation starts.
	// Must be 0 or 1; the webrtc stack rejects larger pools.
	CandidatePoolSize uint8
}

// DefaultPeerConfig returns a PeerConfig with sensible defaults.
// STUN is required because the client is typically behind NAT and the
// Asterisk leg needs a public srflx candidate to reach us.
func DefaultPeerConfig() *PeerConfig {
	return &PeerConfig{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{URLs: []string{"stun:stun1.l.google.com:19302"}},
		},
		CandidatePoolSize: 1,
	}
}

// bufferedCandidate is a remote ICE candidate waiting for both descriptions
// to be set. retried marks candidates that already failed one application
// attempt; they get exactly one more.
type bufferedCandidate struct {
	candidate webrtc.ICECandidateInit
	retried   bool
}

// PeerManager owns one WebRTC peer connection for one call. It buffers
// remote ICE candidates until both session descriptions are in place,
// forwards gathered local candidates and state changes upstream, and closes
// idempotently.
type PeerManager struct {
	config *PeerConfig
	logger phonesdk.Logger

	mu          sync.Mutex
	pc          *webrtc.PeerConnection
	api         *webrtc.API
	localSet    bool
	remoteSet   bool
	pending     []bufferedCandidate
	closed      bool
	remoteTrack *webrtc.TrackRemote

	onICECandidate func(candidate *signaling.ICECandidate)
	onStateChange  func(state webrtc.PeerConnectionState)
	onICEState     func(state webrtc.ICEConnectionState)
	onRemoteTrack  func(track *webrtc.TrackRemote)
}

// NewPeerManager creates a peer connection configured for telephony audio:
// Opus preferred with PCMU fallback, max-bundle, required RTCP mux, and a
// pre-sized candidate pool.
func NewPeerManager(config *PeerConfig, logger phonesdk.Logger) (*PeerManager, error) {
	if config == nil {
		config = DefaultPeerConfig()
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		PayloadType:        111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register Opus: %w", err)
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: 8000},
		PayloadType:        0,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("failed to register PCMU: %w", err)
	}

	// Default interceptors (RTCP reports, NACK, TWCC) are required when
	// using a custom MediaEngine, otherwise incoming SRTP is not processed
	// and OnTrack may not fire.
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("failed to register default interceptors: %w", err)
	}

	settings := webrtc.SettingEngine{}
	settings.SetHandleUndeclaredSSRCWithoutAnswer(true)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithSettingEngine(settings),
		webrtc.WithInterceptorRegistry(i),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:           config.ICEServers,
		BundlePolicy:         webrtc.BundlePolicyMaxBundle,
		RTCPMuxPolicy:        webrtc.RTCPMuxPolicyRequire,
		ICECandidatePoolSize: config.CandidatePoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	pm := &PeerManager{
		config: config,
		logger: logger,
		pc:     pc,
		api:    api,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		pm.mu.Lock()
		handler := pm.onICECandidate
		pm.mu.Unlock()
		if handler == nil {
			return
		}
		if c == nil {
			// Gathering finished; a nil candidate tells the far end so.
			handler(nil)
			return
		}
		init := c.ToJSON()
		handler(&signaling.ICECandidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		pm.logger.Printf("peer: connection state -> %s", s.String())
		pm.mu.Lock()
		handler := pm.onStateChange
		pm.mu.Unlock()
		if handler != nil {
			handler(s)
		}
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		pm.logger.Printf("peer: ICE connection state -> %s", s.String())
		pm.mu.Lock()
		handler := pm.onICEState
		pm.mu.Unlock()
		if handler != nil {
			handler(s)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		pm.logger.Printf("peer: remote track received codec=%s ssrc=%d", track.Codec().MimeType, track.SSRC())
		pm.mu.Lock()
		pm.remoteTrack = track
		handler := pm.onRemoteTrack
		pm.mu.Unlock()
		if handler != nil {
			handler(track)
		}
	})

	return pm, nil
}

// OnICECandidate sets the callback for locally gathered candidates. A nil
// candidate signals end of candidates.
func (pm *PeerManager) OnICECandidate(handler func(candidate *signaling.ICECandidate)) {
	pm.mu.Lock()
	pm.onICECandidate = handler
	pm.mu.Unlock()
}

// OnStateChange sets the callback for peer connection state changes
func (pm *PeerManager) OnStateChange(handler func(state webrtc.PeerConnectionState)) {
	pm.mu.Lock()
	pm.onStateChange = handler
	pm.mu.Unlock()
}

// OnICEStateChange sets the callback for ICE connection state changes
func (pm *PeerManager) OnICEStateChange(handler func(state webrtc.ICEConnectionState)) {
	pm.mu.Lock()
	pm.onICEState = handler
	pm.mu.Unlock()
}

// OnRemoteTrack sets the callback for the first remote audio track
func (pm *PeerManager) OnRemoteTrack(handler func(track *webrtc.TrackRemote)) {
	pm.mu.Lock()
	pm.onRemoteTrack = handler
	pm.mu.Unlock()
}

// AddLocalStream attaches the local capture stream's sample tracks to the
// peer connection with bidirectional transceivers.
func (pm *PeerManager) AddLocalStream(stream *media.Stream) error {
	pm.mu.Lock()
	pc := pm.pc
	closed := pm.closed
	pm.mu.Unlock()
	if closed {
		return fmt.Errorf("peer connection is closed")
	}

	for _, t := range stream.Tracks() {
		sample, ok := t.(*media.SampleTrack)
		if !ok {
			continue
		}
		transceiver, err := pc.AddTransceiverFromTrack(sample.Local(),
			webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv},
		)
		if err != nil {
			return fmt.Errorf("failed to add audio transceiver: %w", err)
		}

		// Drain RTCP from the sender to keep the interceptors fed
		go func() {
			sender := transceiver.Sender()
			rtcpBuf := make([]byte, 1500)
			for {
				if _, _, rtcpErr := sender.Read(rtcpBuf); rtcpErr != nil {
					return
				}
			}
		}()
	}
	return nil
}

// CreateOffer creates an SDP offer and sets it as the local description.
// Candidates trickle through OnICECandidate, so this does not wait for
// gathering to finish.
func (pm *PeerManager) CreateOffer() (*signaling.SessionDescription, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.closed {
		return nil, fmt.Errorf("peer connection is closed")
	}

	offer, err := pm.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := pm.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}
	pm.localSet = true
	pm.drainLocked()

	return &signaling.SessionDescription{Type: "offer", SDP: offer.SDP}, nil
}

// CreateAnswer creates an SDP answer and sets it as the local description
func (pm *PeerManager) CreateAnswer() (*signaling.SessionDescription, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.closed {
		return nil, fmt.Errorf("peer connection is closed")
	}

	answer, err := pm.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}
	if err := pm.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}
	pm.localSet = true
	pm.drainLocked()

	return &signaling.SessionDescription{Type: "answer", SDP: answer.SDP}, nil
}

// SetRemoteOffer applies the remote SDP offer
func (pm *PeerManager) SetRemoteOffer(desc *signaling.SessionDescription) error {
	return pm.setRemote(webrtc.SDPTypeOffer, desc)
}

// SetRemoteAnswer applies the remote SDP answer. A duplicate answer on an
// already stable connection is ignored, since signaling reconnects can
// redeliver it.
func (pm *PeerManager) SetRemoteAnswer(desc *signaling.SessionDescription) error {
	pm.mu.Lock()
	if !pm.closed && pm.pc.SignalingState() == webrtc.SignalingStateStable && pm.remoteSet {
		pm.mu.Unlock()
		pm.logger.Printf("peer: ignoring duplicate SDP answer")
		return nil
	}
	pm.mu.Unlock()
	return pm.setRemote(webrtc.SDPTypeAnswer, desc)
}

func (pm *PeerManager) setRemote(sdpType webrtc.SDPType, desc *signaling.SessionDescription) error {
	if desc == nil || desc.SDP == "" {
		return fmt.Errorf("empty session description")
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.closed {
		return fmt.Errorf("peer connection is closed")
	}

	if err := pm.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: sdpType,
		SDP:  desc.SDP,
	}); err != nil {
		return fmt.Errorf("failed to set remote %s: %w", sdpType, err)
	}
	pm.remoteSet = true
	pm.drainLocked()
	return nil
}

// AddRemoteCandidate applies a remote ICE candidate, buffering it if the
// session descriptions are not both in place yet. A nil candidate is the
// end-of-candidates marker and is ignored here.
func (pm *PeerManager) AddRemoteCandidate(candidate *signaling.ICECandidate) error {
	if candidate == nil {
		return nil
	}

	init := webrtc.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        candidate.SDPMid,
		SDPMLineIndex: candidate.SDPMLineIndex,
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.closed {
		return fmt.Errorf("peer connection is closed")
	}

	if !pm.localSet || !pm.remoteSet {
		pm.pending = append(pm.pending, bufferedCandidate{candidate: init})
		return nil
	}

	if err := pm.pc.AddICECandidate(init); err != nil {
		// One retry, right away. Negotiation is already done here, so no
		// later drain would pick the candidate up.
		pm.logger.Printf("peer: candidate application failed, retrying once: %v", err)
		if err := pm.pc.AddICECandidate(init); err != nil {
			pm.logger.Printf("peer: dropping candidate after retry: %v", err)
		}
	}
	return nil
}

// drainLocked applies buffered candidates in arrival order once both
// descriptions are set. A candidate that fails its first application goes
// back in the buffer once; a candidate that fails again is dropped.
// Callers must hold pm.mu.
func (pm *PeerManager) drainLocked() {
	if !pm.localSet || !pm.remoteSet || len(pm.pending) == 0 {
		return
	}

	pending := pm.pending
	pm.pending = nil
	for _, bc := range pending {
		if err := pm.pc.AddICECandidate(bc.candidate); err != nil {
			if bc.retried {
				pm.logger.Printf("peer: dropping candidate after retry: %v", err)
				continue
			}
			pm.pending = append(pm.pending, bufferedCandidate{candidate: bc.candidate, retried: true})
		}
	}
}

// PendingCandidates returns the number of buffered remote candidates
func (pm *PeerManager) PendingCandidates() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.pending)
}

// ConnectionState returns the current peer connection state
func (pm *PeerManager) ConnectionState() webrtc.PeerConnectionState {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.closed || pm.pc == nil {
		return webrtc.PeerConnectionStateClosed
	}
	return pm.pc.ConnectionState()
}

// RemoteTrack returns the remote audio track, or nil before OnTrack fired
func (pm *PeerManager) RemoteTrack() *webrtc.TrackRemote {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.remoteTrack
}

// GetStats returns the raw pion stats report for the connection
func (pm *PeerManager) GetStats() (webrtc.StatsReport, error) {
	pm.mu.Lock()
	pc := pm.pc
	closed := pm.closed
	pm.mu.Unlock()
	if closed || pc == nil {
		return nil, fmt.Errorf("peer connection is closed")
	}
	return pc.GetStats(), nil
}

// Close tears down the peer connection and clears the candidate buffer.
// Safe to call any number of times.
func (pm *PeerManager) Close() error {
	pm.mu.Lock()
	if pm.closed {
		pm.mu.Unlock()
		return nil
	}
	pm.closed = true
	pm.pending = nil
	pc := pm.pc
	pm.mu.Unlock()

	if pc != nil {
		if err := pc.Close(); err != nil {
			return fmt.Errorf("failed to close peer connection: %w", err)
		}
	}
	return nil
}
