/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/asterlink/softphone-go-sdk/media"
	"github.com/asterlink/softphone-go-sdk/phonesdk"
	"github.com/asterlink/softphone-go-sdk/signaling"
)

// Transport is the slice of the signaling client the session machine needs
type Transport interface {
	Send(msg *signaling.Message) error
	OnMessage(handler signaling.MessageHandler)
}

// Config holds the configuration for the Calling plugin
type Config struct {
	// RingTimeout bounds how long a call may ring before it is
	// auto-rejected (incoming) or failed (outgoing)
	RingTimeout time.Duration
	// ConnectTimeout bounds the gap between acceptance and a connected
	// peer; one automatic re-offer happens before giving up
	ConnectTimeout time.Duration
	// Peer configures the WebRTC peer connections
	Peer *PeerConfig
	// Monitor configures stats sampling
	Monitor *MonitorConfig
	// Hangup configures the termination coordinator
	Hangup *HangupConfig
}

// DefaultConfig returns the default configuration for the Calling plugin
func DefaultConfig() *Config {
	return &Config{
		RingTimeout:    30 * time.Second,
		ConnectTimeout: 15 * time.Second,
		Peer:           DefaultPeerConfig(),
		Monitor:        DefaultMonitorConfig(),
		Hangup:         DefaultHangupConfig(),
	}
}

// Session is one call from invitation to teardown. Identity fields are
// fixed at creation; only the state moves.
type Session struct {
	ID            string
	Direction     CallDirection
	Type          CallType
	PeerExtension string
	PeerUsername  string
	StartedAt     time.Time

	mu          sync.Mutex
	state       CallState
	connectedAt time.Time
}

// State returns the session's current state
func (s *Session) State() CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConnectedAt returns when media came up, or zero if it never did
func (s *Session) ConnectedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectedAt
}

// Client is the calling plugin: it owns the single active call session and
// drives it through the state machine in response to signaling messages,
// peer connection events, and local operations.
type Client struct {
	core      *phonesdk.Client
	config    *Config
	transport Transport
	media     *media.Manager
	rest      *RestClient
	hangup    *Coordinator
	emitter   *EventEmitter

	mu             sync.Mutex
	session        *Session
	peer           *PeerManager
	monitor        *Monitor
	ringTimer      *time.Timer
	connectTimer   *time.Timer
	connectRetried bool
	onStatusChange func(change StatusChange)
}

// New creates the calling plugin. It verifies up front that a peer
// connection can be constructed at all; a host without that capability
// cannot place or take calls, so construction fails hard.
func New(core *phonesdk.Client, transport Transport, mediaManager *media.Manager, config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := VerifyPeerSupport(config.Peer, core.GetLogger()); err != nil {
		return nil, fmt.Errorf("peer connections are not supported on this host: %w", err)
	}

	c := &Client{
		core:      core,
		config:    config,
		transport: transport,
		media:     mediaManager,
		rest:      NewRestClient(core),
		emitter:   NewEventEmitter(),
	}
	c.hangup = NewCoordinator(c.rest, transport, c, config.Hangup, core.GetLogger())

	transport.OnMessage(c.handleMessage)

	return c, nil
}

// VerifyPeerSupport constructs and immediately closes a throwaway peer
// connection to prove the host can do WebRTC.
func VerifyPeerSupport(config *PeerConfig, logger phonesdk.Logger) error {
	probe, err := NewPeerManager(config, logger)
	if err != nil {
		return err
	}
	return probe.Close()
}

// OnStatusChange sets the single status callback. Every state transition of
// the active session is delivered here with full session context.
func (c *Client) OnStatusChange(handler func(change StatusChange)) {
	c.mu.Lock()
	c.onStatusChange = handler
	c.mu.Unlock()
}

// On registers an event handler on the calling emitter
func (c *Client) On(event CallEventKey, handler EventHandler) {
	c.emitter.On(string(event), handler)
}

// ActiveSession returns the current session, or nil when idle
func (c *Client) ActiveSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// QualitySnapshot returns the latest connection stats sample. Zero value
// when no call is connected.
func (c *Client) QualitySnapshot() ConnectionStats {
	c.mu.Lock()
	monitor := c.monitor
	c.mu.Unlock()
	if monitor == nil {
		return ConnectionStats{}
	}
	return monitor.LastSample()
}

// Hangup exposes the termination coordinator
func (c *Client) Hangup() *Coordinator {
	return c.hangup
}

// ---- Outgoing calls ----

// PlaceOutgoing originates a call to the target extension. Only one session
// may exist at a time; a second request is rejected without touching the
// first.
func (c *Client) PlaceOutgoing(ctx context.Context, targetExtension string) (*Session, error) {
	c.mu.Lock()
	if c.session != nil && !c.session.State().Terminal() {
		id := c.session.ID
		c.mu.Unlock()
		return nil, fmt.Errorf("a call is already active (channel %s)", id)
	}
	c.mu.Unlock()

	stream, err := c.media.Acquire()
	if err != nil {
		return nil, fmt.Errorf("cannot place call: %w", err)
	}

	resp, err := c.rest.Initiate(ctx, targetExtension, "webrtc")
	if err != nil {
		c.media.Release()
		return nil, fmt.Errorf("backend rejected call to %s: %w", targetExtension, err)
	}
	channelID := resp.ChannelID()
	if channelID == "" {
		c.media.Release()
		return nil, fmt.Errorf("backend returned no channel for call to %s", targetExtension)
	}

	// Born idle so the Inviting transition below reaches the observer.
	session := &Session{
		ID:            channelID,
		Direction:     DirectionOutgoing,
		Type:          DetectCallType(channelID),
		PeerExtension: targetExtension,
		StartedAt:     time.Now(),
		state:         CallStateIdle,
	}

	c.mu.Lock()
	if c.session != nil && !c.session.State().Terminal() {
		id := c.session.ID
		c.mu.Unlock()
		c.media.Release()
		return nil, fmt.Errorf("a call is already active (channel %s)", id)
	}
	c.session = session
	c.connectRetried = false
	c.mu.Unlock()

	c.setState(session, CallStateInviting, fmt.Sprintf("calling %s", targetExtension), "")

	if session.Type == CallTypeWebRTCNative {
		if err := c.setupPeer(session, stream); err != nil {
			c.failSession(session, ErrorClassMedia, fmt.Sprintf("call setup failed: %v", err))
			return session, err
		}
	}

	c.setState(session, CallStateRingingRemote, fmt.Sprintf("ringing %s", targetExtension), "")
	c.armRingTimer(session)

	return session, nil
}

// ---- Incoming calls ----

// AcceptIncoming answers the currently ringing call
func (c *Client) AcceptIncoming(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil || session.State() != CallStateRingingLocal {
		return fmt.Errorf("no ringing call to accept")
	}

	c.cancelRingTimer()
	c.setState(session, CallStateAccepting, fmt.Sprintf("answering %s", session.PeerExtension), "")

	stream, err := c.media.Acquire()
	if err != nil {
		c.declineRinging(session)
		c.failSession(session, ErrorClassMedia, fmt.Sprintf("microphone unavailable: %v", err))
		return fmt.Errorf("cannot accept call: %w", err)
	}

	if _, err := c.rest.Answer(ctx, session.ID); err != nil {
		c.media.Release()
		c.failSession(session, ErrorClassSignaling, fmt.Sprintf("backend refused answer: %v", err))
		return fmt.Errorf("cannot accept call: %w", err)
	}

	if session.Type == CallTypeWebRTCNative {
		if err := c.setupPeer(session, stream); err != nil {
			c.failSession(session, ErrorClassMedia, fmt.Sprintf("call setup failed: %v", err))
			return err
		}
	}

	if err := c.transport.Send(&signaling.Message{
		Type:    signaling.MessageCallAccepted,
		Channel: session.ID,
		From:    c.localExtension(),
	}); err != nil {
		c.failSession(session, ErrorClassSignaling, fmt.Sprintf("could not confirm answer: %v", err))
		return fmt.Errorf("cannot accept call: %w", err)
	}

	c.setState(session, CallStateNegotiating, "connecting media", "")
	c.armConnectTimer(session)
	return nil
}

// RejectIncoming declines the currently ringing call
func (c *Client) RejectIncoming() error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil || session.State() != CallStateRingingLocal {
		return fmt.Errorf("no ringing call to reject")
	}

	c.cancelRingTimer()
	c.declineRinging(session)
	c.endSession(session, "call rejected")
	return nil
}

func (c *Client) declineRinging(session *Session) {
	_ = c.transport.Send(&signaling.Message{
		Type:    signaling.MessageCallRejected,
		Channel: session.ID,
		From:    c.localExtension(),
	})
}

// ---- Teardown ----

// EndActive hangs up the current call over every applicable path
func (c *Client) EndActive(ctx context.Context) (*TerminateResult, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil, fmt.Errorf("no active call to end")
	}
	if session.State().Terminal() {
		return nil, fmt.Errorf("call %s already ended", session.ID)
	}

	c.setState(session, CallStateEnding, "ending call", "")

	result, err := c.hangup.Terminate(ctx, session.ID, session.Type)
	if err != nil {
		return nil, err
	}

	c.endSession(session, result.Summary())
	return result, nil
}

// ClosePeer implements PeerCloser for the hangup coordinator
func (c *Client) ClosePeer(channelID string) error {
	c.mu.Lock()
	peer := c.peer
	session := c.session
	c.mu.Unlock()

	if peer == nil {
		return nil
	}
	if session != nil && channelID != "" && session.ID != channelID {
		return fmt.Errorf("channel %s has no peer connection", channelID)
	}
	return peer.Close()
}

// ---- Signaling message handling ----

func (c *Client) handleMessage(msg *signaling.Message) {
	switch {
	case msg.IsInvitation():
		c.handleInvitation(msg)
	case msg.IsAcceptance():
		c.handleAcceptance(msg)
	case msg.Type == signaling.MessageCallRejected:
		c.handleRejection(msg)
	case msg.Type == signaling.MessageOffer:
		c.handleOffer(msg)
	case msg.Type == signaling.MessageAnswer:
		c.handleAnswer(msg)
	case msg.Type == signaling.MessageIceCandidate:
		c.handleCandidate(msg)
	case msg.IsTermination():
		c.handleRemoteHangup(msg)
	}
}

func (c *Client) handleInvitation(msg *signaling.Message) {
	channelID := msg.ChannelID()
	if channelID == "" {
		c.core.GetLogger().Printf("calling: invitation without channel id dropped")
		return
	}

	c.mu.Lock()
	if c.session != nil && !c.session.State().Terminal() {
		c.mu.Unlock()
		// Busy: decline without disturbing the active call.
		_ = c.transport.Send(&signaling.Message{
			Type:    signaling.MessageCallRejected,
			Channel: channelID,
			From:    c.localExtension(),
		})
		return
	}

	session := &Session{
		ID:            channelID,
		Direction:     DirectionIncoming,
		Type:          DetectCallType(channelID),
		PeerExtension: msg.CallerExtension,
		PeerUsername:  msg.CallerUsername,
		StartedAt:     time.Now(),
		state:         CallStateRingingLocal,
	}
	if session.PeerExtension == "" {
		session.PeerExtension = msg.From
	}
	c.session = session
	c.connectRetried = false
	c.mu.Unlock()

	c.setState(session, CallStateRingingLocal, fmt.Sprintf("incoming call from %s", session.PeerExtension), "")
	c.armRingTimer(session)
	c.emitter.Emit(string(CallEventIncoming), session)
}

func (c *Client) handleAcceptance(msg *signaling.Message) {
	session := c.sessionFor(msg)
	if session == nil || session.Direction != DirectionOutgoing {
		return
	}
	if session.State() != CallStateRingingRemote && session.State() != CallStateInviting {
		return
	}

	c.cancelRingTimer()
	c.setState(session, CallStateNegotiating, "call answered, connecting media", "")
	c.armConnectTimer(session)

	if session.Type == CallTypeWebRTCNative {
		if err := c.sendOffer(session); err != nil {
			c.failSession(session, ErrorClassSignaling, fmt.Sprintf("could not send offer: %v", err))
		}
	}
}

func (c *Client) handleRejection(msg *signaling.Message) {
	session := c.sessionFor(msg)
	if session == nil || session.State().Terminal() {
		return
	}
	c.cancelRingTimer()
	c.cancelConnectTimer()
	c.cleanupCall()
	c.setState(session, CallStateEnded, fmt.Sprintf("%s declined the call", session.PeerExtension), "")
	c.finishSession(session)
}

func (c *Client) handleOffer(msg *signaling.Message) {
	session := c.sessionFor(msg)
	if session == nil || msg.Offer == nil {
		return
	}

	c.mu.Lock()
	peer := c.peer
	c.mu.Unlock()
	if peer == nil {
		c.core.GetLogger().Printf("calling: offer for %s arrived before peer setup, dropped", session.ID)
		return
	}

	if err := peer.SetRemoteOffer(msg.Offer); err != nil {
		c.failSession(session, ErrorClassSignaling, fmt.Sprintf("bad remote offer: %v", err))
		return
	}

	answer, err := peer.CreateAnswer()
	if err != nil {
		c.failSession(session, ErrorClassMedia, fmt.Sprintf("could not create answer: %v", err))
		return
	}

	if err := c.transport.Send(&signaling.Message{
		Type:    signaling.MessageAnswer,
		Channel: session.ID,
		From:    c.localExtension(),
		Answer:  answer,
	}); err != nil {
		c.failSession(session, ErrorClassSignaling, fmt.Sprintf("could not send answer: %v", err))
	}
}

func (c *Client) handleAnswer(msg *signaling.Message) {
	session := c.sessionFor(msg)
	if session == nil || msg.Answer == nil {
		return
	}

	c.mu.Lock()
	peer := c.peer
	c.mu.Unlock()
	if peer == nil {
		return
	}

	if err := peer.SetRemoteAnswer(msg.Answer); err != nil {
		c.failSession(session, ErrorClassSignaling, fmt.Sprintf("bad remote answer: %v", err))
	}
}

func (c *Client) handleCandidate(msg *signaling.Message) {
	session := c.sessionFor(msg)
	if session == nil {
		return
	}

	c.mu.Lock()
	peer := c.peer
	c.mu.Unlock()
	if peer == nil {
		return
	}

	if err := peer.AddRemoteCandidate(msg.Candidate); err != nil {
		c.core.GetLogger().Printf("calling: candidate for %s not applied: %v", session.ID, err)
	}
}

func (c *Client) handleRemoteHangup(msg *signaling.Message) {
	session := c.sessionFor(msg)
	if session == nil || session.State().Terminal() {
		return
	}
	c.endSession(session, fmt.Sprintf("%s hung up", session.PeerExtension))
}

// sessionFor matches a message to the active session. Messages without a
// channel id are assumed to belong to the active call, since the backend
// only multiplexes one call per extension.
func (c *Client) sessionFor(msg *signaling.Message) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	channelID := msg.ChannelID()
	if channelID != "" && channelID != c.session.ID {
		return nil
	}
	return c.session
}

// ---- Peer wiring ----

func (c *Client) setupPeer(session *Session, stream *media.Stream) error {
	peer, err := NewPeerManager(c.config.Peer, c.core.GetLogger())
	if err != nil {
		return err
	}

	if err := peer.AddLocalStream(stream); err != nil {
		_ = peer.Close()
		return err
	}

	peer.OnICECandidate(func(candidate *signaling.ICECandidate) {
		_ = c.transport.Send(&signaling.Message{
			Type:      signaling.MessageIceCandidate,
			Channel:   session.ID,
			From:      c.localExtension(),
			Candidate: candidate,
		})
	})

	peer.OnStateChange(func(state webrtc.PeerConnectionState) {
		c.handlePeerState(session, state)
	})

	peer.OnICEStateChange(func(state webrtc.ICEConnectionState) {
		if state == webrtc.ICEConnectionStateConnected {
			c.handlePeerConnected(session)
		}
	})

	peer.OnRemoteTrack(func(track *webrtc.TrackRemote) {
		remote := media.NewStream([]media.Track{newRemoteTrack(track)})
		if err := c.media.PlayRemote(remote); err != nil {
			c.core.GetLogger().Printf("calling: remote playback failed: %v", err)
		}
		c.emitter.Emit(string(CallEventRemoteMedia), track)
	})

	monitor := NewMonitor(peer, c.config.Monitor, c.core.GetLogger())
	monitor.OnQualityChange(func(quality Quality) {
		c.emitter.Emit(string(CallEventQualityChange), quality)
	})

	c.mu.Lock()
	c.peer = peer
	c.monitor = monitor
	c.mu.Unlock()
	return nil
}

func (c *Client) sendOffer(session *Session) error {
	c.mu.Lock()
	peer := c.peer
	c.mu.Unlock()
	if peer == nil {
		return fmt.Errorf("no peer connection")
	}

	offer, err := peer.CreateOffer()
	if err != nil {
		return err
	}
	return c.transport.Send(&signaling.Message{
		Type:    signaling.MessageOffer,
		Channel: session.ID,
		From:    c.localExtension(),
		To:      session.PeerExtension,
		Offer:   offer,
	})
}

func (c *Client) handlePeerState(session *Session, state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		c.handlePeerConnected(session)
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
		c.mu.Lock()
		monitor := c.monitor
		c.mu.Unlock()
		if monitor != nil {
			monitor.Stop()
		}
		if session.State() == CallStateConnected {
			c.endSession(session, "media connection lost")
		}
	}
}

func (c *Client) handlePeerConnected(session *Session) {
	if session.State().Terminal() || session.State() == CallStateConnected {
		return
	}

	c.cancelConnectTimer()

	session.mu.Lock()
	session.connectedAt = time.Now()
	session.mu.Unlock()

	c.setState(session, CallStateConnected, fmt.Sprintf("connected to %s", session.PeerExtension), "")

	c.mu.Lock()
	monitor := c.monitor
	c.mu.Unlock()
	if monitor != nil {
		monitor.Start()
	}
}

// ---- Timers ----

func (c *Client) armRingTimer(session *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ringTimer != nil {
		c.ringTimer.Stop()
	}
	c.ringTimer = time.AfterFunc(c.config.RingTimeout, func() {
		c.onRingTimeout(session)
	})
}

func (c *Client) cancelRingTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ringTimer != nil {
		c.ringTimer.Stop()
		c.ringTimer = nil
	}
}

func (c *Client) onRingTimeout(session *Session) {
	state := session.State()
	if state != CallStateRingingLocal && state != CallStateRingingRemote && state != CallStateInviting {
		return
	}

	if session.Direction == DirectionIncoming {
		c.declineRinging(session)
		c.cleanupCall()
		c.setState(session, CallStateEnded, "missed call", ErrorClassTimeout)
		c.finishSession(session)
		return
	}
	c.failSession(session, ErrorClassTimeout, fmt.Sprintf("%s did not answer", session.PeerExtension))
}

func (c *Client) armConnectTimer(session *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectTimer != nil {
		c.connectTimer.Stop()
	}
	c.connectTimer = time.AfterFunc(c.config.ConnectTimeout, func() {
		c.onConnectTimeout(session)
	})
}

func (c *Client) cancelConnectTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectTimer != nil {
		c.connectTimer.Stop()
		c.connectTimer = nil
	}
}

// onConnectTimeout fires when media did not come up in time. The first
// timeout rebuilds the peer connection and renegotiates once; the second
// fails the call.
func (c *Client) onConnectTimeout(session *Session) {
	if session.State() != CallStateNegotiating {
		return
	}

	c.mu.Lock()
	retried := c.connectRetried
	c.connectRetried = true
	peer := c.peer
	c.mu.Unlock()

	if retried {
		c.failSession(session, ErrorClassTimeout, "media connection timed out")
		return
	}

	c.core.GetLogger().Printf("calling: connect timeout on %s, retrying negotiation", session.ID)

	if peer != nil {
		_ = peer.Close()
	}

	stream := c.media.ActiveStream()
	if stream == nil {
		c.failSession(session, ErrorClassMedia, "local media lost during renegotiation")
		return
	}
	if err := c.setupPeer(session, stream); err != nil {
		c.failSession(session, ErrorClassMedia, fmt.Sprintf("renegotiation failed: %v", err))
		return
	}

	if session.Direction == DirectionOutgoing && session.Type == CallTypeWebRTCNative {
		if err := c.sendOffer(session); err != nil {
			c.failSession(session, ErrorClassSignaling, fmt.Sprintf("renegotiation failed: %v", err))
			return
		}
	}
	c.armConnectTimer(session)
}

// ---- State transitions ----

func (c *Client) setState(session *Session, state CallState, message string, class ErrorClass) {
	session.mu.Lock()
	if session.state == state && state != CallStateRingingLocal {
		session.mu.Unlock()
		return
	}
	session.state = state
	session.mu.Unlock()

	change := StatusChange{
		CallID:        session.ID,
		State:         state,
		Direction:     session.Direction,
		Type:          session.Type,
		PeerExtension: session.PeerExtension,
		Message:       message,
		Class:         class,
	}

	c.mu.Lock()
	handler := c.onStatusChange
	c.mu.Unlock()
	if handler != nil {
		handler(change)
	}
	c.emitter.Emit(string(CallEventStateChanged), change)
}

// endSession moves the session to Ended and releases everything
func (c *Client) endSession(session *Session, message string) {
	if session.State().Terminal() {
		return
	}
	c.cancelRingTimer()
	c.cancelConnectTimer()
	c.cleanupCall()
	c.setState(session, CallStateEnded, message, "")
	c.finishSession(session)
}

// failSession moves the session to Failed with a classified reason
func (c *Client) failSession(session *Session, class ErrorClass, message string) {
	if session.State().Terminal() {
		return
	}
	c.cancelRingTimer()
	c.cancelConnectTimer()
	c.cleanupCall()
	c.setState(session, CallStateFailed, message, class)
	c.emitter.Emit(string(CallEventError), message)
	c.finishSession(session)
}

// cleanupCall stops monitoring, closes the peer, and releases media
func (c *Client) cleanupCall() {
	c.mu.Lock()
	monitor := c.monitor
	peer := c.peer
	c.monitor = nil
	c.peer = nil
	c.mu.Unlock()

	if monitor != nil {
		monitor.Stop()
	}
	if peer != nil {
		_ = peer.Close()
	}
	c.media.Release()
}

// finishSession destroys the session after observers heard the terminal
// state
func (c *Client) finishSession(session *Session) {
	c.emitter.Emit(string(CallEventEnded), session)

	c.mu.Lock()
	if c.session == session {
		c.session = nil
	}
	c.mu.Unlock()
}

func (c *Client) localExtension() string {
	info, err := c.core.TokenInfo()
	if err != nil {
		return ""
	}
	return info.Extension
}

// ---- Remote track adapter ----

// remoteTrack wraps an inbound pion track so the media manager can hand it
// to a playback sink. Stopping playback does not stop the RTP stream, so
// Stop is a no-op.
type remoteTrack struct {
	track *webrtc.TrackRemote

	mu      sync.Mutex
	enabled bool
}

func newRemoteTrack(track *webrtc.TrackRemote) *remoteTrack {
	return &remoteTrack{track: track, enabled: true}
}

func (t *remoteTrack) ID() string   { return t.track.ID() }
func (t *remoteTrack) Kind() string { return t.track.Kind().String() }

func (t *remoteTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *remoteTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *remoteTrack) Stop() error { return nil }
