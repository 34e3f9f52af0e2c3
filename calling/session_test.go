/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/asterlink/softphone-go-sdk/media"
	"github.com/asterlink/softphone-go-sdk/phonesdk"
	"github.com/asterlink/softphone-go-sdk/signaling"
)

// fakeTransport satisfies Transport and lets tests inject inbound messages
type fakeTransport struct {
	mu       sync.Mutex
	sent     []*signaling.Message
	handlers []signaling.MessageHandler
	sendErr  error
}

func (f *fakeTransport) Send(msg *signaling.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) OnMessage(handler signaling.MessageHandler) {
	f.mu.Lock()
	f.handlers = append(f.handlers, handler)
	f.mu.Unlock()
}

func (f *fakeTransport) deliver(msg *signaling.Message) {
	f.mu.Lock()
	handlers := make([]signaling.MessageHandler, len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

func (f *fakeTransport) sentOfType(msgType signaling.MessageType) []*signaling.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*signaling.Message
	for _, m := range f.sent {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// micTrack is a minimal local audio track for the media manager
type micTrack struct {
	enabled bool
	stopped bool
}

func (t *micTrack) ID() string              { return "mic" }
func (t *micTrack) Kind() string            { return "audio" }
func (t *micTrack) SetEnabled(enabled bool) { t.enabled = enabled }
func (t *micTrack) Enabled() bool           { return t.enabled }
func (t *micTrack) Stop() error             { t.stopped = true; return nil }

// micDevice is an injectable capture device
type micDevice struct {
	failWith error
}

func (d *micDevice) Name() string { return "test-mic" }

func (d *micDevice) Open(constraints media.Constraints) (*media.Stream, error) {
	if d.failWith != nil {
		return nil, d.failWith
	}
	return media.NewStream([]media.Track{&micTrack{enabled: true}}), nil
}

type sessionFixture struct {
	client    *Client
	transport *fakeTransport
	device    *micDevice
	changes   chan StatusChange
	cleanup   func()
}

func newSessionFixture(t *testing.T, config *Config) *sessionFixture {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/protected/call/initiate":
			_ = json.NewEncoder(w).Encode(CallResponse{Success: true, Channel: "webrtc-call-55"})
		case "/protected/call/answer", "/protected/call/hangup":
			_ = json.NewEncoder(w).Encode(CallResponse{Success: true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	cfg := phonesdk.DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.MaxRetries = 0
	core, err := phonesdk.NewClient("test-token", cfg)
	if err != nil {
		t.Fatalf("Failed to create core client: %v", err)
	}

	transport := &fakeTransport{}
	device := &micDevice{}
	mgr := media.New(device, nil)

	client, err := New(core, transport, mgr, config)
	if err != nil {
		t.Fatalf("Failed to create calling client: %v", err)
	}

	changes := make(chan StatusChange, 32)
	client.OnStatusChange(func(change StatusChange) {
		changes <- change
	})

	return &sessionFixture{
		client:    client,
		transport: transport,
		device:    device,
		changes:   changes,
		cleanup:   server.Close,
	}
}

func (f *sessionFixture) waitForState(t *testing.T, want CallState) StatusChange {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case change := <-f.changes:
			if change.State == want {
				return change
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for state %s", want)
		}
	}
}

func invitation(channel string) *signaling.Message {
	return &signaling.Message{
		Type:            signaling.MessageCallInvitation,
		Channel:         channel,
		CallerExtension: "1002",
		CallerUsername:  "bob",
	}
}

func TestIncomingInvitation(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()

	f.transport.deliver(invitation("webrtc-call-1"))

	change := f.waitForState(t, CallStateRingingLocal)
	if change.CallID != "webrtc-call-1" {
		t.Errorf("Unexpected call id %q", change.CallID)
	}
	if change.Direction != DirectionIncoming {
		t.Errorf("Expected incoming direction, got %s", change.Direction)
	}
	if change.Type != CallTypeWebRTCNative {
		t.Errorf("Expected webrtc type, got %s", change.Type)
	}
	if change.PeerExtension != "1002" {
		t.Errorf("Expected caller extension, got %q", change.PeerExtension)
	}

	session := f.client.ActiveSession()
	if session == nil || session.State() != CallStateRingingLocal {
		t.Fatal("Expected an active ringing session")
	}
}

func TestSecondInvitationIsBusyRejected(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()

	f.transport.deliver(invitation("webrtc-call-1"))
	f.waitForState(t, CallStateRingingLocal)

	f.transport.deliver(invitation("webrtc-call-2"))

	rejected := f.transport.sentOfType(signaling.MessageCallRejected)
	if len(rejected) != 1 || rejected[0].Channel != "webrtc-call-2" {
		t.Fatalf("Expected busy rejection for the second call, got %+v", rejected)
	}

	session := f.client.ActiveSession()
	if session == nil || session.ID != "webrtc-call-1" {
		t.Error("First session must not be disturbed")
	}
	if session.State() != CallStateRingingLocal {
		t.Errorf("First session state changed to %s", session.State())
	}
}

func TestRejectIncoming(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()

	f.transport.deliver(invitation("webrtc-call-1"))
	f.waitForState(t, CallStateRingingLocal)

	if err := f.client.RejectIncoming(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	f.waitForState(t, CallStateEnded)
	if len(f.transport.sentOfType(signaling.MessageCallRejected)) != 1 {
		t.Error("Expected a rejection message")
	}
	if f.client.ActiveSession() != nil {
		t.Error("Expected session destroyed after rejection")
	}

	t.Run("second reject errors", func(t *testing.T) {
		if err := f.client.RejectIncoming(); err == nil {
			t.Error("Expected error with no ringing call")
		}
	})
}

func TestAcceptIncoming(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()

	f.transport.deliver(invitation("webrtc-call-1"))
	f.waitForState(t, CallStateRingingLocal)

	if err := f.client.AcceptIncoming(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	f.waitForState(t, CallStateNegotiating)

	accepted := f.transport.sentOfType(signaling.MessageCallAccepted)
	if len(accepted) != 1 || accepted[0].Channel != "webrtc-call-1" {
		t.Fatalf("Expected acceptance on the wire, got %+v", accepted)
	}

	session := f.client.ActiveSession()
	if session == nil || session.State() != CallStateNegotiating {
		t.Fatal("Expected session negotiating")
	}
}

func TestAcceptIncomingMediaFailure(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()
	f.device.failWith = media.NewError(media.ErrPermissionDenied, "mic blocked", nil)

	f.transport.deliver(invitation("webrtc-call-1"))
	f.waitForState(t, CallStateRingingLocal)

	err := f.client.AcceptIncoming(context.Background())
	if err == nil {
		t.Fatal("Expected media error")
	}

	change := f.waitForState(t, CallStateFailed)
	if change.Class != ErrorClassMedia {
		t.Errorf("Expected media classification, got %s", change.Class)
	}
	if len(f.transport.sentOfType(signaling.MessageCallRejected)) != 1 {
		t.Error("Expected the caller to be told the call cannot proceed")
	}
	if f.client.ActiveSession() != nil {
		t.Error("Expected session destroyed after failure")
	}
}

func TestRingTimeoutAutoRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RingTimeout = 50 * time.Millisecond
	f := newSessionFixture(t, cfg)
	defer f.cleanup()

	f.transport.deliver(invitation("webrtc-call-1"))
	f.waitForState(t, CallStateRingingLocal)

	change := f.waitForState(t, CallStateEnded)
	if change.Class != ErrorClassTimeout {
		t.Errorf("Expected timeout classification, got %s", change.Class)
	}
	if len(f.transport.sentOfType(signaling.MessageCallRejected)) != 1 {
		t.Error("Expected auto-rejection on ring timeout")
	}
	if f.client.ActiveSession() != nil {
		t.Error("Expected session destroyed after timeout")
	}
}

func TestRemoteHangupEndsSession(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()

	f.transport.deliver(invitation("webrtc-call-1"))
	f.waitForState(t, CallStateRingingLocal)

	f.transport.deliver(&signaling.Message{Type: signaling.MessageHangup, Channel: "webrtc-call-1"})

	f.waitForState(t, CallStateEnded)
	if f.client.ActiveSession() != nil {
		t.Error("Expected session destroyed after remote hangup")
	}
}

func TestHangupForUnknownChannelIgnored(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()

	f.transport.deliver(invitation("webrtc-call-1"))
	f.waitForState(t, CallStateRingingLocal)

	f.transport.deliver(&signaling.Message{Type: signaling.MessageHangup, Channel: "webrtc-call-other"})

	session := f.client.ActiveSession()
	if session == nil || session.State() != CallStateRingingLocal {
		t.Error("Hangup for another channel must not touch the session")
	}
}

func TestPlaceOutgoing(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()

	session, err := f.client.PlaceOutgoing(context.Background(), "1002")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if session.ID != "webrtc-call-55" {
		t.Errorf("Expected backend channel id, got %q", session.ID)
	}
	if session.Direction != DirectionOutgoing {
		t.Errorf("Expected outgoing direction, got %s", session.Direction)
	}
	if session.Type != CallTypeWebRTCNative {
		t.Errorf("Expected webrtc type from channel id, got %s", session.Type)
	}

	// The observer sees the full outgoing progression
	f.waitForState(t, CallStateInviting)
	f.waitForState(t, CallStateRingingRemote)

	t.Run("second concurrent call is rejected", func(t *testing.T) {
		if _, err := f.client.PlaceOutgoing(context.Background(), "1003"); err == nil {
			t.Error("Expected single-session invariant to hold")
		}
		active := f.client.ActiveSession()
		if active == nil || active.ID != "webrtc-call-55" {
			t.Error("First session must survive the rejected attempt")
		}
	})
}

func TestOutgoingAcceptanceSendsOffer(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()

	if _, err := f.client.PlaceOutgoing(context.Background(), "1002"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	f.waitForState(t, CallStateRingingRemote)

	f.transport.deliver(&signaling.Message{Type: signaling.MessageCallAccepted, Channel: "webrtc-call-55"})

	f.waitForState(t, CallStateNegotiating)

	offers := f.transport.sentOfType(signaling.MessageOffer)
	if len(offers) != 1 {
		t.Fatalf("Expected one offer on the wire, got %d", len(offers))
	}
	if offers[0].Offer == nil || offers[0].Offer.SDP == "" {
		t.Error("Expected offer to carry SDP")
	}
	if offers[0].Channel != "webrtc-call-55" {
		t.Errorf("Offer sent for wrong channel %q", offers[0].Channel)
	}
}

func TestEndActive(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()

	f.transport.deliver(invitation("webrtc-call-1"))
	f.waitForState(t, CallStateRingingLocal)

	result, err := f.client.EndActive(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("Expected hangup success")
	}

	f.waitForState(t, CallStateEnded)
	if f.client.ActiveSession() != nil {
		t.Error("Expected session destroyed")
	}

	t.Run("ending again errors", func(t *testing.T) {
		if _, err := f.client.EndActive(context.Background()); err == nil {
			t.Error("Expected error with no active call")
		}
	})
}

func TestConnectTimeoutRetriesThenFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectTimeout = 150 * time.Millisecond
	f := newSessionFixture(t, cfg)
	defer f.cleanup()

	if _, err := f.client.PlaceOutgoing(context.Background(), "1002"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	f.waitForState(t, CallStateRingingRemote)

	f.transport.deliver(&signaling.Message{Type: signaling.MessageCallAccepted, Channel: "webrtc-call-55"})
	f.waitForState(t, CallStateNegotiating)

	// The first timeout rebuilds the peer connection and re-offers once
	deadline := time.Now().Add(5 * time.Second)
	for len(f.transport.sentOfType(signaling.MessageOffer)) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected a second offer after the connect timeout, got %d",
				len(f.transport.sentOfType(signaling.MessageOffer)))
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The second timeout fails the call
	change := f.waitForState(t, CallStateFailed)
	if change.Class != ErrorClassTimeout {
		t.Errorf("Expected timeout classification, got %s", change.Class)
	}
	if f.client.ActiveSession() != nil {
		t.Error("Expected session destroyed after the failed retry")
	}
}

func TestConnectTimeoutCancelledOnConnect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectTimeout = 100 * time.Millisecond
	f := newSessionFixture(t, cfg)
	defer f.cleanup()

	f.transport.deliver(invitation("webrtc-call-1"))
	f.waitForState(t, CallStateRingingLocal)
	if err := f.client.AcceptIncoming(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	f.waitForState(t, CallStateNegotiating)

	session := f.client.ActiveSession()
	f.client.handlePeerConnected(session)
	f.waitForState(t, CallStateConnected)

	// Well past the timeout, the call must still be up
	time.Sleep(3 * cfg.ConnectTimeout)
	if got := session.State(); got != CallStateConnected {
		t.Fatalf("Connect timer fired after the call connected, state=%s", got)
	}
	drained := false
	for !drained {
		select {
		case change := <-f.changes:
			if change.State == CallStateFailed {
				t.Fatalf("Observed a failure after the call connected: %+v", change)
			}
		default:
			drained = true
		}
	}

	if _, err := f.client.EndActive(context.Background()); err != nil {
		t.Fatalf("Hangup failed: %v", err)
	}
}

func TestQualitySnapshotWhenIdle(t *testing.T) {
	f := newSessionFixture(t, nil)
	defer f.cleanup()

	stats := f.client.QualitySnapshot()
	if stats.Quality != "" && stats.Quality != QualityUnknown {
		t.Errorf("Expected empty snapshot while idle, got %+v", stats)
	}
}
