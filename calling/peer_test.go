/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/asterlink/softphone-go-sdk/signaling"
)

// recordingLogger captures log lines so tests can observe retry behavior
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Printf(format string, v ...any) {
	l.mu.Lock()
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
	l.mu.Unlock()
}

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func hostCandidate() *signaling.ICECandidate {
	mid := "0"
	var idx uint16
	return &signaling.ICECandidate{
		Candidate:     "candidate:1 1 UDP 2122252543 127.0.0.1 49153 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
}

func newTestPeer(t *testing.T) *PeerManager {
	t.Helper()
	pm, err := NewPeerManager(nil, testLogger{})
	if err != nil {
		t.Fatalf("Failed to create peer manager: %v", err)
	}
	t.Cleanup(func() { _ = pm.Close() })
	return pm
}

func TestDefaultPeerConfig(t *testing.T) {
	cfg := DefaultPeerConfig()
	if len(cfg.ICEServers) == 0 {
		t.Error("Expected STUN servers in the default config")
	}
	if cfg.CandidatePoolSize == 0 {
		t.Error("Expected a pre-sized candidate pool")
	}
	if cfg.CandidatePoolSize > 1 {
		t.Errorf("Candidate pool size %d is rejected by the webrtc stack", cfg.CandidatePoolSize)
	}

	t.Run("default config constructs a peer connection", func(t *testing.T) {
		pm, err := NewPeerManager(nil, testLogger{})
		if err != nil {
			t.Fatalf("Default config cannot build a peer connection: %v", err)
		}
		_ = pm.Close()
	})
}

func TestVerifyPeerSupport(t *testing.T) {
	if err := VerifyPeerSupport(nil, testLogger{}); err != nil {
		t.Errorf("Expected peer support on this host, got %v", err)
	}
}

func TestOfferAnswerNegotiation(t *testing.T) {
	caller := newTestPeer(t)
	callee := newTestPeer(t)

	offer, err := caller.CreateOffer()
	if err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}
	if offer.Type != "offer" || offer.SDP == "" {
		t.Fatalf("Unexpected offer %+v", offer)
	}

	if err := callee.SetRemoteOffer(offer); err != nil {
		t.Fatalf("SetRemoteOffer failed: %v", err)
	}
	answer, err := callee.CreateAnswer()
	if err != nil {
		t.Fatalf("CreateAnswer failed: %v", err)
	}
	if answer.Type != "answer" || answer.SDP == "" {
		t.Fatalf("Unexpected answer %+v", answer)
	}

	if err := caller.SetRemoteAnswer(answer); err != nil {
		t.Fatalf("SetRemoteAnswer failed: %v", err)
	}

	t.Run("duplicate answer is ignored", func(t *testing.T) {
		if err := caller.SetRemoteAnswer(answer); err != nil {
			t.Errorf("Duplicate answer should be a no-op, got %v", err)
		}
	})
}

func TestCandidateBuffering(t *testing.T) {
	t.Run("candidates buffer until both descriptions are set", func(t *testing.T) {
		caller := newTestPeer(t)
		callee := newTestPeer(t)

		// Trickle arrives before any description
		if err := callee.AddRemoteCandidate(hostCandidate()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got := callee.PendingCandidates(); got != 1 {
			t.Fatalf("Expected 1 buffered candidate, got %d", got)
		}

		offer, err := caller.CreateOffer()
		if err != nil {
			t.Fatalf("CreateOffer failed: %v", err)
		}
		if err := callee.SetRemoteOffer(offer); err != nil {
			t.Fatalf("SetRemoteOffer failed: %v", err)
		}

		// Only the remote description is set so far
		if err := callee.AddRemoteCandidate(hostCandidate()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got := callee.PendingCandidates(); got != 2 {
			t.Fatalf("Expected 2 buffered candidates, got %d", got)
		}

		// The answer sets the local description and drains the buffer
		if _, err := callee.CreateAnswer(); err != nil {
			t.Fatalf("CreateAnswer failed: %v", err)
		}
		if got := callee.PendingCandidates(); got != 0 {
			t.Errorf("Expected buffer drained, got %d pending", got)
		}
	})

	t.Run("candidate after negotiation applies immediately", func(t *testing.T) {
		caller := newTestPeer(t)
		callee := newTestPeer(t)

		offer, _ := caller.CreateOffer()
		_ = callee.SetRemoteOffer(offer)
		_, _ = callee.CreateAnswer()

		if err := callee.AddRemoteCandidate(hostCandidate()); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got := callee.PendingCandidates(); got != 0 {
			t.Errorf("Expected immediate application, got %d pending", got)
		}
	})

	t.Run("failing candidate after negotiation is retried once then dropped", func(t *testing.T) {
		logger := &recordingLogger{}
		caller := newTestPeer(t)
		callee, err := NewPeerManager(nil, logger)
		if err != nil {
			t.Fatalf("Failed to create peer manager: %v", err)
		}
		t.Cleanup(func() { _ = callee.Close() })

		offer, _ := caller.CreateOffer()
		_ = callee.SetRemoteOffer(offer)
		_, _ = callee.CreateAnswer()

		mid := "0"
		var idx uint16
		bad := &signaling.ICECandidate{
			Candidate:     "candidate:not a parseable candidate line",
			SDPMid:        &mid,
			SDPMLineIndex: &idx,
		}
		if err := callee.AddRemoteCandidate(bad); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got := callee.PendingCandidates(); got != 0 {
			t.Errorf("Expected the failed candidate dropped, got %d pending", got)
		}
		if !logger.contains("retrying once") {
			t.Error("Expected a retry of the failed candidate")
		}
		if !logger.contains("after retry") {
			t.Error("Expected the candidate dropped after its retry")
		}
	})

	t.Run("nil candidate is the end marker", func(t *testing.T) {
		pm := newTestPeer(t)
		if err := pm.AddRemoteCandidate(nil); err != nil {
			t.Errorf("Nil candidate should be a no-op, got %v", err)
		}
		if got := pm.PendingCandidates(); got != 0 {
			t.Errorf("Expected nothing buffered, got %d", got)
		}
	})
}

func TestPeerClose(t *testing.T) {
	pm, err := NewPeerManager(nil, testLogger{})
	if err != nil {
		t.Fatalf("Failed to create peer manager: %v", err)
	}

	if err := pm.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := pm.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}

	if got := pm.ConnectionState(); got != webrtc.PeerConnectionStateClosed {
		t.Errorf("Expected closed state, got %s", got)
	}

	t.Run("operations after close fail cleanly", func(t *testing.T) {
		if _, err := pm.CreateOffer(); err == nil {
			t.Error("Expected error creating an offer on a closed peer")
		}
		if err := pm.AddRemoteCandidate(hostCandidate()); err == nil {
			t.Error("Expected error adding a candidate to a closed peer")
		}
	})
}

func TestLocalCandidateForwarding(t *testing.T) {
	pm := newTestPeer(t)

	gathered := make(chan *signaling.ICECandidate, 16)
	pm.OnICECandidate(func(candidate *signaling.ICECandidate) {
		gathered <- candidate
	})

	if _, err := pm.CreateOffer(); err != nil {
		t.Fatalf("CreateOffer failed: %v", err)
	}

	// Gathering on loopback should produce at least one host candidate and
	// finish with the nil end marker.
	sawCandidate, sawEnd := false, false
	for !sawEnd {
		select {
		case c := <-gathered:
			if c == nil {
				sawEnd = true
			} else {
				sawCandidate = true
				if c.Candidate == "" {
					t.Error("Expected non-empty candidate string")
				}
			}
		case <-time.After(10 * time.Second):
			t.Fatal("Timed out waiting for candidate gathering")
		}
	}
	if !sawCandidate {
		t.Error("Expected at least one gathered candidate")
	}
}
