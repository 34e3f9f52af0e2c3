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

	"github.com/asterlink/softphone-go-sdk/phonesdk"
	"github.com/asterlink/softphone-go-sdk/signaling"
)

// ErrHangupInProgress is returned when a terminate request arrives for a
// channel that is already being torn down.
var ErrHangupInProgress = fmt.Errorf("hangup already in progress")

// Sender is the slice of the signaling transport the coordinator needs
type Sender interface {
	Send(msg *signaling.Message) error
}

// PeerCloser closes the peer connection associated with a channel, if one
// exists. The session state machine provides this.
type PeerCloser interface {
	ClosePeer(channelID string) error
}

// PathResult records the outcome of one termination path
type PathResult struct {
	Path string
	Err  error
}

// TerminateResult aggregates the outcomes of all attempted paths. Success
// means at least one path went through; the backend reaps the rest.
type TerminateResult struct {
	ChannelID string
	Type      CallType
	Paths     []PathResult
	Success   bool
}

// Summary renders the result for display. This and the session state
// machine are the only places that produce user-facing call text.
func (r *TerminateResult) Summary() string {
	if r.Success {
		return fmt.Sprintf("call %s ended", r.ChannelID)
	}
	return fmt.Sprintf("could not end call %s; it may already be down", r.ChannelID)
}

// HangupConfig holds configuration for the hangup coordinator
type HangupConfig struct {
	// RetainAfterComplete keeps a finished entry in the registry briefly so
	// a double-tap on the hangup control cannot start a second teardown
	RetainAfterComplete time.Duration
}

// DefaultHangupConfig returns the default hangup configuration
func DefaultHangupConfig() *HangupConfig {
	return &HangupConfig{
		RetainAfterComplete: 1 * time.Second,
	}
}

// Coordinator tears calls down over every path that could plausibly reach
// them: the WebRTC peer connection, the signaling channel, and the backend
// REST API. An in-flight registry makes termination idempotent per channel.
type Coordinator struct {
	config    *HangupConfig
	logger    phonesdk.Logger
	rest      *RestClient
	transport Sender
	peers     PeerCloser

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewCoordinator creates a hangup coordinator
func NewCoordinator(rest *RestClient, transport Sender, peers PeerCloser, config *HangupConfig, logger phonesdk.Logger) *Coordinator {
	if config == nil {
		config = DefaultHangupConfig()
	}
	return &Coordinator{
		config:    config,
		logger:    logger,
		rest:      rest,
		transport: transport,
		peers:     peers,
		inFlight:  make(map[string]struct{}),
	}
}

// Terminate ends the call on the given channel. If callType is empty it is
// detected from the channel id; an id that gives no signal tries all three
// paths. A concurrent Terminate for the same channel returns
// ErrHangupInProgress without side effects.
func (c *Coordinator) Terminate(ctx context.Context, channelID string, callType CallType) (*TerminateResult, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel id cannot be empty")
	}

	c.mu.Lock()
	if _, busy := c.inFlight[channelID]; busy {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w for channel %s", ErrHangupInProgress, channelID)
	}
	c.inFlight[channelID] = struct{}{}
	c.mu.Unlock()

	defer c.scheduleRemoval(channelID)

	if callType == "" {
		callType = DetectCallType(channelID)
	}

	result := &TerminateResult{ChannelID: channelID, Type: callType}

	tryWebRTC := callType == CallTypeWebRTCNative
	tryWS := callType == CallTypeWebSocketLeg
	trySIP := callType == CallTypeLegacySIP
	if !tryWebRTC && !tryWS && !trySIP {
		tryWebRTC, tryWS, trySIP = true, true, true
	}

	if tryWebRTC {
		result.Paths = append(result.Paths, PathResult{Path: "webrtc", Err: c.terminateWebRTC(channelID)})
	}
	if tryWS {
		result.Paths = append(result.Paths, PathResult{Path: "websocket", Err: c.terminateWebSocket(channelID)})
	}
	if trySIP {
		result.Paths = append(result.Paths, PathResult{Path: "sip", Err: c.terminateSIP(ctx, channelID)})
	}

	for _, p := range result.Paths {
		if p.Err == nil {
			result.Success = true
		} else {
			c.logger.Printf("hangup: %s path failed for %s: %v", p.Path, channelID, p.Err)
		}
	}

	return result, nil
}

// InFlight reports whether a termination is currently registered for the
// channel (including the short retention window after completion).
func (c *Coordinator) InFlight(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.inFlight[channelID]
	return busy
}

// EmergencyTerminate is the last-resort teardown: it closes the peer
// connection, fires best-effort hangups on the other paths, and clears the
// registry so nothing stays wedged.
func (c *Coordinator) EmergencyTerminate(ctx context.Context, channelID string) {
	c.logger.Printf("hangup: emergency terminate for channel %q", channelID)

	// An empty channel id still closes the active peer connection.
	if c.peers != nil {
		_ = c.peers.ClosePeer(channelID)
	}
	if channelID != "" {
		_ = c.terminateWebSocket(channelID)
		_, _ = c.rest.Hangup(ctx, channelID)
	}

	c.mu.Lock()
	c.inFlight = make(map[string]struct{})
	c.mu.Unlock()
}

// terminateWebRTC closes the peer connection and notifies the far end over
// signaling.
func (c *Coordinator) terminateWebRTC(channelID string) error {
	var closeErr error
	if c.peers != nil {
		closeErr = c.peers.ClosePeer(channelID)
	}

	sendErr := c.transport.Send(&signaling.Message{
		Type:      signaling.MessageHangup,
		Channel:   channelID,
		Timestamp: time.Now().UnixMilli(),
	})

	if closeErr != nil && sendErr != nil {
		return fmt.Errorf("peer close: %v; signaling: %w", closeErr, sendErr)
	}
	return nil
}

// terminateWebSocket sends the websocket-leg hangup message
func (c *Coordinator) terminateWebSocket(channelID string) error {
	return c.transport.Send(&signaling.Message{
		Type:      signaling.MessageHangupCall,
		CallID:    channelID,
		Timestamp: time.Now().UnixMilli(),
	})
}

// terminateSIP asks the backend to tear the channel down
func (c *Coordinator) terminateSIP(ctx context.Context, channelID string) error {
	resp, err := c.rest.Hangup(ctx, channelID)
	if err != nil {
		return err
	}
	if !resp.Success && resp.Message != "" {
		return fmt.Errorf("backend refused hangup: %s", resp.Message)
	}
	return nil
}

func (c *Coordinator) scheduleRemoval(channelID string) {
	time.AfterFunc(c.config.RetainAfterComplete, func() {
		c.mu.Lock()
		delete(c.inFlight, channelID)
		c.mu.Unlock()
	})
}
