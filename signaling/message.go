/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package signaling

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies the type of signaling message on the wire.
type MessageType string

const (
	// Call control messages
	MessageIncomingCall   MessageType = "incoming_call"
	MessageCallInvitation MessageType = "webrtc_call_invitation"
	MessageAnswerCall     MessageType = "answer_call"
	MessageCallAccepted   MessageType = "webrtc_call_accepted"
	MessageCallRejected   MessageType = "webrtc_call_rejected"
	MessageHangup         MessageType = "hangup"
	MessageHangupCall     MessageType = "hangup_call"
	MessageCallEnded      MessageType = "webrtc_call_ended"

	// WebRTC negotiation messages
	MessageOffer        MessageType = "webrtc_offer"
	MessageAnswer       MessageType = "webrtc_answer"
	MessageIceCandidate MessageType = "webrtc_ice_candidate"
)

// SessionDescription is an SDP offer or answer as carried on the wire.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is a single ICE candidate as carried on the wire. A nil
// *ICECandidate on an ice-candidate message means end-of-candidates.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Message is a signaling message exchanged over the WebSocket channel.
// It is a discriminated union keyed by Type; only the fields relevant to
// each type are populated. Messages are immutable once constructed.
type Message struct {
	Type MessageType `json:"type"`

	// Routing
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Call identity. Older backend builds send channel, newer ones call_id;
	// both identify the same call leg.
	Channel string `json:"channel,omitempty"`
	CallID  string `json:"call_id,omitempty"`

	// Invitation fields
	CallerExtension string `json:"caller_extension,omitempty"`
	CallerUsername  string `json:"caller_username,omitempty"`
	TargetExtension string `json:"target_extension,omitempty"`
	Priority        string `json:"priority,omitempty"`
	Transport       string `json:"transport,omitempty"`

	// Negotiation payloads
	Offer     *SessionDescription `json:"offer,omitempty"`
	Answer    *SessionDescription `json:"answer,omitempty"`
	Candidate *ICECandidate       `json:"candidate,omitempty"`

	// Unix milliseconds, set by the sender on hangup messages
	Timestamp int64 `json:"timestamp,omitempty"`
}

// ChannelID returns the call identifier of the message, preferring the
// channel field and falling back to call_id.
func (m *Message) ChannelID() string {
	if m.Channel != "" {
		return m.Channel
	}
	return m.CallID
}

// IsInvitation reports whether the message announces a new incoming call.
func (m *Message) IsInvitation() bool {
	return m.Type == MessageIncomingCall || m.Type == MessageCallInvitation
}

// IsAcceptance reports whether the message accepts a pending call.
func (m *Message) IsAcceptance() bool {
	return m.Type == MessageAnswerCall || m.Type == MessageCallAccepted
}

// IsTermination reports whether the message ends a call.
func (m *Message) IsTermination() bool {
	return m.Type == MessageHangup || m.Type == MessageHangupCall || m.Type == MessageCallEnded
}

// ParseMessage decodes a raw signaling payload. Payloads without a type
// field are rejected so malformed frames can be dropped by the transport.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid signaling payload: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("signaling payload missing type field")
	}
	return &msg, nil
}
