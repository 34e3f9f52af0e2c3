/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import "sync"

// ---- Call State & Event Enums ----

// CallState represents the state of a call session in the state machine
type CallState string

const (
	CallStateIdle          CallState = "idle"
	CallStateInviting      CallState = "inviting"
	CallStateRingingLocal  CallState = "ringing_local"
	CallStateRingingRemote CallState = "ringing_remote"
	CallStateAccepting     CallState = "accepting"
	CallStateNegotiating   CallState = "negotiating"
	CallStateConnected     CallState = "connected"
	CallStateEnding        CallState = "ending"
	CallStateEnded         CallState = "ended"
	CallStateFailed        CallState = "failed"
)

// Terminal reports whether the state admits no further transitions
func (s CallState) Terminal() bool {
	return s == CallStateEnded || s == CallStateFailed
}

// CallDirection indicates who initiated the call
type CallDirection string

const (
	DirectionIncoming CallDirection = "incoming"
	DirectionOutgoing CallDirection = "outgoing"
)

// CallType tags the transport technology of a call leg. It is decided once
// when the session is created and never changes.
type CallType string

const (
	CallTypeWebRTCNative CallType = "webrtc"
	CallTypeWebSocketLeg CallType = "websocket"
	CallTypeLegacySIP    CallType = "sip"
)

// CallEventKey identifies the type of call event
type CallEventKey string

const (
	CallEventStateChanged  CallEventKey = "state_changed"
	CallEventIncoming      CallEventKey = "incoming"
	CallEventRemoteMedia   CallEventKey = "remote_media"
	CallEventQualityChange CallEventKey = "quality_change"
	CallEventEnded         CallEventKey = "ended"
	CallEventError         CallEventKey = "call_error"
)

// ErrorClass groups call failures by what the user can do about them
type ErrorClass string

const (
	ErrorClassMedia           ErrorClass = "media"
	ErrorClassSignaling       ErrorClass = "signaling"
	ErrorClassTimeout         ErrorClass = "timeout"
	ErrorClassAlreadyTerminal ErrorClass = "already_terminal"
)

// StatusChange is the payload delivered to a session's status callback.
// It always carries enough context to act on without consulting other
// state.
type StatusChange struct {
	CallID        string
	State         CallState
	Direction     CallDirection
	Type          CallType
	PeerExtension string
	Message       string
	Class         ErrorClass
}

// ---- Event Emitter ----

// EventHandler is a callback function for events
type EventHandler func(data interface{})

// EventEmitter provides a simple event pub/sub system
type EventEmitter struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// NewEventEmitter creates a new EventEmitter
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{
		handlers: make(map[string][]EventHandler),
	}
}

// On registers an event handler for a specific event type
func (e *EventEmitter) On(event string, handler EventHandler) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], handler)
}

// Off removes all handlers for a specific event type
func (e *EventEmitter) Off(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, event)
}

// Emit fires an event, calling all registered handlers
func (e *EventEmitter) Emit(event string, data interface{}) {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers[event]))
	copy(handlers, e.handlers[event])
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler(data)
	}
}
