/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/asterlink/softphone-go-sdk/phonesdk"
	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Send when the channel is down and did not
// come back within the bounded send wait.
var ErrNotConnected = errors.New("signaling channel is not connected")

// ConnectionState describes the signaling channel lifecycle.
type ConnectionState string

const (
	StateIdle         ConnectionState = "idle"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"

	// StateDisconnected is terminal: the reconnect budget is exhausted and
	// only an explicit Connect call brings the channel back.
	StateDisconnected ConnectionState = "disconnected"
)

// Config holds the configuration for the signaling transport
type Config struct {
	HandshakeTimeout     time.Duration // Timeout for the websocket handshake
	PingInterval         time.Duration // Interval between ping messages
	PongTimeout          time.Duration // Timeout for receiving a pong response
	MaxReconnectAttempts int           // Number of reconnect attempts before giving up
	ReconnectInterval    time.Duration // Fixed delay between reconnect attempts
	SendRetryWait        time.Duration // How long Send waits for the channel to come back
}

// DefaultConfig returns the default configuration for the signaling transport
func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout:     10 * time.Second,
		PingInterval:         30 * time.Second,
		PongTimeout:          10 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectInterval:    5 * time.Second,
		SendRetryWait:        1 * time.Second,
	}
}

// RetryDelay returns the delay before reconnect attempt n (1-based). The
// backend expects evenly spaced attempts, so the policy is a fixed interval
// rather than exponential backoff.
func (c *Config) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return c.ReconnectInterval
}

// EndpointProvider is an interface for resolving the signaling websocket URL.
// The discovery package implements it by probing the backend health API.
type EndpointProvider interface {
	Refresh() error
	GetWebSocketURL() (string, error)
}

// MessageHandler is a function that handles an incoming signaling message
type MessageHandler func(msg *Message)

// StatusHandler is a function that observes connection state changes
type StatusHandler func(state ConnectionState)

// Client is the signaling transport client. It owns a single websocket
// connection scoped to one extension and delivers messages to handlers in
// arrival order.
type Client struct {
	core   *phonesdk.Client
	config *Config

	mu             sync.Mutex
	conn           *websocket.Conn
	writeMu        sync.Mutex
	state          ConnectionState
	connected      bool
	connecting     bool
	extension      string
	retryCount     int
	handlers       []MessageHandler
	statusHandlers []StatusHandler
	provider       EndpointProvider
	customURL      string
	closeCh        chan struct{}
	connectedCh    chan struct{}
}

// New creates a new signaling transport client
func New(core *phonesdk.Client, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		core:        core,
		config:      config,
		state:       StateIdle,
		closeCh:     make(chan struct{}),
		connectedCh: make(chan struct{}),
	}
}

// SetEndpointProvider sets the provider used to resolve the websocket URL
func (c *Client) SetEndpointProvider(provider EndpointProvider) {
	c.mu.Lock()
	c.provider = provider
	c.mu.Unlock()
}

// SetCustomWebSocketURL sets a fixed websocket URL, bypassing discovery
func (c *Client) SetCustomWebSocketURL(url string) {
	c.mu.Lock()
	c.customURL = url
	c.mu.Unlock()
}

// OnMessage registers a handler for incoming signaling messages. Handlers
// are invoked in message arrival order on the read goroutine.
func (c *Client) OnMessage(handler MessageHandler) {
	if handler == nil {
		return
	}
	c.mu.Lock()
	c.handlers = append(c.handlers, handler)
	c.mu.Unlock()
}

// OnStatusChange registers a handler for connection state changes
func (c *Client) OnStatusChange(handler StatusHandler) {
	if handler == nil {
		return
	}
	c.mu.Lock()
	c.statusHandlers = append(c.statusHandlers, handler)
	c.mu.Unlock()
}

// State returns the current connection state
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected returns whether the channel is currently up
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect establishes the signaling channel for the given extension. It
// resolves the websocket URL through the endpoint provider (or the custom
// URL if one was set) and dials. A failed dial does not surface here; the
// reconnect loop keeps trying in the background until the retry budget is
// spent. Connect also resets a terminal disconnected state, so it doubles
// as the manual reconnect entry point.
func (c *Client) Connect(extension string) error {
	if extension == "" {
		return fmt.Errorf("extension cannot be empty")
	}

	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if c.connecting {
		c.mu.Unlock()
		return fmt.Errorf("connection attempt already in progress")
	}
	c.connecting = true
	c.extension = extension
	c.retryCount = 0
	c.closeCh = make(chan struct{})
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	wsURL, err := c.resolveURL()
	if err != nil {
		c.mu.Lock()
		c.connecting = false
		c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		return err
	}

	if err := c.attemptConnection(wsURL); err != nil {
		// Transient dial failures feed the reconnect loop instead of
		// surfacing; the channel only goes terminal once the retry budget
		// is spent.
		c.core.GetLogger().Printf("signaling: initial connect failed: %v", err)
		c.mu.Lock()
		closeCh := c.closeCh
		c.mu.Unlock()
		go c.reconnectLoop(closeCh)
	}

	return nil
}

// Disconnect closes the signaling channel deliberately, without triggering
// the reconnect loop.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if !c.connected && !c.connecting {
		c.mu.Unlock()
		return nil
	}

	close(c.closeCh)
	c.closeCh = make(chan struct{})

	conn := c.conn
	c.conn = nil
	c.connected = false
	c.connecting = false
	c.connectedCh = make(chan struct{})
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "disconnected by client"))
		_ = conn.Close()
	}

	return nil
}

// Send marshals and writes a signaling message. If the channel is down it
// waits once, bounded by SendRetryWait, for the reconnect loop to restore
// it; if the channel is still down after the wait it returns ErrNotConnected.
func (c *Client) Send(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("cannot send nil message")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal signaling message: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	waitCh := c.connectedCh
	c.mu.Unlock()

	if !connected {
		select {
		case <-waitCh:
			c.mu.Lock()
			conn = c.conn
			connected = c.connected
			c.mu.Unlock()
		case <-time.After(c.config.SendRetryWait):
		}
		if !connected || conn == nil {
			return ErrNotConnected
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Type, err)
	}
	return nil
}

// resolveURL builds the websocket URL for the current extension
func (c *Client) resolveURL() (string, error) {
	c.mu.Lock()
	provider := c.provider
	customURL := c.customURL
	extension := c.extension
	c.mu.Unlock()

	base := customURL
	if base == "" {
		if provider == nil {
			return "", fmt.Errorf("no endpoint provider or custom URL available")
		}
		if err := provider.Refresh(); err != nil {
			return "", fmt.Errorf("failed to refresh signaling endpoint: %w", err)
		}
		wsURL, err := provider.GetWebSocketURL()
		if err != nil {
			return "", fmt.Errorf("failed to resolve signaling URL: %w", err)
		}
		if wsURL == "" {
			return "", fmt.Errorf("endpoint provider returned empty signaling URL")
		}
		base = wsURL
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid signaling URL: %w", err)
	}
	query := parsed.Query()
	query.Set("extension", extension)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// attemptConnection makes a single dial attempt and starts the read loop
func (c *Client) attemptConnection(wsURL string) error {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.core.GetAccessToken())

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
	}

	conn, _, err := dialer.Dial(wsURL, headers)
	if err != nil {
		return fmt.Errorf("failed to connect signaling channel: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Time{})
	})

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.connecting = false
	c.retryCount = 0
	close(c.connectedCh)
	c.setStateLocked(StateConnected)
	closeCh := c.closeCh
	c.mu.Unlock()

	go c.startPingPong(conn, closeCh)
	go c.listen(conn)

	return nil
}

// listen reads messages until the connection drops. Handlers run inline so
// messages for one connection are delivered in arrival order.
func (c *Client) listen(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleConnectionError(conn, err)
			return
		}

		msg, err := ParseMessage(data)
		if err != nil {
			c.core.GetLogger().Printf("signaling: dropping malformed payload: %v", err)
			continue
		}

		c.mu.Lock()
		handlers := make([]MessageHandler, len(c.handlers))
		copy(handlers, c.handlers)
		c.mu.Unlock()

		for _, handler := range handlers {
			handler(msg)
		}
	}
}

// handleConnectionError marks the channel down and kicks off the reconnect
// loop unless the close was deliberate.
func (c *Client) handleConnectionError(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection replaced this one; stale reader exits quietly.
		c.mu.Unlock()
		return
	}
	wasConnected := c.connected
	c.conn = nil
	c.connected = false
	c.connectedCh = make(chan struct{})
	closeCh := c.closeCh
	c.mu.Unlock()

	if !wasConnected {
		return
	}

	select {
	case <-closeCh:
		// Deliberate disconnect, no reconnect.
	default:
		c.core.GetLogger().Printf("signaling: connection lost: %v", err)
		go c.reconnectLoop(closeCh)
	}
}

// reconnectLoop retries the connection at the configured fixed interval
// until it succeeds, the budget runs out, or the client is disconnected.
func (c *Client) reconnectLoop(closeCh chan struct{}) {
	for attempt := 1; attempt <= c.config.MaxReconnectAttempts; attempt++ {
		c.mu.Lock()
		c.retryCount = attempt
		c.setStateLocked(StateReconnecting)
		c.mu.Unlock()

		select {
		case <-time.After(c.config.RetryDelay(attempt)):
		case <-closeCh:
			return
		}

		wsURL, err := c.resolveURL()
		if err != nil {
			c.core.GetLogger().Printf("signaling: reconnect attempt %d/%d failed to resolve URL: %v",
				attempt, c.config.MaxReconnectAttempts, err)
			continue
		}

		if err := c.attemptConnection(wsURL); err != nil {
			c.core.GetLogger().Printf("signaling: reconnect attempt %d/%d failed: %v",
				attempt, c.config.MaxReconnectAttempts, err)
			continue
		}

		c.core.GetLogger().Printf("signaling: reconnected on attempt %d", attempt)
		return
	}

	c.core.GetLogger().Printf("signaling: giving up after %d reconnect attempts", c.config.MaxReconnectAttempts)
	c.mu.Lock()
	c.connecting = false
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()
}

// startPingPong keeps the connection alive with websocket pings
func (c *Client) startPingPong(conn *websocket.Conn, closeCh chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.SetReadDeadline(time.Now().Add(c.config.PongTimeout)); err != nil {
				return
			}
			c.writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, []byte(fmt.Sprintf("%d", time.Now().UnixMilli())))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-closeCh:
			return
		}
	}
}

// setStateLocked updates the state and notifies observers. Callers must
// hold c.mu; handlers are invoked on a separate goroutine so they may call
// back into the client.
func (c *Client) setStateLocked(state ConnectionState) {
	if c.state == state {
		return
	}
	c.state = state

	handlers := make([]StatusHandler, len(c.statusHandlers))
	copy(handlers, c.statusHandlers)
	go func() {
		for _, handler := range handlers {
			handler(state)
		}
	}()
}
