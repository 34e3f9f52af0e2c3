/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package discovery

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/asterlink/softphone-go-sdk/phonesdk"
)

// HealthResponse represents the backend health API response. The backend
// advertises where its websocket listener lives; older builds only report a
// port, newer ones a full URL.
type HealthResponse struct {
	Status        string `json:"status"`
	WebSocketURL  string `json:"websocket_url,omitempty"`
	WebSocketPort int    `json:"websocket_port,omitempty"`
	WebSocketPath string `json:"websocket_path,omitempty"`
}

// Config holds the configuration for the Discovery plugin
type Config struct {
	// HealthPath is the backend health endpoint probed for the websocket
	// address
	HealthPath string
	// DefaultWebSocketURL is used when the health probe fails or the
	// response carries no websocket address
	DefaultWebSocketURL string
	// CacheTTL is how long a resolved endpoint stays valid before Refresh
	// probes again
	CacheTTL time.Duration
}

// DefaultConfig returns the default configuration for the Discovery plugin
func DefaultConfig() *Config {
	return &Config{
		HealthPath:          "health",
		DefaultWebSocketURL: "ws://localhost:8080/ws",
		CacheTTL:            5 * time.Minute,
	}
}

// Client resolves the signaling websocket endpoint by probing the backend
// health API. It implements signaling.EndpointProvider. A failed probe is
// not an error: the client falls back to the configured default URL so the
// transport can still attempt to connect.
type Client struct {
	core   *phonesdk.Client
	config *Config

	mu         sync.Mutex
	resolved   string
	resolvedAt time.Time
}

// New creates a new Discovery plugin
func New(core *phonesdk.Client, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		core:   core,
		config: config,
	}
}

// Refresh probes the health endpoint and caches the resolved websocket URL.
// If the probe fails, the default URL is cached instead.
func (c *Client) Refresh() error {
	c.mu.Lock()
	if c.resolved != "" && time.Since(c.resolvedAt) < c.config.CacheTTL {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	resolved := c.probe()

	c.mu.Lock()
	c.resolved = resolved
	c.resolvedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// GetWebSocketURL returns the resolved signaling websocket URL. Refresh must
// have been called at least once; otherwise the default URL is returned.
func (c *Client) GetWebSocketURL() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved == "" {
		return c.config.DefaultWebSocketURL, nil
	}
	return c.resolved, nil
}

// Invalidate clears the cached endpoint so the next Refresh probes again
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.resolved = ""
	c.resolvedAt = time.Time{}
	c.mu.Unlock()
}

// probe queries the health endpoint and derives a websocket URL from the
// response. Any failure returns the default URL.
func (c *Client) probe() string {
	resp, err := c.core.Request(http.MethodGet, c.config.HealthPath, nil, nil)
	if err != nil {
		c.core.GetLogger().Printf("discovery: health probe failed, using default signaling URL: %v", err)
		return c.config.DefaultWebSocketURL
	}

	var health HealthResponse
	if err := phonesdk.ParseResponse(resp, &health); err != nil {
		c.core.GetLogger().Printf("discovery: health response unusable, using default signaling URL: %v", err)
		return c.config.DefaultWebSocketURL
	}

	if health.WebSocketURL != "" {
		return health.WebSocketURL
	}

	if health.WebSocketPort > 0 {
		wsURL, err := c.deriveFromPort(health.WebSocketPort, health.WebSocketPath)
		if err != nil {
			c.core.GetLogger().Printf("discovery: cannot derive signaling URL: %v", err)
			return c.config.DefaultWebSocketURL
		}
		return wsURL
	}

	return c.config.DefaultWebSocketURL
}

// deriveFromPort builds a websocket URL from the backend host and the
// advertised port. The scheme follows the REST scheme: https becomes wss.
func (c *Client) deriveFromPort(port int, path string) (string, error) {
	base := c.core.BaseURL
	if base == nil || base.Hostname() == "" {
		return "", fmt.Errorf("backend base URL has no host")
	}

	scheme := "ws"
	if base.Scheme == "https" {
		scheme = "wss"
	}
	if path == "" {
		path = "/ws"
	}

	derived := url.URL{
		Scheme: scheme,
		Host:   fmt.Sprintf("%s:%d", base.Hostname(), port),
		Path:   path,
	}
	return derived.String(), nil
}
