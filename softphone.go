/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package softphone

import (
	"fmt"
	"sync"

	"github.com/asterlink/softphone-go-sdk/calling"
	"github.com/asterlink/softphone-go-sdk/discovery"
	"github.com/asterlink/softphone-go-sdk/media"
	"github.com/asterlink/softphone-go-sdk/phonesdk"
	"github.com/asterlink/softphone-go-sdk/signaling"
)

// SoftphoneClient is the top-level client for the softphone SDK
type SoftphoneClient struct {
	// Core client for the backend REST API
	core *phonesdk.Client

	// Plugins
	discoveryClient *discovery.Client
	signalingClient *signaling.Client
	mediaManager    *media.Manager
	callingClient   *calling.Client

	// Capture device wired into the media manager on first use
	captureDevice media.CaptureDevice

	// Mutex for thread-safe lazy initialization of the calling client
	callMu sync.Mutex
}

// NewClient creates a new softphone client with the given bearer token and
// optional configuration
func NewClient(accessToken string, config *phonesdk.Config) (*SoftphoneClient, error) {
	core, err := phonesdk.NewClient(accessToken, config)
	if err != nil {
		return nil, err
	}

	client := &SoftphoneClient{
		core: core,
	}

	return client, nil
}

// SetCaptureDevice sets the microphone device used for calls. It must be
// set before Calling() is first used.
func (c *SoftphoneClient) SetCaptureDevice(device media.CaptureDevice) {
	c.callMu.Lock()
	defer c.callMu.Unlock()
	c.captureDevice = device
	if c.mediaManager != nil {
		// Manager already built; rebuild with the new device on next use.
		c.mediaManager = nil
	}
}

// Discovery returns the Discovery plugin
func (c *SoftphoneClient) Discovery() *discovery.Client {
	if c.discoveryClient == nil {
		c.discoveryClient = discovery.New(c.core, nil)
	}
	return c.discoveryClient
}

// Signaling returns the Signaling plugin, wired to discovery for endpoint
// resolution
func (c *SoftphoneClient) Signaling() *signaling.Client {
	if c.signalingClient == nil {
		c.signalingClient = signaling.New(c.core, nil)
		c.signalingClient.SetEndpointProvider(c.Discovery())
	}
	return c.signalingClient
}

// Media returns the media Manager
func (c *SoftphoneClient) Media() *media.Manager {
	c.callMu.Lock()
	defer c.callMu.Unlock()
	return c.mediaLocked()
}

func (c *SoftphoneClient) mediaLocked() *media.Manager {
	if c.mediaManager == nil {
		c.mediaManager = media.New(c.captureDevice, nil)
	}
	return c.mediaManager
}

// Calling returns a fully-wired Calling client for placing and taking
// calls.
//
// This is a convenience method that abstracts away the manual wiring of
// discovery, the signaling transport, and the media manager. The client is
// lazily initialized on first call and cached for subsequent calls.
// Construction fails if the host cannot create WebRTC peer connections.
//
// Simple usage:
//
//	call, err := client.Calling()
//	call.OnStatusChange(handler)
//	client.Signaling().Connect(extension)
//
// For advanced control over transport or media configuration, use the
// lower-level APIs directly (signaling.New, media.New, calling.New).
func (c *SoftphoneClient) Calling() (*calling.Client, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if c.callingClient != nil {
		return c.callingClient, nil
	}

	callingClient, err := calling.New(c.core, c.Signaling(), c.mediaLocked(), nil)
	if err != nil {
		return nil, fmt.Errorf("calling setup failed: %w", err)
	}

	c.callingClient = callingClient
	return c.callingClient, nil
}

// Connect resolves the signaling endpoint and opens the channel for the
// extension in the client's bearer token.
func (c *SoftphoneClient) Connect() error {
	info, err := c.core.TokenInfo()
	if err != nil {
		return fmt.Errorf("cannot determine extension from token: %w", err)
	}
	if info.Extension == "" {
		return fmt.Errorf("bearer token carries no extension")
	}
	return c.Signaling().Connect(info.Extension)
}

// Disconnect closes the signaling channel
func (c *SoftphoneClient) Disconnect() error {
	return c.Signaling().Disconnect()
}

// Core returns the core backend client
func (c *SoftphoneClient) Core() *phonesdk.Client {
	return c.core
}
