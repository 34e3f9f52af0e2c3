/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/asterlink/softphone-go-sdk/phonesdk"
)

// RestClient talks to the backend's protected call endpoints. Every request
// carries the bearer token via the core client; the backend rejects
// unauthenticated calls outright.
type RestClient struct {
	core *phonesdk.Client
}

// NewRestClient creates a REST collaborator client
func NewRestClient(core *phonesdk.Client) *RestClient {
	return &RestClient{core: core}
}

// CallResponse is the backend's reply to the call control endpoints
type CallResponse struct {
	Success bool   `json:"success"`
	Channel string `json:"channel,omitempty"`
	CallID  string `json:"call_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// ChannelID returns the call identifier from the response, preferring
// channel over call_id.
func (r *CallResponse) ChannelID() string {
	if r.Channel != "" {
		return r.Channel
	}
	return r.CallID
}

// Initiate asks the backend to originate a call to the target extension.
// A non-empty method (such as "webrtc") is passed as a query parameter so
// the backend builds the matching leg; empty leaves the choice to the
// backend. The returned channel id carries the backend's call-type tagging.
func (c *RestClient) Initiate(ctx context.Context, targetExtension, method string) (*CallResponse, error) {
	if targetExtension == "" {
		return nil, fmt.Errorf("target extension cannot be empty")
	}

	var params url.Values
	if method != "" {
		params = url.Values{"method": []string{method}}
	}

	body := map[string]string{"target_extension": targetExtension}
	resp, err := c.core.RequestWithRetry(ctx, http.MethodPost, "protected/call/initiate", params, body)
	if err != nil {
		return nil, fmt.Errorf("failed to initiate call: %w", err)
	}

	var result CallResponse
	if err := phonesdk.ParseResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to initiate call: %w", err)
	}
	return &result, nil
}

// Answer tells the backend the client accepted the call on the given
// channel.
func (c *RestClient) Answer(ctx context.Context, channelID string) (*CallResponse, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel id cannot be empty")
	}

	body := map[string]string{"channel": channelID}
	resp, err := c.core.RequestWithRetry(ctx, http.MethodPost, "protected/call/answer", nil, body)
	if err != nil {
		return nil, fmt.Errorf("failed to answer call: %w", err)
	}

	var result CallResponse
	if err := phonesdk.ParseResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to answer call: %w", err)
	}
	return &result, nil
}

// Hangup asks the backend to tear down the given channel
func (c *RestClient) Hangup(ctx context.Context, channelID string) (*CallResponse, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel id cannot be empty")
	}

	body := map[string]string{"channel": channelID}
	resp, err := c.core.RequestWithRetry(ctx, http.MethodPost, "protected/call/hangup", nil, body)
	if err != nil {
		return nil, fmt.Errorf("failed to hang up call: %w", err)
	}

	var result CallResponse
	if err := phonesdk.ParseResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to hang up call: %w", err)
	}
	return &result, nil
}
