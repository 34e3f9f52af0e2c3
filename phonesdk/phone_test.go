/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package phonesdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Run("empty token is rejected", func(t *testing.T) {
		client, err := NewClient("", nil)
		if err == nil {
			t.Fatal("Expected error for empty access token")
		}
		if client != nil {
			t.Error("Expected nil client on error")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		client, err := NewClient("test-token", nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if client.Config.BaseURL != "http://localhost:8080" {
			t.Errorf("Expected default base URL, got %q", client.Config.BaseURL)
		}
		if client.GetAccessToken() != "test-token" {
			t.Errorf("Expected access token to be stored, got %q", client.GetAccessToken())
		}
	})

	t.Run("with custom config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BaseURL = "https://pbx.example.com"
		client, err := NewClient("test-token", cfg)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if client.BaseURL.String() != "https://pbx.example.com" {
			t.Errorf("Expected custom base URL, got %q", client.BaseURL.String())
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Expected Timeout 30s, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.RetryBaseDelay != 1*time.Second {
		t.Errorf("Expected RetryBaseDelay 1s, got %v", cfg.RetryBaseDelay)
	}
}

func TestRequestSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer auth header, got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Expected JSON content type, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	client, _ := NewClient("test-token", cfg)

	resp, err := client.Request(http.MethodPost, "protected/call/initiate", nil, map[string]string{"extension": "1002"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var result struct {
		Success bool `json:"success"`
	}
	if err := ParseResponse(resp, &result); err != nil {
		t.Fatalf("Unexpected parse error: %v", err)
	}
	if !result.Success {
		t.Error("Expected success response")
	}
}

func TestRequestWithRetry(t *testing.T) {
	t.Run("retries transient errors", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = server.URL
		cfg.RetryBaseDelay = 5 * time.Millisecond
		client, _ := NewClient("test-token", cfg)

		resp, err := client.RequestWithRetry(context.Background(), http.MethodGet, "health", nil, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200 after retries, got %d", resp.StatusCode)
		}
		if atomic.LoadInt32(&calls) != 3 {
			t.Errorf("Expected 3 attempts, got %d", calls)
		}
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = server.URL
		client, _ := NewClient("test-token", cfg)

		resp, err := client.RequestWithRetry(context.Background(), http.MethodGet, "missing", nil, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		resp.Body.Close()
		if atomic.LoadInt32(&calls) != 1 {
			t.Errorf("Expected 1 attempt for 404, got %d", calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = server.URL
		cfg.MaxRetries = 2
		cfg.RetryBaseDelay = 5 * time.Millisecond
		client, _ := NewClient("test-token", cfg)

		resp, err := client.RequestWithRetry(context.Background(), http.MethodGet, "health", nil, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("Expected final 502, got %d", resp.StatusCode)
		}
	})

	t.Run("honors context cancellation between retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = server.URL
		cfg.RetryBaseDelay = 1 * time.Second
		client, _ := NewClient("test-token", cfg)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := client.RequestWithRetry(ctx, http.MethodGet, "health", nil, nil)
		if err == nil {
			t.Fatal("Expected context error")
		}
	})
}

func TestParseResponseErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(err error) bool
	}{
		{"401 auth error", http.StatusUnauthorized, IsAuthError},
		{"403 forbidden", http.StatusForbidden, IsForbidden},
		{"404 not found", http.StatusNotFound, IsNotFound},
		{"409 conflict", http.StatusConflict, IsConflict},
		{"429 rate limited", http.StatusTooManyRequests, IsRateLimited},
		{"500 server error", http.StatusInternalServerError, IsServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			}))
			defer server.Close()

			cfg := DefaultConfig()
			cfg.BaseURL = server.URL
			cfg.MaxRetries = 0
			client, _ := NewClient("test-token", cfg)

			resp, err := client.Request(http.MethodGet, "x", nil, nil)
			if err != nil {
				t.Fatalf("Unexpected transport error: %v", err)
			}

			var out map[string]any
			err = ParseResponse(resp, &out)
			if err == nil {
				t.Fatal("Expected API error")
			}
			if !tt.check(err) {
				t.Errorf("Error %v did not match expected classification", err)
			}
		})
	}
}
