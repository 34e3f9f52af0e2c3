/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package phonesdk

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo holds the claims this client cares about from the backend's
// bearer JWT. The token is issued and verified by the backend; the client
// only inspects it to learn its own extension and to warn before expiry,
// so the signature is deliberately not checked here.
type TokenInfo struct {
	// Extension is the SIP extension this token was issued for.
	Extension string

	// Username is the display account name, if the backend includes one.
	Username string

	// ExpiresAt is the token expiry time. Zero if the token has no exp claim.
	ExpiresAt time.Time

	// IssuedAt is the token issue time. Zero if the token has no iat claim.
	IssuedAt time.Time
}

// InspectToken parses a backend bearer JWT without verifying its signature
// and extracts the claims the softphone client needs.
func InspectToken(token string) (*TokenInfo, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse bearer token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type in bearer token")
	}

	info := &TokenInfo{}

	if ext, ok := claims["extension"].(string); ok {
		info.Extension = ext
	}
	if sub, ok := claims["sub"].(string); ok && info.Extension == "" {
		info.Extension = sub
	}
	if name, ok := claims["username"].(string); ok {
		info.Username = name
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}

	return info, nil
}

// TokenInfo inspects the client's own bearer token.
func (c *Client) TokenInfo() (*TokenInfo, error) {
	return InspectToken(c.accessToken)
}

// TokenExpiresWithin reports whether the client's bearer token expires
// within d. A token without an exp claim never reports true. A token that
// cannot be parsed reports true so callers treat it as needing refresh.
func (c *Client) TokenExpiresWithin(d time.Duration) bool {
	info, err := c.TokenInfo()
	if err != nil {
		return true
	}
	if info.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(info.ExpiresAt) < d
}
