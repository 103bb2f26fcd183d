// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// CREDENTIAL TYPES
// =============================================================================

// TokenPair is the credential pair issued by the backend.
// No expiry is kept client side; liveness is learned from 401 responses.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// IsZero reports whether neither token is set.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Role is the user's role as read from the access token claims.
// It is display metadata only and never gates authentication.
type Role string

// RoleUnknown is the role when the access token could not be decoded.
const RoleUnknown Role = ""

// String returns the role, or "unknown" when it could not be decoded.
func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// User is the cached user profile.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`

	// Role is derived from the access token on every load, never persisted.
	Role Role `json:"-"`
}

// Credentials are submitted to login and register.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// AuthResponse is returned by /auth/login, /auth/register and /auth/refresh.
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	User         User   `json:"user"`
}

// Pair returns the token pair carried by the response.
func (r AuthResponse) Pair() TokenPair {
	return TokenPair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

// RefreshRequest is the body of /auth/refresh and /auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// PingResponse is returned by /health/ping. Timestamp is shown as sent;
// its format is the server's business.
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ErrorResponse is the error body returned by the backend.
type ErrorResponse struct {
	Error string `json:"error"`
}
