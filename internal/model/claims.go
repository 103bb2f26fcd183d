// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "github.com/golang-jwt/jwt/v5"

// Claims are the access token claims the client reads for display.
// They are decoded without verification; the server is the only authority.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}
