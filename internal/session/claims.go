// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/jeranaias/warden/internal/api"
	"github.com/jeranaias/warden/internal/model"
)

// DecodeClaims reads the access token's claims without verifying the
// signature. Failures are KindTokenDecode errors.
func DecodeClaims(accessToken string) (*model.Claims, error) {
	var claims model.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, &api.Error{Kind: api.KindTokenDecode, Err: err}
	}
	return &claims, nil
}

// roleOf returns the role claim, or RoleUnknown with the decode error.
func roleOf(accessToken string) (model.Role, error) {
	claims, err := DecodeClaims(accessToken)
	if err != nil {
		return model.RoleUnknown, err
	}
	return model.Role(claims.Role), nil
}
