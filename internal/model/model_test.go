// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_RoleNotSerialized(t *testing.T) {
	u := User{ID: 7, Email: "a@example.com", Role: "admin"}

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"email":"a@example.com"}`, string(data))
}

func TestAuthResponse_Pair(t *testing.T) {
	var resp AuthResponse
	body := `{"accessToken":"a","refreshToken":"r","tokenType":"Bearer","user":{"id":1,"email":"x@y.z"}}`
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	assert.Equal(t, TokenPair{AccessToken: "a", RefreshToken: "r"}, resp.Pair())
	assert.Equal(t, int64(1), resp.User.ID)
	assert.False(t, resp.Pair().IsZero())
	assert.True(t, TokenPair{}.IsZero())
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "unknown", RoleUnknown.String())
	assert.Equal(t, "admin", Role("admin").String())
}
