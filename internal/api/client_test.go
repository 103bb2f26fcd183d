// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/warden/internal/model"
)

func authJSON(access, refresh string) string {
	return `{"accessToken":"` + access + `","refreshToken":"` + refresh +
		`","tokenType":"Bearer","user":{"id":1,"email":"ada@example.com"}}`
}

func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var creds model.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "ada@example.com", creds.Email)
		assert.Equal(t, "pw123456", creds.Password)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(authJSON("a1", "r1")))
	}))
	defer server.Close()

	c := New(server.URL+"/api", server.Client())
	resp, err := c.Login(context.Background(), model.Credentials{Email: "ada@example.com", Password: "pw123456"})
	require.NoError(t, err)
	assert.Equal(t, "a1", resp.AccessToken)
	assert.Equal(t, "r1", resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "ada@example.com", resp.User.Email)
}

func TestClient_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{"server message wins", 401, `{"error":"Invalid email or password"}`, KindUnauthorized, "Invalid email or password"},
		{"401 without body", 401, "", KindUnauthorized, "Authentication failed. Please login again."},
		{"403", 403, "", KindUnauthorized, "You do not have permission to perform this action."},
		{"404", 404, "", KindNotFound, "The requested resource was not found."},
		{"400", 400, "not json", KindBadRequest, "Invalid request. Please check your input."},
		{"409", 409, `{"error":"Email already registered"}`, KindBadRequest, "Email already registered"},
		{"500", 500, "", KindServerError, "Internal server error. Please try again later."},
		{"503", 503, "", KindServerError, "Service temporarily unavailable. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(server.URL, nil).Login(context.Background(), model.Credentials{})
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.message, Message(err))
		})
	}
}

func TestClient_SentinelsMatchByKind(t *testing.T) {
	err := FromStatus(401, []byte(`{"error":"expired"}`))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsNetworkError(err))
}

func TestClient_NetworkUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url, nil).Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetworkUnavailable, KindOf(err))
	assert.True(t, IsNetworkError(err))
	assert.Contains(t, Message(err), "Unable to connect")
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(server.URL, nil).Ping(ctx)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, "Request timed out. Please try again.", Message(err))
}

func TestClient_RefreshRequiresTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.RefreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "r1", req.RefreshToken)
		w.Write([]byte(`{"tokenType":"Bearer"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, nil).Refresh(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrTokenDecode)
}

func TestClient_LogoutAndPing(t *testing.T) {
	var logoutBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathLogout:
			data, _ := io.ReadAll(r.Body)
			logoutBody = string(data)
			w.WriteHeader(http.StatusNoContent)
		case PathPing:
			assert.Equal(t, http.MethodGet, r.Method)
			w.Write([]byte(`{"message":"pong","timestamp":"2025-01-02T03:04:05Z"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := New(server.URL+"/", nil)
	assert.Equal(t, server.URL, c.BaseURL())

	require.NoError(t, c.Logout(context.Background(), "r1"))
	assert.JSONEq(t, `{"refreshToken":"r1"}`, logoutBody)

	pong, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pong", pong.Message)
	assert.Equal(t, "2025-01-02T03:04:05Z", pong.Timestamp)

	err = c.GetJSON(context.Background(), "/missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_PingToleratesAnyTimestamp(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"server local format", `{"message":"pong","timestamp":"2025-01-02 03:04:05"}`, "2025-01-02 03:04:05"},
		{"fractional offset", `{"message":"pong","timestamp":"2025-01-02T03:04:05.123+01:00"}`, "2025-01-02T03:04:05.123+01:00"},
		{"missing", `{"message":"pong"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			pong, err := New(server.URL, nil).Ping(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "pong", pong.Message)
			assert.Equal(t, tt.want, pong.Timestamp)
		})
	}
}

func TestClient_ResponseSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", MaxResponseSize+10)))
	}))
	defer server.Close()

	_, err := New(server.URL, nil).Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum size")
}

func TestMessage_NonAPIError(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "email is required", Message(NewValidation("email is required")))
	assert.Equal(t, KindValidation, KindOf(NewValidation("x")))
}
