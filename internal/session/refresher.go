// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"

	"github.com/jeranaias/warden/internal/api"
	"github.com/jeranaias/warden/internal/model"
)

// ErrNoProbe is returned by Extend before the authenticated client exists.
var ErrNoProbe = errors.New("session probe not configured")

// Refresher renews credentials and proves the session is alive.
//
// Refresh uses the bare client so it never re-enters the 401 handler.
// Extend pings through the authenticated client, so an expired access token
// is renewed on the way like any other call.
type Refresher struct {
	bare *api.Client

	mu    sync.RWMutex
	probe *api.Client
}

// NewRefresher wraps the bare (non-intercepting) client.
func NewRefresher(bare *api.Client) *Refresher {
	return &Refresher{bare: bare}
}

// Refresh implements transport.Refresher.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error) {
	return r.bare.Refresh(ctx, refreshToken)
}

// Extend implements idle.Extender.
func (r *Refresher) Extend(ctx context.Context) error {
	r.mu.RLock()
	probe := r.probe
	r.mu.RUnlock()
	if probe == nil {
		return ErrNoProbe
	}
	_, err := probe.Ping(ctx)
	return err
}

// SetProbe sets the authenticated client used by Extend. The transport needs
// the Refresher before that client can exist, hence the late binding.
func (r *Refresher) SetProbe(c *api.Client) {
	r.mu.Lock()
	r.probe = c
	r.mu.Unlock()
}
