// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/warden/internal/api"
	"github.com/jeranaias/warden/internal/model"
	"github.com/jeranaias/warden/internal/telemetry"
	"github.com/jeranaias/warden/internal/util"
)

const (
	// DefaultRefreshTimeout bounds one refresh call.
	DefaultRefreshTimeout = 10 * time.Second

	// HeaderRequestID correlates a request with its replay in logs.
	HeaderRequestID = "X-Request-ID"
)

// TokenStore is the subset of the credential store the transport uses.
// Tokens are read at call time; the transport never caches them.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	Save(pair model.TokenPair, user model.User) error
	Clear() error
}

// Refresher renews credentials. It must not send through this transport.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error)
}

// Option configures an AuthTransport.
type Option func(*AuthTransport)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *AuthTransport) {
		if l != nil {
			t.log = l
		}
	}
}

// WithMetrics records refresh and replay counts.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(t *AuthTransport) { t.metrics = m }
}

// WithRefreshTimeout bounds each refresh call.
func WithRefreshTimeout(d time.Duration) Option {
	return func(t *AuthTransport) {
		if d > 0 {
			t.refreshTimeout = d
		}
	}
}

// WithOnForcedLogout sets the hook run after credentials are cleared because
// they could not be renewed. It runs while the failed cycle is still open and
// must neither send through this transport nor call Invalidate.
func WithOnForcedLogout(fn func(cause error)) Option {
	return func(t *AuthTransport) { t.onForcedLogout = fn }
}

// WithOnRefreshed sets the hook run after a refreshed pair is persisted.
// Like the forced logout hook it must not call Invalidate.
func WithOnRefreshed(fn func(resp *model.AuthResponse)) Option {
	return func(t *AuthTransport) { t.onRefreshed = fn }
}

// WithOnDiscarded sets the hook run when a refresh succeeded on the server
// after Invalidate. The rotated pair was not persisted; the hook should revoke
// resp.RefreshToken.
func WithOnDiscarded(fn func(resp *model.AuthResponse)) Option {
	return func(t *AuthTransport) { t.onDiscarded = fn }
}

// errSignedOut settles a cycle whose credentials were torn down while the
// refresh was in flight.
var errSignedOut = &api.Error{Kind: api.KindUnauthorized, Status: http.StatusUnauthorized, Message: "signed out"}

// AuthTransport attaches bearer tokens and renews them on 401.
type AuthTransport struct {
	base      http.RoundTripper
	store     TokenStore
	refresher Refresher

	log            *slog.Logger
	metrics        *telemetry.Metrics
	refreshTimeout time.Duration
	onForcedLogout func(error)
	onRefreshed    func(*model.AuthResponse)
	onDiscarded    func(*model.AuthResponse)

	coord coordinator

	// gen guards the outcome of a cycle. Invalidate bumps epoch; a cycle
	// only persists or clears while holding mu with the epoch it started on.
	gen struct {
		mu    sync.Mutex
		epoch uint64
	}
}

// New wraps base (http.DefaultTransport when nil).
func New(base http.RoundTripper, store TokenStore, refresher Refresher, opts ...Option) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &AuthTransport{
		base:           base,
		store:          store,
		refresher:      refresher,
		log:            slog.Default(),
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Invalidate ends the current credential generation. Call it before
// clearing or replacing the stored session. A refresh in flight will neither
// persist its result nor force a logout; its waiters fail with an
// unauthorized error.
func (t *AuthTransport) Invalidate() {
	t.gen.mu.Lock()
	t.gen.epoch++
	t.gen.mu.Unlock()
}

func (t *AuthTransport) epoch() uint64 {
	t.gen.mu.Lock()
	defer t.gen.mu.Unlock()
	return t.gen.epoch
}

// commit runs fn under the generation lock when no Invalidate happened
// since epoch was read. It reports whether fn ran.
func (t *AuthTransport) commit(epoch uint64, fn func()) bool {
	t.gen.mu.Lock()
	defer t.gen.mu.Unlock()
	if t.gen.epoch != epoch {
		return false
	}
	fn()
	return true
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r, err := prepare(req)
	if err != nil {
		return nil, err
	}

	sent := t.store.AccessToken()
	setBearer(r, sent)

	resp, err := t.base.RoundTrip(r)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	return t.recover401(r, resp, sent)
}

// recover401 runs the refresh protocol for a request that came back 401
// carrying the access token sent. The replay goes straight to base, so it is
// never intercepted again.
func (t *AuthTransport) recover401(r *http.Request, resp *http.Response, sent string) (*http.Response, error) {
	id := r.Header.Get(HeaderRequestID)

	t.coord.mu.Lock()
	if t.coord.inFlight {
		wait := t.coord.enqueue()
		t.coord.mu.Unlock()
		drain(resp)
		t.metrics.Queued()
		t.log.Debug("TOKEN_REFRESH_QUEUED", "request_id", id)

		select {
		case res := <-wait:
			if res.err != nil {
				return nil, res.err
			}
			return t.replay(r, res.token)
		case <-r.Context().Done():
			return nil, r.Context().Err()
		}
	}

	current := t.store.AccessToken()
	if current == "" {
		// Nothing left to renew or clear: the session ended after the send,
		// or there never was one.
		t.coord.mu.Unlock()
		return resp, nil
	}
	// Someone else already refreshed between our send and now.
	if current != sent {
		t.coord.mu.Unlock()
		drain(resp)
		return t.replay(r, current)
	}

	t.coord.inFlight = true
	epoch := t.epoch()
	t.coord.mu.Unlock()

	refreshToken := t.store.RefreshToken()
	if refreshToken == "" {
		cause := &api.Error{Kind: api.KindUnauthorized, Status: http.StatusUnauthorized, Message: "session expired"}
		t.log.Warn("TOKEN_REFRESH_NO_TOKEN", "request_id", id)
		t.metrics.ObserveRefresh(telemetry.RefreshNoToken, 0)
		if !t.commit(epoch, func() { t.forceLogout(cause) }) {
			cause = errSignedOut
		}
		t.coord.settle(result{err: cause})
		return resp, nil
	}

	drain(resp)
	pair, err := t.refresh(r.Context(), id, epoch, refreshToken)
	if err != nil {
		t.coord.settle(result{err: err})
		return nil, err
	}

	t.coord.settle(result{token: pair.AccessToken})
	return t.replay(r, pair.AccessToken)
}

// refresh calls the refresher detached from the triggering request's
// cancellation. The outcome is applied only if the generation is still
// epoch: success is persisted, failure forces a logout. Otherwise the result
// is discarded and errSignedOut returned.
func (t *AuthTransport) refresh(parent context.Context, id string, epoch uint64, refreshToken string) (model.TokenPair, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), t.refreshTimeout)
	defer cancel()

	t.log.Info("TOKEN_REFRESH_START", "request_id", id, "refresh_token", util.Fingerprint(refreshToken))
	start := time.Now()

	resp, err := t.refresher.Refresh(ctx, refreshToken)
	elapsed := time.Since(start)

	if err != nil {
		t.metrics.ObserveRefresh(telemetry.RefreshFailure, elapsed)
		t.log.Warn("TOKEN_REFRESH_FAILED", "request_id", id, "error", err, "duration", elapsed)
		if !t.commit(epoch, func() { t.forceLogout(err) }) {
			return model.TokenPair{}, errSignedOut
		}
		return model.TokenPair{}, err
	}

	var saveErr error
	applied := t.commit(epoch, func() {
		if saveErr = t.store.Save(resp.Pair(), resp.User); saveErr != nil {
			saveErr = fmt.Errorf("failed to persist refreshed credentials: %w", saveErr)
			t.forceLogout(saveErr)
			return
		}
		if t.onRefreshed != nil {
			t.onRefreshed(resp)
		}
	})
	switch {
	case !applied:
		t.log.Info("TOKEN_REFRESH_DISCARDED", "request_id", id, "duration", elapsed)
		if t.onDiscarded != nil {
			t.onDiscarded(resp)
		}
		return model.TokenPair{}, errSignedOut
	case saveErr != nil:
		t.metrics.ObserveRefresh(telemetry.RefreshFailure, elapsed)
		t.log.Warn("TOKEN_REFRESH_FAILED", "request_id", id, "error", saveErr, "duration", elapsed)
		return model.TokenPair{}, saveErr
	}

	t.metrics.ObserveRefresh(telemetry.RefreshSuccess, elapsed)
	t.log.Info("TOKEN_REFRESH_SUCCESS", "request_id", id,
		"access_token", util.Fingerprint(resp.AccessToken), "duration", elapsed)
	return resp.Pair(), nil
}

// forceLogout clears credentials once for the failed cycle and runs the hook.
// Caller holds gen.mu. It runs before settle, so requests arriving meanwhile queue into the same
// failed cycle instead of starting another.
func (t *AuthTransport) forceLogout(cause error) {
	if err := t.store.Clear(); err != nil {
		t.log.Error("LOGOUT_CLEAR_FAILED", "error", err)
	}
	t.metrics.ForcedLogout()
	t.log.Warn("LOGOUT_FORCED", "cause", cause)
	if t.onForcedLogout != nil {
		t.onForcedLogout(cause)
	}
}

func (t *AuthTransport) replay(r *http.Request, token string) (*http.Response, error) {
	again := r.Clone(r.Context())
	if r.GetBody != nil {
		body, err := r.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		again.Body = body
	}
	setBearer(again, token)

	t.metrics.Replayed()
	t.log.Debug("REQUEST_REPLAY", "request_id", again.Header.Get(HeaderRequestID),
		"method", again.Method, "path", again.URL.Path)
	return t.base.RoundTrip(again)
}

// prepare clones req, stamps a request ID and makes the body replayable.
// The caller's request is never modified.
func prepare(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if r.Header.Get(HeaderRequestID) == "" {
		r.Header.Set(HeaderRequestID, uuid.NewString())
	}

	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return r, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return r, nil
}

func setBearer(r *http.Request, token string) {
	if token == "" {
		r.Header.Del("Authorization")
		return
	}
	r.Header.Set("Authorization", "Bearer "+token)
}

// drain discards and closes a response that will not reach the caller.
func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
