// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jeranaias/warden/internal/api"
	"github.com/jeranaias/warden/internal/credstore"
	"github.com/jeranaias/warden/internal/model"
	"github.com/jeranaias/warden/internal/telemetry"
	"github.com/jeranaias/warden/internal/transport"
	"github.com/jeranaias/warden/internal/util"
	"github.com/jeranaias/warden/internal/validate"
)

// Default timeouts.
const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultLogoutTimeout  = 5 * time.Second
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBaseURL sets the API root. Defaults to api.DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(o *Orchestrator) { o.baseURL = u }
}

// WithBaseTransport sets the round tripper under both clients.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *Orchestrator) { o.base = rt }
}

// WithTimeouts sets the per-request, refresh and background logout timeouts.
// Zero keeps the default.
func WithTimeouts(request, refresh, logout time.Duration) Option {
	return func(o *Orchestrator) {
		if request > 0 {
			o.requestTimeout = request
		}
		if refresh > 0 {
			o.refreshTimeout = refresh
		}
		if logout > 0 {
			o.logoutTimeout = logout
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics records auth calls, refreshes and forced logouts.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator owns the authentication state of one client.
type Orchestrator struct {
	store *credstore.Store

	baseURL        string
	base           http.RoundTripper
	requestTimeout time.Duration
	refreshTimeout time.Duration
	logoutTimeout  time.Duration
	log            *slog.Logger
	metrics        *telemetry.Metrics

	bare      *api.Client // login, register, refresh, logout
	authed    *api.Client // everything else
	refresher *Refresher
	transport *transport.AuthTransport

	mu   sync.RWMutex
	user *model.User

	events broker
	bg     sync.WaitGroup
}

// New wires the clients around store and hydrates the current user.
func New(store *credstore.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:          store,
		baseURL:        api.DefaultBaseURL,
		base:           http.DefaultTransport,
		requestTimeout: DefaultRequestTimeout,
		refreshTimeout: transport.DefaultRefreshTimeout,
		logoutTimeout:  DefaultLogoutTimeout,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.bare = api.New(o.baseURL, &http.Client{Transport: o.base, Timeout: o.requestTimeout})
	o.refresher = NewRefresher(o.bare)
	o.transport = transport.New(o.base, store, o.refresher,
		transport.WithLogger(o.log),
		transport.WithMetrics(o.metrics),
		transport.WithRefreshTimeout(o.refreshTimeout),
		transport.WithOnForcedLogout(o.forcedLogout),
		transport.WithOnRefreshed(o.refreshed),
		transport.WithOnDiscarded(o.discarded),
	)
	// No client-level timeout: a queued request may wait on a refresh that
	// has its own bound. Callers bound calls with their context.
	o.authed = api.New(o.baseURL, &http.Client{Transport: o.transport})
	o.refresher.SetProbe(o.authed)

	o.hydrate()
	return o
}

// hydrate loads the stored user. Anything short of a complete, decodable
// session is treated as logged out and partial leftovers are cleared.
func (o *Orchestrator) hydrate() {
	user, err := o.store.User()
	access := o.store.AccessToken()
	refresh := o.store.RefreshToken()

	if err == nil && user != nil && access != "" {
		role, derr := roleOf(access)
		if derr == nil {
			user.Role = role
			o.mu.Lock()
			o.user = user
			o.mu.Unlock()
			o.log.Debug("SESSION_HYDRATED", "user_id", user.ID, "role", role.String())
			return
		}
		err = derr
	}

	if err != nil || user != nil || access != "" || refresh != "" {
		o.log.Warn("SESSION_HYDRATE_DISCARDED", "error", err)
		if cerr := o.store.Clear(); cerr != nil {
			o.log.Error("LOGOUT_CLEAR_FAILED", "error", cerr)
		}
	}
}

// Login validates creds locally, authenticates and persists the session.
func (o *Orchestrator) Login(ctx context.Context, creds model.Credentials) (*model.User, error) {
	creds, err := validate.Login(creds)
	if err != nil {
		return nil, err
	}
	resp, err := o.bare.Login(ctx, creds)
	o.metrics.AuthCall("login", err)
	if err != nil {
		o.log.Info("LOGIN_FAILED", "email", creds.Email, "kind", api.KindOf(err).String())
		return nil, err
	}
	return o.establish(resp, EventLoggedIn)
}

// Register validates input locally, creates the account and persists the
// session. confirm must repeat the password.
func (o *Orchestrator) Register(ctx context.Context, creds model.Credentials, confirm string) (*model.User, error) {
	creds, err := validate.Register(creds, confirm)
	if err != nil {
		return nil, err
	}
	resp, err := o.bare.Register(ctx, creds)
	o.metrics.AuthCall("register", err)
	if err != nil {
		o.log.Info("REGISTER_FAILED", "email", creds.Email, "kind", api.KindOf(err).String())
		return nil, err
	}
	return o.establish(resp, EventRegistered)
}

// establish persists resp and only then publishes the logged-in state.
func (o *Orchestrator) establish(resp *model.AuthResponse, kind EventKind) (*model.User, error) {
	user := resp.User
	role, err := roleOf(resp.AccessToken)
	if err != nil {
		o.log.Warn("TOKEN_DECODE_FAILED", "error", err)
	}
	user.Role = role

	// A refresh still running for the previous session must not land on top.
	o.transport.Invalidate()
	if err := o.store.Save(resp.Pair(), user); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	o.mu.Lock()
	o.user = &user
	o.mu.Unlock()

	o.log.Info("SESSION_"+kindLabel(kind), "user_id", user.ID, "role", role.String(),
		"access_token", util.Fingerprint(resp.AccessToken))
	out := user
	o.events.publish(Event{Kind: kind, User: &out})
	return &user, nil
}

func kindLabel(k EventKind) string {
	switch k {
	case EventRegistered:
		return "REGISTERED"
	default:
		return "LOGIN"
	}
}

// Logout tears down local state first, then invalidates the refresh token in
// the background. A second call finds nothing to invalidate and makes no
// network call.
func (o *Orchestrator) Logout(ctx context.Context) error {
	return o.logout(ctx, EventLoggedOut)
}

// IdleLogout is the idle monitor's logout callback.
func (o *Orchestrator) IdleLogout() error {
	return o.logout(context.Background(), EventIdleLogout)
}

func (o *Orchestrator) logout(ctx context.Context, kind EventKind) error {
	o.transport.Invalidate()

	// The token is taken and the store cleared in one step, so concurrent
	// logouts revoke it once.
	o.mu.Lock()
	refreshToken := o.store.RefreshToken()
	wasAuthenticated := o.user != nil
	o.user = nil
	clearErr := o.store.Clear()
	o.mu.Unlock()

	if clearErr != nil {
		o.log.Error("LOGOUT_CLEAR_FAILED", "error", clearErr)
		clearErr = fmt.Errorf("failed to clear credentials: %w", clearErr)
	}

	if wasAuthenticated || refreshToken != "" {
		o.log.Info("LOGOUT_LOCAL", "reason", kind.String())
		o.events.publish(Event{Kind: kind})
	}

	if refreshToken != "" {
		o.bg.Add(1)
		go o.remoteLogout(context.WithoutCancel(ctx), refreshToken)
	}
	return clearErr
}

// remoteLogout is best effort; its failure never reverses the local teardown.
func (o *Orchestrator) remoteLogout(ctx context.Context, refreshToken string) {
	defer o.bg.Done()
	ctx, cancel := context.WithTimeout(ctx, o.logoutTimeout)
	defer cancel()

	err := o.bare.Logout(ctx, refreshToken)
	o.metrics.AuthCall("logout", err)
	if err != nil {
		o.log.Warn("LOGOUT_REMOTE_FAILED", "error", err)
		return
	}
	o.log.Debug("LOGOUT_REMOTE_OK")
}

// forcedLogout runs after the transport cleared the store.
func (o *Orchestrator) forcedLogout(cause error) {
	o.mu.Lock()
	o.user = nil
	o.mu.Unlock()
	o.events.publish(Event{Kind: EventForcedLogout, Err: cause})
}

// refreshed picks up the user carried by a refresh response.
func (o *Orchestrator) refreshed(resp *model.AuthResponse) {
	user := resp.User
	role, err := roleOf(resp.AccessToken)
	if err != nil {
		o.log.Warn("TOKEN_DECODE_FAILED", "error", err)
	}
	user.Role = role

	o.mu.Lock()
	o.user = &user
	o.mu.Unlock()

	out := user
	o.events.publish(Event{Kind: EventRefreshed, User: &out})
}

// discarded revokes a pair the server rotated after a local logout.
func (o *Orchestrator) discarded(resp *model.AuthResponse) {
	if resp.RefreshToken == "" {
		return
	}
	o.log.Info("LOGOUT_REVOKE_DISCARDED", "refresh_token", util.Fingerprint(resp.RefreshToken))
	o.bg.Add(1)
	go o.remoteLogout(context.Background(), resp.RefreshToken)
}

// CurrentUser returns a copy of the user and whether a session is live.
func (o *Orchestrator) CurrentUser() (model.User, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.user == nil {
		return model.User{}, false
	}
	return *o.user, true
}

// IsAuthenticated reports whether a user is loaded.
func (o *Orchestrator) IsAuthenticated() bool {
	_, ok := o.CurrentUser()
	return ok
}

// Reload re-reads the user from the store, e.g. after another component
// changed it. An incomplete store leaves the current state untouched.
func (o *Orchestrator) Reload() {
	user, err := o.store.User()
	access := o.store.AccessToken()
	if err != nil || user == nil || access == "" {
		return
	}
	role, err := roleOf(access)
	if err != nil {
		o.log.Warn("TOKEN_DECODE_FAILED", "error", err)
	}
	user.Role = role

	o.mu.Lock()
	o.user = user
	o.mu.Unlock()
}

// Subscribe registers fn for lifecycle events. Events are delivered
// synchronously on the goroutine that caused them; fn must not block and
// must not send requests through API().
func (o *Orchestrator) Subscribe(fn func(Event)) (unsubscribe func()) {
	return o.events.subscribe(fn)
}

// API returns the authenticated client for every call other than auth.
func (o *Orchestrator) API() *api.Client {
	return o.authed
}

// Refresher returns the refresher, usable as an idle.Extender.
func (o *Orchestrator) Refresher() *Refresher {
	return o.refresher
}

// Close waits for background logout calls.
func (o *Orchestrator) Close() {
	o.bg.Wait()
}
