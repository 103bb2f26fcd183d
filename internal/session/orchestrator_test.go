// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/warden/internal/api"
	"github.com/jeranaias/warden/internal/credstore"
	"github.com/jeranaias/warden/internal/logging"
	"github.com/jeranaias/warden/internal/mockapi"
	"github.com/jeranaias/warden/internal/model"
)

// =============================================================================
// FIXTURES
// =============================================================================

var ada = model.Credentials{Email: "ada@example.com", Password: "Secret1"}

type countingTransport struct {
	calls atomic.Int32
	base  http.RoundTripper
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return c.base.RoundTrip(req)
}

// holdingTransport parks the first refresh response until release is closed.
// The server has already rotated the pair by then.
type holdingTransport struct {
	base    http.RoundTripper
	held    chan struct{}
	release chan struct{}
	once    sync.Once
}

func newHoldingTransport(base http.RoundTripper) *holdingTransport {
	return &holdingTransport{base: base, held: make(chan struct{}), release: make(chan struct{})}
}

func (h *holdingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := h.base.RoundTrip(req)
	if strings.HasSuffix(req.URL.Path, api.PathRefresh) {
		first := false
		h.once.Do(func() { first = true })
		if first {
			close(h.held)
			<-h.release
		}
	}
	return resp, err
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type harness struct {
	srv   *mockapi.Server
	ts    *httptest.Server
	store *credstore.Store
	wire  *countingTransport
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := mockapi.New()
	_, err := srv.AddUser(ada.Email, ada.Password, "admin")
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{
		srv:   srv,
		ts:    ts,
		store: credstore.NewMemory(),
		wire:  &countingTransport{base: http.DefaultTransport},
	}
}

func (h *harness) orchestrator(t *testing.T) (*Orchestrator, *recorder) {
	t.Helper()
	o := New(h.store,
		WithBaseURL(h.ts.URL+"/api"),
		WithBaseTransport(h.wire),
		WithLogger(logging.Discard()),
		WithTimeouts(2*time.Second, 2*time.Second, 2*time.Second),
	)
	t.Cleanup(o.Close)
	rec := &recorder{}
	o.Subscribe(rec.record)
	return o, rec
}

// =============================================================================
// LOGIN / REGISTER
// =============================================================================

func TestLogin_PersistsAndHydrates(t *testing.T) {
	h := newHarness(t)
	o, rec := h.orchestrator(t)

	user, err := o.Login(t.Context(), ada)
	require.NoError(t, err)
	assert.Equal(t, model.Role("admin"), user.Role)
	assert.True(t, o.IsAuthenticated())
	assert.Equal(t, []EventKind{EventLoggedIn}, rec.kinds())

	pair, err := h.store.Tokens()
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// A fresh orchestrator over the same store restores the session with
	// the role derived from the token.
	again, _ := h.orchestrator(t)
	got, ok := again.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, model.Role("admin"), got.Role)
}

func TestLogin_WrongPasswordDoesNotRefresh(t *testing.T) {
	h := newHarness(t)
	o, rec := h.orchestrator(t)

	_, err := o.Login(t.Context(), model.Credentials{Email: ada.Email, Password: "Wrong1"})
	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, "Invalid email or password", api.Message(err))

	assert.Equal(t, 0, h.srv.RefreshCalls())
	assert.False(t, o.IsAuthenticated())
	assert.Empty(t, h.store.AccessToken())
	assert.Empty(t, rec.kinds())
}

func TestLogin_ValidationSkipsNetwork(t *testing.T) {
	h := newHarness(t)
	o, _ := h.orchestrator(t)

	_, err := o.Login(t.Context(), model.Credentials{Email: "not-an-email", Password: "x"})
	require.ErrorIs(t, err, api.ErrValidation)

	_, err = o.Register(t.Context(), model.Credentials{Email: "bob@example.com", Password: "short"}, "short")
	require.ErrorIs(t, err, api.ErrValidation)

	assert.Zero(t, h.wire.calls.Load())
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	o, rec := h.orchestrator(t)

	user, err := o.Register(t.Context(), model.Credentials{Email: "bob@example.com", Password: "Secret2"}, "Secret2")
	require.NoError(t, err)
	assert.Equal(t, model.Role(mockapi.DefaultRole), user.Role)
	assert.Equal(t, []EventKind{EventRegistered}, rec.kinds())

	_, err = o.Register(t.Context(), model.Credentials{Email: "bob@example.com", Password: "Secret2"}, "Secret2")
	require.Error(t, err)
	assert.Equal(t, api.KindBadRequest, api.KindOf(err))
}

// =============================================================================
// LOGOUT
// =============================================================================

func TestLogout_Twice(t *testing.T) {
	h := newHarness(t)
	o, rec := h.orchestrator(t)

	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)

	require.NoError(t, o.Logout(t.Context()))
	require.NoError(t, o.Logout(t.Context()))
	o.Close()

	assert.False(t, o.IsAuthenticated())
	pair, err := h.store.Tokens()
	require.NoError(t, err)
	assert.True(t, pair.IsZero())
	user, err := h.store.User()
	require.NoError(t, err)
	assert.Nil(t, user)

	assert.Equal(t, 1, h.srv.LogoutCalls())
	assert.Equal(t, 0, h.srv.SessionCount())
	assert.Equal(t, []EventKind{EventLoggedIn, EventLoggedOut}, rec.kinds())
}

func TestLogout_LocalFirstWhenBackendDown(t *testing.T) {
	h := newHarness(t)
	o, rec := h.orchestrator(t)

	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)
	h.ts.Close()

	require.NoError(t, o.Logout(t.Context()))
	o.Close()

	assert.False(t, o.IsAuthenticated())
	assert.Empty(t, h.store.RefreshToken())
	assert.Equal(t, []EventKind{EventLoggedIn, EventLoggedOut}, rec.kinds())
}

func TestLogout_ConcurrentCallsRevokeOnce(t *testing.T) {
	h := newHarness(t)
	o, rec := h.orchestrator(t)

	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)

	const n = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			assert.NoError(t, o.Logout(t.Context()))
		}()
	}
	close(start)
	wg.Wait()
	o.Close()

	assert.Equal(t, 1, h.srv.LogoutCalls())
	assert.Equal(t, 0, h.srv.SessionCount())
	assert.Equal(t, []EventKind{EventLoggedIn, EventLoggedOut}, rec.kinds())
}

func TestLogout_DuringRefreshStaysLoggedOut(t *testing.T) {
	h := newHarness(t)
	hold := newHoldingTransport(h.wire)
	o := New(h.store,
		WithBaseURL(h.ts.URL+"/api"),
		WithBaseTransport(hold),
		WithLogger(logging.Discard()),
		WithTimeouts(2*time.Second, 2*time.Second, 2*time.Second),
	)
	t.Cleanup(o.Close)
	rec := &recorder{}
	o.Subscribe(rec.record)

	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)
	h.srv.ExpireAccessTokens()

	pinged := make(chan error, 1)
	go func() {
		_, err := o.API().Ping(t.Context())
		pinged <- err
	}()
	<-hold.held

	require.NoError(t, o.Logout(t.Context()))
	close(hold.release)

	err = <-pinged
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))
	o.Close()

	assert.False(t, o.IsAuthenticated())
	assert.Empty(t, h.store.AccessToken())
	assert.Empty(t, h.store.RefreshToken())
	assert.Equal(t, []EventKind{EventLoggedIn, EventLoggedOut}, rec.kinds())

	// The stale token and the rotated one are both revoked.
	assert.Equal(t, 1, h.srv.RefreshCalls())
	assert.Equal(t, 2, h.srv.LogoutCalls())
	assert.Equal(t, 0, h.srv.SessionCount())
}

func TestLogin_DuringRefreshKeepsNewSession(t *testing.T) {
	h := newHarness(t)
	hold := newHoldingTransport(h.wire)
	o := New(h.store,
		WithBaseURL(h.ts.URL+"/api"),
		WithBaseTransport(hold),
		WithLogger(logging.Discard()),
		WithTimeouts(2*time.Second, 2*time.Second, 2*time.Second),
	)
	t.Cleanup(o.Close)

	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)
	h.srv.ExpireAccessTokens()

	pinged := make(chan error, 1)
	go func() {
		_, err := o.API().Ping(t.Context())
		pinged <- err
	}()
	<-hold.held

	_, err = o.Login(t.Context(), ada)
	require.NoError(t, err)
	fresh := h.store.AccessToken()
	close(hold.release)

	assert.True(t, api.IsAuthError(<-pinged))
	o.Close()

	assert.True(t, o.IsAuthenticated())
	assert.Equal(t, fresh, h.store.AccessToken())
}

func TestIdleLogout(t *testing.T) {
	h := newHarness(t)
	o, rec := h.orchestrator(t)

	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)
	require.NoError(t, o.IdleLogout())
	o.Close()

	assert.False(t, o.IsAuthenticated())
	assert.Equal(t, []EventKind{EventLoggedIn, EventIdleLogout}, rec.kinds())
	assert.Equal(t, 1, h.srv.LogoutCalls())
}

// =============================================================================
// HYDRATION
// =============================================================================

func TestHydrate_PartialStateIsCleared(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]string
	}{
		{"access only", map[string]string{credstore.KeyAccessToken: "a.b.c"}},
		{"refresh only", map[string]string{credstore.KeyRefreshToken: "r"}},
		{"user without tokens", map[string]string{credstore.KeyUser: `{"id":1,"email":"a@b.co"}`}},
		{"corrupt user", map[string]string{
			credstore.KeyAccessToken:  "a.b.c",
			credstore.KeyRefreshToken: "r",
			credstore.KeyUser:         "{",
		}},
		{"undecodable token", map[string]string{
			credstore.KeyAccessToken:  "garbage",
			credstore.KeyRefreshToken: "r",
			credstore.KeyUser:         `{"id":1,"email":"a@b.co"}`,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := credstore.NewMemoryKV()
			require.NoError(t, kv.SetAll(tt.entries))
			store := credstore.New(kv)

			o := New(store, WithLogger(logging.Discard()))
			assert.False(t, o.IsAuthenticated())
			assert.Zero(t, kv.Len())
		})
	}
}

func TestHydrate_EmptyStore(t *testing.T) {
	o := New(credstore.NewMemory(), WithLogger(logging.Discard()))
	assert.False(t, o.IsAuthenticated())
	_, ok := o.CurrentUser()
	assert.False(t, ok)
}

// =============================================================================
// REFRESH THROUGH THE AUTHENTICATED CLIENT
// =============================================================================

func TestAPI_ExpiredTokenRefreshesOnce(t *testing.T) {
	h := newHarness(t)
	o, rec := h.orchestrator(t)

	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)
	before := h.store.AccessToken()
	h.srv.ExpireAccessTokens()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = o.API().Ping(t.Context())
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, h.srv.RefreshCalls())
	assert.NotEqual(t, before, h.store.AccessToken())
	assert.True(t, o.IsAuthenticated())
	assert.Equal(t, []EventKind{EventLoggedIn, EventRefreshed}, rec.kinds())
}

func TestAPI_RevokedRefreshForcesLogout(t *testing.T) {
	h := newHarness(t)
	o, rec := h.orchestrator(t)

	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)
	h.srv.ExpireAccessTokens()
	h.srv.RevokeRefreshTokens()

	_, err = o.API().Ping(t.Context())
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))

	assert.False(t, o.IsAuthenticated())
	assert.Empty(t, h.store.AccessToken())
	assert.Empty(t, h.store.RefreshToken())
	assert.Equal(t, []EventKind{EventLoggedIn, EventForcedLogout}, rec.kinds())

	rec.mu.Lock()
	assert.Error(t, rec.events[1].Err)
	rec.mu.Unlock()
}

func TestRefresher_Extend(t *testing.T) {
	h := newHarness(t)
	o, _ := h.orchestrator(t)

	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)
	h.srv.ExpireAccessTokens()

	require.NoError(t, o.Refresher().Extend(t.Context()))
	assert.Equal(t, 1, h.srv.RefreshCalls())
}

func TestRefresher_ExtendWithoutProbe(t *testing.T) {
	r := NewRefresher(api.New("http://127.0.0.1:1", nil))
	assert.ErrorIs(t, r.Extend(t.Context()), ErrNoProbe)
}

// =============================================================================
// EVENTS AND CLAIMS
// =============================================================================

func TestSubscribe_Unsubscribe(t *testing.T) {
	h := newHarness(t)
	o, _ := h.orchestrator(t)

	var got []EventKind
	unsubscribe := o.Subscribe(func(ev Event) { got = append(got, ev.Kind) })

	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)
	unsubscribe()
	unsubscribe()
	require.NoError(t, o.Logout(t.Context()))

	assert.Equal(t, []EventKind{EventLoggedIn}, got)
}

func TestEventKind(t *testing.T) {
	assert.True(t, EventLoggedIn.Authenticated())
	assert.True(t, EventRefreshed.Authenticated())
	assert.False(t, EventForcedLogout.Authenticated())
	assert.False(t, EventIdleLogout.Authenticated())
}

func TestDecodeClaims(t *testing.T) {
	h := newHarness(t)
	o, _ := h.orchestrator(t)
	_, err := o.Login(t.Context(), ada)
	require.NoError(t, err)

	claims, err := DecodeClaims(h.store.AccessToken())
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, ada.Email, claims.Email)

	_, err = DecodeClaims("not-a-token")
	assert.ErrorIs(t, err, api.ErrTokenDecode)
}
