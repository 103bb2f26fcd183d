// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockapi

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/warden/internal/model"
)

// Defaults for issued tokens.
const (
	DefaultAccessTTL = 15 * time.Minute
	DefaultRole      = "user"
)

var (
	errBadCredentials = errors.New("Invalid email or password")
	errEmailTaken     = errors.New("Email already registered")
	errBadRefresh     = errors.New("Invalid or expired refresh token")
)

type account struct {
	user model.User
	role string
	hash []byte
}

// Server holds users and sessions in memory.
type Server struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time

	mu sync.Mutex
	// accounts is keyed by lowercased email, byID by user id.
	accounts map[string]*account
	byID     map[int64]*account
	// refresh maps sha256(refresh token) to a user id.
	refresh map[string]int64
	// access holds the jti of every live access token.
	access map[string]struct{}
	nextID int64

	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
	refreshHook  func()
}

// Option configures a Server.
type Option func(*Server)

// WithSecret sets the HS256 signing key. Defaults to a random key.
func WithSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

// WithAccessTTL sets the access token lifetime.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.accessTTL = d
		}
	}
}

// WithRefreshHook runs fn at the start of every refresh call, before any
// state changes. Tests use it to hold a refresh in flight.
func WithRefreshHook(fn func()) Option {
	return func(s *Server) { s.refreshHook = fn }
}

// New creates an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		accessTTL: DefaultAccessTTL,
		now:       time.Now,
		accounts:  make(map[string]*account),
		refresh:   make(map[string]int64),
		access:    make(map[string]struct{}),
		byID:      make(map[int64]*account),
		nextID:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.secret == nil {
		s.secret = make([]byte, 32)
		if _, err := rand.Read(s.secret); err != nil {
			panic(fmt.Sprintf("mockapi: failed to generate secret: %v", err))
		}
	}
	return s
}

// AddUser creates an account directly. An empty role means DefaultRole.
func (s *Server) AddUser(email, password, role string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, err := s.createLocked(email, password, role)
	if err != nil {
		return model.User{}, err
	}
	return acct.user, nil
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]struct{})
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]int64)
}

// RefreshCalls returns how many times /auth/refresh was called.
func (s *Server) RefreshCalls() int { return int(s.refreshCalls.Load()) }

// LogoutCalls returns how many times /auth/logout was called.
func (s *Server) LogoutCalls() int { return int(s.logoutCalls.Load()) }

// SessionCount returns the number of live refresh tokens.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refresh)
}

// =============================================================================
// ACCOUNT AND TOKEN LOGIC
// =============================================================================

func (s *Server) createLocked(email, password, role string) (*account, error) {
	key := strings.ToLower(email)
	if _, ok := s.accounts[key]; ok {
		return nil, errEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if role == "" {
		role = DefaultRole
	}
	acct := &account{
		user: model.User{ID: s.nextID, Email: email},
		role: role,
		hash: hash,
	}
	s.nextID++
	s.accounts[key] = acct
	s.byID[acct.user.ID] = acct
	return acct, nil
}

func (s *Server) login(email, password string) (*model.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return nil, errBadCredentials
	}
	return s.issueLocked(acct)
}

func (s *Server) register(email, password string) (*model.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.createLocked(email, password, "")
	if err != nil {
		return nil, err
	}
	return s.issueLocked(acct)
}

// rotate exchanges a refresh token for a new pair. The old one is consumed.
func (s *Server) rotate(refreshToken string) (*model.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hashToken(refreshToken)
	id, ok := s.refresh[key]
	if !ok {
		return nil, errBadRefresh
	}
	delete(s.refresh, key)
	acct, ok := s.byID[id]
	if !ok {
		return nil, errBadRefresh
	}
	return s.issueLocked(acct)
}

func (s *Server) revoke(refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, hashToken(refreshToken))
}

func (s *Server) issueLocked(acct *account) (*model.AuthResponse, error) {
	jti, err := randomToken(16)
	if err != nil {
		return nil, err
	}
	now := s.now()
	claims := model.Claims{
		Role:  acct.role,
		Email: acct.user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   fmt.Sprintf("%d", acct.user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	s.access[jti] = struct{}{}
	s.refresh[hashToken(refresh)] = acct.user.ID

	return &model.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		User:         acct.user,
	}, nil
}

// verify checks signature, expiry and that the token was not expired by
// ExpireAccessTokens.
func (s *Server) verify(tokenStr string) (*model.Claims, error) {
	var claims model.Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected token signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	s.mu.Lock()
	_, live := s.access[claims.ID]
	s.mu.Unlock()
	if !live {
		return nil, errors.New("token expired")
	}
	return &claims, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
