// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jeranaias/warden/internal/model"
)

// Persisted key names. All three are written together and cleared together.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// allKeys is the full persisted layout.
var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

var (
	// ErrCorrupt indicates a stored value could not be decoded.
	ErrCorrupt = errors.New("credential store corrupt")

	// ErrIncomplete is returned by Save when the pair or user is missing.
	ErrIncomplete = errors.New("token pair and user are required")
)

// Store is the CredentialStore. It holds no logic beyond keeping the three
// keys consistent; every getter reads the backend at call time.
type Store struct {
	kv KV

	// mu serializes Save and Clear so readers never observe a half-write
	// even on backends whose SetAll is only atomic per key.
	mu sync.Mutex
}

// New wraps a KV backend.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// NewMemory returns a Store backed by a fresh MemoryKV.
func NewMemory() *Store {
	return New(NewMemoryKV())
}

// Save writes the token pair and user in one atomic backend write.
func (s *Store) Save(pair model.TokenPair, user model.User) error {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return ErrIncomplete
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.SetAll(map[string]string{
		KeyAccessToken:  pair.AccessToken,
		KeyRefreshToken: pair.RefreshToken,
		KeyUser:         string(data),
	}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Clear removes all three keys.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.DeleteAll(allKeys...); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// Tokens returns the stored pair. Missing keys yield empty strings.
func (s *Store) Tokens() (model.TokenPair, error) {
	access, _, err := s.kv.Get(KeyAccessToken)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to read access token: %w", err)
	}
	refresh, _, err := s.kv.Get(KeyRefreshToken)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("failed to read refresh token: %w", err)
	}
	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// AccessToken returns the current access token, or "" if absent or unreadable.
func (s *Store) AccessToken() string {
	v, _, err := s.kv.Get(KeyAccessToken)
	if err != nil {
		return ""
	}
	return v
}

// RefreshToken returns the current refresh token, or "" if absent or unreadable.
func (s *Store) RefreshToken() string {
	v, _, err := s.kv.Get(KeyRefreshToken)
	if err != nil {
		return ""
	}
	return v
}

// User returns the cached user, or nil when none is stored.
// A stored value that does not decode yields ErrCorrupt.
func (s *Store) User() (*model.User, error) {
	raw, ok, err := s.kv.Get(KeyUser)
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrCorrupt, err)
	}
	return &u, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}
