// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/warden/internal/model"
)

var (
	testPair = model.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"}
	testUser = model.User{ID: 42, Email: "ada@example.com"}
)

// backends returns a fresh instance of every backend for table tests.
func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	file, err := OpenFile(filepath.Join(dir, "creds.json"), "")
	require.NoError(t, err)
	sealed, err := OpenFile(filepath.Join(dir, "sealed.json"), "hunter2")
	require.NoError(t, err)
	db, err := OpenSQLite(filepath.Join(dir, "creds.db"))
	require.NoError(t, err)

	return map[string]KV{
		"memory": NewMemoryKV(),
		"file":   file,
		"sealed": sealed,
		"sqlite": db,
	}
}

func TestStore_SaveAndRead(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(kv)
			defer s.Close()

			require.NoError(t, s.Save(testPair, testUser))

			pair, err := s.Tokens()
			require.NoError(t, err)
			assert.Equal(t, testPair, pair)
			assert.Equal(t, "access-1", s.AccessToken())
			assert.Equal(t, "refresh-1", s.RefreshToken())

			u, err := s.User()
			require.NoError(t, err)
			require.NotNil(t, u)
			assert.Equal(t, testUser, *u)
		})
	}
}

func TestStore_ClearRemovesAllKeys(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(kv)
			defer s.Close()

			require.NoError(t, s.Save(testPair, testUser))
			require.NoError(t, s.Clear())

			for _, key := range allKeys {
				_, ok, err := kv.Get(key)
				require.NoError(t, err)
				assert.False(t, ok, "key %s should be gone", key)
			}

			pair, err := s.Tokens()
			require.NoError(t, err)
			assert.True(t, pair.IsZero())

			u, err := s.User()
			require.NoError(t, err)
			assert.Nil(t, u)

			// Clearing an empty store is fine.
			assert.NoError(t, s.Clear())
		})
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Save(testPair, testUser))

	next := model.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}
	require.NoError(t, s.Save(next, testUser))

	pair, err := s.Tokens()
	require.NoError(t, err)
	assert.Equal(t, next, pair)
}

func TestStore_SaveRequiresBothTokens(t *testing.T) {
	kv := NewMemoryKV()
	s := New(kv)

	err := s.Save(model.TokenPair{AccessToken: "a"}, testUser)
	assert.ErrorIs(t, err, ErrIncomplete)
	err = s.Save(model.TokenPair{RefreshToken: "r"}, testUser)
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 0, kv.Len())
}

func TestStore_CorruptUser(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.SetAll(map[string]string{KeyUser: "{not json"}))

	u, err := New(kv).User()
	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_RoleNotPersisted(t *testing.T) {
	kv := NewMemoryKV()
	s := New(kv)

	admin := testUser
	admin.Role = "admin"
	require.NoError(t, s.Save(testPair, admin))

	raw, ok, err := kv.Get(KeyUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":42,"email":"ada@example.com"}`, raw)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestFileKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")

	kv, err := OpenFile(path, "")
	require.NoError(t, err)
	require.NoError(t, New(kv).Save(testPair, testUser))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := OpenFile(path, "")
	require.NoError(t, err)
	pair, err := New(reopened).Tokens()
	require.NoError(t, err)
	assert.Equal(t, testPair, pair)
}

func TestFileKV_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0600))

	_, err := OpenFile(path, "")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSealedFile_RequiresPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sealed.json")

	kv, err := OpenFile(path, "correct horse")
	require.NoError(t, err)
	require.NoError(t, New(kv).Save(testPair, testUser))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, IsSealed(raw))
	assert.NotContains(t, string(raw), "access-1")

	_, err = OpenFile(path, "")
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	_, err = OpenFile(path, "battery staple")
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	reopened, err := OpenFile(path, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "access-1", New(reopened).AccessToken())
}

func TestSealer_TamperDetected(t *testing.T) {
	s, err := NewSealer("pw", nil)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte(`{"a":"b"}`))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = s.Open(sealed)
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "creds.db")

	kv, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, New(kv).Save(testPair, testUser))
	require.NoError(t, kv.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	u, err := New(reopened).User()
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, testUser.Email, u.Email)
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	kv, err := Open(Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)

	kv, err = Open(Options{Backend: BackendFile, Path: filepath.Join(dir, "c.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)

	kv, err = Open(Options{Backend: BackendSQLite, Path: filepath.Join(dir, "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteKV{}, kv)
	kv.Close()

	_, err = Open(Options{Backend: BackendFile})
	assert.Error(t, err)
	_, err = Open(Options{Backend: "etcd"})
	assert.Error(t, err)
}
