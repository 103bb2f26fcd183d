// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Key derivation parameters (argon2id, RFC 9106 second recommended option).
const (
	saltSize     = 16
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// sealMagic prefixes sealed files so plain JSON is never mistaken for ciphertext.
var sealMagic = []byte("WDN1")

// ErrWrongPassphrase indicates the sealed file could not be opened.
var ErrWrongPassphrase = errors.New("credential file could not be decrypted (wrong passphrase?)")

// Sealer encrypts the file backend's document at rest.
// Layout: magic | salt | nonce | ciphertext.
type Sealer struct {
	salt []byte
	aead cipher.AEAD
}

// NewSealer derives a key from passphrase and salt. A nil salt generates one.
func NewSealer(passphrase string, salt []byte) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
	}
	if len(salt) != saltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", saltSize, len(salt))
	}

	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Sealer{salt: salt, aead: aead}, nil
}

// Seal encrypts plaintext with a fresh nonce. The header is authenticated.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	header := s.header()
	out := make([]byte, 0, len(header)+len(nonce)+len(plaintext)+s.aead.Overhead())
	out = append(out, header...)
	out = append(out, nonce...)
	return s.aead.Seal(out, nonce, plaintext, header), nil
}

// Open decrypts data produced by Seal with the same passphrase and salt.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	header := s.header()
	ns := s.aead.NonceSize()
	if len(data) < len(header)+ns {
		return nil, ErrWrongPassphrase
	}
	if string(data[:len(header)]) != string(header) {
		return nil, ErrWrongPassphrase
	}
	nonce := data[len(header) : len(header)+ns]
	plain, err := s.aead.Open(nil, nonce, data[len(header)+ns:], header)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}

func (s *Sealer) header() []byte {
	return append(append([]byte{}, sealMagic...), s.salt...)
}

// IsSealed reports whether data looks like a sealed document.
func IsSealed(data []byte) bool {
	return len(data) >= len(sealMagic)+saltSize && string(data[:len(sealMagic)]) == string(sealMagic)
}

// saltOf extracts the salt from a sealed document.
func saltOf(data []byte) []byte {
	return append([]byte{}, data[len(sealMagic):len(sealMagic)+saltSize]...)
}
