// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jeranaias/warden/internal/util"
)

// FileKV keeps every key in one JSON document on disk.
// Each write replaces the whole document atomically, so SetAll and DeleteAll
// are all-or-nothing across keys.
type FileKV struct {
	path   string
	sealer *Sealer

	mu   sync.RWMutex
	data map[string]string
}

// OpenFile loads (or creates on first write) the document at path.
// A non-empty passphrase seals the document at rest.
func OpenFile(path, passphrase string) (*FileKV, error) {
	f := &FileKV{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if passphrase != "" {
			if f.sealer, err = NewSealer(passphrase, nil); err != nil {
				return nil, err
			}
		}
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	if IsSealed(raw) {
		if passphrase == "" {
			return nil, fmt.Errorf("%w: file is sealed but no passphrase was provided", ErrWrongPassphrase)
		}
		if f.sealer, err = NewSealer(passphrase, saltOf(raw)); err != nil {
			return nil, err
		}
		if raw, err = f.sealer.Open(raw); err != nil {
			return nil, err
		}
	} else if passphrase != "" {
		// Plain file, seal it on the next write.
		if f.sealer, err = NewSealer(passphrase, nil); err != nil {
			return nil, err
		}
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f.data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return f, nil
}

// Get implements KV.
func (f *FileKV) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return v, ok, nil
}

// SetAll implements KV.
func (f *FileKV) SetAll(entries map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.cloneLocked()
	for k, v := range entries {
		next[k] = v
	}
	return f.commitLocked(next)
}

// DeleteAll implements KV.
func (f *FileKV) DeleteAll(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.cloneLocked()
	for _, k := range keys {
		delete(next, k)
	}
	return f.commitLocked(next)
}

// Close implements KV.
func (f *FileKV) Close() error { return nil }

func (f *FileKV) cloneLocked() map[string]string {
	next := make(map[string]string, len(f.data))
	for k, v := range f.data {
		next[k] = v
	}
	return next
}

// commitLocked writes next to disk and only then swaps it in memory.
func (f *FileKV) commitLocked(next map[string]string) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if f.sealer != nil {
		if data, err = f.sealer.Seal(data); err != nil {
			return err
		}
	}
	if err := util.AtomicWriteFile(f.path, data, 0600); err != nil {
		return err
	}
	f.data = next
	return nil
}
