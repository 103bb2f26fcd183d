// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	"github.com/jeranaias/warden/internal/model"
)

// EventKind identifies a lifecycle change.
type EventKind int

const (
	EventLoggedIn EventKind = iota
	EventRegistered
	EventLoggedOut
	EventForcedLogout // credentials could not be renewed
	EventIdleLogout   // idle monitor expired the session
	EventRefreshed    // credentials renewed, user may have changed
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventLoggedIn:
		return "logged_in"
	case EventRegistered:
		return "registered"
	case EventLoggedOut:
		return "logged_out"
	case EventForcedLogout:
		return "forced_logout"
	case EventIdleLogout:
		return "idle_logout"
	case EventRefreshed:
		return "refreshed"
	default:
		return "unknown"
	}
}

// Authenticated reports whether the session is live after this event.
func (k EventKind) Authenticated() bool {
	return k == EventLoggedIn || k == EventRegistered || k == EventRefreshed
}

// Event is delivered to subscribers. User is a copy, nil after a logout.
type Event struct {
	Kind EventKind
	User *model.User
	Err  error // cause of a forced logout
}

// broker fans events out to subscribers, synchronously and in
// subscription order.
type broker struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
	ids  []int
}

func (b *broker) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(Event))
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	b.ids = append(b.ids, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			for i, v := range b.ids {
				if v == id {
					b.ids = append(b.ids[:i], b.ids[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *broker) publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.ids))
	for _, id := range b.ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
