// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortConfig is the 2s/3s/5s scenario.
func shortConfig() Config {
	return Config{
		WarningAfter:  2000 * time.Millisecond,
		ExpiringAfter: 3000 * time.Millisecond,
		LogoutAfter:   5000 * time.Millisecond,
	}
}

// advance sleeps in virtual time and waits for every timer callback to finish.
func advance(d time.Duration) {
	time.Sleep(d)
	synctest.Wait()
}

type logoutCounter struct {
	n   atomic.Int32
	err error
}

func (c *logoutCounter) logout() error {
	c.n.Add(1)
	return c.err
}

func startMonitor(t *testing.T, cfg Config, opts ...Option) (*Monitor, *logoutCounter) {
	t.Helper()
	lc := &logoutCounter{}
	m, err := Start(cfg, lc.logout, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m, lc
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default", DefaultConfig(), true},
		{"scenario", shortConfig(), true},
		{"zero warning", Config{ExpiringAfter: time.Second, LogoutAfter: 2 * time.Second}, false},
		{"expiring before warning", Config{WarningAfter: 3 * time.Second, ExpiringAfter: 2 * time.Second, LogoutAfter: 5 * time.Second}, false},
		{"logout equals expiring", Config{WarningAfter: time.Second, ExpiringAfter: 2 * time.Second, LogoutAfter: 2 * time.Second}, false},
		{"negative throttle", Config{WarningAfter: time.Second, ExpiringAfter: 2 * time.Second, LogoutAfter: 3 * time.Second, ActivityThrottle: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestStart_RejectsInvalidConfig(t *testing.T) {
	_, err := Start(Config{}, func() error { return nil })
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Start(shortConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// =============================================================================
// ESCALATION
// =============================================================================

func TestMonitor_Scenario(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, lc := startMonitor(t, shortConfig())
		assert.Equal(t, Active, m.State())
		assert.Equal(t, 0, m.RemainingSeconds())

		advance(1999 * time.Millisecond)
		assert.Equal(t, Active, m.State())

		advance(time.Millisecond) // t=2s
		assert.Equal(t, Warning, m.State())
		assert.Equal(t, 1, m.RemainingSeconds())

		advance(time.Second) // t=3s
		assert.Equal(t, Expiring, m.State())
		assert.Equal(t, 2, m.RemainingSeconds())

		advance(time.Second) // t=4s
		assert.Equal(t, Expiring, m.State())
		assert.Equal(t, 1, m.RemainingSeconds())
		assert.Equal(t, int32(0), lc.n.Load())

		advance(time.Second) // t=5s
		assert.Equal(t, Expired, m.State())
		assert.Equal(t, 0, m.RemainingSeconds())
		assert.Equal(t, int32(1), lc.n.Load())

		advance(time.Minute)
		assert.Equal(t, Expired, m.State())
		assert.Equal(t, int32(1), lc.n.Load(), "logout must fire exactly once")
	})
}

func TestMonitor_CountdownFloorsAtZero(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		// WARNING lasts 1.5s, so its countdown starts at 2 and would go
		// negative if it kept ticking.
		cfg := Config{
			WarningAfter:  time.Second,
			ExpiringAfter: 2500 * time.Millisecond,
			LogoutAfter:   10 * time.Second,
		}
		m, _ := startMonitor(t, cfg)

		advance(time.Second)
		assert.Equal(t, Warning, m.State())
		assert.Equal(t, 2, m.RemainingSeconds())

		advance(time.Second)
		assert.Equal(t, 1, m.RemainingSeconds())

		advance(time.Second)
		assert.Equal(t, 0, m.RemainingSeconds())

		advance(500 * time.Millisecond)
		assert.Equal(t, Expiring, m.State())
		assert.Equal(t, 8, m.RemainingSeconds())
	})
}

func TestMonitor_OnChangeSnapshots(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		var snaps []Snapshot
		m, _ := startMonitor(t, shortConfig(), WithOnChange(func(s Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			snaps = append(snaps, s)
		}))

		advance(5 * time.Second)
		assert.Equal(t, Expired, m.State())

		mu.Lock()
		defer mu.Unlock()

		// Callbacks at the same instant may interleave; Seq restores the order.
		sort.Slice(snaps, func(i, j int) bool { return snaps[i].Seq < snaps[j].Seq })
		var states []State
		for i, s := range snaps {
			if i > 0 {
				assert.Greater(t, s.Seq, snaps[i-1].Seq)
			}
			if len(states) == 0 || states[len(states)-1] != s.State {
				states = append(states, s.State)
			}
		}
		assert.Equal(t, []State{Active, Warning, Expiring, Expired}, states)
	})
}

// =============================================================================
// RESET AND ACTIVITY
// =============================================================================

func TestMonitor_ResetFromEveryState(t *testing.T) {
	for _, tt := range []struct {
		name  string
		after time.Duration
		state State
	}{
		{"active", time.Second, Active},
		{"warning", 2500 * time.Millisecond, Warning},
		{"expiring", 4 * time.Second, Expiring},
		{"expired", 6 * time.Second, Expired},
	} {
		t.Run(tt.name, func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				m, lc := startMonitor(t, shortConfig())

				advance(tt.after)
				require.Equal(t, tt.state, m.State())
				logouts := lc.n.Load()

				m.ResetTimer()
				assert.Equal(t, Active, m.State())
				assert.Equal(t, 0, m.RemainingSeconds())

				// Rearmed from the reset instant.
				advance(1999 * time.Millisecond)
				assert.Equal(t, Active, m.State())
				advance(time.Millisecond)
				assert.Equal(t, Warning, m.State())
				assert.Equal(t, logouts, lc.n.Load())

				advance(3 * time.Second)
				assert.Equal(t, Expired, m.State())
				assert.Equal(t, logouts+1, lc.n.Load())
			})
		})
	}
}

func TestMonitor_ResetIsIdempotent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, _ := startMonitor(t, shortConfig())
		advance(2500 * time.Millisecond)

		m.ResetTimer()
		m.ResetTimer()
		m.ResetTimer()

		advance(2 * time.Second)
		assert.Equal(t, Warning, m.State())
		assert.Equal(t, 1, m.RemainingSeconds())
	})
}

func TestMonitor_ActivityThrottled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, _ := startMonitor(t, shortConfig())

		// Inside the first window after Start nothing resets.
		advance(500 * time.Millisecond)
		assert.False(t, m.Activity(KeyDown))

		advance(time.Second) // t=1.5s
		resets := 0
		for i := 0; i < 1000; i++ {
			if m.Activity(PointerMove) {
				resets++
			}
		}
		assert.Equal(t, 1, resets)

		// The reset at 1.5s pushes WARNING to 3.5s.
		advance(1999 * time.Millisecond)
		assert.Equal(t, Active, m.State())
		advance(time.Millisecond)
		assert.Equal(t, Warning, m.State())
	})
}

func TestMonitor_ActivityDuringWarningResets(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, _ := startMonitor(t, shortConfig())
		advance(2500 * time.Millisecond)
		require.Equal(t, Warning, m.State())

		assert.True(t, m.Activity(Scroll))
		assert.Equal(t, Active, m.State())
		assert.Equal(t, 0, m.RemainingSeconds())
	})
}

func TestMonitor_ActivityIgnoredWhileExpiring(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, lc := startMonitor(t, shortConfig())
		advance(3500 * time.Millisecond)
		require.Equal(t, Expiring, m.State())

		for _, k := range []Kind{PointerDown, KeyDown, Scroll, TouchStart, PointerMove} {
			assert.False(t, m.Activity(k))
		}
		assert.Equal(t, Expiring, m.State())

		advance(1500 * time.Millisecond) // t=5s
		assert.Equal(t, Expired, m.State())
		assert.Equal(t, int32(1), lc.n.Load())

		assert.False(t, m.Activity(KeyDown), "activity never leaves EXPIRED")
	})
}

func TestMonitor_Observe(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, _ := startMonitor(t, shortConfig())
		events := make(chan Kind)
		m.Observe(events)

		advance(2500 * time.Millisecond)
		require.Equal(t, Warning, m.State())

		events <- TouchStart
		synctest.Wait()
		assert.Equal(t, Active, m.State())

		m.Stop()
		// Observer is detached; a send would block forever.
		select {
		case events <- KeyDown:
			t.Fatal("observer still attached after Stop")
		default:
		}
	})
}

func TestMonitor_ObserveClosedChannel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, _ := startMonitor(t, shortConfig())
		events := make(chan Kind)
		m.Observe(events)
		close(events)
		synctest.Wait()
		m.Stop()
	})
}

// =============================================================================
// EXTEND
// =============================================================================

func TestMonitor_ExtendSuccess(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var calls atomic.Int32
		ext := ExtenderFunc(func(ctx context.Context) error {
			calls.Add(1)
			return nil
		})
		m, lc := startMonitor(t, shortConfig(), WithExtender(ext))

		advance(4 * time.Second)
		require.Equal(t, Expiring, m.State())

		require.NoError(t, m.Extend(context.Background()))
		assert.Equal(t, Active, m.State())
		assert.Equal(t, int32(1), calls.Load())

		advance(4 * time.Second)
		assert.Equal(t, Expiring, m.State())
		assert.Equal(t, int32(0), lc.n.Load())
	})
}

func TestMonitor_ExtendFailureKeepsCountdown(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		pingErr := errors.New("backend unavailable")
		m, lc := startMonitor(t, shortConfig(),
			WithExtender(ExtenderFunc(func(context.Context) error { return pingErr })))

		advance(3 * time.Second)
		require.Equal(t, Expiring, m.State())
		require.Equal(t, 2, m.RemainingSeconds())

		err := m.Extend(context.Background())
		assert.ErrorIs(t, err, pingErr)
		assert.Equal(t, Expiring, m.State())

		advance(time.Second)
		assert.Equal(t, 1, m.RemainingSeconds())
		advance(time.Second)
		assert.Equal(t, Expired, m.State())
		assert.Equal(t, int32(1), lc.n.Load())
	})
}

func TestMonitor_ExtendWithoutExtender(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, _ := startMonitor(t, shortConfig())
		assert.ErrorIs(t, m.Extend(context.Background()), ErrNoExtender)

		m.Stop()
		assert.ErrorIs(t, m.Extend(context.Background()), ErrStopped)
	})
}

// =============================================================================
// FAILURE SEMANTICS
// =============================================================================

func TestMonitor_LogoutErrorReported(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		logoutErr := errors.New("store locked")
		var got atomic.Value
		m, err := Start(shortConfig(), func() error { return logoutErr },
			WithErrorHandler(func(err error) { got.Store(err) }))
		require.NoError(t, err)
		defer m.Stop()

		advance(5 * time.Second)
		assert.Equal(t, Expired, m.State())
		require.NotNil(t, got.Load())
		assert.ErrorIs(t, got.Load().(error), logoutErr)
	})
}

func TestMonitor_LogoutPanicRecovered(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var got atomic.Value
		m, err := Start(shortConfig(), func() error { panic("boom") },
			WithErrorHandler(func(err error) { got.Store(err) }))
		require.NoError(t, err)
		defer m.Stop()

		advance(5 * time.Second)
		assert.Equal(t, Expired, m.State())
		require.NotNil(t, got.Load())
		assert.Contains(t, got.Load().(error).Error(), "boom")
	})
}

func TestMonitor_StopCancelsEverything(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, lc := startMonitor(t, shortConfig())
		advance(2500 * time.Millisecond)
		require.Equal(t, Warning, m.State())

		m.Stop()
		m.Stop()

		advance(time.Minute)
		assert.Equal(t, Warning, m.State())
		assert.Equal(t, int32(0), lc.n.Load())

		m.ResetTimer()
		assert.Equal(t, Warning, m.State(), "reset is a no-op after Stop")
		assert.False(t, m.Activity(KeyDown))
	})
}
