// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/warden/internal/telemetry"
)

var (
	// ErrStopped is returned by Extend after Stop.
	ErrStopped = errors.New("idle monitor stopped")

	// ErrNoExtender is returned by Extend when no Extender was configured.
	ErrNoExtender = errors.New("no session extender configured")
)

// Extender proves the session is still alive, typically by calling an
// authenticated endpoint.
type Extender interface {
	Extend(ctx context.Context) error
}

// ExtenderFunc adapts a function to Extender.
type ExtenderFunc func(ctx context.Context) error

// Extend implements Extender.
func (f ExtenderFunc) Extend(ctx context.Context) error { return f(ctx) }

// Option configures a Monitor.
type Option func(*Monitor)

// WithOnChange is called after every state or countdown change.
func WithOnChange(fn func(Snapshot)) Option {
	return func(m *Monitor) { m.onChange = fn }
}

// WithErrorHandler receives logout callback failures. Defaults to logging.
func WithErrorHandler(fn func(error)) Option {
	return func(m *Monitor) { m.onError = fn }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics records transitions and resets.
func WithMetrics(mt *telemetry.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// WithExtender sets the Extender used by Extend.
func WithExtender(e Extender) Option {
	return func(m *Monitor) { m.extender = e }
}

// Monitor is the idle-activity state machine. All methods are safe for
// concurrent use.
type Monitor struct {
	cfg      Config
	table    map[State]step
	onLogout func() error

	onChange func(Snapshot)
	onError  func(error)
	log      *slog.Logger
	metrics  *telemetry.Metrics
	extender Extender

	mu        sync.Mutex
	state     State
	remaining int
	seq       uint64
	stopped   bool
	limiter   *rate.Limiter

	// At most one of each is armed. gen invalidates a pending transition,
	// cgen a pending countdown tick; a callback that lost the race with a
	// cancel sees a stale value and does nothing.
	pending   *time.Timer
	countdown *time.Timer
	gen       uint64
	cgen      uint64

	done      chan struct{}
	observers sync.WaitGroup
}

// Start validates cfg, arms ACTIVE->WARNING and returns the running monitor.
// onLogout is called once each time EXPIRED is entered.
func Start(cfg Config, onLogout func() error, opts ...Option) (*Monitor, error) {
	if cfg.ActivityThrottle == 0 {
		cfg.ActivityThrottle = DefaultThrottle
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if onLogout == nil {
		return nil, fmt.Errorf("%w: logout callback is required", ErrInvalidConfig)
	}

	m := &Monitor{
		cfg:      cfg,
		table:    cfg.transitions(),
		onLogout: onLogout,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.onError == nil {
		m.onError = func(err error) {
			m.log.Error("SESSION_LOGOUT_FAILED", "error", err)
		}
	}

	m.mu.Lock()
	snap := m.resetLocked()
	m.mu.Unlock()
	m.notify(snap)

	m.log.Debug("SESSION_MONITOR_STARTED",
		"warning_after", cfg.WarningAfter,
		"expiring_after", cfg.ExpiringAfter,
		"logout_after", cfg.LogoutAfter)
	return m, nil
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RemainingSeconds returns the countdown value, 0 outside WARNING/EXPIRING.
func (m *Monitor) RemainingSeconds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// Snapshot returns state and countdown together.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Config returns the thresholds in use.
func (m *Monitor) Config() Config {
	return m.cfg
}

// ResetTimer returns to ACTIVE and rearms from now. Valid from any state,
// including EXPIRED. A no-op after Stop.
func (m *Monitor) ResetTimer() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	snap := m.resetLocked()
	m.mu.Unlock()

	m.metrics.IdleReset()
	m.log.Debug("SESSION_RESET")
	m.notify(snap)
}

// Activity records user input. It resets the timers only while ACTIVE or
// WARNING and at most once per throttle window, and reports whether it did.
func (m *Monitor) Activity(kind Kind) bool {
	m.mu.Lock()
	if m.stopped || !m.state.AcceptsActivity() || !m.limiter.Allow() {
		m.mu.Unlock()
		return false
	}
	from := m.state
	snap := m.resetLocked()
	m.mu.Unlock()

	m.metrics.IdleReset()
	m.log.Debug("SESSION_RESET", "activity", kind.String(), "from", from.String())
	m.notify(snap)
	return true
}

// Observe forwards activity from ch until ch is closed or Stop is called.
func (m *Monitor) Observe(ch <-chan Kind) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.observers.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.observers.Done()
		for {
			select {
			case <-m.done:
				return
			case kind, ok := <-ch:
				if !ok {
					return
				}
				m.Activity(kind)
			}
		}
	}()
}

// Extend asks the Extender to prove the session is alive and resets the
// timers on success. On failure the state is left untouched and the
// countdown keeps running.
func (m *Monitor) Extend(ctx context.Context) error {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	if m.extender == nil {
		return ErrNoExtender
	}

	if err := m.extender.Extend(ctx); err != nil {
		m.log.Warn("SESSION_EXTEND_FAILED", "error", err)
		return fmt.Errorf("failed to extend session: %w", err)
	}
	m.log.Info("SESSION_EXTENDED")
	m.ResetTimer()
	return nil
}

// Stop cancels all timers, detaches observed channels and waits for the
// observer goroutines to exit. Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.gen++
	m.cancelPendingLocked()
	m.cancelCountdownLocked()
	close(m.done)
	m.mu.Unlock()

	m.observers.Wait()
	m.log.Debug("SESSION_MONITOR_STOPPED")
}

// =============================================================================
// SCHEDULER
// =============================================================================

// resetLocked cancels everything, enters ACTIVE and arms the first transition.
func (m *Monitor) resetLocked() Snapshot {
	m.gen++
	m.cancelPendingLocked()
	m.cancelCountdownLocked()
	m.state = Active
	m.remaining = 0

	// Fresh limiter with its token spent: the next activity reset is allowed
	// one throttle window from now.
	m.limiter = rate.NewLimiter(rate.Every(m.cfg.ActivityThrottle), 1)
	m.limiter.Allow()

	m.scheduleLocked()
	return m.changedLocked()
}

// scheduleLocked arms the transition out of the current state, if any.
func (m *Monitor) scheduleLocked() {
	st, ok := m.table[m.state]
	if !ok {
		return
	}
	gen := m.gen
	m.pending = time.AfterFunc(st.delay, func() { m.advance(gen, st) })
}

// advance performs a scheduled transition.
func (m *Monitor) advance(gen uint64, st step) {
	m.mu.Lock()
	if m.stopped || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.pending = nil
	m.cancelCountdownLocked()

	m.state = st.next
	m.remaining = st.countdown
	if m.remaining > 0 {
		m.startCountdownLocked()
	}
	m.scheduleLocked()
	snap := m.changedLocked()
	m.mu.Unlock()

	m.metrics.IdleTransition(strings.ToLower(st.next.String()))
	m.log.Info("SESSION_"+st.next.String(), "remaining_seconds", snap.RemainingSeconds)
	m.notify(snap)

	if st.next == Expired {
		m.runLogout()
	}
}

func (m *Monitor) startCountdownLocked() {
	m.cgen++
	cg := m.cgen
	m.countdown = time.AfterFunc(time.Second, func() { m.tick(cg) })
}

// tick decrements the countdown to a floor of zero.
func (m *Monitor) tick(cg uint64) {
	m.mu.Lock()
	if m.stopped || cg != m.cgen {
		m.mu.Unlock()
		return
	}
	if m.remaining > 0 {
		m.remaining--
	}
	if m.remaining > 0 {
		m.countdown = time.AfterFunc(time.Second, func() { m.tick(cg) })
	} else {
		m.countdown = nil
	}
	snap := m.changedLocked()
	m.mu.Unlock()

	m.notify(snap)
}

func (m *Monitor) cancelPendingLocked() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}

func (m *Monitor) cancelCountdownLocked() {
	m.cgen++
	if m.countdown != nil {
		m.countdown.Stop()
		m.countdown = nil
	}
}

// changedLocked bumps the sequence number and returns the new snapshot.
func (m *Monitor) changedLocked() Snapshot {
	m.seq++
	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() Snapshot {
	return Snapshot{State: m.state, RemainingSeconds: m.remaining, Seq: m.seq}
}

func (m *Monitor) notify(s Snapshot) {
	if m.onChange != nil {
		m.onChange(s)
	}
}

// runLogout calls onLogout, turning errors and panics into onError calls.
func (m *Monitor) runLogout() {
	defer func() {
		if r := recover(); r != nil {
			m.onError(fmt.Errorf("idle logout panicked: %v", r))
		}
	}()
	if err := m.onLogout(); err != nil {
		m.onError(fmt.Errorf("idle logout: %w", err))
	}
}
