// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package idle

import (
	"errors"
	"fmt"
	"time"
)

// State is the monitor's idle state.
type State int

const (
	Active State = iota
	Warning
	Expiring
	Expired
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Warning:
		return "WARNING"
	case Expiring:
		return "EXPIRING"
	case Expired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// AcceptsActivity reports whether activity resets the timers in this state.
func (s State) AcceptsActivity() bool {
	return s == Active || s == Warning
}

// Kind is a class of user input.
type Kind int

const (
	PointerDown Kind = iota
	KeyDown
	Scroll
	TouchStart
	PointerMove
)

// String returns the activity kind name.
func (k Kind) String() string {
	switch k {
	case PointerDown:
		return "pointer-down"
	case KeyDown:
		return "key-down"
	case Scroll:
		return "scroll"
	case TouchStart:
		return "touch-start"
	case PointerMove:
		return "pointer-move"
	default:
		return "unknown"
	}
}

// Snapshot is the observable monitor state. Seq increases with every change,
// so a consumer receiving snapshots from several goroutines can drop stale ones.
type Snapshot struct {
	State            State
	RemainingSeconds int
	Seq              uint64
}

// =============================================================================
// CONFIG
// =============================================================================

// ErrInvalidConfig is returned by Start for a misordered or non-positive config.
var ErrInvalidConfig = errors.New("invalid idle configuration")

// Config holds the escalation thresholds, all measured from the last reset.
type Config struct {
	WarningAfter     time.Duration
	ExpiringAfter    time.Duration
	LogoutAfter      time.Duration
	ActivityThrottle time.Duration // zero means DefaultThrottle
}

// DefaultThrottle is the minimum gap between activity resets.
const DefaultThrottle = time.Second

// DefaultConfig returns 2/3/5 minute thresholds.
func DefaultConfig() Config {
	return Config{
		WarningAfter:     2 * time.Minute,
		ExpiringAfter:    3 * time.Minute,
		LogoutAfter:      5 * time.Minute,
		ActivityThrottle: DefaultThrottle,
	}
}

// Validate checks 0 < WarningAfter < ExpiringAfter < LogoutAfter.
func (c Config) Validate() error {
	switch {
	case c.WarningAfter <= 0:
		return fmt.Errorf("%w: warning threshold must be positive, got %v", ErrInvalidConfig, c.WarningAfter)
	case c.ExpiringAfter <= c.WarningAfter:
		return fmt.Errorf("%w: expiring threshold %v must be after warning threshold %v",
			ErrInvalidConfig, c.ExpiringAfter, c.WarningAfter)
	case c.LogoutAfter <= c.ExpiringAfter:
		return fmt.Errorf("%w: logout threshold %v must be after expiring threshold %v",
			ErrInvalidConfig, c.LogoutAfter, c.ExpiringAfter)
	case c.ActivityThrottle < 0:
		return fmt.Errorf("%w: activity throttle must not be negative, got %v", ErrInvalidConfig, c.ActivityThrottle)
	}
	return nil
}

// step is one row of the transition table.
type step struct {
	delay time.Duration
	next  State
	// countdown is the starting value of the countdown entered with next.
	countdown int
}

// transitions builds the table for c. EXPIRED has no row.
func (c Config) transitions() map[State]step {
	return map[State]step{
		Active:   {delay: c.WarningAfter, next: Warning, countdown: ceilSeconds(c.ExpiringAfter - c.WarningAfter)},
		Warning:  {delay: c.ExpiringAfter - c.WarningAfter, next: Expiring, countdown: ceilSeconds(c.LogoutAfter - c.ExpiringAfter)},
		Expiring: {delay: c.LogoutAfter - c.ExpiringAfter, next: Expired},
	}
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
