// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warden"

// Refresh outcomes, used as the "result" label.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
	RefreshNoToken = "no_token"
)

// Metrics groups every collector. Create it with New.
type Metrics struct {
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	queued          prometheus.Counter
	replays         prometheus.Counter
	forcedLogouts   prometheus.Counter
	idleTransitions *prometheus.CounterVec
	idleResets      prometheus.Counter
	authCalls       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg (nil skips registration).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "refresh_total",
			Help:      "Token refresh cycles by result.",
		}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent calling the refresh endpoint.",
			Buckets:   prometheus.DefBuckets,
		}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "queued_requests_total",
			Help:      "Requests that waited on an in-flight refresh.",
		}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "replayed_requests_total",
			Help:      "Requests replayed after a refresh.",
		}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "forced_logouts_total",
			Help:      "Sessions ended because credentials could not be renewed.",
		}),
		idleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "idle",
			Name:      "transitions_total",
			Help:      "Idle monitor state entries by target state.",
		}, []string{"state"}),
		idleResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "idle",
			Name:      "resets_total",
			Help:      "Idle timer resets from activity or extension.",
		}),
		authCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "calls_total",
			Help:      "Login, register and logout calls by result.",
		}, []string{"op", "result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.refreshes,
			m.refreshDuration,
			m.queued,
			m.replays,
			m.forcedLogouts,
			m.idleTransitions,
			m.idleResets,
			m.authCalls,
		)
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveRefresh records one refresh cycle.
func (m *Metrics) ObserveRefresh(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
	if result != RefreshNoToken {
		m.refreshDuration.Observe(d.Seconds())
	}
}

// Queued records a request waiting on an in-flight refresh.
func (m *Metrics) Queued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

// Replayed records a replayed request.
func (m *Metrics) Replayed() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

// ForcedLogout records a session ended by refresh failure.
func (m *Metrics) ForcedLogout() {
	if m == nil {
		return
	}
	m.forcedLogouts.Inc()
}

// IdleTransition records entry into state.
func (m *Metrics) IdleTransition(state string) {
	if m == nil {
		return
	}
	m.idleTransitions.WithLabelValues(state).Inc()
}

// IdleReset records a timer reset.
func (m *Metrics) IdleReset() {
	if m == nil {
		return
	}
	m.idleResets.Inc()
}

// AuthCall records a login, register or logout outcome.
func (m *Metrics) AuthCall(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.authCalls.WithLabelValues(op, result).Inc()
}
