// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRefresh(RefreshSuccess, time.Second)
		m.Queued()
		m.Replayed()
		m.ForcedLogout()
		m.IdleTransition("warning")
		m.IdleReset()
		m.AuthCall("login", nil)
	})
}

func TestMetrics_Counts(t *testing.T) {
	m := New(nil)

	m.ObserveRefresh(RefreshSuccess, 10*time.Millisecond)
	m.ObserveRefresh(RefreshSuccess, 20*time.Millisecond)
	m.ObserveRefresh(RefreshFailure, time.Millisecond)
	m.Queued()
	m.Queued()
	m.Replayed()
	m.IdleTransition("expiring")
	m.AuthCall("login", errors.New("bad password"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.refreshes.WithLabelValues(RefreshSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(RefreshFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replays))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.idleTransitions.WithLabelValues("expiring")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authCalls.WithLabelValues("login", "error")))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ForcedLogout()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "warden_session_forced_logouts_total 1")
}
