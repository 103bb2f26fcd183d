// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/jeranaias/warden/internal/idle"
)

func TestRenderHelpers_IncludeIndicator(t *testing.T) {
	tests := []struct {
		name      string
		render    func(string) string
		indicator string
	}{
		{"success", RenderSuccess, StatusIndicators.Success},
		{"error", RenderError, StatusIndicators.Error},
		{"warning", RenderWarning, StatusIndicators.Warning},
		{"info", RenderInfo, StatusIndicators.Info},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.render("saved")
			if !strings.Contains(out, tt.indicator) || !strings.Contains(out, "saved") {
				t.Errorf("render(%q) = %q, want indicator %q and message", "saved", out, tt.indicator)
			}
		})
	}
}

func TestRenderState(t *testing.T) {
	tests := []struct {
		state     idle.State
		indicator string
	}{
		{idle.Active, StatusIndicators.Active},
		{idle.Warning, StatusIndicators.Warning},
		{idle.Expiring, StatusIndicators.Error},
		{idle.Expired, StatusIndicators.Error},
	}
	for _, tt := range tests {
		out := RenderState(tt.state)
		if !strings.Contains(out, tt.indicator+" "+tt.state.String()) {
			t.Errorf("RenderState(%v) = %q", tt.state, out)
		}
	}
}

func TestStateColor(t *testing.T) {
	if StateColor(idle.Active) != Emerald {
		t.Error("ACTIVE should be emerald")
	}
	if StateColor(idle.Warning) != Amber {
		t.Error("WARNING should be amber")
	}
	if StateColor(idle.Expiring) != Rose {
		t.Error("EXPIRING should be rose")
	}
}
