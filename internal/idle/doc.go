// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package idle provides the idle-activity monitor.
//
// The monitor escalates through four states measured from the last reset:
//
//	ACTIVE --WarningAfter--> WARNING --ExpiringAfter--> EXPIRING --LogoutAfter--> EXPIRED
//
// WARNING and EXPIRING each run a one-second countdown of the time left in
// that state. Entering EXPIRED calls the logout callback exactly once.
//
// User activity resets the timers while ACTIVE or WARNING, at most once per
// throttle window. Activity during EXPIRING is ignored; only an explicit
// Extend (which round-trips to the backend) or ResetTimer leaves it.
//
// # Usage
//
//	mon, err := idle.Start(idle.DefaultConfig(), orch.IdleLogout,
//	    idle.WithExtender(orch.Refresher()),
//	    idle.WithOnChange(func(s idle.Snapshot) { program.Send(s) }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer mon.Stop()
//
//	mon.Activity(idle.KeyDown)
package idle
