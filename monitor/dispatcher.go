package monitor

import (
	"fmt"

	"github.com/datamon-go/datamon/internal/diag"
	"github.com/datamon-go/datamon/monitor/platform"
)

// dispatch is the process-wide fault interception routine, installed once
// while any monitor is live. It runs synchronously on the faulting thread
// and drives the two-phase re-arm protocol:
//
//  1. A guard-page fault means a guarded page was touched and the platform
//     has already consumed its guard bit (otherwise the faulting access
//     could never complete). Matching callbacks run, then the thread is
//     single-stepped so the guard can go back on one instruction later.
//  2. The following single-step fault re-applies the guard flag at the
//     address recorded for that thread.
//
// A second guard fault on the same thread before its single-step resolves
// overwrites the thread's pending re-arm address. That hazard is inherited
// from the single-slot design; a per-thread stack of pending addresses
// would close it.
func (r *registry) dispatch(f *platform.Fault) platform.Disposition {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tree.Empty() {
		// nothing is being monitored; not our fault
		return platform.Defer
	}

	switch f.Kind {
	case platform.FaultGuardPage:
		// Guard faults fire per page, so the touched address is not
		// necessarily inside a monitored range; the tree decides.
		for _, iv := range r.tree.Query(f.Addr) {
			iv.Value(f.IP, f.Read, f.Addr)
		}
		f.Thread.SetSingleStep()
		r.rearm[f.ThreadID] = f.Addr
		return platform.Resume

	case platform.FaultSingleStep:
		addr, ok := r.rearm[f.ThreadID]
		if !ok {
			// a step we did not request
			return platform.Defer
		}
		delete(r.rearm, f.ThreadID)
		if err := protectRange(r.plat, addr, 1, addGuard); err != nil {
			// No caller exists at fault time to receive this; the range
			// is left unarmed until the next arming operation.
			diag.L.Error("guard re-arm failed",
				"addr", fmt.Sprintf("0x%x", addr), "thread", f.ThreadID, "error", err)
		}
		return platform.Resume
	}

	return platform.Defer
}
