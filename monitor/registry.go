package monitor

import (
	"fmt"
	"sync"

	"github.com/datamon-go/datamon/internal/diag"
	"github.com/datamon-go/datamon/monitor/interval"
	"github.com/datamon-go/datamon/monitor/platform"
)

// registry is the process-wide monitor state: the interval tree of watched
// ranges, the live-monitor count, and the installed fault interceptor. One
// mutex serializes every tree mutation, every fault-time query, and every
// callback invocation, across all threads.
type registry struct {
	mu sync.Mutex

	// plat is bound lazily on the first registration; SetPlatform may
	// replace it while no monitors are live.
	plat platform.Platform

	tree      *interval.Tree[uintptr, InterceptFunc]
	live      int
	handle    platform.InterceptorHandle
	installed bool

	// rearm holds, per faulting thread, the data address awaiting guard
	// restoration after that thread's pending single-step. Entries are
	// written and consumed only by their owning thread's faults; the map
	// itself is covered by mu, which the dispatcher already holds.
	rearm map[uint64]uintptr
}

var global = newRegistry(nil)

func newRegistry(p platform.Platform) *registry {
	return &registry{
		plat:  p,
		tree:  interval.New[uintptr, InterceptFunc](),
		rearm: make(map[uint64]uintptr),
	}
}

// SetPlatform replaces the memory platform backing new monitors, for
// example with the simulated one from internal/simplat. It is only legal
// while no monitors are live.
func SetPlatform(p platform.Platform) error {
	if p == nil {
		return ErrNilPlatform
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.live > 0 {
		return ErrPlatformBusy
	}
	global.plat = p
	return nil
}

// platformLocked resolves the registry's platform, binding the native one
// on first use. Callers hold mu.
func (r *registry) platformLocked() (platform.Platform, error) {
	if r.plat == nil {
		p, err := platform.Native()
		if err != nil {
			return nil, err
		}
		r.plat = p
	}
	return r.plat, nil
}

// register is the construction path behind New: install the interceptor if
// this is the first live monitor, bump the count, index the range, arm the
// guard flag. A failed arming rolls everything back so no partial
// registration survives.
func (r *registry) register(addr, size uintptr, fn InterceptFunc) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.platformLocked()
	if err != nil {
		return 0, err
	}

	if r.live == 0 {
		h, err := p.InstallInterceptor(r.dispatch)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInterceptorInstall, err)
		}
		r.handle = h
		r.installed = true
	}
	r.live++

	id := r.tree.Insert(addr, addr+size, fn)

	if err := protectRange(p, addr, size, addGuard); err != nil {
		// best-effort: a partial arming may have guarded leading regions
		if rerr := protectRange(p, addr, size, dropGuard); rerr != nil {
			diag.L.Warn("monitor arm rollback: protection restore failed",
				"addr", fmt.Sprintf("0x%x", addr), "size", size, "error", rerr)
		}
		r.tree.Erase(id)
		r.live--
		if r.live == 0 {
			r.uninstallLocked(p)
		}
		return 0, err
	}

	diag.L.Debug("monitor armed", "addr", fmt.Sprintf("0x%x", addr), "size", size, "id", id)
	return id, nil
}

// unregister is the destruction path behind Close. Failures here are
// swallowed: restoring protection or removing the interceptor can fail,
// but destruction must not fail loudly.
func (r *registry) unregister(id uint64, addr, size uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.platformLocked()
	if err != nil {
		return
	}

	if err := protectRange(p, addr, size, dropGuard); err != nil {
		diag.L.Warn("monitor close: protection restore failed",
			"addr", fmt.Sprintf("0x%x", addr), "size", size, "error", err)
	}

	r.tree.Erase(id)
	r.live--
	if r.live == 0 {
		r.uninstallLocked(p)
	}

	diag.L.Debug("monitor disarmed", "addr", fmt.Sprintf("0x%x", addr), "id", id)
}

// uninstallLocked removes the fault interceptor once the last monitor is
// gone and drops any stale per-thread re-arm state with it. Callers hold
// mu.
func (r *registry) uninstallLocked(p platform.Platform) {
	if !r.installed {
		return
	}
	if err := p.RemoveInterceptor(r.handle); err != nil {
		diag.L.Warn("monitor close: interceptor removal failed",
			"error", fmt.Errorf("%w: %w", ErrInterceptorRemove, err))
	}
	r.handle = 0
	r.installed = false
	clear(r.rearm)
}
