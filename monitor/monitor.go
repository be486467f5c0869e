package monitor

import "sync/atomic"

// InterceptFunc is invoked once per completed access to any byte of a
// monitored range. ip is the address of the accessing instruction, read
// reports the access kind, and addr is the touched data address.
//
// The callback runs inline on the faulting thread with the registry mutex
// held. It must not create or close monitors (that deadlocks against the
// fault being handled) and it should be fast, since it blocks its own
// thread's resumption and every other thread's faults.
type InterceptFunc func(ip uintptr, read bool, addr uintptr)

// Monitor is one armed watch over a range of the process's own memory.
// Its identity is bound at construction to one tree entry and one arming
// operation, so a Monitor must not be copied: a duplicate would
// double-release on Close.
type Monitor struct {
	reg    *registry
	id     uint64
	addr   uintptr
	size   uintptr
	closed atomic.Bool
}

// New arms read/write monitoring over the size bytes starting at addr and
// returns the handle that owns the registration. The first live monitor
// installs the process-wide fault interceptor; construction fails cleanly,
// with nothing registered, if installation or arming fails.
//
// The monitored object must stay at addr for the monitor's lifetime; the
// monitor neither pins nor tracks it. Guard faults fire with page
// granularity, so co-locating unrelated hot data on a monitored page
// causes interception overhead for every access to that page.
func New(addr, size uintptr, fn InterceptFunc) (*Monitor, error) {
	return newMonitor(global, addr, size, fn)
}

func newMonitor(r *registry, addr, size uintptr, fn InterceptFunc) (*Monitor, error) {
	if size == 0 {
		return nil, ErrEmptyRange
	}
	if fn == nil {
		return nil, ErrNilCallback
	}
	id, err := r.register(addr, size, fn)
	if err != nil {
		return nil, err
	}
	return &Monitor{reg: r, id: id, addr: addr, size: size}, nil
}

// Range returns the monitored [addr, addr+size) range.
func (m *Monitor) Range() (addr, size uintptr) {
	return m.addr, m.size
}

// Close disarms the monitor: protection is restored, the range leaves the
// tree, and the last monitor's close removes the fault interceptor.
// Close never fails loudly: restore and removal errors are reported on
// the diagnostics channel only. It is safe to call more than once.
func (m *Monitor) Close() error {
	if m == nil || !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.reg.unregister(m.id, m.addr, m.size)
	return nil
}
