// Package simplat is a simulated memory platform: paged protection state,
// a byte-addressed backing store, and synthetic guard-page/single-step
// fault delivery. It implements platform.Platform, so the whole two-phase
// interception protocol can run, and be tested, as ordinary Go code on
// any OS, with no real hardware faults involved.
//
// Addresses are plain numbers in a private address space; they never touch
// real process memory.
package simplat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/datamon-go/datamon/monitor/platform"
)

// PageSize is the simulated page size, matching the common 4KiB hardware
// page.
const PageSize uintptr = 4096

const pageMask = PageSize - 1

// ErrUnhandledFault reports an access that faulted with no interceptor
// willing to handle it: the simulated equivalent of a crash.
var ErrUnhandledFault = errors.New("simplat: unhandled fault")

// Sim is one simulated address space plus its fault interception chain.
// All methods are safe for concurrent use; the installed handler runs with
// no Sim lock held, so it may call back into the platform primitives, just
// like a real fault handler re-arming protection.
type Sim struct {
	mu        sync.Mutex
	pages     map[uintptr]platform.Protection
	mem       map[uintptr]byte
	handler   platform.FaultHandler
	installed bool
	handle    platform.InterceptorHandle
	lastID    platform.InterceptorHandle

	// Fail injection for error-path tests. A non-nil error makes the
	// corresponding primitive fail with it.
	FailQuery   error
	FailProtect error
	FailInstall error
	FailRemove  error
}

// New creates an empty simulated address space.
func New() *Sim {
	return &Sim{
		pages: make(map[uintptr]platform.Protection),
		mem:   make(map[uintptr]byte),
	}
}

// Map creates pages covering [base, base+size) with the given protection.
func (s *Sim) Map(base, size uintptr, prot platform.Protection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for page := base &^ pageMask; page < base+size; page += PageSize {
		s.pages[page] = prot
	}
}

// QueryRegion implements platform.Platform. Regions are reported one page
// at a time, which deliberately forces the caller's multi-region loop even
// for small ranges.
func (s *Sim) QueryRegion(addr uintptr) (platform.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailQuery != nil {
		return platform.Region{}, s.FailQuery
	}
	page := addr &^ pageMask
	prot, ok := s.pages[page]
	if !ok {
		return platform.Region{}, fmt.Errorf("simplat: address 0x%x is not mapped", addr)
	}
	return platform.Region{Base: page, Size: PageSize, Protect: prot}, nil
}

// SetProtection implements platform.Platform. Every page overlapping
// [base, base+size) is stamped; the previous protection of the first page
// is returned.
func (s *Sim) SetProtection(base, size uintptr, prot platform.Protection) (platform.Protection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailProtect != nil {
		return 0, s.FailProtect
	}
	if size == 0 {
		return 0, errors.New("simplat: zero-length protection change")
	}
	first := base &^ pageMask
	last := (base + size - 1) &^ pageMask
	for page := first; page <= last; page += PageSize {
		if _, ok := s.pages[page]; !ok {
			return 0, fmt.Errorf("simplat: protection change spans unmapped page 0x%x", page)
		}
	}
	old := s.pages[first]
	for page := first; page <= last; page += PageSize {
		s.pages[page] = prot
	}
	return old, nil
}

// InstallInterceptor implements platform.Platform. The chain has depth
// one: a second install without a remove is refused.
func (s *Sim) InstallInterceptor(h platform.FaultHandler) (platform.InterceptorHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInstall != nil {
		return 0, s.FailInstall
	}
	if s.installed {
		return 0, errors.New("simplat: an interceptor is already installed")
	}
	s.lastID++
	s.handler = h
	s.installed = true
	s.handle = s.lastID
	return s.handle, nil
}

// RemoveInterceptor implements platform.Platform.
func (s *Sim) RemoveInterceptor(h platform.InterceptorHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRemove != nil {
		return s.FailRemove
	}
	if !s.installed || h != s.handle {
		return fmt.Errorf("simplat: no interceptor with handle %d", h)
	}
	s.handler = nil
	s.installed = false
	return nil
}

// Installed reports whether an interceptor is currently registered.
func (s *Sim) Installed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installed
}

// Prot returns the protection of the page containing addr, for test
// assertions.
func (s *Sim) Prot(addr uintptr) platform.Protection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[addr&^pageMask]
}

// Peek reads n raw bytes without fault semantics.
func (s *Sim) Peek(addr uintptr, n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = s.mem[addr+uintptr(i)]
	}
	return out
}

// Thread is one simulated thread of execution. Accesses made through it
// honor page protection and deliver faults to the installed interceptor,
// reproducing the hardware protocol: a consumed guard bit, the handler,
// the completing access, then, if the handler armed it, a single-step
// trap.
type Thread struct {
	s    *Sim
	id   uint64
	pc   uintptr
	step bool
}

// Thread returns an accessor for the given thread id. The id is what the
// interceptor sees in Fault.ThreadID.
func (s *Sim) Thread(id uint64) *Thread {
	// synthetic code addresses, distinct per thread
	return &Thread{s: s, id: id, pc: 0x401000 + uintptr(id)<<20}
}

// SetSingleStep implements platform.ThreadState.
func (t *Thread) SetSingleStep() { t.step = true }

// Write performs one write access (one simulated instruction) covering
// data at addr.
func (t *Thread) Write(addr uintptr, data []byte) error {
	return t.access(addr, uintptr(len(data)), false, func() {
		for i, b := range data {
			t.s.mem[addr+uintptr(i)] = b
		}
	})
}

// Read performs one read access (one simulated instruction) of n bytes at
// addr.
func (t *Thread) Read(addr uintptr, n int) ([]byte, error) {
	out := make([]byte, n)
	err := t.access(addr, uintptr(n), true, func() {
		for i := range out {
			out[i] = t.s.mem[addr+uintptr(i)]
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// access runs the fault protocol for one instruction touching
// [addr, addr+size). Fault delivery is decided by the first touched page,
// the way hardware reports the faulting address.
func (t *Thread) access(addr, size uintptr, read bool, commit func()) error {
	s := t.s
	t.pc += 4 // one synthetic instruction

	s.mu.Lock()
	for page := addr &^ pageMask; page < addr+size; page += PageSize {
		if _, ok := s.pages[page]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("simplat: access to unmapped address 0x%x", page)
		}
	}
	page := addr &^ pageMask
	prot := s.pages[page]
	guarded := prot&platform.GuardFlag != 0
	if guarded {
		// the guard bit is consumed the moment it fires
		s.pages[page] = prot &^ platform.GuardFlag
	}
	handler := s.handler
	s.mu.Unlock()

	if guarded {
		f := &platform.Fault{
			Kind:     platform.FaultGuardPage,
			IP:       t.pc,
			Addr:     addr,
			Read:     read,
			ThreadID: t.id,
			Thread:   t,
		}
		if handler == nil || handler(f) != platform.Resume {
			return fmt.Errorf("%w: guard-page violation at 0x%x", ErrUnhandledFault, addr)
		}
	}

	// the faulting access completes
	s.mu.Lock()
	commit()
	s.mu.Unlock()

	if t.step {
		// exactly one instruction later: the single-step trap
		t.step = false
		f := &platform.Fault{
			Kind:     platform.FaultSingleStep,
			IP:       t.pc + 4,
			ThreadID: t.id,
			Thread:   t,
		}
		if handler == nil || handler(f) != platform.Resume {
			return fmt.Errorf("%w: stray single-step trap", ErrUnhandledFault)
		}
	}
	return nil
}
