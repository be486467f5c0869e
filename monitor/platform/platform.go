// Package platform abstracts the memory primitives the monitor runs
// against: querying protection regions, changing page protection, and
// installing a process-wide hardware fault interceptor.
//
// The native implementation (Windows/amd64) wraps VirtualQuery,
// VirtualProtect and vectored exception handling. internal/simplat
// provides a fully simulated implementation for tests and for running the
// demonstration scenario on any OS.
package platform

import "errors"

// ErrUnsupported is returned by Native on platforms without a fault
// interception backend.
var ErrUnsupported = errors.New("platform: native fault interception is not supported on this target")

// Protection is a memory protection word. Values use the Windows PAGE_*
// numeric space; the guard bit is the only bit the monitor interprets, all
// others pass through protection changes untouched.
type Protection uint32

// GuardFlag is the trap-on-access bit (PAGE_GUARD). The platform clears it
// automatically the moment it fires so the access that tripped it can
// complete; re-arming is the dispatcher's job, one instruction later.
const GuardFlag Protection = 0x100

// Region describes one platform-level protection region. A logical range
// handed to the monitor may straddle several of these.
type Region struct {
	Base    uintptr
	Size    uintptr
	Protect Protection
}

// FaultKind classifies a hardware fault delivered to the interceptor.
type FaultKind int

const (
	// FaultOther is any fault the monitor does not handle.
	FaultOther FaultKind = iota
	// FaultGuardPage is a trap-on-access violation: a guarded page was
	// touched and its guard bit has just been consumed.
	FaultGuardPage
	// FaultSingleStep reports that exactly one instruction ran after the
	// single-step flag was set.
	FaultSingleStep
)

// Disposition is the interceptor's answer for one fault.
type Disposition int

const (
	// Defer passes the fault to the next handler in the chain.
	Defer Disposition = iota
	// Resume declares the fault handled; the faulted thread continues.
	Resume
)

// ThreadState is the slice of the faulting thread's register state a
// handler may mutate.
type ThreadState interface {
	// SetSingleStep arms the CPU single-step flag so exactly one more
	// instruction executes before the next fault.
	SetSingleStep()
}

// Fault is one hardware fault, translated out of the platform's native
// exception record. Addr and Read are only meaningful for FaultGuardPage.
type Fault struct {
	Kind     FaultKind
	IP       uintptr // address of the instruction that faulted
	Addr     uintptr // data address the instruction touched
	Read     bool    // read access (otherwise write)
	ThreadID uint64
	Thread   ThreadState
}

// FaultHandler is the process-wide fault interception routine. It runs
// synchronously on the faulting thread, ahead of default fault handling.
type FaultHandler func(*Fault) Disposition

// InterceptorHandle is the platform's token for an installed interceptor.
type InterceptorHandle uintptr

// Platform is the set of memory primitives the monitor consumes.
type Platform interface {
	// QueryRegion returns the protection region containing addr. It fails
	// if addr is not mapped.
	QueryRegion(addr uintptr) (Region, error)

	// SetProtection changes the protection of size bytes at base and
	// returns the previous protection. It may fail if the range spans
	// invalid memory.
	SetProtection(base, size uintptr, prot Protection) (Protection, error)

	// InstallInterceptor registers h ahead of default fault handling.
	InstallInterceptor(h FaultHandler) (InterceptorHandle, error)

	// RemoveInterceptor unregisters a previously installed interceptor.
	RemoveInterceptor(h InterceptorHandle) error
}
