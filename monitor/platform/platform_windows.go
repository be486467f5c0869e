//go:build windows && amd64

package platform

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// NT status codes for the two fault kinds the monitor consumes.
const (
	statusGuardPageViolation = 0x80000001
	statusSingleStep         = 0x80000004
)

// Vectored handler return values (LONG, so only the low 32 bits matter).
const (
	exceptionContinueExecution uintptr = 0xFFFFFFFF // -1
	exceptionContinueSearch    uintptr = 0
)

// trapFlag is the x86 EFLAGS single-step bit.
const trapFlag = 0x100

// golang.org/x/sys/windows wraps VirtualQuery and VirtualProtect but not
// vectored exception handling, so those two come straight from kernel32.
var (
	modkernel32                        = windows.NewLazySystemDLL("kernel32.dll")
	procAddVectoredExceptionHandler    = modkernel32.NewProc("AddVectoredExceptionHandler")
	procRemoveVectoredExceptionHandler = modkernel32.NewProc("RemoveVectoredExceptionHandler")
)

// exceptionRecord mirrors EXCEPTION_RECORD from winnt.h. For access
// violations and guard-page violations, ExceptionInformation[0] is 0 for a
// read and 1 for a write, and ExceptionInformation[1] is the data address.
type exceptionRecord struct {
	ExceptionCode        uint32
	ExceptionFlags       uint32
	ExceptionRecord      *exceptionRecord
	ExceptionAddress     uintptr
	NumberParameters     uint32
	ExceptionInformation [15]uintptr
}

// context mirrors the leading portion of the amd64 CONTEXT from winnt.h,
// through Rip. The trailing floating-point and vector state is never
// touched, so it is left unmodelled; the OS owns the allocation.
type context struct {
	P1Home, P2Home, P3Home, P4Home, P5Home, P6Home uint64

	ContextFlags uint32
	MxCsr        uint32

	SegCs, SegDs, SegEs, SegFs, SegGs, SegSs uint16
	EFlags                                   uint32

	Dr0, Dr1, Dr2, Dr3, Dr6, Dr7 uint64

	Rax, Rcx, Rdx, Rbx, Rsp, Rbp, Rsi, Rdi uint64
	R8, R9, R10, R11, R12, R13, R14, R15   uint64

	Rip uint64
}

type exceptionPointers struct {
	ExceptionRecord *exceptionRecord
	ContextRecord   *context
}

// threadState exposes the faulting thread's CONTEXT to the handler.
type threadState struct {
	ctx *context
}

func (t threadState) SetSingleStep() { t.ctx.EFlags |= trapFlag }

var (
	vehMu      sync.Mutex
	vehHandler FaultHandler
	// NewCallback allocations are never released, so the trampoline is
	// created once and reused across install/remove cycles.
	vehTrampoline uintptr
)

// vectoredHandler is the raw VEH entry point. It translates the native
// exception record into a Fault and forwards it to the installed handler.
func vectoredHandler(ep *exceptionPointers) uintptr {
	vehMu.Lock()
	h := vehHandler
	vehMu.Unlock()
	if h == nil {
		return exceptionContinueSearch
	}

	f := &Fault{
		Kind:     FaultOther,
		IP:       uintptr(ep.ContextRecord.Rip),
		ThreadID: uint64(windows.GetCurrentThreadId()),
		Thread:   threadState{ctx: ep.ContextRecord},
	}
	switch ep.ExceptionRecord.ExceptionCode {
	case statusGuardPageViolation:
		f.Kind = FaultGuardPage
		f.Read = ep.ExceptionRecord.ExceptionInformation[0] == 0
		f.Addr = ep.ExceptionRecord.ExceptionInformation[1]
	case statusSingleStep:
		f.Kind = FaultSingleStep
	}

	if h(f) == Resume {
		return exceptionContinueExecution
	}
	return exceptionContinueSearch
}

type winPlatform struct{}

// Native returns the Windows/amd64 platform backed by VirtualQuery,
// VirtualProtect and vectored exception handling.
func Native() (Platform, error) {
	return winPlatform{}, nil
}

func (winPlatform) QueryRegion(addr uintptr) (Region, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return Region{}, fmt.Errorf("VirtualQuery(0x%x): %w", addr, err)
	}
	return Region{
		Base:    mbi.BaseAddress,
		Size:    mbi.RegionSize,
		Protect: Protection(mbi.Protect),
	}, nil
}

func (winPlatform) SetProtection(base, size uintptr, prot Protection) (Protection, error) {
	var old uint32
	if err := windows.VirtualProtect(base, size, uint32(prot), &old); err != nil {
		return 0, fmt.Errorf("VirtualProtect(0x%x, %d): %w", base, size, err)
	}
	return Protection(old), nil
}

func (winPlatform) InstallInterceptor(h FaultHandler) (InterceptorHandle, error) {
	vehMu.Lock()
	defer vehMu.Unlock()
	if vehTrampoline == 0 {
		vehTrampoline = syscall.NewCallback(vectoredHandler)
	}
	vehHandler = h
	// first=1 places the handler ahead of the rest of the chain
	r1, _, err := procAddVectoredExceptionHandler.Call(1, vehTrampoline)
	if r1 == 0 {
		vehHandler = nil
		return 0, fmt.Errorf("AddVectoredExceptionHandler: %w", err)
	}
	return InterceptorHandle(r1), nil
}

func (winPlatform) RemoveInterceptor(h InterceptorHandle) error {
	vehMu.Lock()
	defer vehMu.Unlock()
	r1, _, err := procRemoveVectoredExceptionHandler.Call(uintptr(h))
	vehHandler = nil
	if r1 == 0 {
		return fmt.Errorf("RemoveVectoredExceptionHandler: %w", err)
	}
	return nil
}
