// Package monitor observes read/write access to caller-chosen regions of
// the process's own memory.
//
// # Mechanism
//
// Arming a monitor marks the containing pages with the platform's
// trap-on-access guard flag. The next access to a guarded page raises a
// hardware fault; the monitor's process-wide fault interceptor looks the
// touched address up in an augmented interval tree, invokes every matching
// callback, then lets the faulted instruction complete and re-arms the
// guard flag one instruction later via a single-step trap. The guard bit
// is consumed by the platform the moment it fires, which is what lets the
// faulting access go through and why re-arming has to be deferred by
// exactly one instruction.
//
// # Usage
//
//	m, err := monitor.New(uintptr(unsafe.Pointer(&target)), unsafe.Sizeof(target),
//		func(ip uintptr, read bool, addr uintptr) {
//			// called once per completed access to target
//		})
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
// Callbacks run inline on the faulting thread while the monitor's internal
// mutex is held; see InterceptFunc for the contract.
//
// # Platforms
//
// The native backend exists for Windows/amd64 (guard pages and vectored
// exception handling). On other targets New returns
// platform.ErrUnsupported unless a custom platform (such as the simulated
// one used by this module's own tests) is supplied via SetPlatform.
//
// State is process-local: nothing survives process exit, and monitored
// regions can be neither moved nor resized after creation.
package monitor
