package monitor

import "errors"

var (
	// ErrRegionQuery wraps a failure to enumerate the protection region
	// containing an address.
	ErrRegionQuery = errors.New("monitor: region query failed")

	// ErrProtectionChange wraps a failure to toggle the guard flag. Raised
	// during arming and, fault-side, during the re-arm step.
	ErrProtectionChange = errors.New("monitor: protection change failed")

	// ErrInterceptorInstall wraps a refused fault interceptor
	// registration. Only the first live monitor installs.
	ErrInterceptorInstall = errors.New("monitor: interceptor install failed")

	// ErrInterceptorRemove wraps a failed interceptor removal. Only the
	// last monitor's close removes, and the failure is never propagated
	// out of Close.
	ErrInterceptorRemove = errors.New("monitor: interceptor removal failed")

	// ErrEmptyRange rejects a zero-size monitored range.
	ErrEmptyRange = errors.New("monitor: size must be non-zero")

	// ErrNilCallback rejects a nil interception callback.
	ErrNilCallback = errors.New("monitor: callback must not be nil")

	// ErrPlatformBusy rejects a platform swap while monitors are live.
	ErrPlatformBusy = errors.New("monitor: cannot change platform while monitors are live")

	// ErrNilPlatform rejects a nil platform.
	ErrNilPlatform = errors.New("monitor: platform must not be nil")
)
