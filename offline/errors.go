package offline

import "errors"

// Sentinel errors for controller operations.
var (
	// ErrNoResponse is returned when neither the network nor the cache can
	// answer a request.
	ErrNoResponse = errors.New("offline: no response available")

	// ErrInstallFailed is returned when pre-caching the shell fails. No
	// half-populated generation is left behind.
	ErrInstallFailed = errors.New("offline: install failed")

	// ErrRedundant is returned by lifecycle calls on a controller that was
	// retired by the kill switch.
	ErrRedundant = errors.New("offline: controller is redundant")

	// ErrLifecycle is returned when a lifecycle step runs out of order.
	ErrLifecycle = errors.New("offline: lifecycle step out of order")

	// ErrRequestTooLarge is returned when a request body exceeds the
	// upstream body limit.
	ErrRequestTooLarge = errors.New("offline: request body too large")

	// ErrResponseTooLarge is returned when the origin sends a body over the
	// upstream body limit.
	ErrResponseTooLarge = errors.New("offline: response body too large")

	// ErrInvalidConfig is returned by New for unusable configuration.
	ErrInvalidConfig = errors.New("offline: invalid config")
)
