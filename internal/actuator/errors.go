package actuator

import "errors"

var (
	// ErrBusy is returned when Unlock is called while a hold is in progress.
	ErrBusy = errors.New("actuator: unlock already in progress")

	// ErrLockFailed is returned when the line could not be driven LOW.
	// The strike may be physically released; treat as a hardware fault.
	ErrLockFailed = errors.New("actuator: failed to lock strike")

	// ErrUnlockFailed is returned when the line could not be driven HIGH.
	ErrUnlockFailed = errors.New("actuator: failed to unlock strike")

	// ErrUnknownPin is returned when a GPIO name does not resolve.
	ErrUnknownPin = errors.New("actuator: unknown gpio pin")

	// ErrUnknownDriver is returned for an unsupported line driver.
	ErrUnknownDriver = errors.New("actuator: unknown driver")
)
