package reader

import "errors"

var (
	// ErrHardwareFault indicates the reader did not respond or identified
	// as something unexpected. Fatal at startup.
	ErrHardwareFault = errors.New("reader: hardware fault")

	// ErrFrame indicates a malformed or corrupted frame from the reader.
	ErrFrame = errors.New("reader: invalid frame")

	// ErrNotReady indicates the reader did not signal ready in time.
	ErrNotReady = errors.New("reader: not ready")

	// ErrClosed is returned by Poll after Close.
	ErrClosed = errors.New("reader: closed")

	// ErrUnknownDriver is returned for an unsupported driver name.
	ErrUnknownDriver = errors.New("reader: unknown driver")
)
