package reader

import "context"

// Reader is a proximity-card reader.
type Reader interface {
	// Init brings the reader up. Errors wrap ErrHardwareFault.
	Init(ctx context.Context) error

	// Poll checks the field once. It returns the UID and true when a card
	// is present, or nil and false when nothing is presented.
	Poll(ctx context.Context) ([]byte, bool, error)

	// Close releases the reader.
	Close() error
}

// Logger is the logging interface used by readers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
