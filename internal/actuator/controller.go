package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultHold is how long the strike stays released.
	DefaultHold = 7 * time.Second

	// lockAttempts is how many times a LOW write is tried before giving up.
	lockAttempts = 3

	defaultRetryDelay = 20 * time.Millisecond
)

// State is the strike state as last driven by the controller.
type State int

const (
	// Locked is the power-on and fail-safe state.
	Locked State = iota
	Unlocked
)

// String returns "locked" or "unlocked".
func (s State) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

// Logger is the logging interface used by the controller.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration)

// Options configures a Controller.
type Options struct {
	// Line is the strike output. Required.
	Line Line

	// Hold is the unlock window. Default: 7s.
	Hold time.Duration

	// Indicator is driven HIGH when the strike cannot be locked. Optional.
	Indicator Line

	// Wait replaces the hold timer (tests).
	Wait WaitFunc

	// RetryDelay is the pause between LOW attempts. Default: 20ms.
	RetryDelay time.Duration

	Logger Logger
}

// Controller owns the strike line.
type Controller struct {
	line       Line
	indicator  Line
	hold       time.Duration
	wait       WaitFunc
	retryDelay time.Duration
	logger     Logger

	// busy is held for the whole of an Unlock.
	busy sync.Mutex

	mu    sync.RWMutex
	state State
}

// New creates a Controller and drives the strike LOW.
//
// Parameters:
//   - opts: Line and timing
//
// Returns:
//   - *Controller: Locked and ready
//   - error: ErrLockFailed if the initial LOW write fails
func New(opts Options) (*Controller, error) {
	if opts.Line == nil {
		return nil, errors.New("actuator: line is required")
	}
	c := &Controller{
		line:       opts.Line,
		indicator:  opts.Indicator,
		hold:       opts.Hold,
		wait:       opts.Wait,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
		state:      Unlocked, // unknown until the first LOW succeeds
	}
	if c.hold <= 0 {
		c.hold = DefaultHold
	}
	if c.wait == nil {
		c.wait = timerWait
	}
	if c.retryDelay <= 0 {
		c.retryDelay = defaultRetryDelay
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}

	if err := c.lock(); err != nil {
		return nil, err
	}
	return c, nil
}

// Hold returns the configured unlock window.
func (c *Controller) Hold() time.Duration {
	return c.hold
}

// State returns the strike state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Unlock releases the strike for the hold window and locks it again.
//
// The LOW write runs in a deferred call, so it happens on normal expiry,
// on cancellation of ctx (early, never late), and while a panic in the hold
// unwinds.
//
// Returns:
//   - nil after a full hold
//   - ctx.Err() if the hold was cut short
//   - ErrBusy if another Unlock is in progress
//   - ErrUnlockFailed or ErrLockFailed (possibly joined) on line faults
func (c *Controller) Unlock(ctx context.Context) (err error) {
	if !c.busy.TryLock() {
		return ErrBusy
	}
	defer c.busy.Unlock()

	defer func() {
		if lockErr := c.lock(); lockErr != nil {
			err = errors.Join(err, lockErr)
		}
	}()

	if setErr := c.line.Set(High); setErr != nil {
		return fmt.Errorf("%w: %w", ErrUnlockFailed, setErr)
	}
	c.setState(Unlocked)
	c.logger.Info("strike released", "line", c.line.Name(), "hold", c.hold)

	c.wait(ctx, c.hold)
	return ctx.Err()
}

// Close locks the strike.
func (c *Controller) Close() error {
	return c.lock()
}

// lock drives the line LOW, retrying a bounded number of times.
func (c *Controller) lock() error {
	var lastErr error
	for attempt := 1; attempt <= lockAttempts; attempt++ {
		if lastErr = c.line.Set(Low); lastErr == nil {
			c.setState(Locked)
			return nil
		}
		c.logger.Warn("strike lock attempt failed", "line", c.line.Name(), "attempt", attempt, "error", lastErr)
		if attempt < lockAttempts {
			time.Sleep(c.retryDelay)
		}
	}

	c.logger.Error("strike could not be locked", "line", c.line.Name(), "error", lastErr)
	if c.indicator != nil {
		if err := c.indicator.Set(High); err != nil {
			c.logger.Error("fault indicator failed", "line", c.indicator.Name(), "error", err)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrLockFailed, lockAttempts, lastErr)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func timerWait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
