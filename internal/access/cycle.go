package access

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/actuator"
	"github.com/nerrad567/gray-logic-access/internal/authz"
	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
	"github.com/nerrad567/gray-logic-access/internal/reader"
)

// DefaultPollInterval is the pause between reader polls.
const DefaultPollInterval = time.Second

// ReasonReaderFault marks a presentation whose identifier was rejected
// before any authorization query.
const ReasonReaderFault = "reader_fault"

// Tokenizer pseudonymizes a raw UID.
type Tokenizer interface {
	Tokenize(uid []byte) (pseudonym.Token, error)
}

// Authorizer queries the authorization service.
type Authorizer interface {
	Authorize(ctx context.Context, token pseudonym.Token) authz.Result
}

// Strike releases the door.
type Strike interface {
	Unlock(ctx context.Context) error
	State() actuator.State
}

// Logger is the logging interface used by the cycle.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps are the collaborators of a Cycle. Reader, Tokenizer, Authorizer and
// Strike are required.
type Deps struct {
	Reader     reader.Reader
	Tokenizer  Tokenizer
	Authorizer Authorizer
	Strike     Strike
	Observers  []Observer
	Logger     Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Config holds cycle settings.
type Config struct {
	DoorID       string
	PollInterval time.Duration
}

// Cycle is the access state machine for one door.
//
// Thread Safety:
//   - Step and Run must be called from a single goroutine.
//   - State and Snapshot are safe from any goroutine.
type Cycle struct {
	deps     Deps
	doorID   string
	interval time.Duration
	logger   Logger
	now      func() time.Time

	mu    sync.RWMutex
	state State
	stats Stats
}

// New validates deps and returns an idle Cycle.
//
// Parameters:
//   - cfg: Door identity and poll interval
//   - deps: Collaborators
//
// Returns:
//   - *Cycle: Idle, not yet running
//   - error: If a required collaborator is missing
func New(cfg Config, deps Deps) (*Cycle, error) {
	switch {
	case deps.Reader == nil:
		return nil, errors.New("access: reader is required")
	case deps.Tokenizer == nil:
		return nil, errors.New("access: tokenizer is required")
	case deps.Authorizer == nil:
		return nil, errors.New("access: authorizer is required")
	case deps.Strike == nil:
		return nil, errors.New("access: strike is required")
	}

	c := &Cycle{
		deps:     deps,
		doorID:   cfg.DoorID,
		interval: cfg.PollInterval,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if c.interval <= 0 {
		c.interval = DefaultPollInterval
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.stats.StartedAt = c.now()
	return c, nil
}

// AddObserver registers an observer. Call before Run.
func (c *Cycle) AddObserver(o Observer) {
	c.deps.Observers = append(c.deps.Observers, o)
}

// State returns the current phase.
func (c *Cycle) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run steps the cycle every poll interval until ctx is cancelled.
func (c *Cycle) Run(ctx context.Context) error {
	c.logger.Info("access cycle started", "door", c.doorID, "poll_interval", c.interval)
	defer c.logger.Info("access cycle stopped", "door", c.doorID)

	// The wait restarts after each pass so a long hold is never followed
	// by an immediate poll.
	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		c.Step(ctx)
		timer.Reset(c.interval)

		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// Step runs one poll-and-maybe-act pass and returns to Idle.
func (c *Cycle) Step(ctx context.Context) (out Outcome) {
	out = Outcome{DoorID: c.doorID, At: c.now(), Path: []State{Idle}}
	defer func() {
		out.Path = append(out.Path, Idle)
		c.setState(Idle)
	}()

	// Presence polling happens in Idle.
	uid, presented, err := c.deps.Reader.Poll(ctx)
	if err != nil {
		out.Err = fmt.Errorf("polling reader: %w", err)
		c.logger.Warn("reader poll failed", "door", c.doorID, "error", err)
		c.record(func(s *Stats) { s.ReaderErrors++ })
		return out
	}
	if !presented {
		c.record(func(s *Stats) { s.Polls++ })
		return out
	}
	out.Presented = true
	c.transition(&out, Reading)

	token, err := c.deps.Tokenizer.Tokenize(uid)
	clear(uid)
	if err != nil {
		out.Err = fmt.Errorf("tokenizing identifier: %w", err)
		out.Reason = ReasonReaderFault
		c.logger.Error("reader fault: identifier rejected", "door", c.doorID, "error", err)
		c.record(func(s *Stats) { s.Polls++; s.ReaderErrors++ })
		c.notify(ctx, out)
		return out
	}
	out.Token = token

	c.transition(&out, Authorizing)
	res := c.deps.Authorizer.Authorize(ctx, token)
	out.Decision = res.Decision
	out.Reason = res.Reason
	out.StatusCode = res.StatusCode
	out.Latency = res.Latency
	out.Err = res.Err

	if res.Decision == authz.Permitted {
		c.transition(&out, Unlocking)
		err := c.deps.Strike.Unlock(ctx)
		out.Unlocked = released(err)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			out.ActuatorErr = err
			c.logger.Error("strike fault", "door", c.doorID, "error", err)
		}
	}

	c.record(func(s *Stats) {
		s.Polls++
		s.Presentations++
		switch out.Decision {
		case authz.Permitted:
			s.Permitted++
		case authz.Denied:
			s.Denied++
		default:
			s.Indeterminate++
		}
		if out.ActuatorErr != nil {
			s.ActuatorErrors++
		}
		last := out
		last.Path = append([]State(nil), out.Path...)
		last.Path = append(last.Path, Idle)
		s.Last = &last
	})
	c.notify(ctx, out)
	return out
}

// released reports whether Unlock actually raised the strike.
func released(err error) bool {
	return !errors.Is(err, actuator.ErrUnlockFailed) && !errors.Is(err, actuator.ErrBusy)
}

func (c *Cycle) transition(out *Outcome, s State) {
	out.Path = append(out.Path, s)
	c.setState(s)
}

func (c *Cycle) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Cycle) record(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

// notify delivers a finished outcome to every observer. The outcome passed
// carries the full path back to Idle.
func (c *Cycle) notify(ctx context.Context, out Outcome) {
	out.Path = append(append([]State(nil), out.Path...), Idle)
	for _, o := range c.deps.Observers {
		c.observe(ctx, o, out)
	}
}

func (c *Cycle) observe(ctx context.Context, o Observer, out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("observer panicked", "door", c.doorID, "panic", r)
		}
	}()
	if err := o.Observe(ctx, out); err != nil {
		c.logger.Warn("observer failed", "door", c.doorID, "error", err)
	}
}
