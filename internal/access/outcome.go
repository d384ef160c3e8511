package access

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/authz"
	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
)

// Outcome describes one pass of the cycle.
type Outcome struct {
	DoorID string
	At     time.Time

	// Presented is true when the reader returned a card.
	Presented bool

	// Token is empty when nothing was presented or tokenizing failed.
	Token pseudonym.Token

	Decision   authz.Decision
	Reason     string
	StatusCode int
	Latency    time.Duration

	// Unlocked is true when the strike was actually released.
	Unlocked bool

	// Err is a reader, tokenize or authorization error.
	Err error

	// ActuatorErr is set when the strike reported a fault.
	ActuatorErr error

	// Path lists the states visited, starting and ending at Idle.
	Path []State
}

// Observer receives outcomes of passes that read a card.
type Observer interface {
	Observe(ctx context.Context, o Outcome) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome) error

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, o Outcome) error {
	return f(ctx, o)
}
