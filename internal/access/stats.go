package access

import (
	"time"

	"github.com/nerrad567/gray-logic-access/internal/actuator"
)

// Stats are running counters for the cycle.
type Stats struct {
	StartedAt      time.Time
	Polls          uint64
	Presentations  uint64
	Permitted      uint64
	Denied         uint64
	Indeterminate  uint64
	ReaderErrors   uint64
	ActuatorErrors uint64

	// Last is the most recent outcome with a presented card.
	Last *Outcome
}

// Snapshot is a consistent view of the cycle for status reporting.
type Snapshot struct {
	DoorID   string
	State    State
	Strike   actuator.State
	Stats    Stats
	Uptime   time.Duration
	Interval time.Duration
}

// Snapshot returns the current state and counters.
func (c *Cycle) Snapshot() Snapshot {
	c.mu.RLock()
	stats := c.stats
	state := c.state
	c.mu.RUnlock()

	if stats.Last != nil {
		last := *stats.Last
		stats.Last = &last
	}
	return Snapshot{
		DoorID:   c.doorID,
		State:    state,
		Strike:   c.deps.Strike.State(),
		Stats:    stats,
		Uptime:   c.now().Sub(stats.StartedAt),
		Interval: c.interval,
	}
}
