package journal

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
)

// Recorder appends every observed outcome to a Repository.
// It implements access.Observer.
type Recorder struct {
	repo     Repository
	exposure pseudonym.Exposure
}

// NewRecorder returns a Recorder that stores tokens under exposure.
func NewRecorder(repo Repository, exposure pseudonym.Exposure) *Recorder {
	return &Recorder{repo: repo, exposure: exposure}
}

// Observe implements access.Observer.
func (r *Recorder) Observe(ctx context.Context, o access.Outcome) error {
	e := EntryFromOutcome(o, r.exposure)
	return r.repo.Append(ctx, &e)
}

// EntryFromOutcome converts an outcome into a journal entry.
func EntryFromOutcome(o access.Outcome, exposure pseudonym.Exposure) Entry {
	e := Entry{
		DoorID:     o.DoorID,
		OccurredAt: o.At,
		Token:      exposure.Apply(o.Token),
		Decision:   o.Decision.String(),
		Reason:     o.Reason,
		StatusCode: o.StatusCode,
		LatencyMS:  float64(o.Latency) / float64(time.Millisecond),
		Unlocked:   o.Unlocked,
	}
	if err := errors.Join(o.Err, o.ActuatorErr); err != nil {
		e.Error = err.Error()
	}
	return e
}
