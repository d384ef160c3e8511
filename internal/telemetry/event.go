package telemetry

import (
	"time"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
)

// Event is the JSON form of an outcome published to MQTT and streamed by
// the status API.
type Event struct {
	DoorID        string    `json:"door_id"`
	Timestamp     time.Time `json:"timestamp"`
	Token         string    `json:"token,omitempty"`
	Decision      string    `json:"decision"`
	Reason        string    `json:"reason"`
	StatusCode    int       `json:"status_code,omitempty"`
	LatencyMS     float64   `json:"latency_ms"`
	Unlocked      bool      `json:"unlocked"`
	Error         string    `json:"error,omitempty"`
	ActuatorError string    `json:"actuator_error,omitempty"`
}

// NewEvent renders o with its token shown as exposure allows.
func NewEvent(o access.Outcome, exposure pseudonym.Exposure) Event {
	e := Event{
		DoorID:     o.DoorID,
		Timestamp:  o.At.UTC(),
		Token:      exposure.Apply(o.Token),
		Decision:   o.Decision.String(),
		Reason:     o.Reason,
		StatusCode: o.StatusCode,
		LatencyMS:  latencyMS(o.Latency),
		Unlocked:   o.Unlocked,
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	if o.ActuatorErr != nil {
		e.ActuatorError = o.ActuatorErr.Error()
	}
	return e
}

func latencyMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
