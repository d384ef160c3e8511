package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/actuator"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-access/internal/pseudonym"
)

// Publisher is the part of *mqtt.Client the MQTT observer uses.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// StrikeEvent is the retained strike state payload.
type StrikeEvent struct {
	DoorID         string    `json:"door_id"`
	State          string    `json:"state"`
	Fault          bool      `json:"fault"`
	LastUnlockedAt time.Time `json:"last_unlocked_at,omitzero"`
	Timestamp      time.Time `json:"timestamp"`
}

// MQTTObserver publishes a decision event for every outcome and a retained
// strike state whenever the strike was released or reported a fault.
type MQTTObserver struct {
	pub      Publisher
	exposure pseudonym.Exposure
}

// NewMQTTObserver returns an MQTTObserver.
func NewMQTTObserver(pub Publisher, exposure pseudonym.Exposure) *MQTTObserver {
	return &MQTTObserver{pub: pub, exposure: exposure}
}

// Observe implements access.Observer.
func (m *MQTTObserver) Observe(_ context.Context, o access.Outcome) error {
	var errs []error

	if err := m.pub.PublishJSON(mqtt.Topics{}.DecisionEvent(o.DoorID), NewEvent(o, m.exposure), false); err != nil {
		errs = append(errs, fmt.Errorf("publishing decision event: %w", err))
	}

	if o.Unlocked || o.ActuatorErr != nil {
		if err := m.pub.PublishJSON(mqtt.Topics{}.StrikeState(o.DoorID), strikeEvent(o), true); err != nil {
			errs = append(errs, fmt.Errorf("publishing strike state: %w", err))
		}
	}

	return errors.Join(errs...)
}

// strikeEvent describes the strike after the outcome. Unlock returns only
// once the strike has been driven locked again, so the state is locked
// unless relocking failed, in which case the line level is unknown.
func strikeEvent(o access.Outcome) StrikeEvent {
	ev := StrikeEvent{
		DoorID:    o.DoorID,
		State:     actuator.Locked.String(),
		Timestamp: time.Now().UTC(),
	}
	if o.Unlocked {
		ev.LastUnlockedAt = o.At.UTC()
	}
	if o.ActuatorErr != nil {
		ev.Fault = true
		if errors.Is(o.ActuatorErr, actuator.ErrLockFailed) {
			ev.State = "unknown"
		}
	}
	return ev
}
