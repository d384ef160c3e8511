package telemetry

import (
	"context"

	"github.com/nerrad567/gray-logic-access/internal/access"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/influxdb"
)

// CycleWriter is the part of *influxdb.Client the Influx observer uses.
type CycleWriter interface {
	WriteAccessCycle(p influxdb.CyclePoint)
}

// InfluxObserver writes an access_cycle point per outcome. The token is
// never written.
type InfluxObserver struct {
	w CycleWriter
}

// NewInfluxObserver returns an InfluxObserver.
func NewInfluxObserver(w CycleWriter) *InfluxObserver {
	return &InfluxObserver{w: w}
}

// Observe implements access.Observer. Writes are batched by the client, so
// this never blocks on the network.
func (i *InfluxObserver) Observe(_ context.Context, o access.Outcome) error {
	i.w.WriteAccessCycle(influxdb.CyclePoint{
		DoorID:     o.DoorID,
		Decision:   o.Decision.String(),
		Reason:     o.Reason,
		StatusCode: o.StatusCode,
		Latency:    o.Latency,
		Unlocked:   o.Unlocked,
		At:         o.At,
	})
	return nil
}
