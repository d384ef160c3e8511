package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by this package.
const (
	MeasurementAccessCycle = "access_cycle"
	MeasurementDoorHealth  = "door_health"
)

// CyclePoint is one completed access cycle as stored in InfluxDB.
//
// It deliberately carries no card token or UID; only low-cardinality
// decision tags and numeric fields reach the time-series store.
type CyclePoint struct {
	DoorID     string
	Decision   string
	Reason     string
	StatusCode int
	Latency    time.Duration
	Unlocked   bool
	At         time.Time
}

// WriteAccessCycle records a completed access cycle.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Tags: door_id, decision, reason
// Fields: auth_latency_ms, status_code, unlocked
//
// Example:
//
//	client.WriteAccessCycle(influxdb.CyclePoint{
//	    DoorID: "front-door", Decision: "permitted", Reason: "permitted",
//	    StatusCode: 200, Latency: 42 * time.Millisecond, Unlocked: true,
//	})
func (c *Client) WriteAccessCycle(p CyclePoint) {
	if !c.IsConnected() {
		return
	}

	at := p.At
	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(
		MeasurementAccessCycle,
		map[string]string{
			"door_id":  p.DoorID,
			"decision": p.Decision,
			"reason":   p.Reason,
		},
		map[string]interface{}{
			"auth_latency_ms": float64(p.Latency) / float64(time.Millisecond),
			"status_code":     p.StatusCode,
			"unlocked":        p.Unlocked,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteDoorHealth records a periodic health sample for a door endpoint.
//
// Parameters:
//   - doorID: Door identifier
//   - linkUp: Whether the network link to the authorization service is up
//   - uptime: Time since the endpoint started
func (c *Client) WriteDoorHealth(doorID string, linkUp bool, uptime time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementDoorHealth,
		map[string]string{
			"door_id": doorID,
		},
		map[string]interface{}{
			"link_up":        linkUp,
			"uptime_seconds": uptime.Seconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
