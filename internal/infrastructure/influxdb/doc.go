// Package influxdb provides InfluxDB connectivity for access cycle history.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched writes and health monitoring.
//
// # Purpose
//
// Each completed access cycle is written as an "access_cycle" point tagged
// by door, decision and reason, with the authorization latency, HTTP status
// and whether the strike was released as fields. Periodic "door_health"
// points record link state and uptime. Card tokens are never written.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAccessCycle(influxdb.CyclePoint{DoorID: "front-door", Decision: "denied", Reason: "not_found"})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback (see SetOnError). Connection and health check errors are
// returned directly.
package influxdb
