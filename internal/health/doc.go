// Package health publishes the door endpoint's health to MQTT.
//
// A Reporter publishes a retained JSON message on
// graylogic/access/{door}/health at a fixed interval (30s by default) and a
// final "stopping" message on shutdown. Monitoring combines it with the
// retained online/offline status the MQTT client maintains through its
// Last Will.
//
// Status is "healthy" unless:
//   - the network link to the authorization service is down
//   - the strike reported a fault since the previous report
//   - every poll since the previous report failed at the reader
//
// in which case it is "degraded" with a reason.
package health
