// Package telemetry turns access cycle outcomes into logs, MQTT events,
// InfluxDB points and Prometheus metrics.
//
// Every sink is an access.Observer. They run after the decision has been
// made and the strike has been driven, usually behind an access.Dispatcher,
// so a slow broker or database never delays the door.
//
// Tokens reach logs and MQTT events only as the configured
// pseudonym.Exposure allows. InfluxDB points and Prometheus metrics never
// carry a token in any form.
package telemetry
