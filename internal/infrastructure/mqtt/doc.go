// Package mqtt provides MQTT client connectivity for the access endpoint.
//
// This package manages:
//   - Connection to the site broker with auto-reconnect
//   - Publishing decision events, strike state and health
//   - Topic subscriptions (the bench reader listens for injected UIDs)
//   - Last Will and Testament (LWT) so monitoring sees the door go offline
//
// # Topics
//
// Every topic is scoped to the door:
//
//	graylogic/access/{door}/status           retained online/offline + LWT
//	graylogic/access/{door}/event/decision   one event per presented card
//	graylogic/access/{door}/state/strike     retained locked/unlocked
//	graylogic/access/{door}/health           retained health report
//	graylogic/access/{door}/bench/card       bench reader input
//
// MQTT is an observability channel only. A broker outage never affects an
// access decision; publishers log and carry on.
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) when the broker is not on the device
//   - Events carry the token per the privacy policy, never the raw UID
//   - The bench topic must be ACL-restricted on production brokers
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.DoorID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishJSON(mqtt.Topics{}.StrikeState(door), state, true)
package mqtt
