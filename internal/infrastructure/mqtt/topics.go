package mqtt

import "fmt"

// TopicPrefix is the root of every access endpoint topic.
//
// Per-door scheme: graylogic/access/{door_id}/{category}[/{name}]
const TopicPrefix = "graylogic/access"

// Topics provides builders for access endpoint MQTT topics.
// Using these helpers keeps topic naming consistent across publishers and
// subscribers.
//
//	topics := mqtt.Topics{}
//	topics.DecisionEvent("front-door")
//	// Returns: "graylogic/access/front-door/event/decision"
type Topics struct{}

// Status returns the retained online/offline topic for a door endpoint.
// The broker publishes the Last Will here on unexpected disconnect.
//
// Example: graylogic/access/front-door/status
func (Topics) Status(doorID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, doorID)
}

// DecisionEvent returns the topic for access decision events.
//
// Example: graylogic/access/front-door/event/decision
func (Topics) DecisionEvent(doorID string) string {
	return fmt.Sprintf("%s/%s/event/decision", TopicPrefix, doorID)
}

// StrikeState returns the retained strike state topic.
//
// Example: graylogic/access/front-door/state/strike
func (Topics) StrikeState(doorID string) string {
	return fmt.Sprintf("%s/%s/state/strike", TopicPrefix, doorID)
}

// Health returns the retained health topic.
//
// Example: graylogic/access/front-door/health
func (Topics) Health(doorID string) string {
	return fmt.Sprintf("%s/%s/health", TopicPrefix, doorID)
}

// BenchCard returns the topic bench rigs publish hex UIDs to.
//
// Example: graylogic/access/front-door/bench/card
func (Topics) BenchCard(doorID string) string {
	return fmt.Sprintf("%s/%s/bench/card", TopicPrefix, doorID)
}

// AllDecisionEvents matches decision events from every door.
//
// Pattern: graylogic/access/+/event/decision
func (Topics) AllDecisionEvents() string {
	return TopicPrefix + "/+/event/decision"
}

// AllHealth matches health from every door.
//
// Pattern: graylogic/access/+/health
func (Topics) AllHealth() string {
	return TopicPrefix + "/+/health"
}

// AllTopics matches everything under the access prefix.
//
// Pattern: graylogic/access/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
