// Package events defines the envelope published to NATS for conversation
// lifecycle notifications.
package events

import "time"

// Event is the contract every published notification satisfies.
type Event interface {
	// EventType returns the unique subject suffix (e.g. "chat.session_started").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent carries the common fields; concrete constructors in this package
// build one per lifecycle moment.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
