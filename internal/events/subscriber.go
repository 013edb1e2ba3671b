// Package events defines the event payloads published by the intake backend.
package events

import "time"

const (
	// TopicSubscriberEvents carries subscriber lifecycle events.
	TopicSubscriberEvents = "subscriber_events"
	// TypeSubscriberCreated is emitted once per persisted subscriber.
	TypeSubscriberCreated = "subscriber.created"
)

// SubscriberCreated represents the message emitted when a subscriber is stored.
type SubscriberCreated struct {
	EventID      string    `json:"event_id"`
	SubscriberID int64     `json:"subscriber_id"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	Version      string    `json:"version"`
}
