// Package pubsub provides a generic publish/subscribe event system.
// It backs the resource change feed and the log stream.
package pubsub

import (
	"context"
	"time"
)

// EventType names what happened to the payload's subject.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
)

// Event represents a published event with a typed payload.
// Seq starts at 1 and grows by one per Publish on the same broker, so a
// subscriber can tell from a gap that it missed events.
type Event[T any] struct {
	Seq       uint64
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload. Publish reports
// how many subscribers received the event.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T) int
}
