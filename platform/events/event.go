// Package events defines the event contract the outbox worker uses to hand
// lead lifecycle events to the automation engine. It is platform plumbing
// and knows nothing about leads or rules.
package events

import (
	"context"
	"time"
)

// Event is what travels over the bus. EventName doubles as the outbox
// event_name column and the subscription key.
type Event interface {
	// EventName returns the stable name the event is subscribed under.
	EventName() string
	// OccurredAt returns when the originating mutation happened.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp every concrete event embeds.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns the embedded timestamp.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events published under a subscribed name.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle invokes the wrapped function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus delivers lead lifecycle events to their subscribed consumers. Delivery
// is synchronous: the outbox worker must observe handler failures so it can
// retry the row.
type Bus interface {
	// PublishSync hands the event to every handler subscribed to its name
	// and waits for all of them to complete.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for one event name, as returned by
	// Event.EventName().
	Subscribe(eventName string, handler Handler)
}
