// Package events holds the event bus contract modules publish and
// subscribe through. Concrete event payloads live in internal/events.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName uniquely identifies the event type on the bus.
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent supplies the timestamp every event embeds.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to subscribed handlers.
type Bus interface {
	// Publish dispatches asynchronously; handler errors are logged by the bus.
	Publish(ctx context.Context, event Event)

	// PublishSync waits for all handlers and surfaces the first error.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the event's EventName.
	Subscribe(eventName string, handler Handler)
}
