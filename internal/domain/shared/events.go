package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate after a committed change.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// BaseDomainEvent is embedded by concrete events; its fields are
// serialized next to the event payload.
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"event_id"`
	Type      string    `json:"event_type"`
	Timestamp time.Time `json:"occurred_at"`
	Aggregate string    `json:"aggregate_type"`
	SourceID  uuid.UUID `json:"aggregate_id"`
}

func NewBaseDomainEvent(eventType, aggregate string, sourceID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Aggregate: aggregate,
		SourceID:  sourceID,
	}
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.SourceID }
func (e *BaseDomainEvent) AggregateType() string  { return e.Aggregate }

// EventPublisher hands committed events to subscribers. Services publish
// only after the surrounding transaction has committed.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventHandler reacts to published events. A handler returning no event
// types is subscribed to everything.
type EventHandler interface {
	Handle(ctx context.Context, evt DomainEvent) error
	EventTypes() []string
}

// EventBus is a publisher that manages its own subscriptions and lifecycle.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
