package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by an aggregate during a transition.
// Events are published after the transaction that produced them commits.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// BaseDomainEvent carries the envelope every commerce event shares
type BaseDomainEvent struct {
	ID         uuid.UUID `json:"event_id"`
	Type       string    `json:"event_type"`
	RecordedAt time.Time `json:"occurred_at"`
	Aggregate  struct {
		ID   uuid.UUID `json:"id"`
		Type string    `json:"type"`
	} `json:"aggregate"`
}

// NewBaseDomainEvent stamps a new event for the given aggregate
func NewBaseDomainEvent(eventType, aggType string, aggID uuid.UUID) BaseDomainEvent {
	e := BaseDomainEvent{ID: uuid.New(), Type: eventType, RecordedAt: time.Now().UTC()}
	e.Aggregate.ID = aggID
	e.Aggregate.Type = aggType
	return e
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.RecordedAt }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate.ID }
func (e *BaseDomainEvent) AggregateType() string  { return e.Aggregate.Type }

// EventHandler reacts to published events. An empty EventTypes means all.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher is what the document service depends on
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is a publisher that handlers can subscribe to
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
}
