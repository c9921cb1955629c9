package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity holds identity and audit timestamps. UpdatedAt is the server
// timestamp that edit-session drafts are compared against.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity returns an entity with a fresh ID, created now
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch moves UpdatedAt forward
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// AggregateRoot is a document that raises events and is written under a version check
type AggregateRoot interface {
	IncrementVersion()
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot carries the version a document was read at and the
// events raised since. Version starts at 1 and moves only through
// IncrementVersion after a successful conditional write.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	events  []DomainEvent
}

// NewBaseAggregateRoot returns a new aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent queues an event for publication after commit
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.events
}

func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.events = nil
}
