package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and audit timestamps. Rooms, student profiles
// and payments embed it directly.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity stamps a fresh identity with both timestamps set to now.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// BaseAggregateRoot is embedded by aggregates saved under optimistic
// locking. Version counts committed mutations and starts at 1.
//
// Any number of in-memory mutations may happen between load and save;
// the repository compares against persistedVersion, not Version-1.
type BaseAggregateRoot struct {
	BaseEntity
	Version int

	persistedVersion int
	pending          []DomainEvent
}

func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

func (a *BaseAggregateRoot) GetVersion() int { return a.Version }

func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

// PersistedVersion is the version stored in the database as of the last
// load or save.
func (a *BaseAggregateRoot) PersistedVersion() int { return a.persistedVersion }

func (a *BaseAggregateRoot) SetPersistedVersion(v int) { a.persistedVersion = v }

// AddDomainEvent queues evt until the aggregate is saved.
func (a *BaseAggregateRoot) AddDomainEvent(evt DomainEvent) {
	a.pending = append(a.pending, evt)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.pending }

func (a *BaseAggregateRoot) ClearDomainEvents() { a.pending = nil }
