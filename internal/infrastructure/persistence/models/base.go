package models

import (
	"time"

	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel holds the identity columns present on every table.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (m *BaseModel) toEntity() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func (m *BaseModel) fromEntity(e shared.BaseEntity) {
	*m = BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

// AggregateModel adds the optimistic-lock column. Loading an aggregate
// records the stored version as the baseline for the next conditional
// update.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

func (m *AggregateModel) toAggregate(a *shared.BaseAggregateRoot) {
	a.BaseEntity = m.toEntity()
	a.Version = m.Version
	a.SetPersistedVersion(m.Version)
}

func (m *AggregateModel) fromAggregate(a shared.BaseAggregateRoot) {
	m.fromEntity(a.BaseEntity)
	m.Version = a.Version
}
