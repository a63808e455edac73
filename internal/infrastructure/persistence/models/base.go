package models

import (
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// ClinicAggregateModel provides common persistence fields for clinic-scoped aggregate roots.
type ClinicAggregateModel struct {
	AggregateModel
	ClinicID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainClinicAggregateRoot populates ClinicAggregateModel from domain ClinicAggregateRoot
func (m *ClinicAggregateModel) FromDomainClinicAggregateRoot(c shared.ClinicAggregateRoot) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.ClinicID = c.ClinicID
}

// PopulateClinicAggregateRoot populates a domain ClinicAggregateRoot from persistence model
func (m *ClinicAggregateModel) PopulateClinicAggregateRoot(c *shared.ClinicAggregateRoot) {
	c.BaseAggregateRoot.BaseEntity.ID = m.ID
	c.BaseAggregateRoot.BaseEntity.CreatedAt = m.CreatedAt
	c.BaseAggregateRoot.BaseEntity.UpdatedAt = m.UpdatedAt
	c.BaseAggregateRoot.Version = m.Version
	c.ClinicID = m.ClinicID
}
