package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version int `gorm:"not null;default:1"`
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// ClinicAggregateRoot extends BaseAggregateRoot with clinic scoping.
// Every persisted record in the back office belongs to exactly one clinic.
type ClinicAggregateRoot struct {
	BaseAggregateRoot
	ClinicID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// NewClinicAggregateRoot creates a new clinic-scoped aggregate root
func NewClinicAggregateRoot(clinicID uuid.UUID) ClinicAggregateRoot {
	return ClinicAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		ClinicID:          clinicID,
	}
}

// NewClinicAggregateRootWithID creates a clinic-scoped aggregate root with a
// caller-supplied ID (identity reuse on upsert).
func NewClinicAggregateRootWithID(clinicID, id uuid.UUID) ClinicAggregateRoot {
	return ClinicAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{
			BaseEntity: NewBaseEntityWithID(id),
			Version:    1,
		},
		ClinicID: clinicID,
	}
}
