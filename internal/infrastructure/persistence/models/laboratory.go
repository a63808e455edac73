package models

import (
	"github.com/clinic/backend/internal/domain/laboratory"
)

// LaboratoryModel is the persistence model for the Laboratory aggregate root.
// The price list is embedded as a JSONB column: entries are valued only at
// order time and never queried independently.
type LaboratoryModel struct {
	ClinicAggregateModel
	Name           string                    `gorm:"type:varchar(100);not null;uniqueIndex:idx_laboratories_clinic_name,priority:2"`
	ContactPerson  string                    `gorm:"type:varchar(100)"`
	Phone          string                    `gorm:"type:varchar(50)"`
	Active         bool                      `gorm:"not null;default:true;index"`
	PricingEntries laboratory.PricingEntries `gorm:"type:jsonb;default:'[]'"`
}

// TableName returns the table name for GORM
func (LaboratoryModel) TableName() string {
	return "laboratories"
}

// ToDomain converts the persistence model to a domain Laboratory entity.
func (m *LaboratoryModel) ToDomain() *laboratory.Laboratory {
	lab := &laboratory.Laboratory{
		Name:           m.Name,
		ContactPerson:  m.ContactPerson,
		Phone:          m.Phone,
		Active:         m.Active,
		PricingEntries: m.PricingEntries,
	}
	if lab.PricingEntries == nil {
		lab.PricingEntries = laboratory.PricingEntries{}
	}
	m.PopulateClinicAggregateRoot(&lab.ClinicAggregateRoot)
	return lab
}

// FromDomain populates the persistence model from a domain Laboratory entity.
func (m *LaboratoryModel) FromDomain(lab *laboratory.Laboratory) {
	m.FromDomainClinicAggregateRoot(lab.ClinicAggregateRoot)
	m.Name = lab.Name
	m.ContactPerson = lab.ContactPerson
	m.Phone = lab.Phone
	m.Active = lab.Active
	m.PricingEntries = lab.PricingEntries
}

// LaboratoryModelFromDomain creates a new persistence model from a domain Laboratory.
func LaboratoryModelFromDomain(lab *laboratory.Laboratory) *LaboratoryModel {
	m := &LaboratoryModel{}
	m.FromDomain(lab)
	return m
}
