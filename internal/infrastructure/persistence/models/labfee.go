package models

import (
	"time"

	"github.com/clinic/backend/internal/domain/labfee"
	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// TechnicianRecordModel is the persistence model for the TechnicianRecord aggregate root.
// At most one linked record exists per (clinic, linked row) pair, enforced by
// a partial unique index created in the migrations.
type TechnicianRecordModel struct {
	ClinicAggregateModel
	LabName          string                 `gorm:"type:varchar(100);not null;index:idx_technician_records_clinic_lab"`
	RecordDate       time.Time              `gorm:"not null;index:idx_technician_records_clinic_date"`
	Kind             labfee.RecordKind      `gorm:"type:varchar(10);not null;index"`
	LinkedRowID      *string                `gorm:"type:varchar(100);index"`
	Amount           decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	Category         ledger.BillingCategory `gorm:"type:varchar(30);not null"`
	Details          labfee.OrderLines      `gorm:"type:jsonb;default:'[]'"`
	Discount         decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	PatientName      string                 `gorm:"type:varchar(200)"`
	DoctorName       string                 `gorm:"type:varchar(200)"`
	TreatmentContent string                 `gorm:"type:text"`
	Note             string                 `gorm:"type:text"`
	AttachmentURLs   string                 `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (TechnicianRecordModel) TableName() string {
	return "technician_records"
}

// ToDomain converts the persistence model to a domain TechnicianRecord entity.
func (m *TechnicianRecordModel) ToDomain() *labfee.TechnicianRecord {
	r := &labfee.TechnicianRecord{
		LabName:          m.LabName,
		Date:             m.RecordDate,
		Kind:             m.Kind,
		LinkedRowID:      m.LinkedRowID,
		Amount:           m.Amount,
		Category:         m.Category,
		Details:          m.Details,
		Discount:         m.Discount,
		PatientName:      m.PatientName,
		DoctorName:       m.DoctorName,
		TreatmentContent: m.TreatmentContent,
		Note:             m.Note,
		AttachmentURLs:   m.AttachmentURLs,
	}
	if r.Details == nil {
		r.Details = labfee.OrderLines{}
	}
	m.PopulateClinicAggregateRoot(&r.ClinicAggregateRoot)
	return r
}

// FromDomain populates the persistence model from a domain TechnicianRecord entity.
func (m *TechnicianRecordModel) FromDomain(r *labfee.TechnicianRecord) {
	m.FromDomainClinicAggregateRoot(r.ClinicAggregateRoot)
	m.LabName = r.LabName
	m.RecordDate = r.Date
	m.Kind = r.Kind
	m.LinkedRowID = r.LinkedRowID
	m.Amount = r.Amount
	m.Category = r.Category
	m.Details = r.Details
	m.Discount = r.Discount
	m.PatientName = r.PatientName
	m.DoctorName = r.DoctorName
	m.TreatmentContent = r.TreatmentContent
	m.Note = r.Note
	m.AttachmentURLs = r.AttachmentURLs
}

// TechnicianRecordModelFromDomain creates a new persistence model from a domain TechnicianRecord.
func TechnicianRecordModelFromDomain(r *labfee.TechnicianRecord) *TechnicianRecordModel {
	m := &TechnicianRecordModel{}
	m.FromDomain(r)
	return m
}
