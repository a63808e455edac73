package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RetailAmounts holds the retail portion of a visit. Retail sales are never
// billed to a laboratory; any positive retail amount forces the vault
// classification.
type RetailAmounts struct {
	Products     decimal.Decimal `json:"products"`
	DIYWhitening decimal.Decimal `json:"diy_whitening"`
}

// Total returns the combined retail amount
func (r RetailAmounts) Total() decimal.Decimal {
	return r.Products.Add(r.DIYWhitening)
}

// Transaction is one daily ledger row for a patient visit. The ledger is
// owned by the practice-management system: rows are read-only to this
// service and identity is the external ID string.
type Transaction struct {
	ID               string                              `json:"id"`
	Date             time.Time                           `json:"date"`
	ClinicID         uuid.UUID                           `json:"clinic_id"`
	PatientName      string                              `json:"patient_name"`
	DoctorName       string                              `json:"doctor_name"`
	LabName          string                              `json:"lab_name"` // empty when no lab is involved
	TreatmentAmounts map[BillingCategory]decimal.Decimal `json:"treatment_amounts"`
	RetailAmounts    RetailAmounts                       `json:"retail_amounts"`
	Revenue          decimal.Decimal                     `json:"revenue"` // collected for the visit, base for percentage pricing
	TreatmentContent string                              `json:"treatment_content"`
}

// HasLab reports whether the visit involved a laboratory
func (t Transaction) HasLab() bool {
	return t.LabName != ""
}

// TreatmentAmount returns the amount recorded for a category (zero if absent)
func (t Transaction) TreatmentAmount(c BillingCategory) decimal.Decimal {
	if t.TreatmentAmounts == nil {
		return decimal.Zero
	}
	if v, ok := t.TreatmentAmounts[c]; ok {
		return v
	}
	return decimal.Zero
}

// HasRetail reports whether any retail amount was collected
func (t Transaction) HasRetail() bool {
	return t.RetailAmounts.Total().IsPositive()
}
