package labfee

import (
	"time"

	"github.com/clinic/backend/internal/domain/labfee"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLineResponse represents one itemized order position in API responses
type OrderLineResponse struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	ToothPosition string          `json:"tooth_position,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// DerivedRowResponse represents one merged worksheet row in API responses
type DerivedRowResponse struct {
	RowID               string              `json:"row_id"`
	RecordID            *uuid.UUID          `json:"record_id,omitempty"`
	Date                time.Time           `json:"date"`
	PatientName         string              `json:"patient_name"`
	DoctorName          string              `json:"doctor_name"`
	LabName             string              `json:"lab_name"`
	TreatmentContent    string              `json:"treatment_content,omitempty"`
	Revenue             decimal.Decimal     `json:"revenue"`
	CurrentFee          decimal.Decimal     `json:"current_fee"`
	SelectedCategory    string              `json:"selected_category"`
	AvailableCategories []string            `json:"available_categories"`
	Reattributable      bool                `json:"reattributable"`
	Details             []OrderLineResponse `json:"details"`
	Discount            decimal.Decimal     `json:"discount"`
	Note                string              `json:"note,omitempty"`
	Dirty               bool                `json:"dirty"`
}

// TechnicianRecordResponse represents a technician record in API responses
type TechnicianRecordResponse struct {
	ID               uuid.UUID           `json:"id"`
	ClinicID         uuid.UUID           `json:"clinic_id"`
	LabName          string              `json:"lab_name"`
	Date             time.Time           `json:"date"`
	Kind             string              `json:"kind"`
	LinkedRowID      *string             `json:"linked_row_id,omitempty"`
	Amount           decimal.Decimal     `json:"amount"`
	Category         string              `json:"category"`
	Details          []OrderLineResponse `json:"details"`
	Discount         decimal.Decimal     `json:"discount"`
	PatientName      string              `json:"patient_name"`
	DoctorName       string              `json:"doctor_name,omitempty"`
	TreatmentContent string              `json:"treatment_content,omitempty"`
	Note             string              `json:"note,omitempty"`
	AttachmentURLs   string              `json:"attachment_urls,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Version          int                 `json:"version"`
}

// TotalsResponse carries the worksheet's running sums
type TotalsResponse struct {
	Linked decimal.Decimal `json:"linked"`
	Manual decimal.Decimal `json:"manual"`
	Grand  decimal.Decimal `json:"grand"`
}

// WorksheetResponse is the full derived view returned to the UI
type WorksheetResponse struct {
	Month   string                     `json:"month"`
	LabName string                     `json:"lab_name"`
	Rows    []DerivedRowResponse       `json:"rows"`
	Manual  []TechnicianRecordResponse `json:"manual"`
	Orphans []TechnicianRecordResponse `json:"orphans,omitempty"`
	Totals  TotalsResponse             `json:"totals"`
}

// Row save outcome statuses
const (
	OutcomeSaved    = "SAVED"
	OutcomeRejected = "REJECTED"
	OutcomeFailed   = "FAILED"
)

// RowOutcome reports how a single row fared during a batch category save
type RowOutcome struct {
	RowID  string `json:"row_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SaveCategoriesResponse is the result of a batch category save: the per-row
// outcomes plus the worksheet rebuilt from post-save store state.
type SaveCategoriesResponse struct {
	Outcomes  []RowOutcome      `json:"outcomes"`
	Worksheet WorksheetResponse `json:"worksheet"`
}

// ManualRecordResponse is the result of a manual record create: the stored
// record plus the record's worksheet remerged with it.
type ManualRecordResponse struct {
	Record    TechnicianRecordResponse `json:"record"`
	Worksheet WorksheetResponse        `json:"worksheet"`
}

// LabSummary aggregates one laboratory's monthly payables
type LabSummary struct {
	LabName string          `json:"lab_name"`
	Linked  decimal.Decimal `json:"linked"`
	Manual  decimal.Decimal `json:"manual"`
	Total   decimal.Decimal `json:"total"`
}

// MonthlySummaryResponse is the per-laboratory breakdown for one month
type MonthlySummaryResponse struct {
	Month       string         `json:"month"`
	Labs        []LabSummary   `json:"labs"`
	Totals      TotalsResponse `json:"totals"`
	OrphanCount int            `json:"orphan_count"`
}

func toWorksheetResponse(w *Worksheet) WorksheetResponse {
	rows := make([]DerivedRowResponse, len(w.Rows))
	for i := range w.Rows {
		rows[i] = toDerivedRowResponse(&w.Rows[i])
	}
	manual := make([]TechnicianRecordResponse, len(w.Manual))
	for i := range w.Manual {
		manual[i] = *toTechnicianRecordResponse(&w.Manual[i])
	}
	var orphans []TechnicianRecordResponse
	for i := range w.Orphans {
		orphans = append(orphans, *toTechnicianRecordResponse(&w.Orphans[i]))
	}
	return WorksheetResponse{
		Month:   w.Month.String(),
		LabName: w.LabName,
		Rows:    rows,
		Manual:  manual,
		Orphans: orphans,
		Totals:  toTotalsResponse(w.Totals),
	}
}

func toDerivedRowResponse(r *labfee.DerivedRow) DerivedRowResponse {
	available := make([]string, len(r.AvailableCategories))
	for i, c := range r.AvailableCategories {
		available[i] = c.String()
	}
	return DerivedRowResponse{
		RowID:               r.Transaction.ID,
		RecordID:            r.RecordID,
		Date:                r.Transaction.Date,
		PatientName:         r.Transaction.PatientName,
		DoctorName:          r.Transaction.DoctorName,
		LabName:             r.Transaction.LabName,
		TreatmentContent:    r.Transaction.TreatmentContent,
		Revenue:             r.Transaction.Revenue,
		CurrentFee:          r.CurrentFee,
		SelectedCategory:    r.SelectedCategory.String(),
		AvailableCategories: available,
		Reattributable:      r.SelectedCategory.IsReattributable(),
		Details:             toOrderLineResponses(r.Details),
		Discount:            r.Discount,
		Note:                r.Note,
		Dirty:               r.Dirty,
	}
}

func toTechnicianRecordResponse(rec *labfee.TechnicianRecord) *TechnicianRecordResponse {
	return &TechnicianRecordResponse{
		ID:               rec.ID,
		ClinicID:         rec.ClinicID,
		LabName:          rec.LabName,
		Date:             rec.Date,
		Kind:             rec.Kind.String(),
		LinkedRowID:      rec.LinkedRowID,
		Amount:           rec.Amount,
		Category:         rec.Category.String(),
		Details:          toOrderLineResponses(rec.Details),
		Discount:         rec.Discount,
		PatientName:      rec.PatientName,
		DoctorName:       rec.DoctorName,
		TreatmentContent: rec.TreatmentContent,
		Note:             rec.Note,
		AttachmentURLs:   rec.AttachmentURLs,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
		Version:          rec.Version,
	}
}

func toOrderLineResponses(lines labfee.OrderLines) []OrderLineResponse {
	out := make([]OrderLineResponse, len(lines))
	for i, l := range lines {
		out[i] = OrderLineResponse{
			ID:            l.ID,
			Name:          l.Name,
			ToothPosition: l.ToothPosition,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			Subtotal:      l.Subtotal(),
		}
	}
	return out
}

func toTotalsResponse(t labfee.Totals) TotalsResponse {
	return TotalsResponse{Linked: t.Linked, Manual: t.Manual, Grand: t.Grand}
}
