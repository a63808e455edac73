package labfee

import (
	"time"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordKind distinguishes ledger-linked payment records from manual
// adjustments entered directly by an operator.
type RecordKind string

const (
	// KindLinked ties the record to exactly one ledger transaction.
	KindLinked RecordKind = "LINKED"
	// KindManual has no ledger counterpart.
	KindManual RecordKind = "MANUAL"
)

// IsValid checks if the kind is a valid RecordKind
func (k RecordKind) IsValid() bool {
	return k == KindLinked || k == KindManual
}

// String returns the string representation of RecordKind
func (k RecordKind) String() string {
	return string(k)
}

// TechnicianRecord is the engine-owned payment record for one piece of lab
// work. Linked records mirror a ledger transaction and are never deleted,
// only superseded by resaving; manual records stand alone and may be
// removed. At most one linked record exists per (clinic, linked row) pair.
type TechnicianRecord struct {
	shared.ClinicAggregateRoot
	LabName          string                 `json:"lab_name"`
	Date             time.Time              `json:"date"`
	Kind             RecordKind             `json:"kind"`
	LinkedRowID      *string                `json:"linked_row_id,omitempty"`
	Amount           decimal.Decimal        `json:"amount"` // net payable, already net of discount
	Category         ledger.BillingCategory `json:"category"`
	Details          OrderLines             `json:"details"`
	Discount         decimal.Decimal        `json:"discount"`
	PatientName      string                 `json:"patient_name"`
	DoctorName       string                 `json:"doctor_name"`
	TreatmentContent string                 `json:"treatment_content"`
	Note             string                 `json:"note"`
	AttachmentURLs   string                 `json:"attachment_urls"`
}

// NewLinkedRecord creates a payment record tied to a ledger transaction.
// The caller supplies the record ID: the orchestrator re-resolves identity
// before every write (reuse the existing linked record's ID, else mint new).
func NewLinkedRecord(id, clinicID uuid.UUID, tx ledger.Transaction, category ledger.BillingCategory) (*TechnicianRecord, error) {
	if id == uuid.Nil {
		return nil, shared.NewValidationError("id", "cannot be empty")
	}
	if tx.ID == "" {
		return nil, shared.NewValidationError("linked_row_id", "cannot be empty")
	}
	if !tx.HasLab() {
		return nil, shared.NewValidationError("lab_name", "linked transaction has no laboratory")
	}
	if !category.IsValid() {
		return nil, shared.NewValidationError("category", "is not a valid billing category")
	}
	rowID := tx.ID
	return &TechnicianRecord{
		ClinicAggregateRoot: shared.NewClinicAggregateRootWithID(clinicID, id),
		LabName:             tx.LabName,
		Date:                tx.Date,
		Kind:                KindLinked,
		LinkedRowID:         &rowID,
		Amount:              decimal.Zero,
		Category:            category,
		Details:             OrderLines{},
		Discount:            decimal.Zero,
		PatientName:         tx.PatientName,
		DoctorName:          tx.DoctorName,
		TreatmentContent:    tx.TreatmentContent,
	}, nil
}

// ManualRecordInput carries the operator-entered fields for a manual record
type ManualRecordInput struct {
	LabName     string
	Date        time.Time
	Amount      decimal.Decimal
	Category    ledger.BillingCategory
	PatientName string
	DoctorName  string
	Note        string
}

// NewManualRecord creates a standalone adjustment record. Manual records
// must name a concrete laboratory; they cannot be created from the
// aggregate "all labs" view.
func NewManualRecord(clinicID uuid.UUID, in ManualRecordInput) (*TechnicianRecord, error) {
	if in.LabName == "" {
		return nil, shared.NewValidationError("lab_name", "a concrete laboratory must be selected")
	}
	if in.Date.IsZero() {
		return nil, shared.NewValidationError("date", "cannot be empty")
	}
	if in.Amount.IsZero() {
		return nil, shared.NewValidationError("amount", "cannot be empty")
	}
	if !in.Category.IsValid() {
		return nil, shared.NewValidationError("category", "is not a valid billing category")
	}
	if in.PatientName == "" {
		return nil, shared.NewValidationError("patient_name", "cannot be empty")
	}
	return &TechnicianRecord{
		ClinicAggregateRoot: shared.NewClinicAggregateRoot(clinicID),
		LabName:             in.LabName,
		Date:                in.Date,
		Kind:                KindManual,
		Amount:              in.Amount,
		Category:            in.Category,
		Details:             OrderLines{},
		Discount:            decimal.Zero,
		PatientName:         in.PatientName,
		DoctorName:          in.DoctorName,
		Note:                in.Note,
	}, nil
}

// SetCategory records the operator's explicit attribution choice. The saved
// category always wins over derived attribution on later merges.
func (r *TechnicianRecord) SetCategory(c ledger.BillingCategory) error {
	if !c.IsValid() {
		return shared.NewValidationError("category", "is not a valid billing category")
	}
	r.Category = c
	r.touch()
	return nil
}

// ApplyOrder replaces the record's itemization with the given lines and
// discount and recomputes the net amount. Resaving a linked record with zero
// lines supersedes the previous order; the record itself is kept.
func (r *TechnicianRecord) ApplyOrder(lines OrderLines, discount decimal.Decimal) error {
	if discount.IsNegative() {
		return shared.NewValidationError("discount", "cannot be negative")
	}
	if lines == nil {
		lines = OrderLines{}
	}
	r.Details = lines
	r.Discount = discount
	r.Amount = CalculateNetTotal(lines, discount)
	r.touch()
	return nil
}

// SetAmount sets a simple net fee with no itemization
func (r *TechnicianRecord) SetAmount(amount decimal.Decimal) {
	r.Amount = amount
	r.Details = OrderLines{}
	r.Discount = decimal.Zero
	r.touch()
}

// SetNote sets the free-text note
func (r *TechnicianRecord) SetNote(note string) {
	r.Note = note
	r.touch()
}

// SetAttachmentURLs sets the comma-separated attachment URL list
func (r *TechnicianRecord) SetAttachmentURLs(urls string) {
	r.AttachmentURLs = urls
	r.touch()
}

// IsLinked reports whether the record mirrors a ledger transaction
func (r *TechnicianRecord) IsLinked() bool {
	return r.Kind == KindLinked
}

// IsManual reports whether the record is a standalone adjustment
func (r *TechnicianRecord) IsManual() bool {
	return r.Kind == KindManual
}

// IsDeletable reports whether explicit deletion is allowed. Linked records
// are only ever superseded, never deleted.
func (r *TechnicianRecord) IsDeletable() bool {
	return r.Kind == KindManual
}

// HasItemizedOrder reports whether the record carries order lines
func (r *TechnicianRecord) HasItemizedOrder() bool {
	return len(r.Details) > 0
}

func (r *TechnicianRecord) touch() {
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
}
