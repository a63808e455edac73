package labfee

import (
	"github.com/clinic/backend/internal/domain/labfee"
	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Worksheet is the in-memory reconciliation view for one clinic month and
// laboratory filter. Rows start clean; changing a row's category marks it
// dirty, and a save writes the dirty rows back and rebuilds the worksheet
// from fresh store state, so rows return to clean only through persistence.
type Worksheet struct {
	ClinicID uuid.UUID
	Month    ledger.YearMonth
	LabName  string

	Rows    []labfee.DerivedRow
	Manual  []labfee.TechnicianRecord
	Orphans []labfee.TechnicianRecord
	Totals  labfee.Totals

	transactions []ledger.Transaction
}

// NewWorksheet merges the given ledger transactions and technician records
// into a worksheet. The transactions are retained so the worksheet can be
// rebuilt after a save without another ledger round-trip.
func NewWorksheet(clinicID uuid.UUID, month ledger.YearMonth, labName string, transactions []ledger.Transaction, records []labfee.TechnicianRecord) *Worksheet {
	w := &Worksheet{
		ClinicID:     clinicID,
		Month:        month,
		LabName:      labName,
		transactions: transactions,
	}
	w.apply(labfee.Merge(transactions, records, labName))
	return w
}

// Rebuild remerges the retained transactions against a fresh record set.
// All dirty marks are discarded: the store is the only source of truth after
// a save settles.
func (w *Worksheet) Rebuild(records []labfee.TechnicianRecord) {
	w.apply(labfee.Merge(w.transactions, records, w.LabName))
}

func (w *Worksheet) apply(result labfee.MergeResult) {
	w.Rows = result.Rows
	w.Manual = result.Manual
	w.Orphans = result.Orphans
	w.Totals = result.Totals
}

// Row finds a derived row by its ledger row ID
func (w *Worksheet) Row(rowID string) (*labfee.DerivedRow, bool) {
	for i := range w.Rows {
		if w.Rows[i].Transaction.ID == rowID {
			return &w.Rows[i], true
		}
	}
	return nil, false
}

// ChangeCategory records the operator picking a different billing category
// for a row. The pick must come from the row's available list; rows already
// classified as terminal carry no list and reject every change. A successful
// change marks the row dirty until the next save settles it.
func (w *Worksheet) ChangeCategory(rowID string, category ledger.BillingCategory) error {
	row, ok := w.Row(rowID)
	if !ok {
		return shared.ErrNotFound
	}
	if !category.IsValid() {
		return shared.NewValidationError("category", "is not a valid billing category")
	}
	if !row.SelectedCategory.IsReattributable() {
		return shared.NewDomainError("CATEGORY_LOCKED", "Row classification is terminal and cannot be changed")
	}
	if !containsCategory(row.AvailableCategories, category) {
		return shared.NewValidationError("category", "is not available for this row")
	}
	if row.SelectedCategory == category {
		return nil
	}
	row.SelectedCategory = category
	row.Dirty = true
	return nil
}

// DirtyRows returns the rows with unsaved category changes
func (w *Worksheet) DirtyRows() []*labfee.DerivedRow {
	var dirty []*labfee.DerivedRow
	for i := range w.Rows {
		if w.Rows[i].Dirty {
			dirty = append(dirty, &w.Rows[i])
		}
	}
	return dirty
}

// MarkDirty flags a row as carrying unsaved state. Used after a rebuild to
// keep rows whose write failed visibly unsettled.
func (w *Worksheet) MarkDirty(rowID string) {
	if row, ok := w.Row(rowID); ok {
		row.Dirty = true
	}
}

func containsCategory(categories []ledger.BillingCategory, c ledger.BillingCategory) bool {
	for _, existing := range categories {
		if existing == c {
			return true
		}
	}
	return false
}
