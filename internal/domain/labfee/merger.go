package labfee

import (
	"sort"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllLaboratories selects the aggregate view across every laboratory
const AllLaboratories = "ALL"

// IsAllLaboratories reports whether the filter requests the aggregate view
func IsAllLaboratories(labName string) bool {
	return labName == "" || labName == AllLaboratories
}

// DerivedRow is the ephemeral union of one ledger transaction and its
// matching technician record. It is recomputed on every merge, never
// persisted; the UI reads and mutates it locally before a save commits the
// change back through the technician record.
type DerivedRow struct {
	Transaction         ledger.Transaction
	RecordID            *uuid.UUID
	CurrentFee          decimal.Decimal
	SelectedCategory    ledger.BillingCategory
	AvailableCategories []ledger.BillingCategory
	Details             OrderLines
	Discount            decimal.Decimal
	Note                string
	Dirty               bool
}

// HasRecord reports whether a persisted technician record backs this row
func (r DerivedRow) HasRecord() bool {
	return r.RecordID != nil
}

// Totals are the three running sums shown above the worksheet. They are
// recomputed fresh on every merge and never cached.
type Totals struct {
	Linked decimal.Decimal `json:"linked"`
	Manual decimal.Decimal `json:"manual"`
	Grand  decimal.Decimal `json:"grand"`
}

// MergeResult is the full derived view for one clinic month
type MergeResult struct {
	Rows   []DerivedRow
	Manual []TechnicianRecord
	// Orphans are linked records whose underlying ledger transaction no
	// longer appears in the fetch (date reassigned upstream, for example).
	// They are surfaced only on the aggregate view and never deleted.
	Orphans []TechnicianRecord
	Totals  Totals
}

// Merge joins ledger transactions with persisted technician records into
// the derived worksheet view. It is a pure function: inputs are never
// mutated and merging the same pair twice yields identical output.
func Merge(transactions []ledger.Transaction, records []TechnicianRecord, labName string) MergeResult {
	allLabs := IsAllLaboratories(labName)

	linkedByRow := make(map[string]*TechnicianRecord)
	var manual []TechnicianRecord
	for i := range records {
		rec := records[i]
		switch rec.Kind {
		case KindLinked:
			if rec.LinkedRowID != nil {
				linkedByRow[*rec.LinkedRowID] = &records[i]
			}
		case KindManual:
			if allLabs || rec.LabName == labName {
				manual = append(manual, rec)
			}
		}
	}

	rows := make([]DerivedRow, 0, len(transactions))
	seen := make(map[string]struct{}, len(transactions))
	for _, tx := range transactions {
		if !tx.HasLab() {
			continue
		}
		if !allLabs && tx.LabName != labName {
			continue
		}
		seen[tx.ID] = struct{}{}

		row := DerivedRow{
			Transaction: tx,
			CurrentFee:  decimal.Zero,
			Details:     OrderLines{},
			Discount:    decimal.Zero,
		}

		var saved *ledger.BillingCategory
		if rec, ok := linkedByRow[tx.ID]; ok {
			id := rec.ID
			row.RecordID = &id
			row.CurrentFee = rec.Amount
			row.Details = append(OrderLines{}, rec.Details...)
			row.Discount = rec.Discount
			row.Note = rec.Note
			cat := rec.Category
			saved = &cat
		}

		attr := ResolveAttribution(tx, saved)
		row.SelectedCategory = attr.Selected
		row.AvailableCategories = attr.Available

		rows = append(rows, row)
	}

	// Stable sort keeps the original ledger order for same-day visits.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Transaction.Date.Before(rows[j].Transaction.Date)
	})

	var orphans []TechnicianRecord
	if allLabs {
		for _, rec := range records {
			if rec.Kind != KindLinked || rec.LinkedRowID == nil {
				continue
			}
			if _, ok := seen[*rec.LinkedRowID]; !ok {
				orphans = append(orphans, rec)
			}
		}
	}

	return MergeResult{
		Rows:    rows,
		Manual:  manual,
		Orphans: orphans,
		Totals:  computeTotals(rows, manual),
	}
}

func computeTotals(rows []DerivedRow, manual []TechnicianRecord) Totals {
	linked := decimal.Zero
	for _, r := range rows {
		linked = linked.Add(r.CurrentFee)
	}
	manualTotal := decimal.Zero
	for _, m := range manual {
		manualTotal = manualTotal.Add(m.Amount)
	}
	return Totals{
		Linked: linked,
		Manual: manualTotal,
		Grand:  linked.Add(manualTotal),
	}
}
