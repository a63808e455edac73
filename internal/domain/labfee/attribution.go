package labfee

import (
	"github.com/clinic/backend/internal/domain/ledger"
)

// Attribution is the derived billing classification for one ledger row
type Attribution struct {
	Selected ledger.BillingCategory
	// Available lists the categories the operator may re-pick from, in
	// canonical order. Empty for terminal classifications.
	Available []ledger.BillingCategory
}

// IsReattributable reports whether the operator gets a category dropdown
func (a Attribution) IsReattributable() bool {
	return a.Selected.IsReattributable()
}

// ResolveAttribution derives the billing category for a ledger transaction.
// Priority, first match wins:
//  1. a previously saved category (the operator's explicit choice)
//  2. any positive retail amount forces the terminal vault classification
//  3. the first positive treatment amount in canonical category order
//  4. fallback to other-self-pay
func ResolveAttribution(tx ledger.Transaction, saved *ledger.BillingCategory) Attribution {
	available := positiveTreatmentCategories(tx)

	if saved != nil && saved.IsValid() {
		if *saved == ledger.CategoryVault {
			return Attribution{Selected: ledger.CategoryVault}
		}
		return Attribution{
			Selected:  *saved,
			Available: withCategory(available, *saved),
		}
	}

	if tx.HasRetail() {
		return Attribution{Selected: ledger.CategoryVault}
	}

	if len(available) > 0 {
		return Attribution{Selected: available[0], Available: available}
	}

	return Attribution{
		Selected:  ledger.CategorySelfPay,
		Available: []ledger.BillingCategory{ledger.CategorySelfPay},
	}
}

// positiveTreatmentCategories scans the treatment amounts in canonical order
func positiveTreatmentCategories(tx ledger.Transaction) []ledger.BillingCategory {
	var out []ledger.BillingCategory
	for _, c := range ledger.TreatmentCategories {
		if tx.TreatmentAmount(c).IsPositive() {
			out = append(out, c)
		}
	}
	return out
}

// withCategory ensures the saved choice stays pickable even when its
// treatment amount is no longer positive
func withCategory(categories []ledger.BillingCategory, c ledger.BillingCategory) []ledger.BillingCategory {
	for _, existing := range categories {
		if existing == c {
			return categories
		}
	}
	return append(categories, c)
}
