package ledger

// BillingCategory classifies a visit for lab-fee reporting purposes.
// The set is closed: the engine never accepts free-form category strings.
type BillingCategory string

const (
	CategoryProsthodontics BillingCategory = "PROSTHODONTICS"
	CategoryImplant        BillingCategory = "IMPLANT"
	CategoryOrthodontics   BillingCategory = "ORTHODONTICS"
	CategorySOV            BillingCategory = "SOV"
	CategoryAligner        BillingCategory = "ALIGNER"
	CategoryPeriodontics   BillingCategory = "PERIODONTICS"
	CategorySelfPay        BillingCategory = "SELF_PAY"

	// CategoryVault is reserved for retail/consumable sales. Vault rows are
	// never billed to a laboratory and cannot be re-attributed.
	CategoryVault BillingCategory = "VAULT"
)

// TreatmentCategories is the canonical scan order for attribution.
// The order is fixed; attribution picks the first positive amount.
var TreatmentCategories = []BillingCategory{
	CategoryProsthodontics,
	CategoryImplant,
	CategoryOrthodontics,
	CategorySOV,
	CategoryAligner,
	CategoryPeriodontics,
	CategorySelfPay,
}

// IsValid checks if the category is a member of the closed set
func (c BillingCategory) IsValid() bool {
	switch c {
	case CategoryProsthodontics, CategoryImplant, CategoryOrthodontics,
		CategorySOV, CategoryAligner, CategoryPeriodontics,
		CategorySelfPay, CategoryVault:
		return true
	}
	return false
}

// String returns the string representation of the category
func (c BillingCategory) String() string {
	return string(c)
}

// IsReattributable returns false for terminal classifications.
// Vault is terminal: the operator gets no category dropdown for it.
func (c BillingCategory) IsReattributable() bool {
	return c != CategoryVault
}
