package laboratory

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// PricingEntry is one item on a laboratory's price list. Fixed entries carry
// a currency price; percentage entries carry a 0-100 rate resolved against a
// visit's revenue at selection time.
type PricingEntry struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	IsPercentage bool            `json:"is_percentage"`
}

// ResolveUnitPrice computes the unit price for this entry. Percentage
// entries are resolved with round-half-up and the result is a snapshot:
// later changes to the rate or to the revenue never reprice existing order
// lines.
func (e PricingEntry) ResolveUnitPrice(revenue decimal.Decimal) decimal.Decimal {
	if !e.IsPercentage {
		return e.Price
	}
	// decimal.Round rounds half away from zero, which is half-up for the
	// non-negative revenue figures the ledger produces.
	return revenue.Mul(e.Price).Div(oneHundred).Round(0)
}

// Validate checks the entry's invariants
func (e PricingEntry) Validate() error {
	if e.Name == "" {
		return shared.NewValidationError("name", "cannot be empty")
	}
	if e.Price.IsNegative() {
		return shared.NewValidationError("price", "cannot be negative")
	}
	if e.IsPercentage && e.Price.GreaterThan(oneHundred) {
		return shared.NewValidationError("price", "percentage rate must be between 0 and 100")
	}
	return nil
}

// PricingEntries is a laboratory's price list persisted as a JSON column
type PricingEntries []PricingEntry

// Value implements driver.Valuer for JSONB storage
func (ps PricingEntries) Value() (driver.Value, error) {
	if ps == nil {
		return "[]", nil
	}
	b, err := json.Marshal(ps)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB storage
func (ps *PricingEntries) Scan(value interface{}) error {
	if value == nil {
		*ps = PricingEntries{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("unsupported type for PricingEntries")
	}
	return json.Unmarshal(b, ps)
}

// Laboratory is a dental technician lab the clinic sends work to. Its price
// list is external configuration for the reconciliation engine.
type Laboratory struct {
	shared.ClinicAggregateRoot
	Name           string         `json:"name"`
	ContactPerson  string         `json:"contact_person"`
	Phone          string         `json:"phone"`
	Active         bool           `json:"active"`
	PricingEntries PricingEntries `json:"pricing_entries"`
}

// NewLaboratory creates a laboratory for a clinic
func NewLaboratory(clinicID uuid.UUID, name string) (*Laboratory, error) {
	if name == "" {
		return nil, shared.NewValidationError("name", "cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewValidationError("name", "cannot exceed 100 characters")
	}
	return &Laboratory{
		ClinicAggregateRoot: shared.NewClinicAggregateRoot(clinicID),
		Name:                name,
		Active:              true,
		PricingEntries:      make(PricingEntries, 0),
	}, nil
}

// AddPricingEntry appends a price-list entry
func (l *Laboratory) AddPricingEntry(name string, price decimal.Decimal, isPercentage bool) (*PricingEntry, error) {
	entry := PricingEntry{
		ID:           uuid.New(),
		Name:         name,
		Price:        price,
		IsPercentage: isPercentage,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	l.PricingEntries = append(l.PricingEntries, entry)
	l.touch()
	return &entry, nil
}

// UpdatePricingEntry replaces an entry's fields. Already-placed order lines
// keep their snapshot prices.
func (l *Laboratory) UpdatePricingEntry(id uuid.UUID, name string, price decimal.Decimal, isPercentage bool) error {
	for i := range l.PricingEntries {
		if l.PricingEntries[i].ID == id {
			updated := PricingEntry{ID: id, Name: name, Price: price, IsPercentage: isPercentage}
			if err := updated.Validate(); err != nil {
				return err
			}
			l.PricingEntries[i] = updated
			l.touch()
			return nil
		}
	}
	return shared.ErrNotFound
}

// RemovePricingEntry deletes an entry from the price list
func (l *Laboratory) RemovePricingEntry(id uuid.UUID) error {
	for i := range l.PricingEntries {
		if l.PricingEntries[i].ID == id {
			l.PricingEntries = append(l.PricingEntries[:i], l.PricingEntries[i+1:]...)
			l.touch()
			return nil
		}
	}
	return shared.ErrNotFound
}

// FindPricingEntry looks an entry up by ID
func (l *Laboratory) FindPricingEntry(id uuid.UUID) (*PricingEntry, bool) {
	for i := range l.PricingEntries {
		if l.PricingEntries[i].ID == id {
			return &l.PricingEntries[i], true
		}
	}
	return nil, false
}

// Rename changes the laboratory name
func (l *Laboratory) Rename(name string) error {
	if name == "" {
		return shared.NewValidationError("name", "cannot be empty")
	}
	l.Name = name
	l.touch()
	return nil
}

// SetContact updates contact details
func (l *Laboratory) SetContact(person, phone string) {
	l.ContactPerson = person
	l.Phone = phone
	l.touch()
}

// Deactivate hides the laboratory from new work without deleting history
func (l *Laboratory) Deactivate() {
	l.Active = false
	l.touch()
}

// Activate re-enables the laboratory
func (l *Laboratory) Activate() {
	l.Active = true
	l.touch()
}

func (l *Laboratory) touch() {
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}
