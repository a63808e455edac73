package laboratory

import (
	"context"
	"time"

	"github.com/clinic/backend/internal/domain/laboratory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LaboratoryService provides application-level laboratory management: the
// clinic's lab roster and each lab's price list.
type LaboratoryService struct {
	labRepo laboratory.LaboratoryRepository
}

// NewLaboratoryService creates a new LaboratoryService
func NewLaboratoryService(labRepo laboratory.LaboratoryRepository) *LaboratoryService {
	return &LaboratoryService{labRepo: labRepo}
}

// PricingEntryResponse represents a price-list entry in API responses
type PricingEntryResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	IsPercentage bool            `json:"is_percentage"`
}

// LaboratoryResponse represents a laboratory in API responses
type LaboratoryResponse struct {
	ID             uuid.UUID              `json:"id"`
	ClinicID       uuid.UUID              `json:"clinic_id"`
	Name           string                 `json:"name"`
	ContactPerson  string                 `json:"contact_person,omitempty"`
	Phone          string                 `json:"phone,omitempty"`
	Active         bool                   `json:"active"`
	PricingEntries []PricingEntryResponse `json:"pricing_entries"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	Version        int                    `json:"version"`
}

// CreateLaboratoryRequest represents a request to register a laboratory
type CreateLaboratoryRequest struct {
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
}

// UpdateLaboratoryRequest represents a request to update a laboratory
type UpdateLaboratoryRequest struct {
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
}

// PricingEntryRequest represents a price-list entry create or update
type PricingEntryRequest struct {
	Name         string          `json:"name" binding:"required"`
	Price        decimal.Decimal `json:"price"`
	IsPercentage bool            `json:"is_percentage"`
}

// LaboratoryListFilter defines filtering options for laboratory list queries
type LaboratoryListFilter struct {
	Search     string `form:"search"`
	ActiveOnly bool   `form:"active_only"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// CreateLaboratory registers a laboratory for a clinic. Names are unique per
// clinic because technician records reference labs by name.
func (s *LaboratoryService) CreateLaboratory(ctx context.Context, clinicID uuid.UUID, req CreateLaboratoryRequest) (*LaboratoryResponse, error) {
	existing, err := s.labRepo.FindByName(ctx, clinicID, req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "A laboratory with this name already exists")
	}

	lab, err := laboratory.NewLaboratory(clinicID, req.Name)
	if err != nil {
		return nil, err
	}
	lab.SetContact(req.ContactPerson, req.Phone)

	if err := s.labRepo.Save(ctx, lab); err != nil {
		return nil, err
	}
	return toLaboratoryResponse(lab), nil
}

// GetLaboratory gets a laboratory by ID
func (s *LaboratoryService) GetLaboratory(ctx context.Context, clinicID, id uuid.UUID) (*LaboratoryResponse, error) {
	lab, err := s.findLab(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	return toLaboratoryResponse(lab), nil
}

// ListLaboratories lists a clinic's laboratories
func (s *LaboratoryService) ListLaboratories(ctx context.Context, clinicID uuid.UUID, filter LaboratoryListFilter) ([]LaboratoryResponse, error) {
	domainFilter := laboratory.LaboratoryFilter{ActiveOnly: filter.ActiveOnly}
	domainFilter.Search = filter.Search
	domainFilter.Page = filter.Page
	domainFilter.PageSize = filter.PageSize

	labs, err := s.labRepo.FindAllForClinic(ctx, clinicID, domainFilter)
	if err != nil {
		return nil, err
	}

	responses := make([]LaboratoryResponse, len(labs))
	for i := range labs {
		responses[i] = *toLaboratoryResponse(&labs[i])
	}
	return responses, nil
}

// UpdateLaboratory updates a laboratory's name and contact details
func (s *LaboratoryService) UpdateLaboratory(ctx context.Context, clinicID, id uuid.UUID, req UpdateLaboratoryRequest) (*LaboratoryResponse, error) {
	lab, err := s.findLab(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != lab.Name {
		duplicate, err := s.labRepo.FindByName(ctx, clinicID, req.Name)
		if err != nil {
			return nil, err
		}
		if duplicate != nil {
			return nil, shared.NewDomainError("ALREADY_EXISTS", "A laboratory with this name already exists")
		}
		if err := lab.Rename(req.Name); err != nil {
			return nil, err
		}
	}
	lab.SetContact(req.ContactPerson, req.Phone)

	if err := s.labRepo.Save(ctx, lab); err != nil {
		return nil, err
	}
	return toLaboratoryResponse(lab), nil
}

// DeactivateLaboratory hides a laboratory from new work. Existing records
// keep referencing it; history is never rewritten.
func (s *LaboratoryService) DeactivateLaboratory(ctx context.Context, clinicID, id uuid.UUID) (*LaboratoryResponse, error) {
	lab, err := s.findLab(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	lab.Deactivate()
	if err := s.labRepo.Save(ctx, lab); err != nil {
		return nil, err
	}
	return toLaboratoryResponse(lab), nil
}

// ActivateLaboratory re-enables a laboratory
func (s *LaboratoryService) ActivateLaboratory(ctx context.Context, clinicID, id uuid.UUID) (*LaboratoryResponse, error) {
	lab, err := s.findLab(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	lab.Activate()
	if err := s.labRepo.Save(ctx, lab); err != nil {
		return nil, err
	}
	return toLaboratoryResponse(lab), nil
}

// AddPricingEntry appends an entry to a laboratory's price list
func (s *LaboratoryService) AddPricingEntry(ctx context.Context, clinicID, labID uuid.UUID, req PricingEntryRequest) (*LaboratoryResponse, error) {
	lab, err := s.findLab(ctx, clinicID, labID)
	if err != nil {
		return nil, err
	}
	if _, err := lab.AddPricingEntry(req.Name, req.Price, req.IsPercentage); err != nil {
		return nil, err
	}
	if err := s.labRepo.Save(ctx, lab); err != nil {
		return nil, err
	}
	return toLaboratoryResponse(lab), nil
}

// UpdatePricingEntry replaces a price-list entry. Order lines already placed
// from the old entry keep their snapshot prices.
func (s *LaboratoryService) UpdatePricingEntry(ctx context.Context, clinicID, labID, entryID uuid.UUID, req PricingEntryRequest) (*LaboratoryResponse, error) {
	lab, err := s.findLab(ctx, clinicID, labID)
	if err != nil {
		return nil, err
	}
	if err := lab.UpdatePricingEntry(entryID, req.Name, req.Price, req.IsPercentage); err != nil {
		return nil, err
	}
	if err := s.labRepo.Save(ctx, lab); err != nil {
		return nil, err
	}
	return toLaboratoryResponse(lab), nil
}

// RemovePricingEntry deletes a price-list entry
func (s *LaboratoryService) RemovePricingEntry(ctx context.Context, clinicID, labID, entryID uuid.UUID) (*LaboratoryResponse, error) {
	lab, err := s.findLab(ctx, clinicID, labID)
	if err != nil {
		return nil, err
	}
	if err := lab.RemovePricingEntry(entryID); err != nil {
		return nil, err
	}
	if err := s.labRepo.Save(ctx, lab); err != nil {
		return nil, err
	}
	return toLaboratoryResponse(lab), nil
}

// PricingPreviewResponse shows what an entry would cost against a revenue
type PricingPreviewResponse struct {
	EntryID      uuid.UUID       `json:"entry_id"`
	Name         string          `json:"name"`
	IsPercentage bool            `json:"is_percentage"`
	Revenue      decimal.Decimal `json:"revenue"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// PreviewPricing resolves an entry's unit price against a given revenue
// without writing anything. The UI uses it to show the operator what a
// percentage entry will snapshot to before they place the line.
func (s *LaboratoryService) PreviewPricing(ctx context.Context, clinicID, labID, entryID uuid.UUID, revenue decimal.Decimal) (*PricingPreviewResponse, error) {
	if revenue.IsNegative() {
		return nil, shared.NewValidationError("revenue", "cannot be negative")
	}
	lab, err := s.findLab(ctx, clinicID, labID)
	if err != nil {
		return nil, err
	}
	entry, ok := lab.FindPricingEntry(entryID)
	if !ok {
		return nil, shared.NewDomainError("NOT_FOUND", "Pricing entry not found")
	}
	return &PricingPreviewResponse{
		EntryID:      entry.ID,
		Name:         entry.Name,
		IsPercentage: entry.IsPercentage,
		Revenue:      revenue,
		UnitPrice:    entry.ResolveUnitPrice(revenue),
	}, nil
}

func (s *LaboratoryService) findLab(ctx context.Context, clinicID, id uuid.UUID) (*laboratory.Laboratory, error) {
	lab, err := s.labRepo.FindByIDForClinic(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if lab == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Laboratory not found")
	}
	return lab, nil
}

func toLaboratoryResponse(lab *laboratory.Laboratory) *LaboratoryResponse {
	entries := make([]PricingEntryResponse, len(lab.PricingEntries))
	for i, e := range lab.PricingEntries {
		entries[i] = PricingEntryResponse{
			ID:           e.ID,
			Name:         e.Name,
			Price:        e.Price,
			IsPercentage: e.IsPercentage,
		}
	}
	return &LaboratoryResponse{
		ID:             lab.ID,
		ClinicID:       lab.ClinicID,
		Name:           lab.Name,
		ContactPerson:  lab.ContactPerson,
		Phone:          lab.Phone,
		Active:         lab.Active,
		PricingEntries: entries,
		CreatedAt:      lab.CreatedAt,
		UpdatedAt:      lab.UpdatedAt,
		Version:        lab.Version,
	}
}
