package laboratory

import (
	"context"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// LaboratoryFilter defines filtering options for laboratory queries
type LaboratoryFilter struct {
	shared.Filter
	ActiveOnly bool
}

// LaboratoryRepository defines the persistence interface for laboratories
type LaboratoryRepository interface {
	// FindByID finds a laboratory by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Laboratory, error)

	// FindByIDForClinic finds a laboratory by ID scoped to a clinic
	FindByIDForClinic(ctx context.Context, clinicID, id uuid.UUID) (*Laboratory, error)

	// FindByName finds a laboratory by its display name for a clinic.
	// Technician records reference laboratories by name, matching how the
	// ledger reports them.
	FindByName(ctx context.Context, clinicID uuid.UUID, name string) (*Laboratory, error)

	// FindAllForClinic lists a clinic's laboratories
	FindAllForClinic(ctx context.Context, clinicID uuid.UUID, filter LaboratoryFilter) ([]Laboratory, error)

	// Save creates or updates a laboratory
	Save(ctx context.Context, lab *Laboratory) error

	// Delete removes a laboratory
	Delete(ctx context.Context, id uuid.UUID) error
}
