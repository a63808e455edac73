package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinic/backend/internal/domain/laboratory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLaboratoryRepository implements LaboratoryRepository using GORM
type GormLaboratoryRepository struct {
	db *gorm.DB
}

// NewGormLaboratoryRepository creates a new GormLaboratoryRepository
func NewGormLaboratoryRepository(db *gorm.DB) *GormLaboratoryRepository {
	return &GormLaboratoryRepository{db: db}
}

// FindByID finds a laboratory by its ID
func (r *GormLaboratoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*laboratory.Laboratory, error) {
	var model models.LaboratoryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForClinic finds a laboratory by ID scoped to a clinic
func (r *GormLaboratoryRepository) FindByIDForClinic(ctx context.Context, clinicID, id uuid.UUID) (*laboratory.Laboratory, error) {
	var model models.LaboratoryModel
	if err := r.db.WithContext(ctx).
		Where("clinic_id = ? AND id = ?", clinicID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByName finds a laboratory by its display name for a clinic
func (r *GormLaboratoryRepository) FindByName(ctx context.Context, clinicID uuid.UUID, name string) (*laboratory.Laboratory, error) {
	var model models.LaboratoryModel
	if err := r.db.WithContext(ctx).
		Where("clinic_id = ? AND name = ?", clinicID, name).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForClinic lists a clinic's laboratories with filtering
func (r *GormLaboratoryRepository) FindAllForClinic(ctx context.Context, clinicID uuid.UUID, filter laboratory.LaboratoryFilter) ([]laboratory.Laboratory, error) {
	var labModels []models.LaboratoryModel
	query := r.db.WithContext(ctx).Model(&models.LaboratoryModel{}).
		Where("clinic_id = ?", clinicID)

	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("(name ILIKE ? OR contact_person ILIKE ?)", searchPattern, searchPattern)
	}

	// Apply sorting with whitelist validation to prevent SQL injection
	sortField := ValidateSortField(filter.OrderBy, LaboratorySortFields, "name")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	if sortField == "name" && filter.OrderBy == "" {
		sortOrder = "ASC"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		offset := (filter.Page - 1) * filter.PageSize
		if offset > 0 {
			query = query.Offset(offset)
		}
	}

	if err := query.Find(&labModels).Error; err != nil {
		return nil, err
	}
	labs := make([]laboratory.Laboratory, len(labModels))
	for i, model := range labModels {
		labs[i] = *model.ToDomain()
	}
	return labs, nil
}

// Save creates or updates a laboratory
func (r *GormLaboratoryRepository) Save(ctx context.Context, lab *laboratory.Laboratory) error {
	model := models.LaboratoryModelFromDomain(lab)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes a laboratory
func (r *GormLaboratoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.LaboratoryModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure the repository satisfies the domain port
var _ laboratory.LaboratoryRepository = (*GormLaboratoryRepository)(nil)
