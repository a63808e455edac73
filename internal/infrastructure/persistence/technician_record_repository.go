package persistence

import (
	"context"
	"errors"

	"github.com/clinic/backend/internal/domain/labfee"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTechnicianRecordRepository implements TechnicianRecordRepository using GORM
type GormTechnicianRecordRepository struct {
	db *gorm.DB
}

// NewGormTechnicianRecordRepository creates a new GormTechnicianRecordRepository
func NewGormTechnicianRecordRepository(db *gorm.DB) *GormTechnicianRecordRepository {
	return &GormTechnicianRecordRepository{db: db}
}

// FindByID finds a technician record by its ID
func (r *GormTechnicianRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*labfee.TechnicianRecord, error) {
	var model models.TechnicianRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindForClinicMonth fetches all records for a clinic month, optionally
// restricted to one laboratory and record kind
func (r *GormTechnicianRecordRepository) FindForClinicMonth(ctx context.Context, clinicID uuid.UUID, filter labfee.RecordFilter) ([]labfee.TechnicianRecord, error) {
	var recordModels []models.TechnicianRecordModel
	query := r.db.WithContext(ctx).Model(&models.TechnicianRecordModel{}).
		Where("clinic_id = ?", clinicID)

	if !filter.Month.IsZero() {
		query = query.Where("record_date >= ? AND record_date < ?", filter.Month.Start(), filter.Month.End())
	}
	if filter.LabName != "" && !labfee.IsAllLaboratories(filter.LabName) {
		query = query.Where("lab_name = ?", filter.LabName)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}

	if err := query.Order("record_date ASC, created_at ASC").Find(&recordModels).Error; err != nil {
		return nil, err
	}
	records := make([]labfee.TechnicianRecord, len(recordModels))
	for i, model := range recordModels {
		records[i] = *model.ToDomain()
	}
	return records, nil
}

// FindLinked resolves the record tied to a ledger row, if any
func (r *GormTechnicianRecordRepository) FindLinked(ctx context.Context, clinicID uuid.UUID, linkedRowID string) (*labfee.TechnicianRecord, error) {
	var model models.TechnicianRecordModel
	if err := r.db.WithContext(ctx).
		Where("clinic_id = ? AND linked_row_id = ?", clinicID, linkedRowID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert creates or replaces a record by ID in a single round-trip
func (r *GormTechnicianRecordRepository) Upsert(ctx context.Context, record *labfee.TechnicianRecord) error {
	model := models.TechnicianRecordModelFromDomain(record)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// Delete removes a record by ID
func (r *GormTechnicianRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.TechnicianRecordModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure the repository satisfies the domain port
var _ labfee.TechnicianRecordRepository = (*GormTechnicianRecordRepository)(nil)
