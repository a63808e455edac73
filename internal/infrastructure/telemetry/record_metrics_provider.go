// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRecordMetricsProvider implements RecordMetricsProvider using GORM.
// It queries the technician_records table directly for aggregated counts.
type GormRecordMetricsProvider struct {
	db *gorm.DB
}

// NewGormRecordMetricsProvider creates a new GormRecordMetricsProvider.
func NewGormRecordMetricsProvider(db *gorm.DB) *GormRecordMetricsProvider {
	return &GormRecordMetricsProvider{db: db}
}

// GetRecordCountByKind returns technician record counts per kind for a clinic.
func (p *GormRecordMetricsProvider) GetRecordCountByKind(ctx context.Context, clinicID uuid.UUID) (map[string]int64, error) {
	type result struct {
		Kind  string `gorm:"column:kind"`
		Count int64  `gorm:"column:count"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("technician_records").
		Select("kind, COUNT(*) as count").
		Where("clinic_id = ?", clinicID).
		Group("kind").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.Kind] = r.Count
	}

	return m, nil
}

// GormClinicProvider implements ClinicProvider using GORM. Clinics are not
// stored locally, so active means any clinic with at least one record.
type GormClinicProvider struct {
	db *gorm.DB
}

// NewGormClinicProvider creates a new GormClinicProvider.
func NewGormClinicProvider(db *gorm.DB) *GormClinicProvider {
	return &GormClinicProvider{db: db}
}

// GetActiveClinicIDs returns the distinct clinic IDs seen in technician records.
func (p *GormClinicProvider) GetActiveClinicIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("technician_records").
		Distinct("clinic_id").
		Find(&ids).Error

	return ids, err
}
