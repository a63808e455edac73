// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SaveOutcome labels one row's result in a batch category save.
type SaveOutcome string

const (
	SaveOutcomeSaved    SaveOutcome = "saved"
	SaveOutcomeFailed   SaveOutcome = "failed"
	SaveOutcomeConflict SaveOutcome = "conflict"
)

// ReconciliationMetrics tracks worksheet activity: merges, category saves,
// manual adjustments and ledger fetch latency.
type ReconciliationMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	worksheetMergeTotal *Counter
	rowSaveTotal        *Counter
	saveConflictTotal   *Counter
	manualRecordTotal   *Counter

	// Distributions
	ledgerFetchDuration *Histogram

	// Gauge metrics (point-in-time values)
	recordCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	recordProvider RecordMetricsProvider
}

// RecordMetricsProvider supplies record counts for periodic gauge collection
// without the telemetry layer depending on the labfee domain directly.
type RecordMetricsProvider interface {
	// GetRecordCountByKind returns technician record counts per kind for a clinic
	GetRecordCountByKind(ctx context.Context, clinicID uuid.UUID) (map[string]int64, error)
}

// ReconciliationMetricsConfig holds configuration for reconciliation metrics.
type ReconciliationMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	RecordProvider  RecordMetricsProvider
}

// NewReconciliationMetrics creates a new ReconciliationMetrics instance.
func NewReconciliationMetrics(cfg ReconciliationMetricsConfig) (*ReconciliationMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rm := &ReconciliationMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		recordProvider: cfg.RecordProvider,
	}

	var err error

	rm.worksheetMergeTotal, err = NewCounter(
		cfg.Meter,
		"labfee_worksheet_merge_total",
		"Total number of worksheet merges built",
		"{merges}",
	)
	if err != nil {
		return nil, err
	}

	rm.rowSaveTotal, err = NewCounter(
		cfg.Meter,
		"labfee_row_save_total",
		"Total number of worksheet rows written in batch saves",
		"{rows}",
	)
	if err != nil {
		return nil, err
	}

	rm.saveConflictTotal, err = NewCounter(
		cfg.Meter,
		"labfee_save_conflict_total",
		"Total number of batch saves rejected by the in-flight guard",
		"{saves}",
	)
	if err != nil {
		return nil, err
	}

	rm.manualRecordTotal, err = NewCounter(
		cfg.Meter,
		"labfee_manual_record_total",
		"Total number of manual record mutations",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	rm.ledgerFetchDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "labfee_ledger_fetch_duration_seconds",
		Description: "Latency of monthly transaction fetches from the ledger",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	rm.recordCount, err = NewGauge(
		cfg.Meter,
		"labfee_record_count",
		"Current technician record count per clinic and kind",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	return rm, nil
}

// RecordWorksheetMerge records one worksheet merge for a clinic and lab scope.
func (rm *ReconciliationMetrics) RecordWorksheetMerge(ctx context.Context, clinicID uuid.UUID, labName string) {
	rm.worksheetMergeTotal.Inc(ctx,
		AttrClinicID.String(clinicID.String()),
		AttrLabName.String(labName),
	)
}

// RecordRowSave records one row's outcome in a batch category save.
func (rm *ReconciliationMetrics) RecordRowSave(ctx context.Context, clinicID uuid.UUID, outcome SaveOutcome) {
	rm.rowSaveTotal.Inc(ctx,
		AttrClinicID.String(clinicID.String()),
		AttrSaveOutcome.String(string(outcome)),
	)
}

// RecordSaveConflict records a batch save rejected because another save of
// the same worksheet was in flight.
func (rm *ReconciliationMetrics) RecordSaveConflict(ctx context.Context, clinicID uuid.UUID) {
	rm.saveConflictTotal.Inc(ctx, AttrClinicID.String(clinicID.String()))
}

// RecordManualMutation records a manual record create or delete.
func (rm *ReconciliationMetrics) RecordManualMutation(ctx context.Context, clinicID uuid.UUID, action string) {
	rm.manualRecordTotal.Inc(ctx,
		AttrClinicID.String(clinicID.String()),
		AttrRecordKind.String("MANUAL"),
		AttrSaveOutcome.String(action),
	)
}

// RecordLedgerFetch records the latency of one monthly transaction fetch.
func (rm *ReconciliationMetrics) RecordLedgerFetch(ctx context.Context, clinicID uuid.UUID, d time.Duration) {
	rm.ledgerFetchDuration.RecordDuration(ctx, d, AttrClinicID.String(clinicID.String()))
}

// RecordCount records the current record count for a clinic and kind.
func (rm *ReconciliationMetrics) RecordCount(ctx context.Context, clinicID uuid.UUID, kind string, count int64) {
	rm.recordCount.Record(ctx, count,
		AttrClinicID.String(clinicID.String()),
		AttrRecordKind.String(kind),
	)
}

// ClinicProvider supplies clinic IDs for periodic metrics collection.
type ClinicProvider interface {
	GetActiveClinicIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// Non-blocking; use Stop() to stop collection.
func (rm *ReconciliationMetrics) StartPeriodicCollection(ctx context.Context, clinicProvider ClinicProvider, interval time.Duration) {
	rm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go rm.runPeriodicCollection(ctx, clinicProvider, interval)
	})
}

func (rm *ReconciliationMetrics) runPeriodicCollection(ctx context.Context, clinicProvider ClinicProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rm.collectRecordMetrics(ctx, clinicProvider)

	for {
		select {
		case <-rm.stopChan:
			rm.logger.Info("Stopping periodic reconciliation metrics collection")
			return
		case <-ctx.Done():
			rm.logger.Info("Context cancelled, stopping periodic reconciliation metrics collection")
			return
		case <-ticker.C:
			rm.collectRecordMetrics(ctx, clinicProvider)
		}
	}
}

func (rm *ReconciliationMetrics) collectRecordMetrics(ctx context.Context, clinicProvider ClinicProvider) {
	if rm.recordProvider == nil {
		rm.logger.Debug("No record provider configured, skipping record metrics collection")
		return
	}

	clinicIDs, err := clinicProvider.GetActiveClinicIDs(ctx)
	if err != nil {
		rm.logger.Error("Failed to get clinic IDs for metrics collection", zap.Error(err))
		return
	}

	for _, clinicID := range clinicIDs {
		counts, err := rm.recordProvider.GetRecordCountByKind(ctx, clinicID)
		if err != nil {
			rm.logger.Warn("Failed to get record counts for clinic",
				zap.String("clinic_id", clinicID.String()),
				zap.Error(err),
			)
			continue
		}
		for kind, count := range counts {
			rm.RecordCount(ctx, clinicID, kind, count)
		}
	}
}

// Stop stops the periodic collection.
func (rm *ReconciliationMetrics) Stop() {
	rm.stopOnce.Do(func() {
		close(rm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewReconciliationMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
