package labfee

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clinic/backend/internal/domain/labfee"
	"github.com/clinic/backend/internal/domain/laboratory"
	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReconciliationService orchestrates the monthly worksheet: it merges ledger
// transactions with technician records, commits category and order changes,
// and manages manual adjustment records.
type ReconciliationService struct {
	ledgerReader ledger.Reader
	records      labfee.TechnicianRecordRepository
	labs         laboratory.LaboratoryRepository
	guard        shared.OperationGuard
	guardTTL     time.Duration
	logger       *zap.Logger
	metrics      *telemetry.ReconciliationMetrics
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	ledgerReader ledger.Reader,
	records labfee.TechnicianRecordRepository,
	labs laboratory.LaboratoryRepository,
	guard shared.OperationGuard,
	guardConfig shared.GuardConfig,
	logger *zap.Logger,
) *ReconciliationService {
	ttl := guardConfig.TTL
	if ttl <= 0 {
		ttl = shared.DefaultGuardConfig().TTL
	}
	return &ReconciliationService{
		ledgerReader: ledgerReader,
		records:      records,
		labs:         labs,
		guard:        guard,
		guardTTL:     ttl,
		logger:       logger,
	}
}

// SetMetrics enables reconciliation metrics recording. The service works
// without it; every recording site is nil-guarded.
func (s *ReconciliationService) SetMetrics(metrics *telemetry.ReconciliationMetrics) {
	s.metrics = metrics
}

// ===================== Requests =====================

// CategoryChange is one row's new attribution in a batch save
type CategoryChange struct {
	RowID    string `json:"row_id" binding:"required"`
	Category string `json:"category" binding:"required"`
}

// OrderLineInput is one requested order position. Lines referencing a
// price-list entry are priced from it at save time; free-form lines carry
// their own name and unit price.
type OrderLineInput struct {
	PricingEntryID *uuid.UUID      `json:"pricing_entry_id,omitempty"`
	Name           string          `json:"name"`
	ToothPosition  string          `json:"tooth_position"`
	Quantity       int             `json:"quantity" binding:"required"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
}

// SaveOrderRequest replaces one row's itemized order
type SaveOrderRequest struct {
	Month    string           `json:"month" binding:"required"`
	Lines    []OrderLineInput `json:"lines"`
	Discount decimal.Decimal  `json:"discount"`
	Note     string           `json:"note"`
}

// AddManualRecordRequest creates a standalone adjustment record
type AddManualRecordRequest struct {
	LabName     string          `json:"lab_name" binding:"required"`
	Date        time.Time       `json:"date" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	PatientName string          `json:"patient_name" binding:"required"`
	DoctorName  string          `json:"doctor_name"`
	Note        string          `json:"note"`
}

// ===================== Worksheet =====================

// LoadWorksheet fetches the clinic month from the ledger, joins it with the
// persisted technician records and returns the derived view.
func (s *ReconciliationService) LoadWorksheet(ctx context.Context, clinicID uuid.UUID, month ledger.YearMonth, labName string) (*WorksheetResponse, error) {
	var response *WorksheetResponse
	var operationErr error

	telemetry.WithProfilingLabels(ctx,
		telemetry.ReconciliationOperationLabels(telemetry.OperationLoadWorksheet, labName),
		func(c context.Context) {
			ws, err := s.loadWorksheet(c, clinicID, month, labName)
			if err != nil {
				operationErr = err
				return
			}
			resp := toWorksheetResponse(ws)
			response = &resp
		})

	return response, operationErr
}

func (s *ReconciliationService) loadWorksheet(ctx context.Context, clinicID uuid.UUID, month ledger.YearMonth, labName string) (*Worksheet, error) {
	fetchStart := time.Now()
	transactions, err := s.ledgerReader.FetchMonthlyTransactions(ctx, clinicID, month)
	if err != nil {
		s.logger.Error("Ledger fetch failed",
			zap.String("clinic_id", clinicID.String()),
			zap.String("month", month.String()),
			zap.Error(err))
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordLedgerFetch(ctx, clinicID, time.Since(fetchStart))
	}

	records, err := s.fetchRecords(ctx, clinicID, month)
	if err != nil {
		return nil, err
	}

	ws := NewWorksheet(clinicID, month, labName, transactions, records)
	if s.metrics != nil {
		s.metrics.RecordWorksheetMerge(ctx, clinicID, ws.LabName)
	}
	return ws, nil
}

// fetchRecords always loads the full clinic month; the merge applies the
// laboratory filter so that orphan detection sees every linked record.
func (s *ReconciliationService) fetchRecords(ctx context.Context, clinicID uuid.UUID, month ledger.YearMonth) ([]labfee.TechnicianRecord, error) {
	return s.records.FindForClinicMonth(ctx, clinicID, labfee.RecordFilter{Month: month})
}

// ===================== Batch category save =====================

// SaveCategories commits a batch of attribution changes. Each accepted row is
// written as its own upsert; the writes run concurrently and are all joined
// before the worksheet is rebuilt from fresh store state, so a partial
// failure still yields a consistent view with the failed rows left dirty.
// A second save for the same worksheet is rejected while one is in flight.
func (s *ReconciliationService) SaveCategories(ctx context.Context, clinicID uuid.UUID, month ledger.YearMonth, labName string, changes []CategoryChange) (*SaveCategoriesResponse, error) {
	var response *SaveCategoriesResponse
	var operationErr error

	telemetry.WithProfilingLabels(ctx,
		telemetry.ReconciliationOperationLabels(telemetry.OperationSaveCategories, labName),
		func(c context.Context) {
			response, operationErr = s.saveCategories(c, clinicID, month, labName, changes)
		})

	return response, operationErr
}

func (s *ReconciliationService) saveCategories(ctx context.Context, clinicID uuid.UUID, month ledger.YearMonth, labName string, changes []CategoryChange) (*SaveCategoriesResponse, error) {
	if len(changes) == 0 {
		return nil, shared.NewValidationError("changes", "cannot be empty")
	}

	key := saveGuardKey(clinicID, month, labName)
	acquired, err := s.guard.Acquire(ctx, key, s.guardTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		if s.metrics != nil {
			s.metrics.RecordSaveConflict(ctx, clinicID)
		}
		return nil, shared.ErrSaveInFlight
	}
	defer func() {
		if releaseErr := s.guard.Release(ctx, key); releaseErr != nil {
			s.logger.Warn("Failed to release save guard", zap.String("key", key), zap.Error(releaseErr))
		}
	}()

	ws, err := s.loadWorksheet(ctx, clinicID, month, labName)
	if err != nil {
		return nil, err
	}

	outcomes := make([]RowOutcome, 0, len(changes))
	for _, change := range changes {
		category := ledger.BillingCategory(change.Category)
		if err := ws.ChangeCategory(change.RowID, category); err != nil {
			outcomes = append(outcomes, RowOutcome{RowID: change.RowID, Status: OutcomeRejected, Error: err.Error()})
		}
	}

	dirty := ws.DirtyRows()
	results := make([]error, len(dirty))
	var wg sync.WaitGroup
	for i := range dirty {
		wg.Add(1)
		go func(i int, row *labfee.DerivedRow) {
			defer wg.Done()
			results[i] = s.saveRowCategory(ctx, clinicID, row)
		}(i, dirty[i])
	}
	// Join every write before remerging, failures included.
	wg.Wait()

	failed := make(map[string]struct{})
	for i, row := range dirty {
		if results[i] != nil {
			s.logger.Error("Row category save failed",
				zap.String("row_id", row.Transaction.ID),
				zap.Error(results[i]))
			failed[row.Transaction.ID] = struct{}{}
			outcomes = append(outcomes, RowOutcome{RowID: row.Transaction.ID, Status: OutcomeFailed, Error: results[i].Error()})
			if s.metrics != nil {
				s.metrics.RecordRowSave(ctx, clinicID, telemetry.SaveOutcomeFailed)
			}
		} else {
			outcomes = append(outcomes, RowOutcome{RowID: row.Transaction.ID, Status: OutcomeSaved})
			if s.metrics != nil {
				s.metrics.RecordRowSave(ctx, clinicID, telemetry.SaveOutcomeSaved)
			}
		}
	}

	// The store decides the post-save view, even when some writes failed.
	records, err := s.fetchRecords(ctx, clinicID, month)
	if err != nil {
		return nil, err
	}
	ws.Rebuild(records)
	for rowID := range failed {
		ws.MarkDirty(rowID)
	}

	return &SaveCategoriesResponse{
		Outcomes:  outcomes,
		Worksheet: toWorksheetResponse(ws),
	}, nil
}

// saveRowCategory persists one row's attribution, reusing the linked
// record's identity when one already exists.
func (s *ReconciliationService) saveRowCategory(ctx context.Context, clinicID uuid.UUID, row *labfee.DerivedRow) error {
	existing, err := s.records.FindLinked(ctx, clinicID, row.Transaction.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := existing.SetCategory(row.SelectedCategory); err != nil {
			return err
		}
		return s.records.Upsert(ctx, existing)
	}

	record, err := labfee.NewLinkedRecord(uuid.New(), clinicID, row.Transaction, row.SelectedCategory)
	if err != nil {
		return err
	}
	return s.records.Upsert(ctx, record)
}

func saveGuardKey(clinicID uuid.UUID, month ledger.YearMonth, labName string) string {
	lab := labName
	if labfee.IsAllLaboratories(labName) {
		lab = labfee.AllLaboratories
	}
	return fmt.Sprintf("labfee:save:%s:%s:%s", clinicID, month, lab)
}

// ===================== Single order save =====================

// SaveOrder replaces one row's itemized order and returns the updated row
// immediately, without rebuilding the whole worksheet. Price-list lines are
// priced against the visit's revenue at this moment; the resulting unit
// prices are snapshots and never reprice.
func (s *ReconciliationService) SaveOrder(ctx context.Context, clinicID uuid.UUID, rowID string, req SaveOrderRequest) (*DerivedRowResponse, error) {
	month, err := ledger.ParseYearMonth(req.Month)
	if err != nil {
		return nil, err
	}

	transactions, err := s.ledgerReader.FetchMonthlyTransactions(ctx, clinicID, month)
	if err != nil {
		return nil, err
	}
	var tx *ledger.Transaction
	for i := range transactions {
		if transactions[i].ID == rowID {
			tx = &transactions[i]
			break
		}
	}
	if tx == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Ledger row not found in the given month")
	}

	lines, err := s.resolveOrderLines(ctx, clinicID, tx, req.Lines)
	if err != nil {
		return nil, err
	}

	record, err := s.records.FindLinked(ctx, clinicID, rowID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		attr := labfee.ResolveAttribution(*tx, nil)
		record, err = labfee.NewLinkedRecord(uuid.New(), clinicID, *tx, attr.Selected)
		if err != nil {
			return nil, err
		}
	}

	if err := record.ApplyOrder(lines, req.Discount); err != nil {
		return nil, err
	}
	record.SetNote(req.Note)

	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Order saved",
		zap.String("row_id", rowID),
		zap.String("lab_name", record.LabName),
		zap.String("amount", record.Amount.String()))

	category := record.Category
	attr := labfee.ResolveAttribution(*tx, &category)
	recordID := record.ID
	row := labfee.DerivedRow{
		Transaction:         *tx,
		RecordID:            &recordID,
		CurrentFee:          record.Amount,
		SelectedCategory:    attr.Selected,
		AvailableCategories: attr.Available,
		Details:             record.Details,
		Discount:            record.Discount,
		Note:                record.Note,
	}
	resp := toDerivedRowResponse(&row)
	return &resp, nil
}

// resolveOrderLines turns requested lines into priced order lines. Lines
// naming a price-list entry take the entry's name and its resolved unit
// price; free-form lines pass through as given.
func (s *ReconciliationService) resolveOrderLines(ctx context.Context, clinicID uuid.UUID, tx *ledger.Transaction, inputs []OrderLineInput) (labfee.OrderLines, error) {
	var lab *laboratory.Laboratory
	lines := make(labfee.OrderLines, 0, len(inputs))
	for _, in := range inputs {
		name := in.Name
		unitPrice := in.UnitPrice

		if in.PricingEntryID != nil {
			if lab == nil {
				var err error
				lab, err = s.labs.FindByName(ctx, clinicID, tx.LabName)
				if err != nil {
					return nil, err
				}
				if lab == nil {
					return nil, shared.NewDomainError("NOT_FOUND", "Laboratory not found for this row")
				}
			}
			entry, ok := lab.FindPricingEntry(*in.PricingEntryID)
			if !ok {
				return nil, shared.NewDomainError("NOT_FOUND", "Pricing entry not found")
			}
			name = entry.Name
			unitPrice = entry.ResolveUnitPrice(tx.Revenue)
		}

		line, err := labfee.NewOrderLine(name, in.ToothPosition, in.Quantity, unitPrice)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ===================== Manual records =====================

// AddManualRecord creates a standalone adjustment record and remerges the
// record's worksheet so the caller sees the new totals. The aggregate
// "all labs" view cannot host manual records; that is rejected before any
// store call is made.
func (s *ReconciliationService) AddManualRecord(ctx context.Context, clinicID uuid.UUID, req AddManualRecordRequest) (*ManualRecordResponse, error) {
	if labfee.IsAllLaboratories(req.LabName) {
		return nil, shared.NewValidationError("lab_name", "a concrete laboratory must be selected")
	}

	record, err := labfee.NewManualRecord(clinicID, labfee.ManualRecordInput{
		LabName:     strings.TrimSpace(req.LabName),
		Date:        req.Date,
		Amount:      req.Amount,
		Category:    ledger.BillingCategory(req.Category),
		PatientName: req.PatientName,
		DoctorName:  req.DoctorName,
		Note:        req.Note,
	})
	if err != nil {
		return nil, err
	}

	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordManualMutation(ctx, clinicID, "create")
	}

	ws, err := s.loadWorksheet(ctx, clinicID, ledger.YearMonthOf(record.Date), record.LabName)
	if err != nil {
		return nil, err
	}

	return &ManualRecordResponse{
		Record:    *toTechnicianRecordResponse(record),
		Worksheet: toWorksheetResponse(ws),
	}, nil
}

// DeleteManualRecord removes a manual adjustment record. Linked records are
// never deleted through this path; resaving supersedes them instead.
func (s *ReconciliationService) DeleteManualRecord(ctx context.Context, clinicID, id uuid.UUID) error {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil || record.ClinicID != clinicID {
		return shared.NewDomainError("NOT_FOUND", "Technician record not found")
	}
	if !record.IsDeletable() {
		return shared.NewDomainError("INVALID_STATE", "Only manual records can be deleted")
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordManualMutation(ctx, clinicID, "delete")
	}
	return nil
}

// ===================== Attachments =====================

// AttachReceipt appends an uploaded receipt URL to a technician record
func (s *ReconciliationService) AttachReceipt(ctx context.Context, clinicID, recordID uuid.UUID, url string) (*TechnicianRecordResponse, error) {
	if url == "" {
		return nil, shared.NewValidationError("url", "cannot be empty")
	}
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.ClinicID != clinicID {
		return nil, shared.NewDomainError("NOT_FOUND", "Technician record not found")
	}

	urls := url
	if record.AttachmentURLs != "" {
		urls = record.AttachmentURLs + "," + url
	}
	record.SetAttachmentURLs(urls)

	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, err
	}
	return toTechnicianRecordResponse(record), nil
}

// ===================== Monthly summary =====================

// MonthlySummary breaks one month's payables down per laboratory across the
// aggregate view.
func (s *ReconciliationService) MonthlySummary(ctx context.Context, clinicID uuid.UUID, month ledger.YearMonth) (*MonthlySummaryResponse, error) {
	ws, err := s.loadWorksheet(ctx, clinicID, month, labfee.AllLaboratories)
	if err != nil {
		return nil, err
	}

	byLab := make(map[string]*LabSummary)
	summaryFor := func(labName string) *LabSummary {
		if existing, ok := byLab[labName]; ok {
			return existing
		}
		entry := &LabSummary{
			LabName: labName,
			Linked:  decimal.Zero,
			Manual:  decimal.Zero,
			Total:   decimal.Zero,
		}
		byLab[labName] = entry
		return entry
	}

	for _, row := range ws.Rows {
		entry := summaryFor(row.Transaction.LabName)
		entry.Linked = entry.Linked.Add(row.CurrentFee)
	}
	for _, rec := range ws.Manual {
		entry := summaryFor(rec.LabName)
		entry.Manual = entry.Manual.Add(rec.Amount)
	}

	labs := make([]LabSummary, 0, len(byLab))
	for _, entry := range byLab {
		entry.Total = entry.Linked.Add(entry.Manual)
		labs = append(labs, *entry)
	}
	sort.Slice(labs, func(i, j int) bool { return labs[i].LabName < labs[j].LabName })

	return &MonthlySummaryResponse{
		Month:       month.String(),
		Labs:        labs,
		Totals:      toTotalsResponse(ws.Totals),
		OrphanCount: len(ws.Orphans),
	}, nil
}
