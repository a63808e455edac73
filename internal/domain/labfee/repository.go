package labfee

import (
	"context"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/google/uuid"
)

// RecordFilter scopes technician record queries. LabName empty (or the ALL
// sentinel) returns records for every laboratory.
type RecordFilter struct {
	LabName string
	Month   ledger.YearMonth
	Kind    *RecordKind
}

// TechnicianRecordRepository is the record-store port. The store is keyed by
// record ID, upserts are idempotent by ID and there are no transactions
// spanning multiple records: batched saves are independent round-trips.
type TechnicianRecordRepository interface {
	// FindByID finds a technician record by ID
	FindByID(ctx context.Context, id uuid.UUID) (*TechnicianRecord, error)

	// FindForClinicMonth fetches all records for a clinic month, optionally
	// restricted to one laboratory
	FindForClinicMonth(ctx context.Context, clinicID uuid.UUID, filter RecordFilter) ([]TechnicianRecord, error)

	// FindLinked resolves the record tied to a ledger row, if any. The
	// orchestrator calls this before every write to reuse the existing
	// identity instead of minting a duplicate.
	FindLinked(ctx context.Context, clinicID uuid.UUID, linkedRowID string) (*TechnicianRecord, error)

	// Upsert creates or replaces a record by ID
	Upsert(ctx context.Context, record *TechnicianRecord) error

	// Delete removes a record by ID. Only manual records are ever deleted;
	// the application layer enforces that.
	Delete(ctx context.Context, id uuid.UUID) error
}
