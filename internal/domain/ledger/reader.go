package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Reader supplies the daily transaction rows for a clinic month. The ledger
// is append-only and already finalized for past dates; no write path exists
// back into it. Implementations live in infrastructure.
type Reader interface {
	FetchMonthlyTransactions(ctx context.Context, clinicID uuid.UUID, ym YearMonth) ([]Transaction, error)
}
