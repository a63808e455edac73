package labfee

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine is one itemized position on a technician order. The unit price
// is a frozen snapshot: percentage price-list entries are resolved against
// the visit's revenue once, when the entry is chosen, and never recomputed.
type OrderLine struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	ToothPosition string          `json:"tooth_position"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// NewOrderLine creates a validated order line
func NewOrderLine(name, toothPosition string, quantity int, unitPrice decimal.Decimal) (OrderLine, error) {
	if name == "" {
		return OrderLine{}, shared.NewValidationError("name", "cannot be empty")
	}
	if quantity < 1 {
		return OrderLine{}, shared.NewValidationError("quantity", "must be at least 1")
	}
	return OrderLine{
		ID:            uuid.New(),
		Name:          name,
		ToothPosition: toothPosition,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
	}, nil
}

// Subtotal returns quantity times unit price
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderLines is a slice of order lines persisted as a JSON column
type OrderLines []OrderLine

// ItemsTotal returns the sum of all line subtotals
func (ls OrderLines) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range ls {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Value implements driver.Valuer for JSONB storage
func (ls OrderLines) Value() (driver.Value, error) {
	if ls == nil {
		return "[]", nil
	}
	b, err := json.Marshal(ls)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB storage
func (ls *OrderLines) Scan(value interface{}) error {
	if value == nil {
		*ls = OrderLines{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("unsupported type for OrderLines")
	}
	return json.Unmarshal(b, ls)
}

// CalculateNetTotal turns a set of order lines and a discount into the net
// amount payable. The discount is in currency units, not a percentage, and
// the result is deliberately not floored at zero: a negative net total is a
// credit owed by the laboratory.
func CalculateNetTotal(lines OrderLines, discount decimal.Decimal) decimal.Decimal {
	return lines.ItemsTotal().Sub(discount)
}
