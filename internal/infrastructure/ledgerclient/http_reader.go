package ledgerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/config"
)

// maxResponseSize is the maximum allowed response size from the ledger API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// HTTPReader implements ledger.Reader against the practice-management
// system's read-only ledger API. The ledger owns the rows; any failure to
// reach it surfaces as ErrLedgerUnavailable so callers can distinguish
// upstream outages from their own errors.
type HTTPReader struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPReader creates a ledger reader from configuration
func NewHTTPReader(cfg config.LedgerConfig) (*HTTPReader, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ledger base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid ledger base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPReader{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// transactionDTO is the wire representation of one daily ledger row
type transactionDTO struct {
	ID               string                     `json:"id"`
	Date             time.Time                  `json:"date"`
	PatientName      string                     `json:"patient_name"`
	DoctorName       string                     `json:"doctor_name"`
	LabName          string                     `json:"lab_name"`
	TreatmentAmounts map[string]decimal.Decimal `json:"treatment_amounts"`
	RetailProducts   decimal.Decimal            `json:"retail_products"`
	RetailWhitening  decimal.Decimal            `json:"retail_diy_whitening"`
	Revenue          decimal.Decimal            `json:"revenue"`
	TreatmentContent string                     `json:"treatment_content"`
}

// monthlyTransactionsResponse is the ledger API response envelope
type monthlyTransactionsResponse struct {
	Transactions []transactionDTO `json:"transactions"`
}

// FetchMonthlyTransactions fetches all ledger rows for a clinic month
func (r *HTTPReader) FetchMonthlyTransactions(ctx context.Context, clinicID uuid.UUID, ym ledger.YearMonth) ([]ledger.Transaction, error) {
	endpoint := fmt.Sprintf("%s/api/v1/clinics/%s/transactions?month=%s",
		r.baseURL, clinicID, url.QueryEscape(ym.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrLedgerUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ledger returned status %d", shared.ErrLedgerUnavailable, resp.StatusCode)
	}

	var envelope monthlyTransactionsResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", shared.ErrLedgerUnavailable, err)
	}

	transactions := make([]ledger.Transaction, 0, len(envelope.Transactions))
	for _, dto := range envelope.Transactions {
		transactions = append(transactions, dto.toDomain(clinicID))
	}
	return transactions, nil
}

// toDomain maps a wire row to the domain transaction. Treatment amounts with
// keys outside the closed category set are dropped rather than failing the
// whole month.
func (dto transactionDTO) toDomain(clinicID uuid.UUID) ledger.Transaction {
	amounts := make(map[ledger.BillingCategory]decimal.Decimal, len(dto.TreatmentAmounts))
	for key, amount := range dto.TreatmentAmounts {
		category := ledger.BillingCategory(key)
		if category.IsValid() {
			amounts[category] = amount
		}
	}
	return ledger.Transaction{
		ID:               dto.ID,
		Date:             dto.Date,
		ClinicID:         clinicID,
		PatientName:      dto.PatientName,
		DoctorName:       dto.DoctorName,
		LabName:          dto.LabName,
		TreatmentAmounts: amounts,
		RetailAmounts: ledger.RetailAmounts{
			Products:     dto.RetailProducts,
			DIYWhitening: dto.RetailWhitening,
		},
		Revenue:          dto.Revenue,
		TreatmentContent: dto.TreatmentContent,
	}
}

// Ensure HTTPReader implements the domain port
var _ ledger.Reader = (*HTTPReader)(nil)
