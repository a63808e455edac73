package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	labfeeapp "github.com/clinic/backend/internal/application/labfee"
	"github.com/clinic/backend/internal/domain/labfee"
	"github.com/clinic/backend/internal/domain/laboratory"
	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockLedgerReader implements ledger.Reader for testing
type MockLedgerReader struct {
	mock.Mock
}

func (m *MockLedgerReader) FetchMonthlyTransactions(ctx context.Context, clinicID uuid.UUID, ym ledger.YearMonth) ([]ledger.Transaction, error) {
	args := m.Called(ctx, clinicID, ym)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Transaction), args.Error(1)
}

// MockTechnicianRecordRepository implements labfee.TechnicianRecordRepository for testing
type MockTechnicianRecordRepository struct {
	mock.Mock
}

func (m *MockTechnicianRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*labfee.TechnicianRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*labfee.TechnicianRecord), args.Error(1)
}

func (m *MockTechnicianRecordRepository) FindForClinicMonth(ctx context.Context, clinicID uuid.UUID, filter labfee.RecordFilter) ([]labfee.TechnicianRecord, error) {
	args := m.Called(ctx, clinicID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]labfee.TechnicianRecord), args.Error(1)
}

func (m *MockTechnicianRecordRepository) FindLinked(ctx context.Context, clinicID uuid.UUID, linkedRowID string) (*labfee.TechnicianRecord, error) {
	args := m.Called(ctx, clinicID, linkedRowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*labfee.TechnicianRecord), args.Error(1)
}

func (m *MockTechnicianRecordRepository) Upsert(ctx context.Context, record *labfee.TechnicianRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockTechnicianRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockLaboratoryRepository implements laboratory.LaboratoryRepository for testing
type MockLaboratoryRepository struct {
	mock.Mock
}

func (m *MockLaboratoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*laboratory.Laboratory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*laboratory.Laboratory), args.Error(1)
}

func (m *MockLaboratoryRepository) FindByIDForClinic(ctx context.Context, clinicID, id uuid.UUID) (*laboratory.Laboratory, error) {
	args := m.Called(ctx, clinicID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*laboratory.Laboratory), args.Error(1)
}

func (m *MockLaboratoryRepository) FindByName(ctx context.Context, clinicID uuid.UUID, name string) (*laboratory.Laboratory, error) {
	args := m.Called(ctx, clinicID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*laboratory.Laboratory), args.Error(1)
}

func (m *MockLaboratoryRepository) FindAllForClinic(ctx context.Context, clinicID uuid.UUID, filter laboratory.LaboratoryFilter) ([]laboratory.Laboratory, error) {
	args := m.Called(ctx, clinicID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]laboratory.Laboratory), args.Error(1)
}

func (m *MockLaboratoryRepository) Save(ctx context.Context, lab *laboratory.Laboratory) error {
	args := m.Called(ctx, lab)
	return args.Error(0)
}

func (m *MockLaboratoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// stubGuard is a minimal in-process operation guard for handler tests
type stubGuard struct {
	mu   sync.Mutex
	held map[string]bool
}

func newStubGuard() *stubGuard {
	return &stubGuard{held: make(map[string]bool)}
}

func (g *stubGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *stubGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
	return nil
}

func (g *stubGuard) Close() error { return nil }

// stubReceiptStorage is a deterministic object store for attachment tests
type stubReceiptStorage struct {
	exists bool
}

func (s *stubReceiptStorage) GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error) {
	return "https://storage.example.com/upload/" + storageKey, time.Now().Add(15 * time.Minute), nil
}

func (s *stubReceiptStorage) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	return "https://storage.example.com/download/" + storageKey, time.Now().Add(15 * time.Minute), nil
}

func (s *stubReceiptStorage) DeleteObject(ctx context.Context, storageKey string) error {
	return nil
}

func (s *stubReceiptStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	return s.exists, nil
}

var testClinicID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type labFeeTestEnv struct {
	router  *gin.Engine
	ledger  *MockLedgerReader
	records *MockTechnicianRecordRepository
	guard   *stubGuard
	handler *LabFeeHandler
}

func setupLabFeeTestRouter() *labFeeTestEnv {
	gin.SetMode(gin.TestMode)

	mockLedger := new(MockLedgerReader)
	mockRecords := new(MockTechnicianRecordRepository)
	mockLabs := new(MockLaboratoryRepository)
	guard := newStubGuard()

	service := labfeeapp.NewReconciliationService(
		mockLedger, mockRecords, mockLabs, guard, shared.DefaultGuardConfig(), zap.NewNop())
	attachments := labfeeapp.NewAttachmentService(&stubReceiptStorage{exists: true}, "receipts", zap.NewNop())
	handler := NewLabFeeHandler(service, attachments)

	router := gin.New()
	// Add test authentication middleware that sets JWT context values
	router.Use(func(c *gin.Context) {
		setJWTContext(c, testClinicID, uuid.New())
		c.Next()
	})
	handler.RegisterRoutes(router.Group("/api/v1"))

	return &labFeeTestEnv{
		router:  router,
		ledger:  mockLedger,
		records: mockRecords,
		guard:   guard,
		handler: handler,
	}
}

func testLabTransaction(rowID, labName string) ledger.Transaction {
	return ledger.Transaction{
		ID:          rowID,
		Date:        time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		ClinicID:    testClinicID,
		PatientName: "Chen Wei",
		DoctorName:  "Dr. Lin",
		LabName:     labName,
		TreatmentAmounts: map[ledger.BillingCategory]decimal.Decimal{
			ledger.CategoryProsthodontics: decimal.NewFromInt(12000),
		},
		Revenue: decimal.NewFromInt(12000),
	}
}

func TestLabFeeHandler_GetWorksheet(t *testing.T) {
	t.Run("should return the merged worksheet", func(t *testing.T) {
		env := setupLabFeeTestRouter()
		month, _ := ledger.ParseYearMonth("2026-02")

		env.ledger.On("FetchMonthlyTransactions", mock.Anything, testClinicID, month).
			Return([]ledger.Transaction{testLabTransaction("tx-1", "Smile Dental Lab")}, nil)
		env.records.On("FindForClinicMonth", mock.Anything, testClinicID, mock.Anything).
			Return([]labfee.TechnicianRecord{}, nil)

		req, _ := http.NewRequest(http.MethodGet, "/api/v1/labfees/worksheet?month=2026-02&lab=Smile+Dental+Lab", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Success bool                        `json:"success"`
			Data    labfeeapp.WorksheetResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Success)
		assert.Equal(t, "2026-02", response.Data.Month)
		require.Len(t, response.Data.Rows, 1)
		assert.Equal(t, "tx-1", response.Data.Rows[0].RowID)
		assert.Equal(t, "PROSTHODONTICS", response.Data.Rows[0].SelectedCategory)
	})

	t.Run("should reject a missing month", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		req, _ := http.NewRequest(http.MethodGet, "/api/v1/labfees/worksheet", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should reject a malformed month", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		req, _ := http.NewRequest(http.MethodGet, "/api/v1/labfees/worksheet?month=Feb-2026", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_VALIDATION")
		assert.Contains(t, w.Body.String(), "month")
	})

	t.Run("should return 502 when the ledger is unreachable", func(t *testing.T) {
		env := setupLabFeeTestRouter()
		month, _ := ledger.ParseYearMonth("2026-02")

		env.ledger.On("FetchMonthlyTransactions", mock.Anything, testClinicID, month).
			Return(nil, shared.ErrLedgerUnavailable)

		req, _ := http.NewRequest(http.MethodGet, "/api/v1/labfees/worksheet?month=2026-02", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_LEDGER_UNAVAILABLE")
	})
}

func TestLabFeeHandler_SaveCategories(t *testing.T) {
	t.Run("should save a batch and report per-row outcomes", func(t *testing.T) {
		env := setupLabFeeTestRouter()
		month, _ := ledger.ParseYearMonth("2026-02")

		tx := testLabTransaction("tx-1", "Smile Dental Lab")
		tx.TreatmentAmounts[ledger.CategorySelfPay] = decimal.NewFromInt(2000)

		env.ledger.On("FetchMonthlyTransactions", mock.Anything, testClinicID, month).
			Return([]ledger.Transaction{tx}, nil)
		env.records.On("FindForClinicMonth", mock.Anything, testClinicID, mock.Anything).
			Return([]labfee.TechnicianRecord{}, nil)
		env.records.On("FindLinked", mock.Anything, testClinicID, "tx-1").
			Return(nil, nil)
		env.records.On("Upsert", mock.Anything, mock.AnythingOfType("*labfee.TechnicianRecord")).
			Return(nil)

		reqBody := SaveCategoriesRequest{
			Month: "2026-02",
			Lab:   "Smile Dental Lab",
			Changes: []labfeeapp.CategoryChange{
				{RowID: "tx-1", Category: "SELF_PAY"},
			},
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/api/v1/labfees/categories:batch", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Success bool                             `json:"success"`
			Data    labfeeapp.SaveCategoriesResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data.Outcomes, 1)
		assert.Equal(t, "tx-1", response.Data.Outcomes[0].RowID)
		assert.Equal(t, labfeeapp.OutcomeSaved, response.Data.Outcomes[0].Status)
	})

	t.Run("should reject an empty batch", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		body, _ := json.Marshal(SaveCategoriesRequest{
			Month:   "2026-02",
			Lab:     "Smile Dental Lab",
			Changes: []labfeeapp.CategoryChange{},
		})

		req, _ := http.NewRequest(http.MethodPost, "/api/v1/labfees/categories:batch", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should return 409 while another save is in flight", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		// Simulate a save already holding the worksheet guard.
		key := "labfee:save:" + testClinicID.String() + ":2026-02:Smile Dental Lab"
		acquired, err := env.guard.Acquire(context.Background(), key, time.Minute)
		require.NoError(t, err)
		require.True(t, acquired)

		body, _ := json.Marshal(SaveCategoriesRequest{
			Month: "2026-02",
			Lab:   "Smile Dental Lab",
			Changes: []labfeeapp.CategoryChange{
				{RowID: "tx-1", Category: "SELF_PAY"},
			},
		})

		req, _ := http.NewRequest(http.MethodPost, "/api/v1/labfees/categories:batch", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_SAVE_IN_FLIGHT")
	})
}

func TestLabFeeHandler_SaveOrder(t *testing.T) {
	t.Run("should replace a row's itemized order", func(t *testing.T) {
		env := setupLabFeeTestRouter()
		month, _ := ledger.ParseYearMonth("2026-02")

		env.ledger.On("FetchMonthlyTransactions", mock.Anything, testClinicID, month).
			Return([]ledger.Transaction{testLabTransaction("tx-1", "Smile Dental Lab")}, nil)
		env.records.On("FindLinked", mock.Anything, testClinicID, "tx-1").
			Return(nil, nil)
		env.records.On("Upsert", mock.Anything, mock.AnythingOfType("*labfee.TechnicianRecord")).
			Return(nil)

		reqBody := labfeeapp.SaveOrderRequest{
			Month: "2026-02",
			Lines: []labfeeapp.OrderLineInput{
				{Name: "Zirconia crown", ToothPosition: "16", Quantity: 1, UnitPrice: decimal.NewFromInt(3500)},
			},
			Discount: decimal.NewFromInt(500),
			Note:     "rush case",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPut, "/api/v1/labfees/rows/tx-1/order", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Success bool                         `json:"success"`
			Data    labfeeapp.DerivedRowResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "tx-1", response.Data.RowID)
		assert.Equal(t, "3000", response.Data.CurrentFee.String())
		require.Len(t, response.Data.Details, 1)
		assert.Equal(t, "Zirconia crown", response.Data.Details[0].Name)
	})

	t.Run("should return 404 for a row outside the month", func(t *testing.T) {
		env := setupLabFeeTestRouter()
		month, _ := ledger.ParseYearMonth("2026-02")

		env.ledger.On("FetchMonthlyTransactions", mock.Anything, testClinicID, month).
			Return([]ledger.Transaction{}, nil)

		body, _ := json.Marshal(labfeeapp.SaveOrderRequest{Month: "2026-02"})
		req, _ := http.NewRequest(http.MethodPut, "/api/v1/labfees/rows/missing/order", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLabFeeHandler_AddManualRecord(t *testing.T) {
	t.Run("should create a manual record and return the remerged worksheet", func(t *testing.T) {
		env := setupLabFeeTestRouter()
		month, _ := ledger.ParseYearMonth("2026-02")

		var saved labfee.TechnicianRecord
		env.records.On("Upsert", mock.Anything, mock.AnythingOfType("*labfee.TechnicianRecord")).
			Run(func(args mock.Arguments) {
				saved = *args.Get(1).(*labfee.TechnicianRecord)
			}).
			Return(nil)
		env.ledger.On("FetchMonthlyTransactions", mock.Anything, testClinicID, month).
			Return([]ledger.Transaction{}, nil)
		env.records.On("FindForClinicMonth", mock.Anything, testClinicID, labfee.RecordFilter{Month: month}).
			Return([]labfee.TechnicianRecord{}, nil)

		reqBody := labfeeapp.AddManualRecordRequest{
			LabName:     "Smile Dental Lab",
			Date:        time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(-800),
			Category:    "PROSTHODONTICS",
			PatientName: "Chen Wei",
			Note:        "remake credit",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/api/v1/labfees/manual", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response struct {
			Success bool                           `json:"success"`
			Data    labfeeapp.ManualRecordResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "MANUAL", response.Data.Record.Kind)
		assert.Equal(t, "-800", response.Data.Record.Amount.String())
		assert.Equal(t, "Smile Dental Lab", saved.LabName)

		// The worksheet in the response covers the record's month and lab.
		assert.Equal(t, "2026-02", response.Data.Worksheet.Month)
		assert.Equal(t, "Smile Dental Lab", response.Data.Worksheet.LabName)
		env.ledger.AssertCalled(t, "FetchMonthlyTransactions", mock.Anything, testClinicID, month)
	})

	t.Run("should reject the aggregate lab view", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		reqBody := labfeeapp.AddManualRecordRequest{
			LabName:     "ALL",
			Date:        time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(100),
			Category:    "PROSTHODONTICS",
			PatientName: "Chen Wei",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/api/v1/labfees/manual", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLabFeeHandler_DeleteManualRecord(t *testing.T) {
	t.Run("should delete a manual record", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		record, err := labfee.NewManualRecord(testClinicID, labfee.ManualRecordInput{
			LabName:     "Smile Dental Lab",
			Date:        time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(500),
			Category:    ledger.CategoryProsthodontics,
			PatientName: "Chen Wei",
		})
		require.NoError(t, err)

		env.records.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		env.records.On("Delete", mock.Anything, record.ID).Return(nil)

		req, _ := http.NewRequest(http.MethodDelete, "/api/v1/labfees/manual/"+record.ID.String(), nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("should reject a malformed record ID", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		req, _ := http.NewRequest(http.MethodDelete, "/api/v1/labfees/manual/not-a-uuid", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should return 404 for another clinic's record", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		record, err := labfee.NewManualRecord(uuid.New(), labfee.ManualRecordInput{
			LabName:     "Smile Dental Lab",
			Date:        time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(500),
			Category:    ledger.CategoryProsthodontics,
			PatientName: "Chen Wei",
		})
		require.NoError(t, err)

		env.records.On("FindByID", mock.Anything, record.ID).Return(record, nil)

		req, _ := http.NewRequest(http.MethodDelete, "/api/v1/labfees/manual/"+record.ID.String(), nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLabFeeHandler_GetSummary(t *testing.T) {
	t.Run("should aggregate per laboratory", func(t *testing.T) {
		env := setupLabFeeTestRouter()
		month, _ := ledger.ParseYearMonth("2026-02")

		manual, err := labfee.NewManualRecord(testClinicID, labfee.ManualRecordInput{
			LabName:     "Apex Ortho Lab",
			Date:        time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(900),
			Category:    ledger.CategoryOrthodontics,
			PatientName: "Lin Mei",
		})
		require.NoError(t, err)

		env.ledger.On("FetchMonthlyTransactions", mock.Anything, testClinicID, month).
			Return([]ledger.Transaction{testLabTransaction("tx-1", "Smile Dental Lab")}, nil)
		env.records.On("FindForClinicMonth", mock.Anything, testClinicID, mock.Anything).
			Return([]labfee.TechnicianRecord{*manual}, nil)

		req, _ := http.NewRequest(http.MethodGet, "/api/v1/labfees/summary?month=2026-02", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Success bool                             `json:"success"`
			Data    labfeeapp.MonthlySummaryResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "2026-02", response.Data.Month)
		assert.Len(t, response.Data.Labs, 2)
	})

	t.Run("should reject a missing month", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		req, _ := http.NewRequest(http.MethodGet, "/api/v1/labfees/summary", nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLabFeeHandler_Attachments(t *testing.T) {
	t.Run("should presign a receipt upload", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		body, _ := json.Marshal(PrepareAttachmentRequest{
			RecordID:    uuid.New(),
			Filename:    "delivery-slip.jpg",
			ContentType: "image/jpeg",
		})

		req, _ := http.NewRequest(http.MethodPost, "/api/v1/labfees/attachments", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Success bool                            `json:"success"`
			Data    labfeeapp.ReceiptUploadResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Contains(t, response.Data.UploadURL, "https://storage.example.com/upload/")
		assert.Contains(t, response.Data.StorageKey, "receipts/"+testClinicID.String()+"/")
	})

	t.Run("should reject an unsupported content type", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		body, _ := json.Marshal(PrepareAttachmentRequest{
			RecordID:    uuid.New(),
			Filename:    "notes.txt",
			ContentType: "text/plain",
		})

		req, _ := http.NewRequest(http.MethodPost, "/api/v1/labfees/attachments", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should link an uploaded receipt to its record", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		record, err := labfee.NewManualRecord(testClinicID, labfee.ManualRecordInput{
			LabName:     "Smile Dental Lab",
			Date:        time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(500),
			Category:    ledger.CategoryProsthodontics,
			PatientName: "Chen Wei",
		})
		require.NoError(t, err)

		env.records.On("FindByID", mock.Anything, record.ID).Return(record, nil)
		env.records.On("Upsert", mock.Anything, mock.AnythingOfType("*labfee.TechnicianRecord")).
			Return(nil)

		storageKey := "receipts/" + testClinicID.String() + "/" + record.ID.String() + "/slip.jpg"
		body, _ := json.Marshal(ConfirmAttachmentRequest{
			RecordID:   record.ID,
			StorageKey: storageKey,
		})

		req, _ := http.NewRequest(http.MethodPost, "/api/v1/labfees/attachments/confirm", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Success bool                               `json:"success"`
			Data    labfeeapp.TechnicianRecordResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, storageKey, response.Data.AttachmentURLs)
	})

	t.Run("should return a download URL for an owned receipt", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		key := "receipts/" + testClinicID.String() + "/some-record/slip.jpg"
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/labfees/attachments/download?key="+key, nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "download_url")
	})

	t.Run("should hide receipts outside the clinic scope", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		key := "receipts/" + uuid.NewString() + "/other/slip.jpg"
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/labfees/attachments/download?key="+key, nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("should delete an owned receipt", func(t *testing.T) {
		env := setupLabFeeTestRouter()

		key := "receipts/" + testClinicID.String() + "/some-record/slip.jpg"
		req, _ := http.NewRequest(http.MethodDelete, "/api/v1/labfees/attachments?key="+key, nil)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
