package labfee

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinic/backend/internal/domain/shared"
)

// ObjectStorageService abstracts the presigned-URL object store behind the
// receipt upload flow. Implementations live in infrastructure/storage.
type ObjectStorageService interface {
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error)
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
	DeleteObject(ctx context.Context, storageKey string) error
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}

// allowedReceiptContentTypes is the closed set of receipt file types.
// Paper delivery slips arrive as phone photos or scanned PDFs.
var allowedReceiptContentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// AttachmentService issues presigned upload and download URLs for receipt
// attachments. The actual record linkage happens through
// ReconciliationService.AttachReceipt once the client has uploaded the file.
type AttachmentService struct {
	storage   ObjectStorageService
	keyPrefix string
	logger    *zap.Logger
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(storage ObjectStorageService, keyPrefix string, logger *zap.Logger) *AttachmentService {
	if keyPrefix == "" {
		keyPrefix = "receipts"
	}
	return &AttachmentService{
		storage:   storage,
		keyPrefix: strings.Trim(keyPrefix, "/"),
		logger:    logger,
	}
}

// ReceiptUploadResponse carries the presigned upload target for one receipt
type ReceiptUploadResponse struct {
	UploadURL  string    `json:"upload_url"`
	StorageKey string    `json:"storage_key"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ReceiptDownloadResponse carries a short-lived download URL for one receipt
type ReceiptDownloadResponse struct {
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PrepareReceiptUpload validates the file type and returns a presigned PUT
// URL under a key scoped to the clinic and record.
func (s *AttachmentService) PrepareReceiptUpload(ctx context.Context, clinicID, recordID uuid.UUID, filename, contentType string) (*ReceiptUploadResponse, error) {
	ext, ok := allowedReceiptContentTypes[contentType]
	if !ok {
		return nil, shared.NewValidationError("content_type", fmt.Sprintf("unsupported receipt type %q", contentType))
	}
	if filename == "" {
		return nil, shared.NewValidationError("filename", "cannot be empty")
	}
	if declared := strings.ToLower(path.Ext(filename)); declared != "" && declared != ext && !(declared == ".jpeg" && ext == ".jpg") {
		return nil, shared.NewValidationError("filename", fmt.Sprintf("extension %q does not match content type %q", declared, contentType))
	}

	storageKey := fmt.Sprintf("%s/%s/%s/%s%s", s.keyPrefix, clinicID, recordID, uuid.New(), ext)

	uploadURL, expiresAt, err := s.storage.GenerateUploadURL(ctx, storageKey, contentType, 0)
	if err != nil {
		s.logger.Error("Failed to generate receipt upload URL",
			zap.String("clinic_id", clinicID.String()),
			zap.String("record_id", recordID.String()),
			zap.Error(err))
		return nil, err
	}

	return &ReceiptUploadResponse{
		UploadURL:  uploadURL,
		StorageKey: storageKey,
		ExpiresAt:  expiresAt,
	}, nil
}

// ReceiptDownloadURL returns a short-lived download URL for a stored receipt.
// Keys outside the caller's clinic scope are rejected.
func (s *AttachmentService) ReceiptDownloadURL(ctx context.Context, clinicID uuid.UUID, storageKey string) (*ReceiptDownloadResponse, error) {
	if storageKey == "" {
		return nil, shared.NewValidationError("storage_key", "cannot be empty")
	}
	if !strings.HasPrefix(storageKey, s.keyPrefix+"/"+clinicID.String()+"/") {
		return nil, shared.NewDomainError("NOT_FOUND", "Receipt not found")
	}

	exists, err := s.storage.ObjectExists(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, shared.NewDomainError("NOT_FOUND", "Receipt not found")
	}

	downloadURL, expiresAt, err := s.storage.GenerateDownloadURL(ctx, storageKey, 0)
	if err != nil {
		return nil, err
	}

	return &ReceiptDownloadResponse{
		DownloadURL: downloadURL,
		ExpiresAt:   expiresAt,
	}, nil
}

// DeleteReceipt removes a stored receipt object. Missing objects are treated
// as already deleted.
func (s *AttachmentService) DeleteReceipt(ctx context.Context, clinicID uuid.UUID, storageKey string) error {
	if storageKey == "" {
		return shared.NewValidationError("storage_key", "cannot be empty")
	}
	if !strings.HasPrefix(storageKey, s.keyPrefix+"/"+clinicID.String()+"/") {
		return shared.NewDomainError("NOT_FOUND", "Receipt not found")
	}
	return s.storage.DeleteObject(ctx, storageKey)
}
