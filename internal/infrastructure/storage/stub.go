package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	labfeeapp "github.com/clinic/backend/internal/application/labfee"
	infraconfig "github.com/clinic/backend/internal/infrastructure/config"
)

// StubObjectStorage is a placeholder ObjectStorageService for development
// and tests. URLs it returns are not real presigned URLs.
type StubObjectStorage struct {
	// BaseURL is the base URL for generated upload/download URLs.
	// Defaults to "https://storage.example.com" if not set.
	BaseURL string
}

// NewStubObjectStorage creates a new StubObjectStorage
func NewStubObjectStorage() *StubObjectStorage {
	return &StubObjectStorage{
		BaseURL: "https://storage.example.com",
	}
}

// Ensure StubObjectStorage implements ObjectStorageService
var _ labfeeapp.ObjectStorageService = (*StubObjectStorage)(nil)

// GenerateUploadURL generates a stub upload URL
func (s *StubObjectStorage) GenerateUploadURL(
	ctx context.Context,
	storageKey, contentType string,
	expiresIn time.Duration,
) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	expiresAt := time.Now().Add(expiresIn)
	url := s.BaseURL + "/upload/" + storageKey + "?expires=" + expiresAt.Format(time.RFC3339)

	return url, expiresAt, nil
}

// GenerateDownloadURL generates a stub download URL
func (s *StubObjectStorage) GenerateDownloadURL(
	ctx context.Context,
	storageKey string,
	expiresIn time.Duration,
) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	expiresAt := time.Now().Add(expiresIn)
	url := s.BaseURL + "/download/" + storageKey + "?expires=" + expiresAt.Format(time.RFC3339)

	return url, expiresAt, nil
}

// DeleteObject is a no-op stub that always succeeds
func (s *StubObjectStorage) DeleteObject(ctx context.Context, storageKey string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	return nil
}

// ObjectExists always returns true so the attach flow works in development
func (s *StubObjectStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}
	return true, nil
}

// NewObjectStorage selects the configured storage provider
func NewObjectStorage(cfg *infraconfig.StorageConfig, opts ...S3ObjectStorageOption) (labfeeapp.ObjectStorageService, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	switch cfg.Provider {
	case "s3":
		return NewS3ObjectStorage(cfg, opts...)
	case "", "stub":
		return NewStubObjectStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
