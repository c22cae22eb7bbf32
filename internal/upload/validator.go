package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/odyssey-erp/landhub/internal/shared"
)

// OutcomeRecorder counts validation outcomes ("stored" or a failure kind).
type OutcomeRecorder interface {
	Upload(outcome string)
}

// Validator checks uploads by content and persists the accepted ones.
type Validator struct {
	storage BlobStorage
	logger  *slog.Logger
	metrics OutcomeRecorder
	now     func() time.Time
	random  io.Reader
}

// NewValidator constructs a Validator over storage.
func NewValidator(storage BlobStorage, logger *slog.Logger, metrics OutcomeRecorder) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{storage: storage, logger: logger, metrics: metrics, now: time.Now, random: defaultRandom}
}

// Validate reads at most maxSize bytes from r, checks the sniffed type against the image
// allow-list and the declared extension, stores the bytes under a random path and verifies
// what was stored. declaredContentType is recorded in logs only.
func (v *Validator) Validate(ctx context.Context, r io.Reader, declaredName, declaredContentType string, maxSize int64) (*UploadedAsset, error) {
	asset, err := v.validate(ctx, r, declaredName, declaredContentType, maxSize)
	if v.metrics != nil {
		v.metrics.Upload(outcomeOf(err))
	}
	return asset, err
}

func (v *Validator) validate(ctx context.Context, r io.Reader, declaredName, declaredContentType string, maxSize int64) (*UploadedAsset, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	data, err := io.ReadAll(io.LimitReader(contextReader{ctx: ctx, r: r}, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", shared.ErrUploadWriteFailed, err)
	}
	if int64(len(data)) > maxSize {
		return nil, shared.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, shared.ErrInvalidFileType
	}

	detected := baseMIME(mimetype.Detect(data).String())
	ext, ok := allowedTypes[detected]
	if !ok {
		v.logger.Warn("upload rejected by content type",
			slog.String("detected", detected),
			slog.String("declared", declaredContentType),
		)
		return nil, shared.ErrInvalidFileType
	}
	originalName := cleanOriginalName(declaredName)
	if declaredExtension(originalName) != ext {
		return nil, shared.ErrExtensionMismatch
	}
	if declared := baseMIME(declaredContentType); declared != "" && declared != detected {
		v.logger.Debug("declared content type differs from content",
			slog.String("detected", detected),
			slog.String("declared", declared),
		)
	}

	if v.storage == nil {
		return nil, fmt.Errorf("%w: storage not configured", shared.ErrUploadWriteFailed)
	}
	createdAt := v.now().UTC()
	storagePath, err := generatePath(v.random, createdAt, ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUploadWriteFailed, err)
	}
	if err := v.storage.Write(ctx, storagePath, bytes.NewReader(data)); err != nil {
		v.logger.Error("upload write failed", slog.String("path", storagePath), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", shared.ErrUploadWriteFailed, err)
	}

	if err := v.verify(ctx, storagePath, detected, int64(len(data)), maxSize); err != nil {
		v.logger.Error("upload verification failed", slog.String("path", storagePath), slog.Any("error", err))
		// Use a fresh context so a cancelled request still removes the object.
		if derr := v.storage.Delete(context.WithoutCancel(ctx), storagePath); derr != nil {
			v.logger.Error("upload rollback failed", slog.String("path", storagePath), slog.Any("error", derr))
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrUploadVerificationFailed, err)
	}

	return &UploadedAsset{
		OriginalName: originalName,
		DetectedMIME: detected,
		Extension:    ext,
		SizeBytes:    int64(len(data)),
		StoragePath:  storagePath,
		CreatedAt:    createdAt,
	}, nil
}

// verify re-reads the stored object and checks its type and size.
func (v *Validator) verify(ctx context.Context, storagePath, expectedMIME string, expectedSize, maxSize int64) error {
	rc, err := v.storage.ReadBack(ctx, storagePath)
	if err != nil {
		return err
	}
	defer rc.Close()
	stored, err := io.ReadAll(io.LimitReader(rc, maxSize+1))
	if err != nil {
		return err
	}
	if int64(len(stored)) != expectedSize {
		return fmt.Errorf("stored size %d, expected %d", len(stored), expectedSize)
	}
	if got := baseMIME(mimetype.Detect(stored).String()); got != expectedMIME {
		return fmt.Errorf("stored content sniffs as %s, expected %s", got, expectedMIME)
	}
	return nil
}

func baseMIME(value string) string {
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = value[:i]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "stored"
	case errors.Is(err, shared.ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, shared.ErrInvalidFileType):
		return "invalid_file_type"
	case errors.Is(err, shared.ErrExtensionMismatch):
		return "extension_mismatch"
	case errors.Is(err, shared.ErrUploadVerificationFailed):
		return "verification_failed"
	}
	return "write_failed"
}
