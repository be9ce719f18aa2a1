// Package documents handles document intake: uploads land in blob storage,
// their text is extracted, and an analysis item is queued for the next
// sync cycle.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"fineprint-agent/internal/cache"
	"fineprint-agent/internal/extract"
	"fineprint-agent/internal/shared/storage/object"
	"fineprint-agent/internal/shared/telemetry"
	"fineprint-agent/internal/workqueue"
)

// ErrInvalidInput marks a rejected upload.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnsupported marks a document format no extractor can read.
var ErrUnsupported = errors.New("unsupported document format")

// Service contains business logic for document intake.
type Service struct {
	Blobs  object.BlobStore
	Queue  *workqueue.Queue
	Cache  *cache.Cache
	Notify func()
}

// IngestInput describes an uploaded document.
type IngestInput struct {
	FileName string
	UserID   string
	Options  workqueue.AnalysisOptions
}

// Ingest stores the raw document, extracts its text, and queues it for
// analysis. The returned item carries the generated document ID.
func (s *Service) Ingest(ctx context.Context, in IngestInput, r io.Reader) (workqueue.Item, error) {
	if in.FileName == "" {
		return workqueue.Item{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return workqueue.Item{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return workqueue.Item{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	docID := uuid.NewString()
	storageKey, sizeBytes, mimeType, err := s.Blobs.Save(ctx, docID, in.FileName, bytes.NewReader(data))
	if err != nil {
		return workqueue.Item{}, fmt.Errorf("store document: %w", err)
	}

	text, err := extract.FromBytes(ctx, data, mimeType, in.FileName)
	if err != nil {
		s.discardBlob(ctx, storageKey)
		return workqueue.Item{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	item, err := s.Queue.Enqueue(ctx, workqueue.EnqueueInput{
		DocumentID: docID,
		FileName:   in.FileName,
		MimeType:   mimeType,
		SizeBytes:  sizeBytes,
		UserID:     in.UserID,
		StorageKey: storageKey,
		Content:    text,
		Options:    in.Options,
	})
	if err != nil {
		s.discardBlob(ctx, storageKey)
		return workqueue.Item{}, err
	}

	telemetry.Info("document queued", map[string]any{
		"documentId": docID,
		"fileName":   in.FileName,
		"mimeType":   mimeType,
		"sizeBytes":  sizeBytes,
	})

	if s.Notify != nil {
		s.Notify()
	}
	return item, nil
}

// Analysis returns the cached analysis for a document.
func (s *Service) Analysis(ctx context.Context, documentID string) (cache.CachedAnalysis, error) {
	return s.Cache.Get(ctx, documentID)
}

func (s *Service) discardBlob(ctx context.Context, storageKey string) {
	if err := s.Blobs.Remove(ctx, storageKey); err != nil {
		telemetry.Warn("discard rejected upload", map[string]any{
			"storageKey": storageKey,
			"error":      err.Error(),
		})
	}
}
