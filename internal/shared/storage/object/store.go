package object

import (
	"context"
	"io"
)

// BlobStore defines the contract for saving, retrieving, and deleting the
// raw document files backing queued analyses.
type BlobStore interface {
	Save(ctx context.Context, docID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Remove(ctx context.Context, storageKey string) error
}
