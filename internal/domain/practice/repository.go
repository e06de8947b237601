package practice

import (
	"context"
)

// Blob keys. The ledger and the achievement catalog are stored as two
// independent named blobs.
const (
	SessionsBlobKey     = "trainingData"
	AchievementsBlobKey = "achievements"
)

// BlobStore is a key-value store of opaque blobs. It is the only persistence
// contract the ledger relies on.
//
// Implementations:
//   - memory.BlobStore (process-local)
//   - sqlite.BlobStore (embedded file, default)
//   - postgres.BlobStore
//   - redis.BlobStore
//   - resilient.BlobStore (decorator)
type BlobStore interface {
	// Load returns the blob stored under key.
	// Returns shared.ErrBlobNotFound if nothing is stored under key.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the blob stored under key.
	Save(ctx context.Context, key string, data []byte) error

	// Close releases the store's resources.
	Close() error
}
