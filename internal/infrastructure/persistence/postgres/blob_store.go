package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/internal/domain/shared"
)

// BlobStore implements practice.BlobStore on the practice_blobs table.
type BlobStore struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

var _ practice.BlobStore = (*BlobStore)(nil)

// Open connects, applies pending migrations and returns a ready store.
func Open(ctx context.Context, cfg Config) (*BlobStore, error) {
	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &BlobStore{pool: pool}, nil
}

// Load returns the blob stored under key.
func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, shared.ErrStoreClosed
	}

	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM practice_blobs WHERE key = $1`, key).Scan(&data)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, shared.ErrBlobNotFound
	case err != nil:
		return nil, classify(fmt.Errorf("postgres: load %s: %w", key, err))
	}
	return data, nil
}

// Save upserts the blob stored under key.
func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	if s.closed.Load() {
		return shared.ErrStoreClosed
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO practice_blobs (key, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		key, data,
	)
	if err != nil {
		return classify(fmt.Errorf("postgres: save %s: %w", key, err))
	}
	return nil
}

// Ping checks that the database answers.
func (s *BlobStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return shared.ErrStoreClosed
	}
	return s.pool.Ping(ctx)
}

// Close releases the pool. Later calls are no-ops.
func (s *BlobStore) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}
