// Package memory implements a process-local blob store. Nothing survives the
// process; it backs tests and the "memory" storage backend.
package memory

import (
	"context"
	"sync"

	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/internal/domain/shared"
)

// BlobStore implements practice.BlobStore on a map.
type BlobStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	closed bool

	loadErr error
	saveErr error
	loads   int
	saves   int
}

var _ practice.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// Load returns a copy of the blob stored under key.
func (s *BlobStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loads++
	if s.closed {
		return nil, shared.ErrStoreClosed
	}
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	data, ok := s.blobs[key]
	if !ok {
		return nil, shared.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save stores a copy of data under key.
func (s *BlobStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	if s.closed {
		return shared.ErrStoreClosed
	}
	if s.saveErr != nil {
		return s.saveErr
	}

	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

// Close marks the store closed.
func (s *BlobStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST HOOKS
// ══════════════════════════════════════════════════════════════════════════════

// Put seeds a blob directly.
func (s *BlobStore) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
}

// Get returns the raw blob under key without counting a load.
func (s *BlobStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	return append([]byte(nil), data...), ok
}

// FailLoads makes every Load return err until called with nil.
func (s *BlobStore) FailLoads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// FailSaves makes every Save return err until called with nil.
func (s *BlobStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Calls returns how many loads and saves were attempted.
func (s *BlobStore) Calls() (loads, saves int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads, s.saves
}
