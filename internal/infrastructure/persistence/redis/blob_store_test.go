package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawdrill/drawdrill/config"
	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/internal/domain/shared"
)

func unreachableStore() *BlobStore {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.MaxRetries = -1
	cfg.DialTimeout = 100 * time.Millisecond
	return NewBlobStore(NewClient(cfg), cfg.Prefix)
}

func TestBlobStore_Key(t *testing.T) {
	s := NewBlobStore(nil, "test:")
	assert.Equal(t, "test:trainingData", s.Key(practice.SessionsBlobKey))
	assert.Equal(t, "test:achievements", s.Key(practice.AchievementsBlobKey))
}

func TestBlobStore_UnreachableIsNotMissing(t *testing.T) {
	s := unreachableStore()
	defer s.Close()

	_, err := s.Load(context.Background(), practice.SessionsBlobKey)
	require.Error(t, err)
	assert.False(t, errors.Is(err, shared.ErrBlobNotFound))

	err = s.Save(context.Background(), practice.SessionsBlobKey, []byte("[]"))
	require.Error(t, err)
}

func TestBlobStore_Closed(t *testing.T) {
	s := unreachableStore()
	require.NoError(t, s.Close())

	_, err := s.Load(context.Background(), practice.SessionsBlobKey)
	assert.ErrorIs(t, err, shared.ErrStoreClosed)
}

func TestOpen_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.MaxRetries = -1
	cfg.DialTimeout = 100 * time.Millisecond

	_, err := Open(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.RedisConfig{Addr: "cache:6380", DB: 2})
	assert.Equal(t, "cache:6380", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, DefaultPrefix, cfg.Prefix)

	cfg = ConfigFrom(config.RedisConfig{Prefix: "trainee-7:"})
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, "trainee-7:", cfg.Prefix)
}
