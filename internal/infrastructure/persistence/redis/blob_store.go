// Package redis implements the Redis blob store backend. Each blob is a
// plain string value under a namespaced key, stored without expiry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drawdrill/drawdrill/config"
	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/internal/domain/shared"
)

// DefaultPrefix namespaces blob keys when no prefix is configured.
const DefaultPrefix = "drawdrill:"

// ErrCacheConnection is returned by Open when the server does not answer.
var ErrCacheConnection = errors.New("cache: connection failed")

// Config holds client settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string

	PoolSize int
	// MaxRetries is the client's own retry count; -1 disables it.
	MaxRetries int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig targets a local server with short timeouts.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Prefix:       DefaultPrefix,
		PoolSize:     4,
		MaxRetries:   1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ConfigFrom overlays application settings on DefaultConfig. An empty prefix
// keeps DefaultPrefix.
func ConfigFrom(rc config.RedisConfig) Config {
	cfg := DefaultConfig()
	if rc.Addr != "" {
		cfg.Addr = rc.Addr
	}
	cfg.Password = rc.Password
	cfg.DB = rc.DB
	if rc.Prefix != "" {
		cfg.Prefix = rc.Prefix
	}
	return cfg
}

// NewClient builds a client without dialing.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// Dial builds a client and pings it once.
func Dial(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := NewClient(cfg)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheConnection, cfg.Addr, err)
	}
	return client, nil
}

// BlobStore implements practice.BlobStore on Redis strings.
type BlobStore struct {
	client *redis.Client
	prefix string
}

var _ practice.BlobStore = (*BlobStore)(nil)

// Open dials Redis and returns a store over the connection.
func Open(ctx context.Context, cfg Config) (*BlobStore, error) {
	client, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewBlobStore(client, cfg.Prefix), nil
}

// NewBlobStore wraps client. The store owns it from here on.
func NewBlobStore(client *redis.Client, prefix string) *BlobStore {
	return &BlobStore{client: client, prefix: prefix}
}

// Key maps a blob key to its Redis key.
func (s *BlobStore) Key(key string) string {
	return s.prefix + key
}

// Load returns the blob stored under key.
func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.Key(key)).Bytes()
	if err != nil {
		return nil, s.translate("get", key, err)
	}
	return data, nil
}

// Save overwrites the blob stored under key.
func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.Key(key), data, 0).Err(); err != nil {
		return s.translate("set", key, err)
	}
	return nil
}

func (s *BlobStore) translate(op, key string, err error) error {
	switch {
	case errors.Is(err, redis.Nil):
		return shared.ErrBlobNotFound
	case errors.Is(err, redis.ErrClosed):
		return shared.ErrStoreClosed
	}
	return fmt.Errorf("redis %s %s: %w", op, s.Key(key), err)
}

// Ping checks that the server answers.
func (s *BlobStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *BlobStore) Close() error {
	return s.client.Close()
}
