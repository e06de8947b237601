// Package resilient decorates a blob store with retries and a circuit breaker.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/internal/domain/shared"
	"github.com/drawdrill/drawdrill/pkg/circuitbreaker"
	"github.com/drawdrill/drawdrill/pkg/logger"
	"github.com/drawdrill/drawdrill/pkg/retry"
)

// Config tunes the decorator.
type Config struct {
	// Backend names the wrapped store in logs and the breaker name.
	Backend string

	// Attempts is the total number of tries per call.
	Attempts int

	// FailureThreshold is how many consecutive failed calls open the breaker.
	FailureThreshold int

	// OpenTimeout is how long the breaker stays open.
	OpenTimeout time.Duration

	// OpTimeout bounds each Load or Save including retries. Zero means no
	// bound beyond the caller's context.
	OpTimeout time.Duration
}

// BlobStore wraps another practice.BlobStore.
type BlobStore struct {
	inner   practice.BlobStore
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
	timeout time.Duration
}

var _ practice.BlobStore = (*BlobStore)(nil)

// Wrap decorates inner. Extra retry options are applied after the defaults.
func Wrap(inner practice.BlobStore, cfg Config, log *logger.Logger, opts ...retry.Option) *BlobStore {
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("storage"), logger.Backend(cfg.Backend))

	s := &BlobStore{inner: inner, log: log, timeout: cfg.OpTimeout}

	retryOpts := append([]retry.Option{
		retry.WithRetryIf(shouldRetry),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			s.log.Warn("retrying storage call",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	}, opts...)
	s.retrier = retry.StorageRetrier(cfg.Attempts, retryOpts...)

	s.breaker = circuitbreaker.StorageBreaker(cfg.Backend, cfg.FailureThreshold, cfg.OpenTimeout,
		func(name string, from, to circuitbreaker.State) {
			s.log.Warn("storage circuit changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})

	return s
}

// shouldRetry rejects outcomes that another attempt cannot change.
func shouldRetry(err error) bool {
	switch {
	case errors.Is(err, shared.ErrBlobNotFound),
		errors.Is(err, shared.ErrStoreClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// isFailure keeps a missing blob from counting against the backend.
func isFailure(err error) bool {
	return err != nil && !errors.Is(err, shared.ErrBlobNotFound)
}

func (s *BlobStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Load loads through the breaker, retrying transient failures.
func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	var (
		data    []byte
		missing bool
	)
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = retry.DoWithData(ctx, s.retrier, func(ctx context.Context) ([]byte, error) {
			return s.inner.Load(ctx, key)
		})
		if err != nil && !isFailure(err) {
			// A missing blob is a healthy answer.
			missing = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, s.translate("Load", key, err)
	}
	if missing {
		return nil, shared.ErrBlobNotFound
	}
	return data, nil
}

// Save saves through the breaker, retrying transient failures.
func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.retrier.Do(ctx, func(ctx context.Context) error {
			return s.inner.Save(ctx, key, data)
		})
	})
	if err != nil {
		return s.translate("Save", key, err)
	}
	return nil
}

// Close closes the wrapped store.
func (s *BlobStore) Close() error {
	return s.inner.Close()
}

// State returns the breaker state.
func (s *BlobStore) State() circuitbreaker.State {
	return s.breaker.State()
}

func (s *BlobStore) translate(op, key string, err error) error {
	if circuitbreaker.IsRejection(err) {
		s.log.Debug("storage call rejected", logger.BlobKey(key), logger.Operation(op))
		return shared.WrapError("storage", op, shared.ErrServiceUnavailable, "circuit open for "+key, err)
	}
	return err
}

// Ping forwards to the wrapped store when it supports health checks.
func (s *BlobStore) Ping(ctx context.Context) error {
	if p, ok := s.inner.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
