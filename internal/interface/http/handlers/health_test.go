package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubStatus struct{ err error }

func (s stubStatus) LastStorageError() error { return s.err }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("1.0.0").Check(context.Background())

	assert.True(t, status.Healthy)
	assert.Equal(t, "No health checks registered", status.Message)
	assert.Equal(t, "1.0.0", status.Version)
}

func TestCompositeHealthChecker_AllPass(t *testing.T) {
	c := NewCompositeHealthChecker("1.0.0")
	c.AddCheck("storage", NewStorageCheck(stubPinger{}))
	c.AddCheck("persistence", NewPersistenceCheck(stubStatus{}))

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "All checks passed", status.Message)
	assert.Len(t, status.Checks, 2)
	assert.Equal(t, "OK", status.Checks["storage"].Message)
}

func TestCompositeHealthChecker_FailuresSorted(t *testing.T) {
	c := NewCompositeHealthChecker("1.0.0")
	c.AddCheck("storage", NewStorageCheck(stubPinger{err: errors.New("connection refused")}))
	c.AddCheck("persistence", NewPersistenceCheck(stubStatus{err: errors.New("save failed")}))
	c.AddCheck("clock", func(context.Context) error { return nil })

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: persistence, storage", status.Message)
	assert.Equal(t, "connection refused", status.Checks["storage"].Message)
	assert.True(t, status.Checks["clock"].Healthy)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("1.0.0")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Message)
}

func TestCompositeHealthChecker_AddCheckReplaces(t *testing.T) {
	c := NewCompositeHealthChecker("1.0.0")
	c.AddCheck("storage", NewStorageCheck(stubPinger{err: errors.New("down")}))
	c.AddCheck("storage", NewStorageCheck(stubPinger{}))

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Len(t, status.Checks, 1)
}
