// Package circuitbreaker stops a failing storage backend from being hammered
// on every ledger mutation. After FailureThreshold consecutive failures the
// breaker opens and rejects calls for Cooldown; then a single probe call is
// let through, and its result closes or reopens the circuit.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned while the circuit is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned in half-open state while the probe runs.
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

// IsRejection reports whether err came from the breaker rather than the call.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrProbeInFlight)
}

// Config holds circuit breaker configuration.
type Config struct {
	// Name identifies the breaker in state change callbacks.
	Name string

	// FailureThreshold is the run of consecutive failures that opens the
	// circuit. Values below 1 are treated as 1.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration

	// IsFailure classifies errors. Nil counts every non-nil error.
	IsFailure func(error) bool

	// OnStateChange is called under the breaker lock; it must not call back
	// into the breaker.
	OnStateChange func(name string, from, to State)

	// Now is the time source. Defaults to time.Now.
	Now func() time.Time
}

// Stats is a point-in-time view of the breaker.
type Stats struct {
	State               State
	Requests            int
	Failures            int
	Rejected            int
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	cfg Config

	mu      sync.Mutex
	stats   Stats
	probing bool
}

// New creates a closed breaker.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// StorageBreaker returns the breaker used in front of a blob store backend.
func StorageBreaker(backend string, threshold int, cooldown time.Duration, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(Config{
		Name:             "storage-" + backend,
		FailureThreshold: threshold,
		Cooldown:         cooldown,
		OnStateChange:    onStateChange,
	})
}

// Execute runs fn unless the circuit rejects the call, and records the result.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.record(probe, err)
	return err
}

// admit decides whether a call may run and whether it is the half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.stats.State {
	case StateOpen:
		if cb.cfg.Now().Sub(cb.stats.OpenedAt) < cb.cfg.Cooldown {
			cb.stats.Rejected++
			return false, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
		return true, nil

	case StateHalfOpen:
		if cb.probing {
			cb.stats.Rejected++
			return false, ErrProbeInFlight
		}
		cb.probing = true
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) record(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probing = false
	}
	cb.stats.Requests++

	failed := err != nil
	if failed && cb.cfg.IsFailure != nil {
		failed = cb.cfg.IsFailure(err)
	}

	if !failed {
		cb.stats.ConsecutiveFailures = 0
		if cb.stats.State == StateHalfOpen {
			cb.transition(StateClosed)
		}
		return
	}

	cb.stats.Failures++
	cb.stats.ConsecutiveFailures++
	if cb.stats.State == StateHalfOpen || cb.stats.ConsecutiveFailures >= cb.cfg.FailureThreshold {
		cb.stats.OpenedAt = cb.cfg.Now()
		cb.transition(StateOpen)
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.stats.State
	if from == to {
		return
	}
	cb.stats.State = to
	if to == StateClosed {
		cb.stats.ConsecutiveFailures = 0
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State returns the current state. An open circuit whose cooldown has passed
// still reports open until the next call probes it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats.State
}

// Stats returns a snapshot of the counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stats
}

// Reset closes the circuit and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.stats = Stats{}
	cb.probing = false
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}
