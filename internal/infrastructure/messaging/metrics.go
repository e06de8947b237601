package messaging

import (
	"sync/atomic"
	"time"
)

// EventBusMetrics counts publishes and handler runs.
type EventBusMetrics struct {
	published  atomic.Int64
	execs      atomic.Int64
	failures   atomic.Int64
	handlerDur atomic.Int64
}

// NewEventBusMetrics returns zeroed counters.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{}
}

func (m *EventBusMetrics) recordPublish() {
	m.published.Add(1)
}

func (m *EventBusMetrics) recordHandler(d time.Duration, ok bool) {
	m.execs.Add(1)
	m.handlerDur.Add(int64(d))
	if !ok {
		m.failures.Add(1)
	}
}

// EventBusMetricsSnapshot is a point-in-time copy of the counters.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64         `json:"total_published"`
	TotalHandlerExecs      int64         `json:"total_handler_execs"`
	HandlerFailures        int64         `json:"handler_failures"`
	HandlerSuccessRate     float64       `json:"handler_success_rate"`
	AverageHandlerDuration time.Duration `json:"average_handler_duration"`
}

// Snapshot reads the counters. With no handler runs yet the success rate is 1.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	s := EventBusMetricsSnapshot{
		TotalPublished:     m.published.Load(),
		TotalHandlerExecs:  m.execs.Load(),
		HandlerFailures:    m.failures.Load(),
		HandlerSuccessRate: 1,
	}
	if s.TotalHandlerExecs > 0 {
		s.HandlerSuccessRate = float64(s.TotalHandlerExecs-s.HandlerFailures) / float64(s.TotalHandlerExecs)
		s.AverageHandlerDuration = time.Duration(m.handlerDur.Load() / s.TotalHandlerExecs)
	}
	return s
}
