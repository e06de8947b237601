package shared

import "time"

// EventType names a kind of domain event, e.g. "practice.session_recorded".
type EventType string

const (
	EventSessionRecorded     EventType = "practice.session_recorded"
	EventLedgerReset         EventType = "practice.ledger_reset"
	EventAchievementUnlocked EventType = "practice.achievement_unlocked"
)

// Event is something that happened to an aggregate. Payload must be JSON
// encodable; it is what crosses process boundaries.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() map[string]interface{}
}

// BaseEvent carries the envelope fields. Embed it and add Payload.
type BaseEvent struct {
	Type      EventType `json:"type"`
	At        time.Time `json:"occurred_at"`
	Aggregate string    `json:"aggregate_id"`
}

// NewBaseEvent stamps an event at the given instant, normalised to UTC.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{Type: eventType, At: at.UTC(), Aggregate: aggregateID}
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.At }
func (e BaseEvent) AggregateID() string   { return e.Aggregate }

// EventHandler reacts to one event. Returned errors are logged by the bus and
// never reach the publisher.
type EventHandler func(event Event) error

// EventPublisher is the side the ledger sees.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber registers handlers by type or for everything.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus is both sides.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
