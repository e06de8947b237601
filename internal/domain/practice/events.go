package practice

import (
	"time"

	"github.com/drawdrill/drawdrill/internal/domain/shared"
)

// LedgerAggregateID identifies the ledger as a whole in events that are not
// about a single session.
const LedgerAggregateID = "ledger"

// Reasons carried by LedgerResetEvent.
const (
	ResetCleared  = "cleared"
	ResetDemo     = "demo"
	ResetReplaced = "replaced"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// SessionRecordedEvent is emitted after a session has been appended.
type SessionRecordedEvent struct {
	shared.BaseEvent
	Session Session `json:"session"`
}

// NewSessionRecordedEvent creates the event for a freshly appended session.
func NewSessionRecordedEvent(s Session, at time.Time) SessionRecordedEvent {
	return SessionRecordedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionRecorded, s.ID, at),
		Session:   s,
	}
}

// Payload implements shared.Event.
func (e SessionRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.Session.ID,
		"type":       string(e.Session.Type),
		"score":      e.Session.Score,
		"accuracy":   e.Session.Accuracy,
		"timestamp":  e.Session.Timestamp,
	}
}

// LedgerResetEvent is emitted when the whole history is swapped out.
type LedgerResetEvent struct {
	shared.BaseEvent
	Reason   string `json:"reason"`
	Sessions int    `json:"sessions"`
}

// NewLedgerResetEvent creates a reset event; sessions is the new ledger size.
func NewLedgerResetEvent(reason string, sessions int, at time.Time) LedgerResetEvent {
	return LedgerResetEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLedgerReset, LedgerAggregateID, at),
		Reason:    reason,
		Sessions:  sessions,
	}
}

// Payload implements shared.Event.
func (e LedgerResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"reason":   e.Reason,
		"sessions": e.Sessions,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted once per achievement, on the evaluation
// that flips it to earned.
type AchievementUnlockedEvent struct {
	shared.BaseEvent
	Achievement Achievement `json:"achievement"`
}

// NewAchievementUnlockedEvent creates the event for a newly earned achievement.
func NewAchievementUnlockedEvent(a Achievement, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventAchievementUnlocked, LedgerAggregateID, at),
		Achievement: a,
	}
}

// Payload implements shared.Event.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.Achievement.ID,
		"title":          e.Achievement.Title,
		"icon":           e.Achievement.Icon,
	}
}
