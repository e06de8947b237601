// Package practice contains the drawing-practice domain: session records,
// derived aggregates and the achievement catalog.
//
// Everything here is a pure function of a ledger snapshot plus "now".
// Calendar days are always cut in now's location.
package practice

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drawdrill/drawdrill/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// SessionType is the kind of drill a session trained.
type SessionType string

const (
	// TypeLength - estimating line lengths.
	TypeLength SessionType = "length"
	// TypeAngle - estimating angles.
	TypeAngle SessionType = "angle"
	// TypeProportion - estimating proportions between shapes.
	TypeProportion SessionType = "proportion"
)

// AllTypes returns the closed set of session types in display order.
func AllTypes() []SessionType {
	return []SessionType{TypeLength, TypeAngle, TypeProportion}
}

// IsValid reports whether t is one of the known session types.
func (t SessionType) IsValid() bool {
	switch t {
	case TypeLength, TypeAngle, TypeProportion:
		return true
	}
	return false
}

// String returns the wire name of the type.
func (t SessionType) String() string {
	return string(t)
}

// ParseSessionType parses a session type name (case-insensitive).
func ParseSessionType(s string) (SessionType, error) {
	t := SessionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", shared.ErrUnknownSessionType, s)
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION RECORD
// ══════════════════════════════════════════════════════════════════════════════

// SessionInput is what a training mini-game reports when a session finishes.
// It is a Session without the ledger-assigned ID and Timestamp.
type SessionInput struct {
	Type           SessionType `json:"type"`
	Score          int         `json:"score"`
	Accuracy       float64     `json:"accuracy"`
	TotalQuestions int         `json:"totalQuestions"`
	CorrectAnswers int         `json:"correctAnswers"`
	// AverageError is the mean angular deviation; set for angle sessions only.
	AverageError *float64 `json:"averageError,omitempty"`
	// Streak is the longest run of correct answers inside the session.
	Streak int `json:"streak"`
	// Duration is the session length in seconds.
	Duration *float64 `json:"duration,omitempty"`
}

// Session is one completed practice attempt. Sessions are immutable once
// created.
type Session struct {
	ID             string      `json:"id"`
	Type           SessionType `json:"type"`
	Timestamp      time.Time   `json:"timestamp"`
	Score          int         `json:"score"`
	Accuracy       float64     `json:"accuracy"`
	TotalQuestions int         `json:"totalQuestions"`
	CorrectAnswers int         `json:"correctAnswers"`
	AverageError   *float64    `json:"averageError,omitempty"`
	Streak         int         `json:"streak"`
	Duration       *float64    `json:"duration,omitempty"`
}

// NewSession materializes an input into a record with the given ID and
// timestamp. Optional fields are copied so the record shares no memory with
// the caller.
func NewSession(id string, at time.Time, in SessionInput) Session {
	return Session{
		ID:             id,
		Type:           in.Type,
		Timestamp:      at.UTC(),
		Score:          in.Score,
		Accuracy:       in.Accuracy,
		TotalQuestions: in.TotalQuestions,
		CorrectAnswers: in.CorrectAnswers,
		AverageError:   copyFloat(in.AverageError),
		Streak:         in.Streak,
		Duration:       copyFloat(in.Duration),
	}
}

// NewSessionID returns a collision-resistant session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Input returns the producer-supplied part of the record.
func (s Session) Input() SessionInput {
	return SessionInput{
		Type:           s.Type,
		Score:          s.Score,
		Accuracy:       s.Accuracy,
		TotalQuestions: s.TotalQuestions,
		CorrectAnswers: s.CorrectAnswers,
		AverageError:   copyFloat(s.AverageError),
		Streak:         s.Streak,
		Duration:       copyFloat(s.Duration),
	}
}

// Float returns a pointer to v, for the optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ══════════════════════════════════════════════════════════════════════════════
// ORDERING
// ══════════════════════════════════════════════════════════════════════════════

// SortedByTimeAsc returns a copy of sessions ordered oldest first.
// Ties keep ledger order.
func SortedByTimeAsc(sessions []Session) []Session {
	out := make([]Session, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// SortedByTimeDesc returns a copy of sessions ordered newest first.
// Ties keep ledger order.
func SortedByTimeDesc(sessions []Session) []Session {
	out := make([]Session, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// FilterByType returns the sessions of type t, in ledger order.
func FilterByType(sessions []Session, t SessionType) []Session {
	var out []Session
	for _, s := range sessions {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// CloneSessions deep-copies a ledger snapshot.
func CloneSessions(in []Session) []Session {
	out := make([]Session, len(in))
	for i, s := range in {
		out[i] = s
		out[i].AverageError = copyFloat(s.AverageError)
		out[i].Duration = copyFloat(s.Duration)
	}
	return out
}
