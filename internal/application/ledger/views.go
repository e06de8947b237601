package ledger

import (
	"github.com/drawdrill/drawdrill/internal/domain/practice"
)

// Views are computed on demand from a snapshot taken under the lock; nothing
// derived is cached between calls.

// Breakdown returns per-type statistics.
func (l *Ledger) Breakdown() practice.Breakdown {
	return practice.ComputeBreakdown(l.Sessions())
}

// RecentSessions returns the newest sessions, newest first.
func (l *Ledger) RecentSessions() []practice.Session {
	return practice.RecentSessions(l.Sessions())
}

// AccuracyTrend returns the accuracy curve of the newest sessions.
func (l *Ledger) AccuracyTrend() []practice.TrendPoint {
	return practice.AccuracyTrend(l.Sessions())
}

// DailyFrequency returns session counts over the trailing frequency window.
func (l *Ledger) DailyFrequency() []practice.DayCount {
	return practice.DailyFrequency(l.Sessions(), l.clock.Now())
}

// Tips returns up to practice.MaxTips personalized tips.
func (l *Ledger) Tips() []practice.Tip {
	return practice.PersonalizedTips(l.Sessions(), l.clock.Now())
}

// Dashboard is every derived view at one point in time.
type Dashboard struct {
	TotalSessions   int                    `json:"totalSessions"`
	OverallAccuracy float64                `json:"overallAccuracy"`
	ConsecutiveDays int                    `json:"consecutiveDays"`
	Breakdown       practice.Breakdown     `json:"breakdown"`
	Recent          []practice.Session     `json:"recent"`
	Trend           []practice.TrendPoint  `json:"trend"`
	Frequency       []practice.DayCount    `json:"frequency"`
	Tips            []practice.Tip         `json:"tips"`
	Achievements    []practice.Achievement `json:"achievements"`
}

// Dashboard computes every view from a single consistent snapshot.
func (l *Ledger) Dashboard() Dashboard {
	l.mu.Lock()
	sessions := practice.CloneSessions(l.sessions)
	achievements := practice.CloneAchievements(l.achievements)
	l.mu.Unlock()

	now := l.clock.Now()
	return Dashboard{
		TotalSessions:   len(sessions),
		OverallAccuracy: practice.OverallAccuracy(sessions),
		ConsecutiveDays: practice.ConsecutiveDays(sessions, now),
		Breakdown:       practice.ComputeBreakdown(sessions),
		Recent:          practice.RecentSessions(sessions),
		Trend:           practice.AccuracyTrend(sessions),
		Frequency:       practice.DailyFrequency(sessions, now),
		Tips:            practice.PersonalizedTips(sessions, now),
		Achievements:    achievements,
	}
}
