package practice

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Catalog IDs. They are stable: persisted state is matched to the catalog by ID.
const (
	AchievementFirstSession  = 1
	AchievementWeekStreak    = 2
	AchievementSharpshooter  = 3
	AchievementAllRounder    = 4
	AchievementPerfectionist = 5
	AchievementFlawless      = 6
	AchievementMarathon      = 7
)

// Rule thresholds.
const (
	weekStreakDays         = 7
	sharpshooterAccuracy   = 90
	allRounderPerType      = 10
	perfectionistAccuracy  = 85
	perfectionistRunLength = 5
	flawlessAccuracy       = 100
	marathonSessions       = 100
	fullProgress           = 100
)

// Achievement is the state of one catalog rule.
type Achievement struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`

	// Earned never reverts to false once set by evaluation.
	Earned bool `json:"earned"`

	// Progress is in [0,100] and may move independently of Earned.
	Progress float64 `json:"progress"`

	// EarnedDate is set exactly once, when Earned first flips.
	EarnedDate *time.Time `json:"earnedDate,omitempty"`
}

// ledgerFacts are the ledger measurements every rule is evaluated against.
type ledgerFacts struct {
	total                int
	maxAccuracy          float64
	minTypeCount         int
	consecutiveDays      int
	consecutiveHighScore int
}

func measure(sessions []Session, now time.Time) ledgerFacts {
	counts := ComputeBreakdown(sessions).Counts()
	lo, _ := spread(counts)
	return ledgerFacts{
		total:                len(sessions),
		maxAccuracy:          MaxAccuracy(sessions),
		minTypeCount:         lo,
		consecutiveDays:      ConsecutiveDays(sessions, now),
		consecutiveHighScore: ConsecutiveHighAccuracy(sessions, perfectionistAccuracy),
	}
}

// rule is one catalog entry: display metadata plus its earn condition and
// progress formula.
type rule struct {
	id          int
	title       string
	description string
	icon        string

	// pinned rules report 100 once earned instead of their natural progress.
	pinned bool

	check func(f ledgerFacts) (met bool, progress float64)
}

// ratio returns min(value/target*100, 100).
func ratio(value, target float64) float64 {
	return math.Min(value/target*100, fullProgress)
}

var catalog = []rule{
	{
		id: AchievementFirstSession, title: "Beginner", description: "Complete your first session", icon: "🌟",
		pinned: true,
		check: func(f ledgerFacts) (bool, float64) {
			return f.total >= 1, 0
		},
	},
	{
		id: AchievementWeekStreak, title: "Persistent", description: "Practice 7 days in a row", icon: "🔥",
		check: func(f ledgerFacts) (bool, float64) {
			return f.consecutiveDays >= weekStreakDays, ratio(float64(f.consecutiveDays), weekStreakDays)
		},
	},
	{
		id: AchievementSharpshooter, title: "Sharpshooter", description: "Reach 90% accuracy in a single session", icon: "🎯",
		pinned: true,
		check: func(f ledgerFacts) (bool, float64) {
			return f.maxAccuracy >= sharpshooterAccuracy, ratio(f.maxAccuracy, sharpshooterAccuracy)
		},
	},
	{
		id: AchievementAllRounder, title: "All-Rounder", description: "Complete 10 sessions of every type", icon: "🏆",
		check: func(f ledgerFacts) (bool, float64) {
			return f.minTypeCount >= allRounderPerType, ratio(float64(f.minTypeCount), allRounderPerType)
		},
	},
	{
		id: AchievementPerfectionist, title: "Perfectionist", description: "Score 85% or better in 5 sessions in a row", icon: "💎",
		check: func(f ledgerFacts) (bool, float64) {
			return f.consecutiveHighScore >= perfectionistRunLength,
				ratio(float64(f.consecutiveHighScore), perfectionistRunLength)
		},
	},
	{
		// Unearned progress is the raw best accuracy, not rescaled.
		id: AchievementFlawless, title: "Flawless", description: "Answer every question correctly in a session", icon: "🎖️",
		pinned: true,
		check: func(f ledgerFacts) (bool, float64) {
			return f.maxAccuracy == flawlessAccuracy, f.maxAccuracy
		},
	},
	{
		id: AchievementMarathon, title: "Marathon", description: "Complete 100 sessions", icon: "💪",
		check: func(f ledgerFacts) (bool, float64) {
			return f.total >= marathonSessions, ratio(float64(f.total), marathonSessions)
		},
	},
}

// DefaultAchievements returns the catalog in its initial state: nothing
// earned, no progress.
func DefaultAchievements() []Achievement {
	out := make([]Achievement, 0, len(catalog))
	for _, r := range catalog {
		out = append(out, Achievement{
			ID:          r.id,
			Title:       r.title,
			Description: r.description,
			Icon:        r.icon,
		})
	}
	return out
}

// MergeAchievements lays persisted state over the catalog by ID. Stored
// entries with unknown IDs are dropped; catalog entries missing from storage
// keep their defaults. Display metadata always comes from the catalog.
func MergeAchievements(stored []Achievement) []Achievement {
	byID := make(map[int]Achievement, len(stored))
	for _, a := range stored {
		byID[a.ID] = a
	}

	merged := DefaultAchievements()
	for i := range merged {
		saved, ok := byID[merged[i].ID]
		if !ok {
			continue
		}
		merged[i].Earned = saved.Earned
		merged[i].Progress = clampProgress(saved.Progress)
		if saved.EarnedDate != nil {
			t := *saved.EarnedDate
			merged[i].EarnedDate = &t
		}
	}
	return merged
}

func clampProgress(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	return math.Min(p, fullProgress)
}

// CloneAchievements deep-copies a catalog snapshot.
func CloneAchievements(in []Achievement) []Achievement {
	out := make([]Achievement, len(in))
	copy(out, in)
	for i := range out {
		if out[i].EarnedDate != nil {
			t := *out[i].EarnedDate
			out[i].EarnedDate = &t
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Evaluation is the outcome of one pass over the catalog.
type Evaluation struct {
	// Achievements is the full new catalog state.
	Achievements []Achievement

	// Unlocked lists the achievements earned by this pass.
	Unlocked []Achievement
}

// Evaluator recomputes every catalog rule against the full ledger.
type Evaluator struct{}

// NewEvaluator creates an achievement evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate re-derives progress for every rule from sessions and flips Earned
// for rules whose condition now holds. It never clears Earned and never
// overwrites an existing EarnedDate; newly earned rules get EarnedDate = now.
// current is not modified.
func (e *Evaluator) Evaluate(current []Achievement, sessions []Session, now time.Time) Evaluation {
	next := MergeAchievements(current)
	facts := measure(sessions, now)
	earnedAt := now.UTC()

	var newly []int
	for i, r := range catalog {
		st := &next[i]
		met, progress := r.check(facts)

		if met && !st.Earned {
			st.Earned = true
			if st.EarnedDate == nil {
				t := earnedAt
				st.EarnedDate = &t
			}
			newly = append(newly, i)
		}

		if r.pinned && st.Earned {
			progress = fullProgress
		}
		st.Progress = clampProgress(progress)
	}

	var unlocked []Achievement
	for _, i := range newly {
		unlocked = append(unlocked, next[i])
	}
	return Evaluation{Achievements: next, Unlocked: CloneAchievements(unlocked)}
}
