package practice

import (
	"math"
	"strconv"
	"time"

	"github.com/drawdrill/drawdrill/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WINDOW SIZES
// ══════════════════════════════════════════════════════════════════════════════

const (
	// RecentLimit is how many sessions the recent view and the trend show.
	RecentLimit = 10

	// FrequencyWindowDays is the length of the daily frequency window.
	FrequencyWindowDays = 30

	// MaxTips is the cap on personalized tips.
	MaxTips = 3
)

// ══════════════════════════════════════════════════════════════════════════════
// PER-TYPE STATS
// ══════════════════════════════════════════════════════════════════════════════

// TypeStats summarizes all sessions of one type.
type TypeStats struct {
	Type            SessionType `json:"type"`
	TotalSessions   int         `json:"totalSessions"`
	AverageAccuracy int         `json:"averageAccuracy"`
	BestScore       int         `json:"bestScore"`
	// AverageError is reported for angle sessions only.
	AverageError *float64 `json:"averageError,omitempty"`
}

// Breakdown holds the stats of every session type.
type Breakdown struct {
	Length     TypeStats `json:"length"`
	Angle      TypeStats `json:"angle"`
	Proportion TypeStats `json:"proportion"`
}

// Counts returns the session counts in AllTypes order.
func (b Breakdown) Counts() []int {
	return []int{b.Length.TotalSessions, b.Angle.TotalSessions, b.Proportion.TotalSessions}
}

// StatsFor computes the stats of type t. Empty buckets report zeros.
func StatsFor(sessions []Session, t SessionType) TypeStats {
	bucket := FilterByType(sessions, t)
	stats := TypeStats{Type: t, TotalSessions: len(bucket)}

	if len(bucket) > 0 {
		var sum float64
		best := bucket[0].Score
		for _, s := range bucket {
			sum += s.Accuracy
			if s.Score > best {
				best = s.Score
			}
		}
		stats.AverageAccuracy = int(math.Round(sum / float64(len(bucket))))
		stats.BestScore = best
	}

	if t == TypeAngle {
		avg := averageError(bucket)
		stats.AverageError = &avg
	}

	return stats
}

// averageError is the mean of the defined AverageError values, rounded to one
// decimal place, or 0 when none is defined.
func averageError(bucket []Session) float64 {
	var sum float64
	n := 0
	for _, s := range bucket {
		if s.AverageError != nil {
			sum += *s.AverageError
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*10) / 10
}

// ComputeBreakdown computes the stats of all three types.
func ComputeBreakdown(sessions []Session) Breakdown {
	return Breakdown{
		Length:     StatsFor(sessions, TypeLength),
		Angle:      StatsFor(sessions, TypeAngle),
		Proportion: StatsFor(sessions, TypeProportion),
	}
}

// OverallAccuracy is the unrounded mean accuracy over all sessions, 0 when
// the ledger is empty.
func OverallAccuracy(sessions []Session) float64 {
	if len(sessions) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sessions {
		sum += s.Accuracy
	}
	return sum / float64(len(sessions))
}

// MaxAccuracy is the best single-session accuracy, 0 when the ledger is empty.
func MaxAccuracy(sessions []Session) float64 {
	if len(sessions) == 0 {
		return 0
	}
	best := sessions[0].Accuracy
	for _, s := range sessions[1:] {
		if s.Accuracy > best {
			best = s.Accuracy
		}
	}
	return best
}

// ══════════════════════════════════════════════════════════════════════════════
// RECENCY VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// RecentSessions returns the RecentLimit newest sessions, newest first.
func RecentSessions(sessions []Session) []Session {
	sorted := SortedByTimeDesc(sessions)
	if len(sorted) > RecentLimit {
		sorted = sorted[:RecentLimit]
	}
	return sorted
}

// TrendPoint is one point of the accuracy curve.
type TrendPoint struct {
	Session  int     `json:"session"`
	Accuracy float64 `json:"accuracy"`
}

// AccuracyTrend returns the accuracies of the RecentLimit newest sessions,
// oldest first, numbered from 1.
func AccuracyTrend(sessions []Session) []TrendPoint {
	sorted := SortedByTimeAsc(sessions)
	if len(sorted) > RecentLimit {
		sorted = sorted[len(sorted)-RecentLimit:]
	}
	points := make([]TrendPoint, 0, len(sorted))
	for i, s := range sorted {
		points = append(points, TrendPoint{Session: i + 1, Accuracy: s.Accuracy})
	}
	return points
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY FREQUENCY
// ══════════════════════════════════════════════════════════════════════════════

// DayCount is the number of sessions on one calendar day.
type DayCount struct {
	// Date is the calendar day as YYYY-MM-DD.
	Date string `json:"date"`
	// Label is the day of month, for chart axes.
	Label    string `json:"label"`
	Sessions int    `json:"sessions"`
}

// sessionsPerDay buckets sessions by calendar day in loc.
func sessionsPerDay(sessions []Session, loc *time.Location) map[string]int {
	perDay := make(map[string]int, len(sessions))
	for _, s := range sessions {
		perDay[timeutil.DateKey(s.Timestamp, loc)]++
	}
	return perDay
}

// DailyFrequency counts sessions on each of the FrequencyWindowDays calendar
// days ending today (inclusive), oldest first.
func DailyFrequency(sessions []Session, now time.Time) []DayCount {
	loc := now.Location()
	perDay := sessionsPerDay(sessions, loc)

	days := timeutil.LastNDays(now, FrequencyWindowDays, loc)
	out := make([]DayCount, 0, len(days))
	for _, day := range days {
		key := timeutil.DateKey(day, loc)
		out = append(out, DayCount{
			Date:     key,
			Label:    strconv.Itoa(day.Day()),
			Sessions: perDay[key],
		})
	}
	return out
}

// ConsecutiveDays counts the unbroken run of practice days ending today,
// looking back at most FrequencyWindowDays days. No session today means 0.
func ConsecutiveDays(sessions []Session, now time.Time) int {
	if len(sessions) == 0 {
		return 0
	}
	loc := now.Location()
	perDay := sessionsPerDay(sessions, loc)

	streak := 0
	for i := 0; i < FrequencyWindowDays; i++ {
		key := timeutil.DateKey(timeutil.DaysAgo(now, i, loc), loc)
		if perDay[key] == 0 {
			break
		}
		streak++
	}
	return streak
}

// ConsecutiveHighAccuracy counts the newest sessions, walking back from the
// latest, whose accuracy is at least threshold. The run stops at the first
// session below it.
func ConsecutiveHighAccuracy(sessions []Session, threshold float64) int {
	run := 0
	for _, s := range SortedByTimeDesc(sessions) {
		if s.Accuracy < threshold {
			break
		}
		run++
	}
	return run
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSONALIZED TIPS
// ══════════════════════════════════════════════════════════════════════════════

// Tip is one piece of practice advice.
type Tip struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Icon    string `json:"icon"`
}

// Tip catalog, in priority order.
var (
	TipBasics = Tip{1, "Build the basics",
		"Start with simpler drills and raise your accuracy step by step.", "📚"}
	TipConsistency = Tip{2, "Keep a steady rhythm",
		"Practicing on consecutive days builds muscle memory. Aim for at least one session a day.", "⏰"}
	TipBalance = Tip{3, "Balance your training",
		"Mix length, angle and proportion drills to grow all-round drawing skills.", "⚖️"}
	TipAngles = Tip{4, "Sharpen your angle sense",
		"Your angle accuracy has room to grow. Drill the common angles: 30°, 45°, 60° and 90°.", "📐"}
	TipProportions = Tip{5, "Sharpen your sense of proportion",
		"Proportion drills need more practice. Compare the proportions of everyday objects around you.", "🎨"}
)

// Tip thresholds.
const (
	tipBasicsAccuracy   = 70
	tipActiveDays       = 3
	tipActiveWindowDays = 7
	tipBalanceSpread    = 5
	tipTypeAccuracy     = 75
)

// PersonalizedTips evaluates every tip rule in priority order and keeps the
// first MaxTips that match.
func PersonalizedTips(sessions []Session, now time.Time) []Tip {
	tips := make([]Tip, 0, MaxTips)

	if OverallAccuracy(sessions) < tipBasicsAccuracy {
		tips = append(tips, TipBasics)
	}

	freq := DailyFrequency(sessions, now)
	activeDays := 0
	for _, day := range freq[len(freq)-tipActiveWindowDays:] {
		if day.Sessions > 0 {
			activeDays++
		}
	}
	if activeDays < tipActiveDays {
		tips = append(tips, TipConsistency)
	}

	breakdown := ComputeBreakdown(sessions)
	lo, hi := spread(breakdown.Counts())
	if hi-lo > tipBalanceSpread {
		tips = append(tips, TipBalance)
	}

	if acc := breakdown.Angle.AverageAccuracy; acc > 0 && acc < tipTypeAccuracy {
		tips = append(tips, TipAngles)
	}
	if acc := breakdown.Proportion.AverageAccuracy; acc > 0 && acc < tipTypeAccuracy {
		tips = append(tips, TipProportions)
	}

	if len(tips) > MaxTips {
		tips = tips[:MaxTips]
	}
	return tips
}

func spread(values []int) (lo, hi int) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
