package practice

import (
	"strconv"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func session(t SessionType, accuracy float64, at time.Time) Session {
	return NewSession(NewSessionID(), at, SessionInput{
		Type:           t,
		Score:          int(accuracy) * 10,
		Accuracy:       accuracy,
		TotalQuestions: 10,
		CorrectAnswers: int(accuracy / 10),
	})
}

func daysAgo(n int) time.Time {
	return testNow.AddDate(0, 0, -n)
}

func TestComputeBreakdown_Empty(t *testing.T) {
	b := ComputeBreakdown(nil)

	for _, st := range []TypeStats{b.Length, b.Angle, b.Proportion} {
		assert.Equal(t, 0, st.TotalSessions)
		assert.Equal(t, 0, st.AverageAccuracy)
		assert.Equal(t, 0, st.BestScore)
	}

	require.NotNil(t, b.Angle.AverageError)
	assert.Equal(t, 0.0, *b.Angle.AverageError)
	assert.Nil(t, b.Length.AverageError)
	assert.Nil(t, b.Proportion.AverageError)
}

func TestStatsFor_AveragesAndBest(t *testing.T) {
	sessions := []Session{
		session(TypeLength, 70, daysAgo(2)),
		session(TypeLength, 75, daysAgo(1)),
		session(TypeAngle, 99, daysAgo(1)),
	}
	sessions[0].Score = 400
	sessions[1].Score = 120

	st := StatsFor(sessions, TypeLength)
	assert.Equal(t, 2, st.TotalSessions)
	assert.Equal(t, 73, st.AverageAccuracy) // 72.5 rounds up
	assert.Equal(t, 400, st.BestScore)
}

func TestStatsFor_AngleAverageErrorSkipsUndefined(t *testing.T) {
	a := session(TypeAngle, 80, daysAgo(3))
	a.AverageError = Float(4.26)
	b := session(TypeAngle, 80, daysAgo(2))
	b.AverageError = Float(6.1)
	c := session(TypeAngle, 80, daysAgo(1))

	st := StatsFor([]Session{a, b, c}, TypeAngle)
	require.NotNil(t, st.AverageError)
	assert.Equal(t, 5.2, *st.AverageError)
}

func TestOverallAndMaxAccuracy(t *testing.T) {
	assert.Equal(t, 0.0, OverallAccuracy(nil))
	assert.Equal(t, 0.0, MaxAccuracy(nil))

	sessions := []Session{
		session(TypeLength, 50, daysAgo(1)),
		session(TypeAngle, 75, daysAgo(1)),
	}
	assert.Equal(t, 62.5, OverallAccuracy(sessions))
	assert.Equal(t, 75.0, MaxAccuracy(sessions))
}

func TestRecentSessions_NewestFirstAndCapped(t *testing.T) {
	var sessions []Session
	for i := 0; i < 15; i++ {
		sessions = append(sessions, session(TypeLength, float64(i), testNow.Add(time.Duration(i)*time.Minute)))
	}

	recent := RecentSessions(sessions)
	require.Len(t, recent, RecentLimit)
	assert.Equal(t, 14.0, recent[0].Accuracy)
	assert.Equal(t, 5.0, recent[RecentLimit-1].Accuracy)
	assert.Equal(t, 0.0, sessions[0].Accuracy, "input must not be reordered")
}

func TestAccuracyTrend_OldestFirstNumberedFromOne(t *testing.T) {
	var sessions []Session
	// Insert newest first to prove the trend sorts by timestamp.
	for i := 11; i >= 0; i-- {
		sessions = append(sessions, session(TypeAngle, float64(i*5), testNow.Add(time.Duration(i)*time.Hour)))
	}

	trend := AccuracyTrend(sessions)
	require.Len(t, trend, RecentLimit)
	assert.Equal(t, TrendPoint{Session: 1, Accuracy: 10}, trend[0])
	assert.Equal(t, TrendPoint{Session: 10, Accuracy: 55}, trend[9])

	assert.Empty(t, AccuracyTrend(nil))
}

func TestDailyFrequency_EmptyLedger(t *testing.T) {
	freq := DailyFrequency(nil, testNow)
	require.Len(t, freq, FrequencyWindowDays)

	assert.Equal(t, "2026-09-20", freq[0].Date)
	assert.Equal(t, "20", freq[0].Label)
	assert.Equal(t, "2026-10-19", freq[FrequencyWindowDays-1].Date)
	assert.Equal(t, "19", freq[FrequencyWindowDays-1].Label)

	for i, d := range freq {
		assert.Zero(t, d.Sessions, "day %d", i)
		day, err := time.Parse("2006-01-02", d.Date)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(day.Day()), d.Label)
	}
}

func TestDailyFrequency_CountsByCalendarDay(t *testing.T) {
	sessions := []Session{
		session(TypeLength, 80, time.Date(2026, 10, 19, 0, 5, 0, 0, time.UTC)),
		session(TypeLength, 80, time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)),
		session(TypeLength, 80, time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)),
		session(TypeLength, 80, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)),
	}

	freq := DailyFrequency(sessions, testNow)
	assert.Equal(t, 2, freq[29].Sessions)
	assert.Equal(t, 1, freq[28].Sessions)

	total := 0
	for _, d := range freq {
		total += d.Sessions
	}
	assert.Equal(t, 3, total, "sessions outside the window are not counted")
}

func TestDailyFrequency_DaysCutInNowLocation(t *testing.T) {
	almaty, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)

	// 20:30 UTC on the 18th is already the 19th in Almaty.
	sessions := []Session{session(TypeLength, 80, time.Date(2026, 10, 18, 20, 30, 0, 0, time.UTC))}

	inUTC := DailyFrequency(sessions, testNow)
	assert.Equal(t, 1, inUTC[28].Sessions)

	inAlmaty := DailyFrequency(sessions, testNow.In(almaty))
	assert.Equal(t, 1, inAlmaty[29].Sessions)
	assert.Equal(t, 0, inAlmaty[28].Sessions)
}

func TestConsecutiveDays(t *testing.T) {
	var week []Session
	for i := 0; i < 7; i++ {
		week = append(week, session(TypeLength, 80, daysAgo(i)))
	}

	t.Run("seven days anchored today", func(t *testing.T) {
		withOlder := append(append([]Session{}, week...), session(TypeLength, 80, daysAgo(8)))
		assert.Equal(t, 7, ConsecutiveDays(withOlder, testNow))
	})

	t.Run("gap today yields zero", func(t *testing.T) {
		var shifted []Session
		for i := 1; i <= 10; i++ {
			shifted = append(shifted, session(TypeLength, 80, daysAgo(i)))
		}
		assert.Equal(t, 0, ConsecutiveDays(shifted, testNow))
	})

	t.Run("capped by the window", func(t *testing.T) {
		var long []Session
		for i := 0; i < 40; i++ {
			long = append(long, session(TypeLength, 80, daysAgo(i)))
		}
		assert.Equal(t, FrequencyWindowDays, ConsecutiveDays(long, testNow))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, 0, ConsecutiveDays(nil, testNow))
	})
}

func TestConsecutiveHighAccuracy(t *testing.T) {
	sessions := []Session{
		session(TypeLength, 95, daysAgo(5)),
		session(TypeLength, 60, daysAgo(4)),
		session(TypeLength, 85, daysAgo(3)),
		session(TypeLength, 90, daysAgo(2)),
		session(TypeLength, 100, daysAgo(1)),
	}
	assert.Equal(t, 3, ConsecutiveHighAccuracy(sessions, 85))
	assert.Equal(t, 0, ConsecutiveHighAccuracy(nil, 85))
}

func TestPersonalizedTips(t *testing.T) {
	t.Run("empty ledger", func(t *testing.T) {
		tips := PersonalizedTips(nil, testNow)
		assert.Equal(t, []Tip{TipBasics, TipConsistency}, tips)
	})

	t.Run("capped in priority order", func(t *testing.T) {
		var sessions []Session
		for i := 0; i < 8; i++ {
			sessions = append(sessions, session(TypeLength, 40, daysAgo(20)))
		}
		sessions = append(sessions, session(TypeAngle, 50, daysAgo(20)))

		tips := PersonalizedTips(sessions, testNow)
		assert.Equal(t, []Tip{TipBasics, TipConsistency, TipBalance}, tips)
	})

	t.Run("type specific", func(t *testing.T) {
		var sessions []Session
		for i := 0; i < 4; i++ {
			sessions = append(sessions,
				session(TypeLength, 95, daysAgo(i)),
				session(TypeAngle, 70, daysAgo(i)),
				session(TypeProportion, 72, daysAgo(i)),
			)
		}

		tips := PersonalizedTips(sessions, testNow)
		assert.Equal(t, []Tip{TipAngles, TipProportions}, tips)
	})

	t.Run("no advice needed", func(t *testing.T) {
		var sessions []Session
		for i := 0; i < 3; i++ {
			for _, st := range AllTypes() {
				sessions = append(sessions, session(st, 90, daysAgo(i)))
			}
		}
		assert.Empty(t, PersonalizedTips(sessions, testNow))
	})
}
