package practice

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/drawdrill/drawdrill/pkg/timeutil"
)

// Demo data shape.
const (
	demoDays              = 15
	demoMaxSessionsPerDay = 3
	demoBaseAccuracy      = 45
	demoDailyImprovement  = 2
	demoAccuracyNoise     = 20
	demoMinAccuracy       = 35
	demoMaxAccuracy       = 95
	demoAngleQuestions    = 15
	demoOtherQuestions    = 20
	demoMinDuration       = 180
	demoDurationSpread    = 300
)

// GenerateDemoSessions synthesizes a plausible practice history over the
// demoDays calendar days ending today: 0-3 sessions a day, uniformly random
// types, accuracy improving day over day with noise. Sessions are returned
// oldest first and never lie after now.
func GenerateDemoSessions(now time.Time, rng *rand.Rand) []Session {
	loc := now.Location()
	types := AllTypes()
	var sessions []Session

	for offset := demoDays - 1; offset >= 0; offset-- {
		day := timeutil.DaysAgo(now, offset, loc)
		daysIn := demoDays - 1 - offset
		perDay := rng.IntN(demoMaxSessionsPerDay + 1)

		var daySessions []Session
		for i := 0; i < perDay; i++ {
			t := types[rng.IntN(len(types))]

			base := demoBaseAccuracy + float64(daysIn*demoDailyImprovement) + rng.Float64()*demoAccuracyNoise
			accuracy := math.Min(demoMaxAccuracy, math.Max(demoMinAccuracy, math.Round(base)))

			total := demoOtherQuestions
			if t == TypeAngle {
				total = demoAngleQuestions
			}
			correct := int(math.Round(accuracy / 100 * float64(total)))

			at := day.Add(time.Duration(rng.IntN(24))*time.Hour + time.Duration(rng.IntN(60))*time.Minute)
			if at.After(now) {
				at = now
			}

			in := SessionInput{
				Type:           t,
				Score:          correct*10 + rng.IntN(50),
				Accuracy:       accuracy,
				TotalQuestions: total,
				CorrectAnswers: correct,
				Streak:         rng.IntN(10),
				Duration:       Float(float64(demoMinDuration + rng.IntN(demoDurationSpread))),
			}
			if t == TypeAngle {
				in.AverageError = Float(rng.Float64()*15 + 2)
			}

			daySessions = append(daySessions, NewSession("demo_"+NewSessionID(), at, in))
		}
		sessions = append(sessions, SortedByTimeAsc(daySessions)...)
	}

	return sessions
}
