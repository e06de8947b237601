package practice

import (
	"encoding/json"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawdrill/drawdrill/internal/domain/shared"
	"github.com/drawdrill/drawdrill/pkg/timeutil"
)

func TestParseSessionType(t *testing.T) {
	tests := []struct {
		in   string
		want SessionType
	}{
		{"length", TypeLength},
		{"Angle", TypeAngle},
		{"  PROPORTION ", TypeProportion},
	}
	for _, tt := range tests {
		got, err := ParseSessionType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseSessionType("perspective")
	assert.ErrorIs(t, err, shared.ErrUnknownSessionType)
}

func TestNewSession_CopiesInput(t *testing.T) {
	in := SessionInput{
		Type:           TypeAngle,
		Score:          120,
		Accuracy:       86.5,
		TotalQuestions: 15,
		CorrectAnswers: 13,
		AverageError:   Float(3.4),
		Streak:         6,
		Duration:       Float(240),
	}
	at := time.Date(2026, 10, 19, 14, 0, 0, 0, time.FixedZone("UTC+5", 5*3600))

	s := NewSession("abc", at, in)
	assert.Equal(t, "abc", s.ID)
	assert.Equal(t, time.UTC, s.Timestamp.Location())
	assert.True(t, s.Timestamp.Equal(at))
	assert.Equal(t, in, s.Input())

	*in.AverageError = 99
	assert.Equal(t, 3.4, *s.AverageError, "record must not alias the caller's input")
}

func TestSession_JSONKeepsOptionalFields(t *testing.T) {
	s := NewSession("id-1", testNow, SessionInput{Type: TypeLength, Accuracy: 70})

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "averageError")
	assert.Contains(t, string(data), `"timestamp":"2026-10-19T12:00:00Z"`)

	s.AverageError = Float(0)
	data, err = json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"averageError":0`)
}

func TestSortedByTime_StableOnTies(t *testing.T) {
	a := session(TypeLength, 1, testNow)
	b := session(TypeLength, 2, testNow)
	c := session(TypeLength, 3, testNow.Add(-time.Hour))

	asc := SortedByTimeAsc([]Session{a, b, c})
	assert.Equal(t, []float64{3, 1, 2}, accuracies(asc))

	desc := SortedByTimeDesc([]Session{a, b, c})
	assert.Equal(t, []float64{1, 2, 3}, accuracies(desc))
}

func accuracies(sessions []Session) []float64 {
	out := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Accuracy)
	}
	return out
}

func TestGenerateDemoSessions(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	sessions := GenerateDemoSessions(testNow, rng)

	require.NotEmpty(t, sessions)
	assert.LessOrEqual(t, len(sessions), demoDays*demoMaxSessionsPerDay)

	oldest := timeutil.DaysAgo(testNow, demoDays-1, time.UTC)
	ids := make(map[string]struct{}, len(sessions))

	for i, s := range sessions {
		assert.True(t, s.Type.IsValid())
		assert.True(t, strings.HasPrefix(s.ID, "demo_"))
		assert.False(t, s.Timestamp.After(testNow), "session %d is in the future", i)
		assert.False(t, s.Timestamp.Before(oldest), "session %d is before the window", i)
		assert.GreaterOrEqual(t, s.Accuracy, float64(demoMinAccuracy))
		assert.LessOrEqual(t, s.Accuracy, float64(demoMaxAccuracy))
		assert.LessOrEqual(t, s.CorrectAnswers, s.TotalQuestions)
		assert.NotNil(t, s.Duration)

		if s.Type == TypeAngle {
			assert.NotNil(t, s.AverageError)
		} else {
			assert.Nil(t, s.AverageError)
		}

		if i > 0 {
			assert.False(t, s.Timestamp.Before(sessions[i-1].Timestamp), "sessions are oldest first")
		}

		_, dup := ids[s.ID]
		assert.False(t, dup)
		ids[s.ID] = struct{}{}
	}
}

func TestGenerateDemoSessions_Deterministic(t *testing.T) {
	a := GenerateDemoSessions(testNow, rand.New(rand.NewPCG(1, 2)))
	b := GenerateDemoSessions(testNow, rand.New(rand.NewPCG(1, 2)))

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Type, b[i].Type)
		assert.Equal(t, a[i].Accuracy, b[i].Accuracy)
		assert.True(t, a[i].Timestamp.Equal(b[i].Timestamp))
	}
}
