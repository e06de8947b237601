package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/internal/domain/shared"
	"github.com/drawdrill/drawdrill/internal/infrastructure/persistence/memory"
	"github.com/drawdrill/drawdrill/pkg/logger"
	"github.com/drawdrill/drawdrill/pkg/timeutil"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func quietLogger() *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.LevelFatal
	return logger.New(opts)
}

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *memory.BlobStore, *timeutil.FixedClock) {
	t.Helper()
	store := memory.NewBlobStore()
	clock := timeutil.NewFixedClock(testNow)

	base := []Option{
		WithClock(clock),
		WithLogger(quietLogger()),
		WithRand(rand.New(rand.NewPCG(3, 5))),
	}
	l := New(store, append(base, opts...)...)
	return l, store, clock
}

func input(t practice.SessionType, accuracy float64) practice.SessionInput {
	return practice.SessionInput{
		Type:           t,
		Score:          int(accuracy) * 3,
		Accuracy:       accuracy,
		TotalQuestions: 20,
		CorrectAnswers: int(accuracy / 5),
		Streak:         4,
		Duration:       practice.Float(210),
	}
}

func achievement(t *testing.T, l *Ledger, id int) practice.Achievement {
	t.Helper()
	for _, a := range l.Achievements() {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("achievement %d missing", id)
	return practice.Achievement{}
}

func TestLedger_InitEmptyStore(t *testing.T) {
	l, _, _ := newTestLedger(t)

	out := l.Init(context.Background())
	assert.True(t, out.Persisted())
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, practice.DefaultAchievements(), l.Achievements())
	assert.NoError(t, l.LastStorageError())
}

func TestLedger_AppendContract(t *testing.T) {
	ctx := context.Background()
	l, store, clock := newTestLedger(t)
	l.Init(ctx)

	first, out := l.Append(ctx, input(practice.TypeAngle, 72))
	require.True(t, out.Persisted())
	assert.Equal(t, 1, l.Len())
	assert.NotEmpty(t, first.ID)
	assert.True(t, first.Timestamp.Equal(testNow))
	assert.Equal(t, input(practice.TypeAngle, 72), first.Input())

	require.Len(t, out.Unlocked, 1)
	assert.Equal(t, practice.AchievementFirstSession, out.Unlocked[0].ID)

	clock.Advance(time.Minute)
	second, out := l.Append(ctx, input(practice.TypeLength, 64))
	require.True(t, out.Persisted())
	assert.Empty(t, out.Unlocked)
	assert.Equal(t, 2, l.Len())
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, second.Timestamp.Before(first.Timestamp))

	raw, ok := store.Get(practice.SessionsBlobKey)
	require.True(t, ok)
	var saved []practice.Session
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, l.Sessions(), saved)

	_, ok = store.Get(practice.AchievementsBlobKey)
	assert.True(t, ok)
}

func TestLedger_AppendAcceptsAnyShape(t *testing.T) {
	l, _, _ := newTestLedger(t)

	s, out := l.Append(context.Background(), practice.SessionInput{Type: "sketch", Accuracy: 140, Score: -5})
	assert.True(t, out.Persisted())
	assert.Equal(t, practice.SessionType("sketch"), s.Type)
	assert.Equal(t, 140.0, s.Accuracy)
	assert.Equal(t, -5, s.Score)
}

func TestLedger_TimestampsNeverGoBackwards(t *testing.T) {
	ctx := context.Background()
	l, _, clock := newTestLedger(t)

	first, _ := l.Append(ctx, input(practice.TypeLength, 80))
	clock.Set(testNow.Add(-time.Hour))
	second, _ := l.Append(ctx, input(practice.TypeLength, 80))

	assert.True(t, second.Timestamp.Equal(first.Timestamp))
}

func TestLedger_RedrawsDuplicateIDs(t *testing.T) {
	ids := []string{"a", "a", "", "b"}
	next := 0
	gen := func() string {
		id := ids[next]
		next++
		return id
	}

	ctx := context.Background()
	l, _, _ := newTestLedger(t, WithIDGenerator(gen))

	first, _ := l.Append(ctx, input(practice.TypeLength, 80))
	second, _ := l.Append(ctx, input(practice.TypeLength, 80))

	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "b", second.ID)
}

func TestLedger_ReturnedSessionIsACopy(t *testing.T) {
	l, _, _ := newTestLedger(t)

	s, _ := l.Append(context.Background(), input(practice.TypeAngle, 80))
	*s.Duration = 1

	assert.Equal(t, 210.0, *l.Sessions()[0].Duration)
}

func TestLedger_SaveFailureIsReportedNotRaised(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)

	store.FailSaves(errors.New("disk full"))
	s, out := l.Append(ctx, input(practice.TypeLength, 95))

	assert.False(t, out.Persisted())
	assert.ErrorIs(t, out.StorageErr, shared.ErrStorageWrite)
	assert.True(t, shared.IsStorage(out.StorageErr))
	assert.Len(t, out.Unlocked, 2, "evaluation still runs")
	assert.Equal(t, 1, l.Len(), "in-memory state is not rolled back")
	assert.Equal(t, s, l.Sessions()[0])
	assert.Error(t, l.LastStorageError())

	_, saves := store.Calls()
	assert.Equal(t, 2, saves, "both blobs are attempted")

	store.FailSaves(nil)
	_, out = l.Append(ctx, input(practice.TypeLength, 90))
	assert.True(t, out.Persisted())
	assert.NoError(t, l.LastStorageError())
}

func TestLedger_Clear(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)

	for i := 0; i < 3; i++ {
		l.Append(ctx, input(practice.TypeAngle, 100))
	}
	require.True(t, achievement(t, l, practice.AchievementFlawless).Earned)

	out := l.Clear(ctx)
	assert.True(t, out.Persisted())
	assert.Empty(t, out.Unlocked)
	assert.Equal(t, 0, l.Len())
	for _, a := range l.Achievements() {
		assert.False(t, a.Earned)
		assert.Zero(t, a.Progress)
		assert.Nil(t, a.EarnedDate)
	}

	raw, ok := store.Get(practice.SessionsBlobKey)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestLedger_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	l.Append(ctx, input(practice.TypeLength, 10))

	var history []practice.Session
	for i := 0; i < 5; i++ {
		history = append(history, practice.NewSession(fmt.Sprintf("s%d", i), testNow.Add(-time.Duration(i)*time.Hour),
			input(practice.TypeProportion, 90)))
	}

	out := l.ReplaceAll(ctx, history)
	assert.True(t, out.Persisted())
	assert.Equal(t, 5, l.Len())
	assert.Equal(t, "s0", l.Sessions()[0].ID)
	assert.True(t, achievement(t, l, practice.AchievementPerfectionist).Earned)
}

func TestLedger_InitMergesStoredState(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLedger(t)

	earnedAt := testNow.Add(-72 * time.Hour)
	stored := []practice.Achievement{
		{ID: practice.AchievementFirstSession, Title: "renamed", Earned: true, Progress: 100, EarnedDate: &earnedAt},
		{ID: 42, Title: "retired", Earned: true},
	}
	sessions := []practice.Session{
		practice.NewSession("old", earnedAt, input(practice.TypeLength, 55)),
	}
	achData, _ := json.Marshal(stored)
	sessData, _ := json.Marshal(sessions)
	store.Put(practice.AchievementsBlobKey, achData)
	store.Put(practice.SessionsBlobKey, sessData)

	out := l.Init(ctx)
	require.True(t, out.Persisted())

	assert.Equal(t, sessions, l.Sessions())

	all := l.Achievements()
	require.Len(t, all, len(practice.DefaultAchievements()))
	first := achievement(t, l, practice.AchievementFirstSession)
	assert.Equal(t, "Beginner", first.Title)
	require.NotNil(t, first.EarnedDate)
	assert.True(t, first.EarnedDate.Equal(earnedAt))

	// Earned state survives the next evaluation.
	l.Append(ctx, input(practice.TypeLength, 60))
	first = achievement(t, l, practice.AchievementFirstSession)
	assert.True(t, first.EarnedDate.Equal(earnedAt))
}

func TestLedger_InitMalformedBlobFallsBackPerBlob(t *testing.T) {
	l, store, _ := newTestLedger(t)

	earnedAt := testNow.Add(-time.Hour)
	achData, _ := json.Marshal([]practice.Achievement{
		{ID: practice.AchievementMarathon, Progress: 12, EarnedDate: nil},
		{ID: practice.AchievementSharpshooter, Earned: true, Progress: 100, EarnedDate: &earnedAt},
	})
	store.Put(practice.SessionsBlobKey, []byte(`{"not":"a list"`))
	store.Put(practice.AchievementsBlobKey, achData)

	out := l.Init(context.Background())
	assert.False(t, out.Persisted())
	assert.ErrorIs(t, out.StorageErr, shared.ErrStorageRead)
	assert.ErrorIs(t, out.StorageErr, shared.ErrInvalidFormat)

	assert.Equal(t, 0, l.Len())
	assert.True(t, achievement(t, l, practice.AchievementSharpshooter).Earned)
	assert.Equal(t, 12.0, achievement(t, l, practice.AchievementMarathon).Progress)
}

func TestLedger_InitLoadFailure(t *testing.T) {
	l, store, _ := newTestLedger(t)
	store.FailLoads(errors.New("connection refused"))

	out := l.Init(context.Background())
	assert.ErrorIs(t, out.StorageErr, shared.ErrStorageRead)
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, practice.DefaultAchievements(), l.Achievements())
}

func TestLedger_GenerateDemoData(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	l.Append(ctx, input(practice.TypeLength, 10))

	out := l.GenerateDemoData(ctx)
	assert.True(t, out.Persisted())
	require.Positive(t, l.Len())

	for _, s := range l.Sessions() {
		assert.False(t, s.Timestamp.After(testNow))
		assert.NotEqual(t, 10.0, s.Accuracy, "previous history is replaced")
	}
	assert.True(t, achievement(t, l, practice.AchievementFirstSession).Earned)
}

func TestLedger_Dashboard(t *testing.T) {
	ctx := context.Background()
	l, _, clock := newTestLedger(t)

	l.Append(ctx, input(practice.TypeAngle, 60))
	clock.Advance(time.Hour)
	l.Append(ctx, input(practice.TypeLength, 80))

	d := l.Dashboard()
	assert.Equal(t, 2, d.TotalSessions)
	assert.Equal(t, 70.0, d.OverallAccuracy)
	assert.Equal(t, 1, d.ConsecutiveDays)
	assert.Equal(t, 1, d.Breakdown.Angle.TotalSessions)
	assert.Len(t, d.Frequency, practice.FrequencyWindowDays)
	assert.Equal(t, 2, d.Frequency[practice.FrequencyWindowDays-1].Sessions)
	assert.Equal(t, 80.0, d.Recent[0].Accuracy)
	assert.Len(t, d.Trend, 2)
	assert.Len(t, d.Achievements, 7)
	assert.LessOrEqual(t, len(d.Tips), practice.MaxTips)

	assert.Equal(t, d.Breakdown, l.Breakdown())
	assert.Equal(t, d.Recent, l.RecentSessions())
	assert.Equal(t, d.Trend, l.AccuracyTrend())
	assert.Equal(t, d.Frequency, l.DailyFrequency())
	assert.Equal(t, d.Tips, l.Tips())
}

func TestLedger_Close(t *testing.T) {
	l, _, _ := newTestLedger(t)
	require.NoError(t, l.Close())

	_, out := l.Append(context.Background(), input(practice.TypeLength, 50))
	assert.ErrorIs(t, out.StorageErr, shared.ErrStoreClosed)
	assert.Equal(t, 1, l.Len())
}

func TestLedger_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(ctx, input(practice.TypeProportion, 50))
		}()
	}
	wg.Wait()

	sessions := l.Sessions()
	require.Len(t, sessions, writers)

	seen := make(map[string]struct{}, writers)
	for _, s := range sessions {
		seen[s.ID] = struct{}{}
	}
	assert.Len(t, seen, writers)
	assert.True(t, achievement(t, l, practice.AchievementFirstSession).Earned)
}

// recordingPublisher captures events and reads the ledger back on every one.
type recordingPublisher struct {
	ledger *Ledger
	events []shared.Event
	sizes  []int
	err    error
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	p.sizes = append(p.sizes, p.ledger.Len())
	return p.err
}

func (p *recordingPublisher) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func TestLedger_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	l, _, _ := newTestLedger(t, WithPublisher(pub))
	pub.ledger = l

	session, _ := l.Append(ctx, input(practice.TypeAngle, 95))

	require.Equal(t, []shared.EventType{
		shared.EventSessionRecorded,
		shared.EventAchievementUnlocked,
		shared.EventAchievementUnlocked,
	}, pub.types())
	assert.Equal(t, []int{1, 1, 1}, pub.sizes, "handlers observe the committed ledger")

	recorded, ok := pub.events[0].(practice.SessionRecordedEvent)
	require.True(t, ok)
	assert.Equal(t, session.ID, recorded.AggregateID())
	assert.True(t, recorded.OccurredAt().Equal(testNow))

	unlocked, ok := pub.events[1].(practice.AchievementUnlockedEvent)
	require.True(t, ok)
	assert.Equal(t, practice.AchievementFirstSession, unlocked.Achievement.ID)
	assert.Equal(t, unlocked.Achievement.Title, unlocked.Payload()["title"])

	pub.events = nil
	l.Clear(ctx)
	require.Len(t, pub.events, 1)
	reset, ok := pub.events[0].(practice.LedgerResetEvent)
	require.True(t, ok)
	assert.Equal(t, practice.ResetCleared, reset.Reason)
	assert.Equal(t, 0, reset.Sessions)

	pub.events = nil
	l.GenerateDemoData(ctx)
	require.NotEmpty(t, pub.events)
	reset, ok = pub.events[0].(practice.LedgerResetEvent)
	require.True(t, ok)
	assert.Equal(t, practice.ResetDemo, reset.Reason)
	assert.Equal(t, l.Len(), reset.Sessions)
}

func TestLedger_PublishFailureDoesNotAffectOutcome(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus closed")}
	l, _, _ := newTestLedger(t, WithPublisher(pub))
	pub.ledger = l

	_, out := l.Append(context.Background(), input(practice.TypeLength, 40))
	assert.True(t, out.Persisted())
	assert.Equal(t, 1, l.Len())
	assert.Len(t, pub.events, 2)
}
