// Package ledger owns the practice history of one trainee: the ordered session
// ledger plus the achievement catalog state derived from it.
//
// A Ledger is built once per process and passed by reference. Every mutation
// (Append, ReplaceAll, Clear, GenerateDemoData) runs as one critical section:
// the ledger changes, every achievement rule is re-evaluated against the full
// history, and both blobs are saved, before the next caller observes state.
//
// Storage is best effort. Failures never surface as errors from mutations and
// never roll back in-memory state; they are logged and reported through the
// StorageErr field of the returned Outcome.
//
// When a publisher is configured, every mutation emits domain events after
// the critical section ends, so handlers may read the ledger back.
package ledger

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/internal/domain/shared"
	"github.com/drawdrill/drawdrill/pkg/logger"
	"github.com/drawdrill/drawdrill/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

// Outcome reports the side effects of a ledger operation.
type Outcome struct {
	// Unlocked lists achievements earned by this operation.
	Unlocked []practice.Achievement

	// StorageErr is the absorbed persistence failure, if any.
	// It matches shared.ErrStorageRead or shared.ErrStorageWrite.
	StorageErr error
}

// Persisted reports whether storage succeeded.
func (o Outcome) Persisted() bool {
	return o.StorageErr == nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Ledger is the session ledger and achievement state of one trainee.
type Ledger struct {
	mu sync.Mutex

	store     practice.BlobStore
	evaluator *practice.Evaluator
	clock     timeutil.Clock
	log       *logger.Logger
	rng       *rand.Rand
	newID     func() string
	publisher shared.EventPublisher

	sessions     []practice.Session
	achievements []practice.Achievement
	lastErr      error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used for timestamps and calendar days.
func WithClock(c timeutil.Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithRand sets the random source used for demo data.
func WithRand(rng *rand.Rand) Option {
	return func(l *Ledger) {
		if rng != nil {
			l.rng = rng
		}
	}
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// WithPublisher sets where domain events are sent.
func WithPublisher(p shared.EventPublisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

// New creates an empty ledger backed by store. Call Init to load persisted
// state.
func New(store practice.BlobStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:        store,
		evaluator:    practice.NewEvaluator(),
		clock:        timeutil.NewSystemClock(time.UTC),
		log:          logger.Default(),
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		newID:        practice.NewSessionID,
		achievements: practice.DefaultAchievements(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With(logger.Component("ledger"))
	return l
}

// Init loads both blobs from the store. A blob that is absent or does not
// parse leaves the corresponding state at its default.
func (l *Ledger) Init(ctx context.Context) Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	sessions, achievements, err := l.load(ctx)
	l.sessions = sessions
	l.achievements = achievements
	l.lastErr = err

	l.log.Info("ledger loaded",
		logger.Count(len(l.sessions)),
		logger.Bool("storage_ok", err == nil),
	)
	return Outcome{StorageErr: err}
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Close()
}

// Append records a finished session. The ledger assigns the ID and the
// timestamp; every other field is taken from in as given.
func (l *Ledger) Append(ctx context.Context, in practice.SessionInput) (practice.Session, Outcome) {
	l.mu.Lock()

	session := practice.NewSession(l.uniqueID(), l.nextTimestamp(), in)
	l.sessions = append(l.sessions, session)

	l.log.Debug("session appended",
		logger.SessionID(session.ID),
		logger.SessionType(session.Type.String()),
		logger.Float64("accuracy", session.Accuracy),
	)

	out := l.commit(ctx)
	now := l.clock.Now()
	l.mu.Unlock()

	events := []shared.Event{practice.NewSessionRecordedEvent(session, now)}
	l.publish(append(events, unlockedEvents(out, now)...)...)

	return practice.CloneSessions([]practice.Session{session})[0], out
}

// ReplaceAll discards the current history and installs sessions in its place.
func (l *Ledger) ReplaceAll(ctx context.Context, sessions []practice.Session) Outcome {
	l.mu.Lock()
	l.sessions = practice.CloneSessions(sessions)
	out := l.commit(ctx)
	n, now := len(l.sessions), l.clock.Now()
	l.mu.Unlock()

	l.publishReset(practice.ResetReplaced, n, now, out)
	return out
}

// Clear empties the ledger and resets every achievement to its default.
func (l *Ledger) Clear(ctx context.Context) Outcome {
	l.mu.Lock()
	l.sessions = nil
	l.achievements = practice.DefaultAchievements()
	l.log.Info("ledger cleared")

	out := Outcome{StorageErr: l.save(ctx)}
	now := l.clock.Now()
	l.mu.Unlock()

	l.publishReset(practice.ResetCleared, 0, now, out)
	return out
}

// GenerateDemoData replaces the history with synthetic sessions over the last
// two weeks.
func (l *Ledger) GenerateDemoData(ctx context.Context) Outcome {
	l.mu.Lock()
	now := l.clock.Now()
	l.sessions = practice.GenerateDemoSessions(now, l.rng)
	l.log.Info("demo data generated", logger.Count(len(l.sessions)))

	out := l.commit(ctx)
	n := len(l.sessions)
	l.mu.Unlock()

	l.publishReset(practice.ResetDemo, n, now, out)
	return out
}

// commit re-evaluates achievements against the whole ledger and persists.
// Callers hold l.mu.
func (l *Ledger) commit(ctx context.Context) Outcome {
	eval := l.evaluator.Evaluate(l.achievements, l.sessions, l.clock.Now())
	l.achievements = eval.Achievements

	for _, a := range eval.Unlocked {
		l.log.Info("achievement earned",
			logger.AchievementID(a.ID),
			logger.String("title", a.Title),
		)
	}

	return Outcome{
		Unlocked:   eval.Unlocked,
		StorageErr: l.save(ctx),
	}
}

// publishReset emits the reset event followed by any unlocks it caused.
func (l *Ledger) publishReset(reason string, sessions int, at time.Time, out Outcome) {
	events := []shared.Event{practice.NewLedgerResetEvent(reason, sessions, at)}
	l.publish(append(events, unlockedEvents(out, at)...)...)
}

// publish hands events to the publisher. Must not be called with l.mu held.
func (l *Ledger) publish(events ...shared.Event) {
	if l.publisher == nil {
		return
	}
	for _, e := range events {
		if err := l.publisher.Publish(e); err != nil {
			l.log.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.Err(err),
			)
		}
	}
}

func unlockedEvents(out Outcome, at time.Time) []shared.Event {
	events := make([]shared.Event, 0, len(out.Unlocked))
	for _, a := range out.Unlocked {
		events = append(events, practice.NewAchievementUnlockedEvent(a, at))
	}
	return events
}

// nextTimestamp returns now, but never earlier than the newest record.
func (l *Ledger) nextTimestamp() time.Time {
	now := l.clock.Now()
	for _, s := range l.sessions {
		if s.Timestamp.After(now) {
			now = s.Timestamp
		}
	}
	return now
}

// uniqueID draws IDs until one is unused in the ledger.
func (l *Ledger) uniqueID() string {
	seen := make(map[string]struct{}, len(l.sessions))
	for _, s := range l.sessions {
		seen[s.ID] = struct{}{}
	}
	for {
		id := l.newID()
		if _, dup := seen[id]; id != "" && !dup {
			return id
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

// Sessions returns a copy of the full ledger in insertion order.
func (l *Ledger) Sessions() []practice.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return practice.CloneSessions(l.sessions)
}

// Achievements returns a copy of the catalog state.
func (l *Ledger) Achievements() []practice.Achievement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return practice.CloneAchievements(l.achievements)
}

// Len returns the number of recorded sessions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// LastStorageError returns the storage failure of the most recent operation,
// or nil if it persisted.
func (l *Ledger) LastStorageError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Now returns the ledger clock's current time.
func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}
