package main

import (
	"context"
	"fmt"
	"os"

	"github.com/drawdrill/drawdrill/config"
	"github.com/drawdrill/drawdrill/internal/application/ledger"
	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/internal/domain/shared"
	"github.com/drawdrill/drawdrill/internal/infrastructure/messaging"
	"github.com/drawdrill/drawdrill/internal/infrastructure/persistence/memory"
	"github.com/drawdrill/drawdrill/internal/infrastructure/persistence/postgres"
	"github.com/drawdrill/drawdrill/internal/infrastructure/persistence/redis"
	"github.com/drawdrill/drawdrill/internal/infrastructure/persistence/resilient"
	"github.com/drawdrill/drawdrill/internal/infrastructure/persistence/sqlite"
	"github.com/drawdrill/drawdrill/pkg/logger"
	"github.com/drawdrill/drawdrill/pkg/timeutil"
)

// app is everything a command needs, assembled from configuration.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	store  practice.BlobStore
	bus    eventBus
	ledger *ledger.Ledger
}

// eventBus is the part of the messaging buses the app uses.
type eventBus interface {
	shared.EventBus
	Close() error
}

// loadApp reads configuration, opens the configured store and loads the
// ledger. Storage failures during the initial load are logged, not returned:
// the ledger starts from defaults.
func loadApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	bus, err := openBus(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := bus.SubscribeAll(auditEvents(log)); err != nil {
		_ = bus.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	l := ledger.New(store,
		ledger.WithClock(timeutil.NewSystemClock(cfg.App.Location)),
		ledger.WithLogger(log),
		ledger.WithPublisher(bus),
	)

	initCtx, cancel := context.WithTimeout(ctx, cfg.Storage.OpTimeout)
	defer cancel()

	if out := l.Init(initCtx); !out.Persisted() {
		log.Warn("starting from defaults, stored state unreadable", logger.Err(out.StorageErr))
	}

	return &app{cfg: cfg, log: log, store: store, bus: bus, ledger: l}, nil
}

// close releases the store, then drains the event bus.
func (a *app) close() {
	if err := a.ledger.Close(); err != nil {
		a.log.Warn("failed to close storage", logger.Err(err))
	}
	if err := a.bus.Close(); err != nil {
		a.log.Warn("failed to close event bus", logger.Err(err))
	}
}

// setupLogger writes to stderr so command output on stdout stays clean.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stderr
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug && opts.Level > logger.LevelDebug {
		opts.Level = logger.LevelDebug
	}
	opts.AddCaller = cfg.App.Debug

	return logger.New(opts).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// openStore opens the configured backend. Network and file backends are
// wrapped with retries and a circuit breaker.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (practice.BlobStore, error) {
	sc := cfg.Storage

	openCtx, cancel := context.WithTimeout(ctx, sc.OpTimeout)
	defer cancel()

	var (
		inner practice.BlobStore
		err   error
	)

	switch sc.Backend {
	case config.BackendMemory:
		log.Info("using in-memory storage, nothing will survive a restart", logger.Backend(sc.Backend))
		return memory.NewBlobStore(), nil

	case config.BackendSQLite:
		inner, err = sqlite.Open(openCtx, sc.SQLitePath)

	case config.BackendPostgres:
		inner, err = postgres.Open(openCtx, postgres.DefaultConfig(sc.PostgresURL))

	case config.BackendRedis:
		inner, err = redis.Open(openCtx, redis.ConfigFrom(sc.Redis))

	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", sc.Backend, err)
	}

	log.Info("storage opened", logger.Backend(sc.Backend))

	return resilient.Wrap(inner, resilient.Config{
		Backend:          sc.Backend,
		Attempts:         sc.RetryAttempts,
		FailureThreshold: sc.BreakerThreshold,
		OpenTimeout:      sc.BreakerTimeout,
		OpTimeout:        sc.OpTimeout,
	}, log), nil
}

// openBus builds the configured event bus.
func openBus(ctx context.Context, cfg *config.Config, log *logger.Logger) (eventBus, error) {
	ec := cfg.Events
	local := messaging.InMemoryEventBusConfig{
		AsyncMode:      ec.Async,
		WorkerPoolSize: ec.Workers,
		Logger:         log,
		EnableMetrics:  true,
	}

	if ec.Backend != config.EventsRedis {
		return messaging.NewInMemoryEventBus(local), nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Storage.OpTimeout)
	defer cancel()

	rdb, err := redis.Dial(dialCtx, redis.ConfigFrom(cfg.Storage.Redis))
	if err != nil {
		return nil, fmt.Errorf("failed to open redis event bus: %w", err)
	}

	client := messaging.NewGoRedisClient(rdb)
	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         client,
		ChannelName:    ec.Channel,
		LocalBusConfig: local,
		Logger:         log,
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open redis event bus: %w", err)
	}

	log.Info("event bus opened", logger.Backend(ec.Backend), logger.String("channel", ec.Channel))
	return bus, nil
}

// auditEvents logs every domain event.
func auditEvents(log *logger.Logger) shared.EventHandler {
	log = log.With(logger.Component("events"))
	return func(e shared.Event) error {
		fields := []logger.Field{
			logger.String("event_type", string(e.EventType())),
			logger.String("aggregate_id", e.AggregateID()),
		}
		for k, v := range e.Payload() {
			fields = append(fields, logger.Any(k, v))
		}
		log.Info("domain event", fields...)
		return nil
	}
}
