// Package http implements the REST API over the practice ledger.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/drawdrill/drawdrill/config"
	"github.com/drawdrill/drawdrill/internal/application/ledger"
	"github.com/drawdrill/drawdrill/internal/interface/http/handlers"
	"github.com/drawdrill/drawdrill/pkg/logger"
)

// APIVersion is reported in every response envelope.
const APIVersion = "v1"

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// AllowedOrigins lists CORS origins; "*" allows any. Empty disables CORS.
	AllowedOrigins []string

	// RateLimitPerMinute is the per-client request budget. 0 disables limiting.
	RateLimitPerMinute int

	// Version is the application version reported by health checks.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
		Version:            "dev",
	}
}

// FromAppConfig maps application configuration onto server configuration.
func FromAppConfig(c config.HTTPConfig, version string) Config {
	cfg := DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.ReadTimeout = c.ReadTimeout
	cfg.WriteTimeout = c.WriteTimeout
	cfg.IdleTimeout = c.IdleTimeout
	cfg.AllowedOrigins = c.AllowedOrigins
	cfg.RateLimitPerMinute = c.RateLimitPerMinute
	cfg.Version = version
	return cfg
}

// Address returns the listen address.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Dependencies contains everything the handlers need.
type Dependencies struct {
	Ledger *ledger.Ledger

	// Features gates optional endpoints. Nil enables everything.
	Features *config.FeatureFlags

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server serves the ledger over HTTP.
type Server struct {
	config  Config
	deps    Dependencies
	logger  *logger.Logger
	limiter *rateLimiter
	handler http.Handler
	http    *http.Server

	mu        sync.Mutex
	startedAt time.Time
}

// NewServer wires routes and middleware. Nothing listens until Start.
func NewServer(cfg Config, deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewCompositeHealthChecker(cfg.Version)
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: log.With(logger.Component("http")),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	s.handler = chain(s.routes(),
		s.withRequestID,
		s.accessLog,
		s.recoverPanics,
		s.cors,
		s.rateLimit,
	)

	s.http = &http.Server{
		Addr:           cfg.Address(),
		Handler:        s.handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	// Producer side
	mux.HandleFunc("POST /api/v1/sessions", s.handleRecordSession)
	mux.HandleFunc("DELETE /api/v1/sessions", s.handleClearSessions)
	mux.HandleFunc("POST /api/v1/demo", s.handleGenerateDemo)

	// Consumer side
	mux.HandleFunc("GET /api/v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/recent", s.handleRecentSessions)
	mux.HandleFunc("GET /api/v1/stats", s.handleGetStats)
	mux.HandleFunc("GET /api/v1/achievements", s.handleGetAchievements)
	mux.HandleFunc("GET /api/v1/tips", s.handleGetTips)

	return mux
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if !s.startedAt.IsZero() {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields at most one error
// and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.mu.Lock()
	started := !s.startedAt.IsZero()
	s.mu.Unlock()
	if !started {
		return nil
	}

	s.logger.Info("shutting down HTTP server")
	return s.http.Shutdown(ctx)
}

// Uptime returns how long the server has been started, or zero.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}
