package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/drawdrill/drawdrill/config"
	"github.com/drawdrill/drawdrill/internal/application/ledger"
	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/pkg/logger"
)

// maxBodyBytes caps request bodies; a session report is a few hundred bytes.
const maxBodyBytes = 64 << 10

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE BODIES
// ══════════════════════════════════════════════════════════════════════════════

// StorageStatus reports whether a mutation reached durable storage.
type StorageStatus struct {
	Persisted bool   `json:"persisted"`
	Error     string `json:"error,omitempty"`
}

func storageStatus(out ledger.Outcome) StorageStatus {
	if out.StorageErr == nil {
		return StorageStatus{Persisted: true}
	}
	return StorageStatus{Persisted: false, Error: out.StorageErr.Error()}
}

// RecordResponse is returned by POST /api/v1/sessions.
type RecordResponse struct {
	Session  practice.Session       `json:"session"`
	Unlocked []practice.Achievement `json:"unlocked"`
	Storage  StorageStatus          `json:"storage"`
}

// MutationResponse is returned by bulk mutations.
type MutationResponse struct {
	TotalSessions int                    `json:"totalSessions"`
	Unlocked      []practice.Achievement `json:"unlocked"`
	Storage       StorageStatus          `json:"storage"`
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	TotalSessions   int                   `json:"totalSessions"`
	OverallAccuracy float64               `json:"overallAccuracy"`
	ConsecutiveDays int                   `json:"consecutiveDays"`
	Breakdown       practice.Breakdown    `json:"breakdown"`
	Trend           []practice.TrendPoint `json:"trend"`
	Frequency       []practice.DayCount   `json:"frequency"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string      `json:"status"`
	Sessions int         `json:"sessions"`
	Uptime   string      `json:"uptime"`
	Checks   interface{} `json:"checks,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// nonNil keeps empty lists as [] on the wire.
func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	features := map[string]bool{}
	if s.deps.Features != nil {
		for _, f := range s.deps.Features.All() {
			features[f.Name] = f.Enabled
		}
	}

	respond(w, r, http.StatusOK, map[string]interface{}{
		"name":     "drawdrill",
		"version":  s.config.Version,
		"features": features,
		"endpoints": map[string]string{
			"health":       "/health",
			"sessions":     "/api/v1/sessions",
			"recent":       "/api/v1/sessions/recent",
			"stats":        "/api/v1/stats",
			"achievements": "/api/v1/achievements",
			"tips":         "/api/v1/tips",
			"demo":         "/api/v1/demo",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())

	resp := HealthResponse{
		Status:   "healthy",
		Sessions: s.deps.Ledger.Len(),
		Uptime:   s.Uptime().Round(time.Second).String(),
		Message:  status.Message,
	}
	if len(status.Checks) > 0 {
		resp.Checks = status.Checks
	}

	if !status.Healthy {
		resp.Status = "unhealthy"
		respond(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	respond(w, r, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListSessions handles GET /api/v1/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.deps.Ledger.Sessions()
	respondList(w, r, nonNil(sessions), len(sessions))
}

// handleRecentSessions handles GET /api/v1/sessions/recent
func (s *Server) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, nonNil(s.deps.Ledger.RecentSessions()))
}

// handleRecordSession handles POST /api/v1/sessions
func (s *Server) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	in, err := decodeSessionInput(w, r)
	if err != nil {
		respondErrorDetails(w, r, http.StatusBadRequest, "invalid_request", "Invalid session report", err.Error())
		return
	}

	session, out := s.deps.Ledger.Append(r.Context(), in)
	s.logStorage(r, "record", out)

	respond(w, r, http.StatusCreated, RecordResponse{
		Session:  session,
		Unlocked: nonNil(out.Unlocked),
		Storage:  storageStatus(out),
	})
}

// handleClearSessions handles DELETE /api/v1/sessions
func (s *Server) handleClearSessions(w http.ResponseWriter, r *http.Request) {
	out := s.deps.Ledger.Clear(r.Context())
	s.logStorage(r, "clear", out)

	respond(w, r, http.StatusOK, MutationResponse{
		TotalSessions: 0,
		Unlocked:      nonNil(out.Unlocked),
		Storage:       storageStatus(out),
	})
}

// handleGenerateDemo handles POST /api/v1/demo
func (s *Server) handleGenerateDemo(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Features.IsEnabled(config.FeatureDemoData) {
		respondError(w, r, http.StatusForbidden, "feature_disabled", "Demo data generation is disabled")
		return
	}

	out := s.deps.Ledger.GenerateDemoData(r.Context())
	s.logStorage(r, "demo", out)

	respond(w, r, http.StatusOK, MutationResponse{
		TotalSessions: s.deps.Ledger.Len(),
		Unlocked:      nonNil(out.Unlocked),
		Storage:       storageStatus(out),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED VIEW HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStats handles GET /api/v1/stats
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	d := s.deps.Ledger.Dashboard()

	respond(w, r, http.StatusOK, StatsResponse{
		TotalSessions:   d.TotalSessions,
		OverallAccuracy: d.OverallAccuracy,
		ConsecutiveDays: d.ConsecutiveDays,
		Breakdown:       d.Breakdown,
		Trend:           nonNil(d.Trend),
		Frequency:       nonNil(d.Frequency),
	})
}

// handleGetAchievements handles GET /api/v1/achievements
func (s *Server) handleGetAchievements(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, s.deps.Ledger.Achievements())
}

// handleGetTips handles GET /api/v1/tips
func (s *Server) handleGetTips(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Features.IsEnabled(config.FeatureTips) {
		respondError(w, r, http.StatusForbidden, "feature_disabled", "Tips are disabled")
		return
	}

	respond(w, r, http.StatusOK, nonNil(s.deps.Ledger.Tips()))
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeSessionInput reads a session report. Only the wire shape is checked:
// the body must be one JSON object and the type must be a known drill.
func decodeSessionInput(w http.ResponseWriter, r *http.Request) (practice.SessionInput, error) {
	var in practice.SessionInput

	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return in, fmt.Errorf("unsupported content type %q", ct)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return in, errors.New("body must contain a single JSON object")
	}

	t, err := practice.ParseSessionType(string(in.Type))
	if err != nil {
		return in, err
	}
	in.Type = t

	return in, nil
}

func (s *Server) logStorage(r *http.Request, op string, out ledger.Outcome) {
	if out.StorageErr == nil {
		return
	}
	logger.FromContext(r.Context()).Warn("mutation not persisted",
		logger.Operation(op),
		logger.Err(out.StorageErr),
	)
}
