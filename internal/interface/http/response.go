package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/drawdrill/drawdrill/pkg/logger"
)

// Envelope wraps every JSON body the API writes.
type Envelope struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError is the error half of an Envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta carries list metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	TotalCount int       `json:"total_count,omitempty"`
}

type requestIDKey struct{}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func send(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	env.RequestID = requestID(r)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logger.FromContext(r.Context()).Warn("encode response", logger.Err(err))
	}
}

func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	send(w, r, status, Envelope{Success: true, Data: data})
}

func respondList(w http.ResponseWriter, r *http.Request, data interface{}, total int) {
	send(w, r, http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Meta: &ResponseMeta{
			Timestamp:  time.Now().UTC(),
			Version:    APIVersion,
			TotalCount: total,
		},
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondErrorDetails(w, r, status, code, message, "")
}

func respondErrorDetails(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	send(w, r, status, Envelope{
		Error: &APIError{Code: code, Message: message, Details: details},
	})
}
