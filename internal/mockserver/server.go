// Package mockserver provides a stand-in webhook backend for local
// development. It echoes every message back as an acknowledgment.
package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the mock webhook server.
type Config struct {
	// Path is the webhook endpoint, e.g. /webhook/javispro212.
	Path string
}

// DefaultConfig returns the endpoint the client targets by default.
func DefaultConfig() *Config {
	return &Config{
		Path: "/webhook/javispro212",
	}
}

type webhookRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type webhookResponse struct {
	Reply     string `json:"reply"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Server is an http.Handler implementing the mock webhook contract.
type Server struct {
	logger zerolog.Logger
	config *Config
}

// NewServer creates a mock webhook handler.
func NewServer(cfg *Config, logger zerolog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{
		logger: logger.With().Str("component", "mock-webhook").Logger(),
		config: cfg,
	}
}

// ServeHTTP routes requests by hand: the webhook POST, a health probe,
// and CORS preflight for browser-based clients.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		s.handleHealth(w)
	case r.Method == http.MethodPost && r.URL.Path == s.config.Path:
		s.handleWebhook(w, r)
	default:
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Endpoint not found"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}
	if req.Message == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Message is required"})
		return
	}

	s.logger.Info().
		Str("user_id", req.UserID).
		Str("message", req.Message).
		Msg("Webhook message received")

	s.writeJSON(w, http.StatusOK, webhookResponse{
		Reply:     fmt.Sprintf("Acknowledged. Processing: %q", req.Message),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
