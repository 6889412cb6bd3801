// Package transporthttp provides the thin, dev/test-only HTTP surface
// over the Orchestrator. Production transports (voice/text channel
// adapters) sit outside this core's scope; this mux exists so the turn
// pipeline can be exercised and health/metrics scraped without one.
package transporthttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jadhavgaurav/agentcore/internal/orchestrator"
	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// Config configures the dev HTTP server.
type Config struct {
	Host         string
	Port         int
	Orchestrator *orchestrator.Orchestrator
	Logger       *slog.Logger
}

// Server is the dev/test HTTP front door onto one Orchestrator.
type Server struct {
	cfg Config
	srv *http.Server
}

// New builds a Server from cfg. Call Start to listen.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	mux := http.NewServeMux()
	s := &Server{cfg: cfg}

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/v1/turns", s.handleTurn)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start listens until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// turnRequest is the wire shape for a dev-client turn submission.
type turnRequest struct {
	SessionID      string `json:"session_id"`
	UserID         string `json:"user_id"`
	Content        string `json:"content"`
	Modality       string `json:"modality"`
	IdempotencyKey string `json:"idempotency_key"`
	TraceID        string `json:"trace_id"`
}

type turnResponse struct {
	AssistantText         string `json:"assistant_text"`
	ShouldSpeak           bool   `json:"should_speak"`
	PendingConfirmationID string `json:"pending_confirmation_id,omitempty"`
	ConfirmationPrompt    string `json:"confirmation_prompt,omitempty"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.UserID == "" || req.Content == "" {
		http.Error(w, "session_id, user_id, and content are required", http.StatusBadRequest)
		return
	}

	modality := models.ModalityText
	if req.Modality == string(models.ModalityVoice) {
		modality = models.ModalityVoice
	}

	resp, err := s.cfg.Orchestrator.HandleTurn(r.Context(), orchestrator.TurnRequest{
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		Content:        req.Content,
		Modality:       modality,
		IdempotencyKey: req.IdempotencyKey,
		TraceID:        req.TraceID,
	})
	if err != nil {
		s.cfg.Logger.Error("handle turn failed", "error", err, "session_id", req.SessionID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := turnResponse{AssistantText: resp.AssistantText, ShouldSpeak: resp.ShouldSpeak}
	if resp.PendingConfirmation != nil {
		out.PendingConfirmationID = resp.PendingConfirmation.ID
		out.ConfirmationPrompt = resp.PendingConfirmation.Prompt
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
