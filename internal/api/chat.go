package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// askRequest is the widget's question payload. Field names are snake_case to
// match the poll transport.
type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type askResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
	Source    string `json:"source"`
	URL       string `json:"url,omitempty"`
	LinkLabel string `json:"link_label,omitempty"`
}

type statusRequest struct {
	SessionID string `json:"session_id"`
}

// statusResponse carries at most one queued human reply per poll. An empty
// answer with source "system" means keep polling.
type statusResponse struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
}

// ChatHandler handles the widget-facing poll transport.
type ChatHandler struct {
	*Handler
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(base *Handler) *ChatHandler {
	return &ChatHandler{Handler: base}
}

// RegisterRoutes registers the chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/ask", h.Ask)
	r.Post("/status", h.Status)
	r.Get("/config", h.GetConfig)
}

// GetConfig returns poll tuning for the widget frontend.
func (h *ChatHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	interval := 5 * time.Second
	attempts := 60
	if h.cfg != nil {
		interval = h.cfg.PollInterval
		attempts = h.cfg.MaxPollAttempts
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"poll_interval_ms":  interval.Milliseconds(),
		"max_poll_attempts": attempts,
	})
}

// Ask answers one visitor question. Blank session IDs get a fresh one; the
// widget must echo it on every later request.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		Error(w, http.StatusBadRequest, "question cannot be empty")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.askTimeout())
	defer cancel()

	reply, sessionID, err := h.hub.Process(ctx, req.SessionID, req.Question)
	if err != nil {
		slog.Error("Failed to answer question", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	JSON(w, http.StatusOK, askResponse{
		Answer:    reply.Text,
		SessionID: sessionID,
		Source:    string(reply.Source),
		URL:       reply.URL,
		LinkLabel: reply.LinkLabel,
	})
}

// Status answers one poll for a queued human reply.
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id cannot be empty")
		return
	}

	text, source := h.hub.PollStatus(req.SessionID)
	JSON(w, http.StatusOK, statusResponse{
		Answer: text,
		Source: string(source),
	})
}
