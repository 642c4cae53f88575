// Package api provides HTTP handlers for the chat API.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/BobOttley/more-house-human/internal/config"
	"github.com/BobOttley/more-house-human/internal/hub"
	"github.com/BobOttley/more-house-human/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	hub  *hub.Hub
	repo store.Repository
	cfg  *config.Config
}

// NewHandler creates a new Handler with common dependencies. cfg may be nil;
// defaults apply.
func NewHandler(h *hub.Hub, repo store.Repository, cfg *config.Config) *Handler {
	return &Handler{
		hub:  h,
		repo: repo,
		cfg:  cfg,
	}
}

func (h *Handler) askTimeout() time.Duration {
	if h.cfg != nil {
		return h.cfg.AskTimeout
	}
	return 30 * time.Second
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
