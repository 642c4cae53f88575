package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ReviewHandler exposes flagged questions awaiting safeguarding review.
type ReviewHandler struct {
	*Handler
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(base *Handler) *ReviewHandler {
	return &ReviewHandler{Handler: base}
}

// RegisterRoutes registers the review routes.
func (h *ReviewHandler) RegisterRoutes(r chi.Router) {
	r.Route("/review", func(r chi.Router) {
		r.Get("/", h.ListOpen)
		r.Post("/resolve", h.Resolve)
	})
}

// ListOpen returns all unresolved escalations, oldest first.
func (h *ReviewHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		JSON(w, http.StatusOK, map[string]interface{}{"escalations": []interface{}{}})
		return
	}

	open, err := h.repo.ListOpen(r.Context())
	if err != nil {
		slog.Error("Failed to list open escalations", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list escalations")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"escalations": open})
}

type resolveRequest struct {
	SessionID string `json:"session_id"`
}

// Resolve closes every open escalation for a session.
func (h *ReviewHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id cannot be empty")
		return
	}
	if h.repo == nil {
		JSON(w, http.StatusOK, map[string]int64{"resolved": 0})
		return
	}

	n, err := h.repo.Resolve(r.Context(), req.SessionID)
	if err != nil {
		slog.Error("Failed to resolve escalations", "error", err, "session_id", req.SessionID)
		Error(w, http.StatusInternalServerError, "failed to resolve escalations")
		return
	}

	slog.Info("Escalations resolved", "session_id", req.SessionID, "count", n)
	JSON(w, http.StatusOK, map[string]int64{"resolved": n})
}
