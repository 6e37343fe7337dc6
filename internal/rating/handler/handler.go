// Package handler exposes rating snapshots and ledger statistics over HTTP.
// Both are public reads; ratings are the ledger's outward face.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"flagledger/internal/rating"
	"flagledger/internal/transport/http/shared"
	id "flagledger/pkg/domain"
)

// Service defines the rating operations the transport needs.
type Service interface {
	Rate(ctx context.Context, userID id.UserID) (rating.UserRating, error)
	Statistics(ctx context.Context) (rating.LedgerStats, error)
	UserStatistics(ctx context.Context, userID id.UserID) (rating.UserStats, error)
	CategoryStatistics(ctx context.Context, userID id.UserID, cat id.Category) (rating.CategoryBreakdown, error)
	Distribution(ctx context.Context, userID id.UserID) ([]rating.CategoryBreakdown, error)
}

// Handler handles rating endpoints.
type Handler struct {
	ratings Service
}

func New(ratings Service) *Handler {
	return &Handler{ratings: ratings}
}

// Register mounts the rating routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/users/{userID}/rating", h.handleRating)
	r.Get("/users/{userID}/statistics", h.handleUserStatistics)
	r.Get("/users/{userID}/statistics/{category}", h.handleCategoryStatistics)
	r.Get("/users/{userID}/distribution", h.handleDistribution)
	r.Get("/stats", h.handleStatistics)
}

func (h *Handler) handleRating(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	snapshot, err := h.ratings.Rate(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ratings.Statistics(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleUserStatistics(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	stats, err := h.ratings.UserStatistics(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleCategoryStatistics(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cat, err := id.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	stats, err := h.ratings.CategoryStatistics(r.Context(), userID, cat)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleDistribution(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	dist, err := h.ratings.Distribution(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string][]rating.CategoryBreakdown{"distribution": dist})
}
