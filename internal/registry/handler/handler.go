// Package handler exposes registration, the owner's admin surface, and public
// user profiles over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flagledger/internal/platform/middleware"
	"flagledger/internal/registry"
	"flagledger/internal/transport/http/shared"
	id "flagledger/pkg/domain"
	dErrors "flagledger/pkg/domain-errors"
)

// Service defines the registry operations the transport needs.
type Service interface {
	Register(ctx context.Context, userID id.UserID) (registry.User, error)
	Verify(ctx context.Context, caller registry.Caller, userID id.UserID) error
	CreateMatch(ctx context.Context, caller registry.Caller, a, b id.UserID) error
	AddCategory(ctx context.Context, caller registry.Caller, name string) (id.Category, error)
	Categories(ctx context.Context) []id.Category
	Get(ctx context.Context, userID id.UserID) (registry.User, error)
	Reputation(ctx context.Context, userID id.UserID) (int, error)
}

// Handler handles user and admin endpoints.
type Handler struct {
	users     Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(users Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{users: users, logger: logger, validator: validator}
}

// Register mounts the registry routes. Profiles and the category list are
// public; registration needs a token; the admin surface needs the owner role.
func (h *Handler) Register(r chi.Router) {
	r.Get("/users/{userID}", h.handleGetUser)
	r.Get("/users/{userID}/reputation", h.handleReputation)
	r.Get("/categories", h.handleListCategories)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/users/register", h.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOwner(h.logger))
			r.Post("/admin/users/{userID}/verify", h.handleVerify)
			r.Post("/admin/matches", h.handleCreateMatch)
			r.Post("/admin/categories", h.handleAddCategory)
		})
	})
}

type matchRequest struct {
	UserA string `json:"user_a"`
	UserB string `json:"user_b"`
}

type categoryRequest struct {
	Name string `json:"name"`
}

type userResponse struct {
	ID           string     `json:"id"`
	Verified     bool       `json:"verified"`
	Reputation   int        `json:"reputation"`
	RegisteredAt time.Time  `json:"registered_at"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
}

func renderUser(u registry.User) userResponse {
	return userResponse{
		ID:           u.ID.String(),
		Verified:     u.Verified,
		Reputation:   u.Reputation,
		RegisteredAt: u.RegisteredAt,
		VerifiedAt:   u.VerifiedAt,
	}
}

func callerFrom(r *http.Request) (registry.Caller, error) {
	userID, err := id.ParseUserID(middleware.GetUserID(r.Context()))
	if err != nil {
		return registry.Caller{}, dErrors.New(dErrors.CodeUnauthorized, "invalid authentication context")
	}
	return registry.Caller{ID: userID, Owner: middleware.IsOwner(r.Context())}, nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	c, err := callerFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), c.ID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, renderUser(user))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	c, err := callerFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.users.Verify(r.Context(), c, userID); err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, renderUser(user))
}

func (h *Handler) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	c, err := callerFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req matchRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	a, err := id.ParseUserID(req.UserA)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	b, err := id.ParseUserID(req.UserB)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.users.CreateMatch(r.Context(), c, a, b); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]string{"status": "matched"})
}

func (h *Handler) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	c, err := callerFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req categoryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	cat, err := h.users.AddCategory(r.Context(), c, req.Name)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]string{"category": string(cat)})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, renderUser(user))
}

func (h *Handler) handleReputation(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	reputation, err := h.users.Reputation(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":    userID.String(),
		"reputation": reputation,
	})
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string][]id.Category{
		"categories": h.users.Categories(r.Context()),
	})
}
