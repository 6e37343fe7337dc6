// Package handler exposes the flag lifecycle over HTTP. Handlers stay thin:
// decode, delegate, render.
package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flagledger/internal/flag"
	flagservice "flagledger/internal/flag/service"
	"flagledger/internal/platform/middleware"
	"flagledger/internal/transport/http/shared"
	id "flagledger/pkg/domain"
	dErrors "flagledger/pkg/domain-errors"
)

// Service defines the flag operations the transport needs.
type Service interface {
	Submit(ctx context.Context, sub flagservice.Submission) (flag.Flag, error)
	SubmitEncrypted(ctx context.Context, sub flagservice.EncryptedSubmission) (flag.Flag, error)
	SubmitAnonymous(ctx context.Context, sub flagservice.Submission) (flag.Flag, error)
	Approve(ctx context.Context, caller id.UserID, flagID id.FlagID) (flag.Flag, error)
	ApproveFirstFrom(ctx context.Context, caller, from id.UserID) (flag.Flag, error)
	VisibleFlags(ctx context.Context, userID id.UserID) ([]flag.Flag, error)
	VisibleRedFlags(ctx context.Context, userID id.UserID) ([]flag.Flag, error)
	VisibleGreenFlags(ctx context.Context, userID id.UserID) ([]flag.Flag, error)
	AllFlags(ctx context.Context, caller, userID id.UserID) ([]flag.Flag, error)
	FlagByID(ctx context.Context, caller id.UserID, flagID id.FlagID) (flag.Flag, error)
}

// Handler handles flag endpoints.
type Handler struct {
	flags     Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(flags Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{flags: flags, logger: logger, validator: validator}
}

// Register mounts the flag routes. Visible-flag reads are public; everything
// else requires a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Get("/users/{userID}/flags", h.handleVisibleFlags)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.Post("/flags", h.handleSubmit)
		r.Post("/flags/encrypted", h.handleSubmitEncrypted)
		r.Post("/flags/anonymous", h.handleSubmitAnonymous)
		r.Post("/flags/approve-first", h.handleApproveFrom)
		r.Get("/flags/{flagID}", h.handleFlagByID)
		r.Post("/flags/{flagID}/approve", h.handleApprove)
		r.Get("/users/{userID}/flags/all", h.handleAllFlags)
	})
}

type submitRequest struct {
	To       string `json:"to"`
	Red      bool   `json:"red"`
	Review   string `json:"review"`
	Category string `json:"category"`
	Severity int    `json:"severity"`
}

type encryptedSubmitRequest struct {
	To       string `json:"to"`
	Red      bool   `json:"red"`
	Payload  []byte `json:"payload"`
	Category string `json:"category"`
	Severity int    `json:"severity"`
}

type approveFromRequest struct {
	From string `json:"from"`
}

// flagResponse is the wire shape of a flag. The sealed payload is rendered
// only for encrypted flags; the obfuscated sender reference on anonymous
// flags never leaves the store.
type flagResponse struct {
	ID          string     `json:"id"`
	From        string     `json:"from,omitempty"`
	To          string     `json:"to"`
	Red         bool       `json:"red"`
	Review      string     `json:"review,omitempty"`
	Payload     string     `json:"payload,omitempty"`
	Category    string     `json:"category"`
	Severity    int        `json:"severity,omitempty"`
	Encrypted   bool       `json:"encrypted,omitempty"`
	Anonymous   bool       `json:"anonymous,omitempty"`
	Visible     bool       `json:"visible"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

func renderFlag(f flag.Flag) flagResponse {
	resp := flagResponse{
		ID:          f.ID.String(),
		To:          f.To.String(),
		Red:         f.Red,
		Review:      f.Review,
		Category:    string(f.Category),
		Severity:    f.Severity,
		Encrypted:   f.Encrypted,
		Anonymous:   f.Anonymous(),
		Visible:     f.Visible,
		SubmittedAt: f.SubmittedAt,
		ApprovedAt:  f.ApprovedAt,
	}
	if !f.Anonymous() {
		resp.From = f.From.String()
	}
	if f.Encrypted && !f.Anonymous() {
		resp.Payload = base64.StdEncoding.EncodeToString(f.Sealed)
	}
	return resp
}

func renderFlags(flags []flag.Flag) []flagResponse {
	out := make([]flagResponse, 0, len(flags))
	for _, f := range flags {
		out = append(out, renderFlag(f))
	}
	return out
}

// caller extracts the authenticated user. RequireAuth guarantees presence; a
// parse failure here means a token was minted with a bad subject.
func caller(r *http.Request) (id.UserID, error) {
	userID, err := id.ParseUserID(middleware.GetUserID(r.Context()))
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid authentication context")
	}
	return userID, nil
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.submitPlain(w, r, h.flags.Submit)
}

func (h *Handler) handleSubmitAnonymous(w http.ResponseWriter, r *http.Request) {
	h.submitPlain(w, r, h.flags.SubmitAnonymous)
}

func (h *Handler) submitPlain(
	w http.ResponseWriter,
	r *http.Request,
	submit func(context.Context, flagservice.Submission) (flag.Flag, error),
) {
	from, err := caller(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req submitRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	to, err := id.ParseUserID(req.To)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	f, err := submit(r.Context(), flagservice.Submission{
		From:     from,
		To:       to,
		Red:      req.Red,
		Review:   req.Review,
		Category: id.Category(req.Category),
		Severity: req.Severity,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, renderFlag(f))
}

func (h *Handler) handleSubmitEncrypted(w http.ResponseWriter, r *http.Request) {
	from, err := caller(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req encryptedSubmitRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	to, err := id.ParseUserID(req.To)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	f, err := h.flags.SubmitEncrypted(r.Context(), flagservice.EncryptedSubmission{
		From:     from,
		To:       to,
		Red:      req.Red,
		Payload:  req.Payload,
		Category: id.Category(req.Category),
		Severity: req.Severity,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, renderFlag(f))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	callerID, err := caller(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	flagID, err := id.ParseFlagID(chi.URLParam(r, "flagID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	f, err := h.flags.Approve(r.Context(), callerID, flagID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, renderFlag(f))
}

func (h *Handler) handleApproveFrom(w http.ResponseWriter, r *http.Request) {
	callerID, err := caller(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req approveFromRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	from, err := id.ParseUserID(req.From)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	f, err := h.flags.ApproveFirstFrom(r.Context(), callerID, from)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, renderFlag(f))
}

func (h *Handler) handleVisibleFlags(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var flags []flag.Flag
	switch colour := r.URL.Query().Get("colour"); colour {
	case "":
		flags, err = h.flags.VisibleFlags(r.Context(), userID)
	case "red":
		flags, err = h.flags.VisibleRedFlags(r.Context(), userID)
	case "green":
		flags, err = h.flags.VisibleGreenFlags(r.Context(), userID)
	default:
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "colour must be red or green"))
		return
	}
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, renderFlags(flags))
}

func (h *Handler) handleAllFlags(w http.ResponseWriter, r *http.Request) {
	callerID, err := caller(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	flags, err := h.flags.AllFlags(r.Context(), callerID, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, renderFlags(flags))
}

func (h *Handler) handleFlagByID(w http.ResponseWriter, r *http.Request) {
	callerID, err := caller(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	flagID, err := id.ParseFlagID(chi.URLParam(r, "flagID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	f, err := h.flags.FlagByID(r.Context(), callerID, flagID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, renderFlag(f))
}
