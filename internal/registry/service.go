package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"flagledger/internal/category"
	"flagledger/internal/events"
	"flagledger/internal/platform/metrics"
	id "flagledger/pkg/domain"
	dErrors "flagledger/pkg/domain-errors"
	"flagledger/pkg/platform/sentinel"
)

// Caller identifies the authenticated principal on owner-gated operations.
// The Owner bit comes from the token, never from request bodies.
type Caller struct {
	ID    id.UserID
	Owner bool
}

// Service owns the user lifecycle: registration, owner verification, matches,
// the reputation counter, and the category catalog's admin surface.
type Service struct {
	store     UserStore
	catalog   *category.Catalog
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(
	store UserStore,
	catalog *category.Catalog,
	publisher *events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		catalog:   catalog,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Register creates an unverified user with zero reputation. Reputation is
// granted at verification, not registration, so unverified accounts carry no
// standing.
//
// Errors: CodeAlreadyRegistered when the user already exists.
func (s *Service) Register(ctx context.Context, userID id.UserID) (User, error) {
	user := User{
		ID:           userID,
		RegisteredAt: time.Now(),
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return User{}, dErrors.New(dErrors.CodeAlreadyRegistered, "user is already registered")
		}
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register user")
	}

	s.metrics.UsersRegistered.Inc()
	s.publisher.Emit(ctx, events.Event{
		Kind:    events.KindUserRegistered,
		Actor:   userID,
		Subject: userID,
	})
	s.logger.InfoContext(ctx, "user registered", "user_id", userID.String())
	return user, nil
}

// Verify marks a user verified and seeds the initial reputation. Owner only;
// verification is one-way.
//
// Errors: CodeUnauthorized for non-owner callers, CodeNotFound for unknown
// users, CodeAlreadyVerified on repeat verification.
func (s *Service) Verify(ctx context.Context, caller Caller, userID id.UserID) error {
	if !caller.Owner {
		return dErrors.New(dErrors.CodeUnauthorized, "only the ledger owner can verify users")
	}
	if err := s.store.SetVerified(ctx, userID, time.Now(), InitialReputation); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "user is not registered")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeAlreadyVerified, "user is already verified")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify user")
		}
	}

	s.metrics.UsersVerified.Inc()
	s.publisher.Emit(ctx, events.Event{
		Kind:    events.KindUserVerified,
		Actor:   caller.ID,
		Subject: userID,
	})
	s.logger.InfoContext(ctx, "user verified", "user_id", userID.String())
	return nil
}

// CreateMatch records that two users matched. Owner only; the relation is
// symmetric and idempotent.
//
// Errors: CodeUnauthorized for non-owner callers, CodeInvalidInput on
// self-match, CodeNotFound when either user is not registered.
func (s *Service) CreateMatch(ctx context.Context, caller Caller, a, b id.UserID) error {
	if !caller.Owner {
		return dErrors.New(dErrors.CodeUnauthorized, "only the ledger owner can create matches")
	}
	if a == b {
		return dErrors.New(dErrors.CodeInvalidInput, "users cannot match with themselves")
	}
	if err := s.store.CreateMatch(ctx, a, b); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "both users must be registered before matching")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create match")
	}

	s.metrics.MatchesCreated.Inc()
	s.publisher.Emit(ctx, events.Event{
		Kind:    events.KindMatchCreated,
		Actor:   a,
		Subject: b,
	})
	return nil
}

// AddCategory extends the catalog at runtime. Owner only.
func (s *Service) AddCategory(ctx context.Context, caller Caller, name string) (id.Category, error) {
	if !caller.Owner {
		return "", dErrors.New(dErrors.CodeUnauthorized, "only the ledger owner can add categories")
	}
	cat, err := s.catalog.Add(ctx, name)
	if err != nil {
		return "", err
	}

	s.publisher.Emit(ctx, events.Event{
		Kind:     events.KindCategoryAdded,
		Actor:    caller.ID,
		Category: cat,
	})
	s.logger.InfoContext(ctx, "category added", "category", string(cat))
	return cat, nil
}

// Categories lists the category catalog in insertion order.
func (s *Service) Categories(ctx context.Context) []id.Category {
	return s.catalog.List(ctx)
}

// Get returns the stored user.
//
// Errors: CodeNotFound when the user does not exist.
func (s *Service) Get(ctx context.Context, userID id.UserID) (User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return User{}, dErrors.New(dErrors.CodeNotFound, "user is not registered")
		}
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// IsVerified reports whether the user exists and has been verified.
func (s *Service) IsVerified(ctx context.Context, userID id.UserID) (bool, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.Verified, nil
}

// HasMatched reports whether the pair has a recorded match.
func (s *Service) HasMatched(ctx context.Context, a, b id.UserID) (bool, error) {
	matched, err := s.store.HasMatched(ctx, a, b)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check match")
	}
	return matched, nil
}

// Reputation returns the current reputation counter.
func (s *Service) Reputation(ctx context.Context, userID id.UserID) (int, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Reputation, nil
}

// AdjustReputation applies a delta to a user's reputation, clamped at zero,
// and returns the new value. Called by the flag engine when an approved flag
// lands.
func (s *Service) AdjustReputation(ctx context.Context, userID id.UserID, delta int) (int, error) {
	reputation, err := s.store.AdjustReputation(ctx, userID, delta)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "user is not registered")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to adjust reputation")
	}
	return reputation, nil
}
