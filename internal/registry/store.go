package registry

import (
	"context"
	"time"

	id "flagledger/pkg/domain"
)

// UserStore is interface-driven to keep the domain logic testable and to
// allow swapping in-memory and Postgres persistence without rewiring business
// code. Implementations return pkg/platform/sentinel errors for facts:
// ErrConflict on duplicate create, ErrNotFound on missing users, and
// ErrInvalidState on verifying twice.
type UserStore interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, userID id.UserID) (User, error)

	// SetVerified flips the one-way verified bit and seeds the reputation.
	SetVerified(ctx context.Context, userID id.UserID, at time.Time, reputation int) error

	// CreateMatch records the symmetric relation; saving an existing pair is
	// a no-op.
	CreateMatch(ctx context.Context, a, b id.UserID) error
	HasMatched(ctx context.Context, a, b id.UserID) (bool, error)

	// AdjustReputation applies delta atomically, clamping the result at zero,
	// and returns the new value.
	AdjustReputation(ctx context.Context, userID id.UserID, delta int) (int, error)
}
