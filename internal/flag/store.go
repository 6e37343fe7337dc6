package flag

import (
	"context"

	id "flagledger/pkg/domain"
)

// FlagStore persists ledger entries. Implementations return
// pkg/platform/sentinel errors: ErrNotFound for missing flags and
// ErrInvalidState when MarkVisible hits an already-visible flag.
//
// MarkVisible must be compare-and-set so concurrent approvals of the same
// flag resolve to exactly one winner.
type FlagStore interface {
	Append(ctx context.Context, f Flag) error
	FindByID(ctx context.Context, flagID id.FlagID) (Flag, error)

	// ListByRecipient returns every flag about the user in submission order,
	// visible or not. Callers apply visibility filtering.
	ListByRecipient(ctx context.Context, userID id.UserID) ([]Flag, error)

	MarkVisible(ctx context.Context, flagID id.FlagID) error

	// FirstPendingFrom returns the oldest invisible flag from one sender to
	// one recipient.
	FirstPendingFrom(ctx context.Context, from, to id.UserID) (Flag, error)

	Totals(ctx context.Context) (Totals, error)
}
