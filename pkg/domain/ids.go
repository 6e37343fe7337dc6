package domain

import (
	"github.com/google/uuid"

	dErrors "flagledger/pkg/domain-errors"
)

// Typed IDs prevent cross-entity mixups at compile time: a FlagID can never be
// passed where a UserID is expected. Construct via the Parse helpers at trust
// boundaries; direct casting bypasses validation.

// UserID identifies a registered user.
type UserID uuid.UUID

// FlagID identifies a submitted flag.
type FlagID uuid.UUID

// AnonymousUser is the sentinel sender stored on anonymous flags, the
// zero-address equivalent of the original ledger.
var AnonymousUser = UserID(uuid.Nil)

// NewUserID returns a fresh random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewFlagID returns a fresh random flag ID. Collision resistance comes from
// the underlying v4 UUID space.
func NewFlagID() FlagID { return FlagID(uuid.New()) }

// ParseUserID parses external input into a UserID.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID(uuid.Nil), err
	}
	return UserID(u), nil
}

// ParseFlagID parses external input into a FlagID.
func ParseFlagID(s string) (FlagID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return FlagID(uuid.Nil), err
	}
	return FlagID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

func (u UserID) String() string { return uuid.UUID(u).String() }
func (u UserID) IsNil() bool    { return uuid.UUID(u) == uuid.Nil }

func (f FlagID) String() string { return uuid.UUID(f).String() }
func (f FlagID) IsNil() bool    { return uuid.UUID(f) == uuid.Nil }

// Text marshaling keeps the canonical UUID form in JSON payloads and event
// records. Unmarshal accepts the nil UUID so anonymous senders round-trip.

func (u UserID) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *UserID) UnmarshalText(b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	*u = UserID(parsed)
	return nil
}

func (f FlagID) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FlagID) UnmarshalText(b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	*f = FlagID(parsed)
	return nil
}
