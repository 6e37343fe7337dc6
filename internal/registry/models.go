package registry

import (
	"time"

	id "flagledger/pkg/domain"
)

// User captures a registered identity. Verification is a one-way transition
// and initializes the reputation counter; matches accumulate and are never
// removed.
type User struct {
	ID           id.UserID
	Verified     bool
	Reputation   int
	RegisteredAt time.Time
	VerifiedAt   *time.Time
}

// InitialReputation is granted at verification time.
const InitialReputation = 50
