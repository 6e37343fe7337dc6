package events

import (
	"time"

	id "flagledger/pkg/domain"
)

// Kind names a domain event. Kinds mirror the notification events the
// original ledger emitted, plus registry lifecycle events.
type Kind string

const (
	KindUserRegistered         Kind = "user_registered"
	KindUserVerified           Kind = "user_verified"
	KindMatchCreated           Kind = "match_created"
	KindCategoryAdded          Kind = "category_added"
	KindFlagSubmitted          Kind = "flag_submitted"
	KindEncryptedFlagSubmitted Kind = "encrypted_flag_submitted"
	KindAnonymousFlagSubmitted Kind = "anonymous_flag_submitted"
	KindFlagApproved           Kind = "flag_approved"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Anonymous submissions carry the sentinel actor, never the true sender: the
// event stream is consumed by the notification layer and must not leak
// identity.
type Event struct {
	Kind     Kind        `json:"kind"`
	At       time.Time   `json:"at"`
	Actor    id.UserID   `json:"actor"`
	Subject  id.UserID   `json:"subject"`
	FlagID   id.FlagID   `json:"flag_id,omitempty"`
	Category id.Category `json:"category,omitempty"`
	Red      bool        `json:"red,omitempty"`
	Severity int         `json:"severity,omitempty"`
}
