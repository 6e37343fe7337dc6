package flag

import (
	"time"

	id "flagledger/pkg/domain"
)

// Flag is one ledger entry about a user. Entries are append-only; the only
// mutation ever applied is the visibility flip at approval.
//
// Variants share the struct:
//   - plain: From and Review set, Sealed empty.
//   - encrypted: Review empty, Sealed holds the sealed payload.
//   - anonymous: From is the anonymous sentinel, Review readable, Sealed holds
//     the obfuscated sender reference.
type Flag struct {
	ID          id.FlagID
	From        id.UserID
	To          id.UserID
	Red         bool
	Review      string
	Sealed      []byte
	Category    id.Category
	Severity    int
	Encrypted   bool
	Visible     bool
	SubmittedAt time.Time
	ApprovedAt  *time.Time
}

// Anonymous reports whether the sender was withheld at submission.
func (f Flag) Anonymous() bool {
	return f.From == id.AnonymousUser
}

// Totals are ledger-wide counters used for statistics.
type Totals struct {
	Total   int
	Red     int
	Green   int
	Visible int
}
