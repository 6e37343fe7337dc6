package rating

import (
	"time"

	id "flagledger/pkg/domain"
)

// Tier buckets an overall score into a coarse label for list views.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierAverage   Tier = "average"
	TierPoor      Tier = "poor"
	TierDangerous Tier = "dangerous"
	TierUnrated   Tier = "unrated"
)

// CategoryStat scores one category from the visible flags citing it. A
// category nobody has flagged yet scores the neutral default with zero flags.
type CategoryStat struct {
	Category id.Category `json:"category"`
	Score    int         `json:"score"`
	Flags    int         `json:"flags"`
}

// UserRating is a full snapshot of a user's standing, derived purely from
// visible flags. Derived, never stored: the ledger is the source of truth.
type UserRating struct {
	UserID             id.UserID      `json:"user_id"`
	TotalFlags         int            `json:"total_flags"`
	RedFlags           int            `json:"red_flags"`
	GreenFlags         int            `json:"green_flags"`
	PositivePercentage int            `json:"positive_percentage"`
	OverallScore       int            `json:"overall_score"`
	AverageRating      int            `json:"average_rating"`
	Tier               Tier           `json:"tier"`
	Recommended        bool           `json:"recommended"`
	Categories         []CategoryStat `json:"categories"`
	ComputedAt         time.Time      `json:"computed_at"`
}

// UserStats counts one user's flags. Unlike UserRating it includes pending
// flags in the total, so the recipient can see how much is awaiting approval.
type UserStats struct {
	UserID        id.UserID `json:"user_id"`
	TotalFlags    int       `json:"total_flags"`
	VisibleFlags  int       `json:"visible_flags"`
	RedFlags      int       `json:"red_flags"`
	GreenFlags    int       `json:"green_flags"`
	PendingFlags  int       `json:"pending_flags"`
	AverageRating int       `json:"average_rating"`
}

// CategoryBreakdown counts one category's visible flags for a user.
// AverageSeverity covers red flags only; zero when there are none.
type CategoryBreakdown struct {
	Category        id.Category `json:"category"`
	TotalCount      int         `json:"total_count"`
	RedCount        int         `json:"red_count"`
	GreenCount      int         `json:"green_count"`
	AverageSeverity int         `json:"average_severity"`
	Score           int         `json:"score"`
}

// LedgerStats are ledger-wide counters across all users.
type LedgerStats struct {
	TotalFlags   int `json:"total_flags"`
	RedFlags     int `json:"red_flags"`
	GreenFlags   int `json:"green_flags"`
	VisibleFlags int `json:"visible_flags"`
	PendingFlags int `json:"pending_flags"`
	Categories   int `json:"categories"`
}
