package rating

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"flagledger/internal/flag"
	"flagledger/internal/platform/metrics"
	id "flagledger/pkg/domain"
	dErrors "flagledger/pkg/domain-errors"
)

// Score constants. A green flag contributes the full score; each severity
// point on a red flag subtracts ten. Categories without flags report the
// neutral default and are excluded from the overall average.
const (
	fullScore           = 100
	severityScoreWeight = 10
	neutralScore        = 100
	recommendThreshold  = 75
	disqualifySeverity  = 9
)

// FlagSource is the slice of the flag store the rating engine reads.
type FlagSource interface {
	ListByRecipient(ctx context.Context, userID id.UserID) ([]flag.Flag, error)
	Totals(ctx context.Context) (flag.Totals, error)
}

// Catalog lists the known categories in stable order.
type Catalog interface {
	List(ctx context.Context) []id.Category
}

// Service computes rating snapshots from the visible ledger. Computation is
// deterministic for a given ledger state, so snapshots can be cached and
// invalidated on approval.
type Service struct {
	flags   FlagSource
	catalog Catalog
	cache   *Cache
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewService builds the rating engine. cache may be nil, which disables
// snapshot caching.
func NewService(flags FlagSource, catalog Catalog, cache *Cache, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		flags:   flags,
		catalog: catalog,
		cache:   cache,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("flagledger/rating"),
	}
}

// Rate returns the rating snapshot for a user, from cache when fresh.
func (s *Service) Rate(ctx context.Context, userID id.UserID) (UserRating, error) {
	ctx, span := s.tracer.Start(ctx, "rating.Rate")
	defer span.End()

	if s.cache != nil {
		if snapshot, ok := s.cache.Get(ctx, userID); ok {
			return snapshot, nil
		}
	}

	start := time.Now()
	all, err := s.flags.ListByRecipient(ctx, userID)
	if err != nil {
		return UserRating{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list flags")
	}
	snapshot := s.compute(ctx, userID, all)
	s.metrics.ObserveRatingCompute(time.Since(start))

	if s.cache != nil {
		s.cache.Set(ctx, snapshot)
	}
	return snapshot, nil
}

// Statistics returns ledger-wide counters.
func (s *Service) Statistics(ctx context.Context) (LedgerStats, error) {
	totals, err := s.flags.Totals(ctx)
	if err != nil {
		return LedgerStats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count flags")
	}
	return LedgerStats{
		TotalFlags:   totals.Total,
		RedFlags:     totals.Red,
		GreenFlags:   totals.Green,
		VisibleFlags: totals.Visible,
		PendingFlags: totals.Total - totals.Visible,
		Categories:   len(s.catalog.List(ctx)),
	}, nil
}

// UserStatistics counts one user's flags. The total includes pending flags;
// the colour split covers visible flags only, matching what the public sees.
func (s *Service) UserStatistics(ctx context.Context, userID id.UserID) (UserStats, error) {
	all, err := s.flags.ListByRecipient(ctx, userID)
	if err != nil {
		return UserStats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list flags")
	}

	stats := UserStats{UserID: userID, TotalFlags: len(all)}
	for _, f := range all {
		if !f.Visible {
			continue
		}
		stats.VisibleFlags++
		if f.Red {
			stats.RedFlags++
		} else {
			stats.GreenFlags++
		}
	}
	stats.PendingFlags = stats.TotalFlags - stats.VisibleFlags
	stats.AverageRating = s.compute(ctx, userID, all).AverageRating
	return stats, nil
}

// CategoryStatistics breaks down one category's visible flags for a user.
func (s *Service) CategoryStatistics(ctx context.Context, userID id.UserID, cat id.Category) (CategoryBreakdown, error) {
	if !s.knownCategory(ctx, cat) {
		return CategoryBreakdown{}, dErrors.New(dErrors.CodeInvalidCategory, "unknown category")
	}
	all, err := s.flags.ListByRecipient(ctx, userID)
	if err != nil {
		return CategoryBreakdown{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list flags")
	}
	return breakdown(cat, all), nil
}

// Distribution breaks down a user's visible flags per category, in catalog
// order. Categories with no flags are included so clients get a stable shape.
func (s *Service) Distribution(ctx context.Context, userID id.UserID) ([]CategoryBreakdown, error) {
	all, err := s.flags.ListByRecipient(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list flags")
	}

	cats := s.catalog.List(ctx)
	out := make([]CategoryBreakdown, 0, len(cats))
	for _, cat := range cats {
		out = append(out, breakdown(cat, all))
	}
	return out, nil
}

func (s *Service) knownCategory(ctx context.Context, cat id.Category) bool {
	for _, known := range s.catalog.List(ctx) {
		if known == cat {
			return true
		}
	}
	return false
}

func breakdown(cat id.Category, all []flag.Flag) CategoryBreakdown {
	b := CategoryBreakdown{Category: cat, Score: neutralScore}
	var scores []int
	severitySum := 0
	for _, f := range all {
		if !f.Visible || f.Category != cat {
			continue
		}
		b.TotalCount++
		if f.Red {
			b.RedCount++
			severitySum += f.Severity
			scores = append(scores, fullScore-severityScoreWeight*f.Severity)
		} else {
			b.GreenCount++
			scores = append(scores, fullScore)
		}
	}
	if b.RedCount > 0 {
		b.AverageSeverity = roundRatio(severitySum, b.RedCount)
	}
	if len(scores) > 0 {
		b.Score = clampScore(mean(scores))
	}
	return b
}

func (s *Service) compute(ctx context.Context, userID id.UserID, all []flag.Flag) UserRating {
	snapshot := UserRating{
		UserID:     userID,
		Tier:       TierUnrated,
		ComputedAt: time.Now(),
	}

	var visible []flag.Flag
	for _, f := range all {
		if f.Visible {
			visible = append(visible, f)
		}
	}

	byCategory := make(map[id.Category][]int)
	disqualified := false
	for _, f := range visible {
		snapshot.TotalFlags++
		score := fullScore
		if f.Red {
			snapshot.RedFlags++
			score = fullScore - severityScoreWeight*f.Severity
			if f.Severity >= disqualifySeverity {
				disqualified = true
			}
		} else {
			snapshot.GreenFlags++
		}
		byCategory[f.Category] = append(byCategory[f.Category], score)
	}

	// Categories render in catalog order; unknown-but-stored categories could
	// only exist if the catalog shrank, which it never does.
	var scoredSum, scoredCount int
	for _, cat := range s.catalog.List(ctx) {
		scores := byCategory[cat]
		stat := CategoryStat{Category: cat, Score: neutralScore, Flags: len(scores)}
		if len(scores) > 0 {
			stat.Score = clampScore(mean(scores))
			scoredSum += stat.Score
			scoredCount++
		}
		snapshot.Categories = append(snapshot.Categories, stat)
	}

	if snapshot.TotalFlags == 0 {
		return snapshot
	}

	snapshot.PositivePercentage = roundRatio(snapshot.GreenFlags*100, snapshot.TotalFlags)
	categoryAverage := snapshot.PositivePercentage
	if scoredCount > 0 {
		categoryAverage = roundRatio(scoredSum, scoredCount)
	}
	snapshot.OverallScore = roundRatio(snapshot.PositivePercentage+categoryAverage, 2)
	snapshot.AverageRating = snapshot.OverallScore
	snapshot.Tier = tierFor(snapshot.OverallScore)
	snapshot.Recommended = snapshot.OverallScore >= recommendThreshold && !disqualified
	return snapshot
}

func tierFor(score int) Tier {
	switch {
	case score >= 90:
		return TierExcellent
	case score >= 75:
		return TierGood
	case score >= 50:
		return TierAverage
	case score >= 25:
		return TierPoor
	default:
		return TierDangerous
	}
}

func mean(values []int) int {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return roundRatio(sum, len(values))
}

func roundRatio(numerator, denominator int) int {
	return int(math.Round(float64(numerator) / float64(denominator)))
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > fullScore {
		return fullScore
	}
	return score
}
