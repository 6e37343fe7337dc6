package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"flagledger/internal/events"
	"flagledger/internal/flag"
	"flagledger/internal/flagcrypto"
	"flagledger/internal/platform/metrics"
	"flagledger/internal/registry"
	id "flagledger/pkg/domain"
	dErrors "flagledger/pkg/domain-errors"
	"flagledger/pkg/platform/sentinel"
)

// Reputation deltas applied when a flag becomes visible.
const (
	greenReputationGain   = 5
	redSeverityMultiplier = 2
)

// Severity bounds for red flags. Green flags carry no severity.
const (
	minSeverity = 1
	maxSeverity = 10
)

// Registry is the slice of the user service the flag engine needs.
type Registry interface {
	Get(ctx context.Context, userID id.UserID) (registry.User, error)
	HasMatched(ctx context.Context, a, b id.UserID) (bool, error)
	AdjustReputation(ctx context.Context, userID id.UserID, delta int) (int, error)
}

// Catalog validates flag categories.
type Catalog interface {
	IsValid(ctx context.Context, cat id.Category) bool
}

// RatingCache is invalidated whenever an approval changes a user's visible
// ledger. Optional; a nil cache disables invalidation.
type RatingCache interface {
	Invalidate(ctx context.Context, userID id.UserID) error
}

// Limits bound submission sizes. Both come from deployment config.
type Limits struct {
	ReviewMaxLen    int
	PayloadMaxBytes int
}

// Service implements the flag lifecycle: submission in three variants,
// recipient approval, and access-controlled reads.
type Service struct {
	flags     flag.FlagStore
	registry  Registry
	catalog   Catalog
	sealer    *flagcrypto.Sealer
	cache     RatingCache
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	limits    Limits
	tracer    trace.Tracer
}

func NewService(
	flags flag.FlagStore,
	reg Registry,
	catalog Catalog,
	sealer *flagcrypto.Sealer,
	cache RatingCache,
	publisher *events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	limits Limits,
) *Service {
	return &Service{
		flags:     flags,
		registry:  reg,
		catalog:   catalog,
		sealer:    sealer,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		limits:    limits,
		tracer:    otel.Tracer("flagledger/flag"),
	}
}

// Submission is a plain flag request. From is the authenticated sender.
type Submission struct {
	From     id.UserID
	To       id.UserID
	Red      bool
	Review   string
	Category id.Category
	Severity int
}

// EncryptedSubmission carries an opaque payload instead of a readable review.
type EncryptedSubmission struct {
	From     id.UserID
	To       id.UserID
	Red      bool
	Payload  []byte
	Category id.Category
	Severity int
}

// Submit records a plain flag. The flag stays invisible until the recipient
// approves it.
//
// Errors: CodeUnverified, CodeUnknownRecipient, CodeSelfFlag, CodeNotMatched,
// CodeInvalidCategory, CodeEmptyReview, CodeReviewTooLong, CodeInvalidSeverity.
func (s *Service) Submit(ctx context.Context, sub Submission) (flag.Flag, error) {
	ctx, span := s.tracer.Start(ctx, "flag.Submit",
		trace.WithAttributes(attribute.Bool("flag.red", sub.Red)))
	defer span.End()

	if err := s.validate(ctx, sub.From, sub.To, sub.Category); err != nil {
		return flag.Flag{}, s.rejected(err)
	}
	if err := s.validateReview(sub.Review); err != nil {
		return flag.Flag{}, s.rejected(err)
	}
	if err := validateSeverity(sub.Red, sub.Severity); err != nil {
		return flag.Flag{}, s.rejected(err)
	}

	f := flag.Flag{
		ID:          id.NewFlagID(),
		From:        sub.From,
		To:          sub.To,
		Red:         sub.Red,
		Review:      sub.Review,
		Category:    sub.Category,
		Severity:    sub.Severity,
		SubmittedAt: time.Now(),
	}
	if err := s.flags.Append(ctx, f); err != nil {
		return flag.Flag{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store flag")
	}

	s.metrics.ObserveFlagSubmitted(f.Red, "plain")
	s.publisher.Emit(ctx, events.Event{
		Kind:     events.KindFlagSubmitted,
		Actor:    f.From,
		Subject:  f.To,
		FlagID:   f.ID,
		Category: f.Category,
		Red:      f.Red,
		Severity: f.Severity,
	})
	s.logger.InfoContext(ctx, "flag submitted",
		"flag_id", f.ID.String(),
		"red", f.Red,
		"category", string(f.Category),
	)
	return f, nil
}

// SubmitEncrypted records a flag whose content is sealed server-side. The
// readable review stays empty; only the opaque payload is stored.
func (s *Service) SubmitEncrypted(ctx context.Context, sub EncryptedSubmission) (flag.Flag, error) {
	ctx, span := s.tracer.Start(ctx, "flag.SubmitEncrypted")
	defer span.End()

	if err := s.validate(ctx, sub.From, sub.To, sub.Category); err != nil {
		return flag.Flag{}, s.rejected(err)
	}
	if len(sub.Payload) == 0 {
		return flag.Flag{}, s.rejected(dErrors.New(dErrors.CodeEmptyPayload, "payload cannot be empty"))
	}
	if len(sub.Payload) > s.limits.PayloadMaxBytes {
		return flag.Flag{}, s.rejected(dErrors.Newf(dErrors.CodePayloadTooLong,
			"payload exceeds %d bytes", s.limits.PayloadMaxBytes))
	}
	if err := validateSeverity(sub.Red, sub.Severity); err != nil {
		return flag.Flag{}, s.rejected(err)
	}

	sealed, err := s.sealer.Seal(sub.Payload)
	if err != nil {
		return flag.Flag{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal payload")
	}

	f := flag.Flag{
		ID:          id.NewFlagID(),
		From:        sub.From,
		To:          sub.To,
		Red:         sub.Red,
		Sealed:      sealed,
		Category:    sub.Category,
		Severity:    sub.Severity,
		Encrypted:   true,
		SubmittedAt: time.Now(),
	}
	if err := s.flags.Append(ctx, f); err != nil {
		return flag.Flag{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store flag")
	}

	s.metrics.ObserveFlagSubmitted(f.Red, "encrypted")
	s.publisher.Emit(ctx, events.Event{
		Kind:     events.KindEncryptedFlagSubmitted,
		Actor:    f.From,
		Subject:  f.To,
		FlagID:   f.ID,
		Category: f.Category,
		Red:      f.Red,
		Severity: f.Severity,
	})
	return f, nil
}

// SubmitAnonymous records a flag with the sender withheld. The true sender is
// still validated (verified, matched, not self) but the stored entry carries
// the anonymous sentinel; a seeded obfuscation of the sender reference is kept
// in the sealed column and is not recoverable through any query path.
func (s *Service) SubmitAnonymous(ctx context.Context, sub Submission) (flag.Flag, error) {
	ctx, span := s.tracer.Start(ctx, "flag.SubmitAnonymous")
	defer span.End()

	if err := s.validate(ctx, sub.From, sub.To, sub.Category); err != nil {
		return flag.Flag{}, s.rejected(err)
	}
	if err := s.validateReview(sub.Review); err != nil {
		return flag.Flag{}, s.rejected(err)
	}
	if err := validateSeverity(sub.Red, sub.Severity); err != nil {
		return flag.Flag{}, s.rejected(err)
	}

	seed, err := flagcrypto.GenerateSeed()
	if err != nil {
		return flag.Flag{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to obfuscate sender")
	}

	f := flag.Flag{
		ID:          id.NewFlagID(),
		From:        id.AnonymousUser,
		To:          sub.To,
		Red:         sub.Red,
		Review:      sub.Review,
		Sealed:      flagcrypto.Obfuscate(sub.From.String(), seed),
		Category:    sub.Category,
		Severity:    sub.Severity,
		Encrypted:   true,
		SubmittedAt: time.Now(),
	}
	if err := s.flags.Append(ctx, f); err != nil {
		return flag.Flag{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store flag")
	}

	s.metrics.ObserveFlagSubmitted(f.Red, "anonymous")
	s.publisher.Emit(ctx, events.Event{
		Kind:     events.KindAnonymousFlagSubmitted,
		Actor:    id.AnonymousUser,
		Subject:  f.To,
		FlagID:   f.ID,
		Category: f.Category,
		Red:      f.Red,
		Severity: f.Severity,
	})
	return f, nil
}

// Approve makes a flag visible and applies its reputation delta. Only the
// recipient may approve, and only once; concurrent approvals resolve to one
// winner through the store's compare-and-set.
//
// Errors: CodeFlagNotFound, CodeNotRecipient, CodeAlreadyApproved.
func (s *Service) Approve(ctx context.Context, caller id.UserID, flagID id.FlagID) (flag.Flag, error) {
	ctx, span := s.tracer.Start(ctx, "flag.Approve",
		trace.WithAttributes(attribute.String("flag.id", flagID.String())))
	defer span.End()

	f, err := s.flags.FindByID(ctx, flagID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return flag.Flag{}, dErrors.New(dErrors.CodeFlagNotFound, "flag does not exist")
		}
		return flag.Flag{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flag")
	}
	if f.To != caller {
		return flag.Flag{}, dErrors.New(dErrors.CodeNotRecipient, "only the flagged user can approve")
	}
	return s.approve(ctx, caller, f)
}

// ApproveFirstFrom approves the oldest pending flag from one sender, the
// sender-scoped approval form of the original ledger API.
//
// Errors: CodeFlagNotFound when no pending flag exists from that sender.
func (s *Service) ApproveFirstFrom(ctx context.Context, caller, from id.UserID) (flag.Flag, error) {
	ctx, span := s.tracer.Start(ctx, "flag.ApproveFirstFrom")
	defer span.End()

	f, err := s.flags.FirstPendingFrom(ctx, from, caller)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return flag.Flag{}, dErrors.New(dErrors.CodeFlagNotFound, "no pending flag from that sender")
		}
		return flag.Flag{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flag")
	}
	return s.approve(ctx, caller, f)
}

func (s *Service) approve(ctx context.Context, caller id.UserID, f flag.Flag) (flag.Flag, error) {
	if err := s.flags.MarkVisible(ctx, f.ID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return flag.Flag{}, dErrors.New(dErrors.CodeAlreadyApproved, "flag is already approved")
		case errors.Is(err, sentinel.ErrNotFound):
			return flag.Flag{}, dErrors.New(dErrors.CodeFlagNotFound, "flag does not exist")
		default:
			return flag.Flag{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to approve flag")
		}
	}

	delta := greenReputationGain
	if f.Red {
		delta = -redSeverityMultiplier * f.Severity
	}
	if _, err := s.registry.AdjustReputation(ctx, f.To, delta); err != nil {
		// The visibility flip already happened; reputation drift is logged
		// rather than unwound.
		s.logger.ErrorContext(ctx, "reputation adjustment failed after approval",
			"flag_id", f.ID.String(),
			"error", err,
		)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, f.To); err != nil {
			s.logger.WarnContext(ctx, "rating cache invalidation failed",
				"user_id", f.To.String(),
				"error", err,
			)
		}
	}

	now := time.Now()
	f.Visible = true
	f.ApprovedAt = &now

	s.metrics.FlagsApproved.Inc()
	s.publisher.Emit(ctx, events.Event{
		Kind:     events.KindFlagApproved,
		Actor:    caller,
		Subject:  f.To,
		FlagID:   f.ID,
		Category: f.Category,
		Red:      f.Red,
		Severity: f.Severity,
	})
	s.logger.InfoContext(ctx, "flag approved",
		"flag_id", f.ID.String(),
		"red", f.Red,
	)
	return f, nil
}

// VisibleFlags returns the approved flags about a user. Public: visible flags
// are the whole point of the ledger.
func (s *Service) VisibleFlags(ctx context.Context, userID id.UserID) ([]flag.Flag, error) {
	all, err := s.flags.ListByRecipient(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list flags")
	}
	var out []flag.Flag
	for _, f := range all {
		if f.Visible {
			out = append(out, f)
		}
	}
	return out, nil
}

// VisibleRedFlags returns only the approved red flags about a user.
func (s *Service) VisibleRedFlags(ctx context.Context, userID id.UserID) ([]flag.Flag, error) {
	return s.visibleByColour(ctx, userID, true)
}

// VisibleGreenFlags returns only the approved green flags about a user.
func (s *Service) VisibleGreenFlags(ctx context.Context, userID id.UserID) ([]flag.Flag, error) {
	return s.visibleByColour(ctx, userID, false)
}

func (s *Service) visibleByColour(ctx context.Context, userID id.UserID, red bool) ([]flag.Flag, error) {
	visible, err := s.VisibleFlags(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []flag.Flag
	for _, f := range visible {
		if f.Red == red {
			out = append(out, f)
		}
	}
	return out, nil
}

// AllFlags returns every flag about a user including pending ones. Recipient
// only: pending flags exist so the subject can review before the world sees.
//
// Errors: CodeAccessDenied for any other caller.
func (s *Service) AllFlags(ctx context.Context, caller, userID id.UserID) ([]flag.Flag, error) {
	if caller != userID {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "only the recipient can list pending flags")
	}
	all, err := s.flags.ListByRecipient(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list flags")
	}
	return all, nil
}

// FlagByID returns a single flag to its sender or recipient. Anonymous flags
// are only reachable by the recipient, since the stored sender is the
// sentinel.
//
// Errors: CodeFlagNotFound, CodeAccessDenied.
func (s *Service) FlagByID(ctx context.Context, caller id.UserID, flagID id.FlagID) (flag.Flag, error) {
	f, err := s.flags.FindByID(ctx, flagID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return flag.Flag{}, dErrors.New(dErrors.CodeFlagNotFound, "flag does not exist")
		}
		return flag.Flag{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flag")
	}
	if caller != f.To && (f.Anonymous() || caller != f.From) {
		return flag.Flag{}, dErrors.New(dErrors.CodeAccessDenied, "only the sender or recipient can read a flag")
	}
	return f, nil
}

// validate runs the shared submission gate in a fixed order so callers get
// stable error codes: sender standing, recipient standing, self-flag, match,
// category. Content checks and severity follow per variant.
func (s *Service) validate(ctx context.Context, from, to id.UserID, cat id.Category) error {
	sender, err := s.registry.Get(ctx, from)
	if err != nil || !sender.Verified {
		return dErrors.New(dErrors.CodeUnverified, "sender must be a verified user")
	}

	recipient, err := s.registry.Get(ctx, to)
	if err != nil {
		return dErrors.New(dErrors.CodeUnknownRecipient, "recipient is not registered")
	}
	if !recipient.Verified {
		return dErrors.New(dErrors.CodeUnverified, "recipient must be a verified user")
	}

	if from == to {
		return dErrors.New(dErrors.CodeSelfFlag, "users cannot flag themselves")
	}

	matched, err := s.registry.HasMatched(ctx, from, to)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check match")
	}
	if !matched {
		return dErrors.New(dErrors.CodeNotMatched, "users must have matched before flagging")
	}

	if !s.catalog.IsValid(ctx, cat) {
		return dErrors.Newf(dErrors.CodeInvalidCategory, "unknown category %q", cat)
	}
	return nil
}

func validateSeverity(red bool, severity int) error {
	if red {
		if severity < minSeverity || severity > maxSeverity {
			return dErrors.Newf(dErrors.CodeInvalidSeverity,
				"red flag severity must be between %d and %d", minSeverity, maxSeverity)
		}
	} else if severity != 0 {
		return dErrors.New(dErrors.CodeInvalidSeverity, "green flags carry no severity")
	}
	return nil
}

func (s *Service) validateReview(review string) error {
	if review == "" {
		return dErrors.New(dErrors.CodeEmptyReview, "review cannot be empty")
	}
	if len(review) > s.limits.ReviewMaxLen {
		return dErrors.Newf(dErrors.CodeReviewTooLong, "review exceeds %d characters", s.limits.ReviewMaxLen)
	}
	return nil
}

// rejected counts a validation failure and passes the error through.
func (s *Service) rejected(err error) error {
	s.metrics.ObserveSubmissionRejected(string(dErrors.CodeOf(err)))
	return err
}
