package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"flagledger/internal/category"
	"flagledger/internal/events"
	"flagledger/internal/platform/metrics"
	id "flagledger/pkg/domain"
	dErrors "flagledger/pkg/domain-errors"
)

// Registered once per test binary; promauto panics on duplicates.
var testMetrics = metrics.New()

type ServiceSuite struct {
	suite.Suite

	ctx       context.Context
	publisher *events.Publisher
	service   *Service
	owner     Caller
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	s.ctx = context.Background()
	s.publisher = events.NewPublisher(logger)
	s.service = NewService(NewInMemoryUserStore(), category.NewCatalog(), s.publisher, testMetrics, logger)
	s.owner = Caller{ID: id.NewUserID(), Owner: true}
}

// nextEvent pops the oldest pending event, failing the test when none exists.
func (s *ServiceSuite) nextEvent() events.Event {
	select {
	case event := <-s.publisher.Outbox():
		return event
	default:
		s.FailNow("expected an emitted event")
		return events.Event{}
	}
}

func (s *ServiceSuite) registerVerified() id.UserID {
	userID := id.NewUserID()
	_, err := s.service.Register(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().NoError(s.service.Verify(s.ctx, s.owner, userID))
	// Drain the lifecycle events so assertions start clean.
	<-s.publisher.Outbox()
	<-s.publisher.Outbox()
	return userID
}

func (s *ServiceSuite) TestRegister() {
	s.Run("creates an unverified user with zero reputation", func() {
		userID := id.NewUserID()
		user, err := s.service.Register(s.ctx, userID)
		s.Require().NoError(err)
		s.False(user.Verified)
		s.Zero(user.Reputation)
		s.False(user.RegisteredAt.IsZero())

		event := s.nextEvent()
		s.Equal(events.KindUserRegistered, event.Kind)
		s.Equal(userID, event.Subject)
	})

	s.Run("rejects repeat registration", func() {
		userID := id.NewUserID()
		_, err := s.service.Register(s.ctx, userID)
		s.Require().NoError(err)

		_, err = s.service.Register(s.ctx, userID)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))
	})
}

func (s *ServiceSuite) TestVerify() {
	s.Run("seeds initial reputation", func() {
		userID := id.NewUserID()
		_, err := s.service.Register(s.ctx, userID)
		s.Require().NoError(err)

		s.Require().NoError(s.service.Verify(s.ctx, s.owner, userID))

		user, err := s.service.Get(s.ctx, userID)
		s.Require().NoError(err)
		s.True(user.Verified)
		s.Equal(InitialReputation, user.Reputation)
		s.NotNil(user.VerifiedAt)
	})

	s.Run("rejects non-owner callers", func() {
		userID := id.NewUserID()
		_, err := s.service.Register(s.ctx, userID)
		s.Require().NoError(err)

		err = s.service.Verify(s.ctx, Caller{ID: id.NewUserID()}, userID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects unknown users", func() {
		err := s.service.Verify(s.ctx, s.owner, id.NewUserID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects repeat verification", func() {
		userID := id.NewUserID()
		_, err := s.service.Register(s.ctx, userID)
		s.Require().NoError(err)
		s.Require().NoError(s.service.Verify(s.ctx, s.owner, userID))

		err = s.service.Verify(s.ctx, s.owner, userID)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyVerified))
	})
}

func (s *ServiceSuite) TestCreateMatch() {
	s.Run("records a symmetric match", func() {
		a := s.registerVerified()
		b := s.registerVerified()

		s.Require().NoError(s.service.CreateMatch(s.ctx, s.owner, a, b))

		matched, err := s.service.HasMatched(s.ctx, a, b)
		s.Require().NoError(err)
		s.True(matched)

		matched, err = s.service.HasMatched(s.ctx, b, a)
		s.Require().NoError(err)
		s.True(matched)
	})

	s.Run("is idempotent", func() {
		a := s.registerVerified()
		b := s.registerVerified()

		s.Require().NoError(s.service.CreateMatch(s.ctx, s.owner, a, b))
		s.Require().NoError(s.service.CreateMatch(s.ctx, s.owner, b, a))
	})

	s.Run("rejects non-owner callers", func() {
		a := s.registerVerified()
		b := s.registerVerified()

		err := s.service.CreateMatch(s.ctx, Caller{ID: a}, a, b)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects self-match", func() {
		a := s.registerVerified()
		err := s.service.CreateMatch(s.ctx, s.owner, a, a)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects unregistered users", func() {
		a := s.registerVerified()
		err := s.service.CreateMatch(s.ctx, s.owner, a, id.NewUserID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestAddCategory() {
	s.Run("extends the catalog", func() {
		cat, err := s.service.AddCategory(s.ctx, s.owner, "punctuality")
		s.Require().NoError(err)
		s.Equal(id.Category("punctuality"), cat)

		event := s.nextEvent()
		s.Equal(events.KindCategoryAdded, event.Kind)
		s.Equal(cat, event.Category)
	})

	s.Run("rejects non-owner callers", func() {
		_, err := s.service.AddCategory(s.ctx, Caller{ID: id.NewUserID()}, "punctuality")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects duplicates", func() {
		_, err := s.service.AddCategory(s.ctx, s.owner, string(id.CategorySafety))
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateCategory))
	})
}

func (s *ServiceSuite) TestAdjustReputation() {
	s.Run("applies deltas", func() {
		userID := s.registerVerified()

		reputation, err := s.service.AdjustReputation(s.ctx, userID, 5)
		s.Require().NoError(err)
		s.Equal(InitialReputation+5, reputation)
	})

	s.Run("clamps at zero", func() {
		userID := s.registerVerified()

		reputation, err := s.service.AdjustReputation(s.ctx, userID, -1000)
		s.Require().NoError(err)
		s.Zero(reputation)
	})

	s.Run("rejects unknown users", func() {
		_, err := s.service.AdjustReputation(s.ctx, id.NewUserID(), 5)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
