//go:build integration

package flag_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"flagledger/internal/flag"
	id "flagledger/pkg/domain"
	"flagledger/pkg/platform/sentinel"
	"flagledger/pkg/testutil/containers"
)

type PostgresFlagStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *flag.PostgresFlagStore
}

func TestPostgresFlagStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresFlagStoreSuite))
}

func (s *PostgresFlagStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = flag.NewPostgresFlagStore(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresFlagStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "flags"))
}

func (s *PostgresFlagStoreSuite) appendFlag(f flag.Flag) flag.Flag {
	if f.ID.IsNil() {
		f.ID = id.NewFlagID()
	}
	if f.Category == "" {
		f.Category = id.CategoryGeneral
	}
	if f.SubmittedAt.IsZero() {
		f.SubmittedAt = time.Now()
	}
	s.Require().NoError(s.store.Append(context.Background(), f))
	return f
}

func (s *PostgresFlagStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	f := s.appendFlag(flag.Flag{
		From:     id.NewUserID(),
		To:       id.NewUserID(),
		Red:      true,
		Review:   "kept cancelling",
		Sealed:   []byte{0x01, 0x02},
		Category: id.CategoryReliability,
		Severity: 6,
	})

	got, err := s.store.FindByID(ctx, f.ID)
	s.Require().NoError(err)
	s.Equal(f.ID, got.ID)
	s.Equal(f.From, got.From)
	s.Equal(f.To, got.To)
	s.True(got.Red)
	s.Equal("kept cancelling", got.Review)
	s.Equal([]byte{0x01, 0x02}, got.Sealed)
	s.Equal(id.CategoryReliability, got.Category)
	s.Equal(6, got.Severity)
	s.False(got.Visible)
	s.Nil(got.ApprovedAt)

	s.ErrorIs(s.store.Append(ctx, f), sentinel.ErrConflict)
}

func (s *PostgresFlagStoreSuite) TestAnonymousSenderRoundTrip() {
	f := s.appendFlag(flag.Flag{
		From:   id.AnonymousUser,
		To:     id.NewUserID(),
		Review: "generous tipper",
	})

	got, err := s.store.FindByID(context.Background(), f.ID)
	s.Require().NoError(err)
	s.True(got.Anonymous())
}

func (s *PostgresFlagStoreSuite) TestListByRecipientOrder() {
	ctx := context.Background()
	to := id.NewUserID()
	first := s.appendFlag(flag.Flag{From: id.NewUserID(), To: to})
	second := s.appendFlag(flag.Flag{From: id.NewUserID(), To: to})
	s.appendFlag(flag.Flag{From: id.NewUserID(), To: id.NewUserID()})

	got, err := s.store.ListByRecipient(ctx, to)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(first.ID, got[0].ID)
	s.Equal(second.ID, got[1].ID)
}

func (s *PostgresFlagStoreSuite) TestConcurrentMarkVisible() {
	ctx := context.Background()
	f := s.appendFlag(flag.Flag{From: id.NewUserID(), To: id.NewUserID()})

	const racers = 20
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.MarkVisible(ctx, f.ID)
		}()
	}
	wg.Wait()
	close(errs)

	var wins int
	for err := range errs {
		if err == nil {
			wins++
		} else {
			s.ErrorIs(err, sentinel.ErrInvalidState)
		}
	}
	s.Equal(1, wins, "exactly one approval should win")
}

func (s *PostgresFlagStoreSuite) TestFirstPendingFromAndTotals() {
	ctx := context.Background()
	from, to := id.NewUserID(), id.NewUserID()
	first := s.appendFlag(flag.Flag{From: from, To: to, Red: true, Severity: 2})
	second := s.appendFlag(flag.Flag{From: from, To: to})

	got, err := s.store.FirstPendingFrom(ctx, from, to)
	s.Require().NoError(err)
	s.Equal(first.ID, got.ID)

	s.Require().NoError(s.store.MarkVisible(ctx, first.ID))

	got, err = s.store.FirstPendingFrom(ctx, from, to)
	s.Require().NoError(err)
	s.Equal(second.ID, got.ID)

	totals, err := s.store.Totals(ctx)
	s.Require().NoError(err)
	s.Equal(flag.Totals{Total: 2, Red: 1, Green: 1, Visible: 1}, totals)
}
