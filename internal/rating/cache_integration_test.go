//go:build integration

package rating_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"flagledger/internal/rating"
	id "flagledger/pkg/domain"
	"flagledger/pkg/testutil/containers"
)

type CacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *rating.Cache
}

func TestCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = rating.NewCache(s.redis.Client, time.Minute, slog.New(slog.DiscardHandler))
}

func (s *CacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *CacheSuite) TestRoundTrip() {
	ctx := context.Background()
	snapshot := rating.UserRating{
		UserID:             id.NewUserID(),
		TotalFlags:         4,
		GreenFlags:         3,
		RedFlags:           1,
		PositivePercentage: 75,
		OverallScore:       80,
		AverageRating:      80,
		Tier:               rating.TierGood,
		Recommended:        true,
		ComputedAt:         time.Now().UTC().Truncate(time.Millisecond),
	}

	_, found := s.cache.Get(ctx, snapshot.UserID)
	s.False(found)

	s.cache.Set(ctx, snapshot)

	got, found := s.cache.Get(ctx, snapshot.UserID)
	s.Require().True(found)
	s.Equal(snapshot.UserID, got.UserID)
	s.Equal(snapshot.OverallScore, got.OverallScore)
	s.Equal(snapshot.Tier, got.Tier)
	s.True(got.Recommended)
}

func (s *CacheSuite) TestInvalidate() {
	ctx := context.Background()
	snapshot := rating.UserRating{UserID: id.NewUserID(), OverallScore: 55, Tier: rating.TierAverage}

	s.cache.Set(ctx, snapshot)
	s.Require().NoError(s.cache.Invalidate(ctx, snapshot.UserID))

	_, found := s.cache.Get(ctx, snapshot.UserID)
	s.False(found)
}

func (s *CacheSuite) TestInvalidateMissingKeyIsNoop() {
	s.NoError(s.cache.Invalidate(context.Background(), id.NewUserID()))
}
