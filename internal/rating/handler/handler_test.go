package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flagledger/internal/category"
	"flagledger/internal/flag"
	"flagledger/internal/platform/metrics"
	"flagledger/internal/rating"
	id "flagledger/pkg/domain"
	"flagledger/pkg/testutil"
)

// Registered once per test binary; promauto panics on duplicates.
var testMetrics = metrics.New()

func newRouter(t *testing.T) (http.Handler, *flag.InMemoryFlagStore) {
	t.Helper()
	store := flag.NewInMemoryFlagStore()
	service := rating.NewService(store, category.NewCatalog(), nil, testMetrics, slog.New(slog.DiscardHandler))

	r := chi.NewRouter()
	New(service).Register(r)
	return r, store
}

func addVisibleFlag(t *testing.T, store *flag.InMemoryFlagStore, to id.UserID, red bool, severity int) {
	t.Helper()
	require.NoError(t, store.Append(context.Background(), flag.Flag{
		ID:          id.NewFlagID(),
		From:        id.NewUserID(),
		To:          to,
		Red:         red,
		Review:      "review",
		Category:    id.CategoryBehavior,
		Severity:    severity,
		Visible:     true,
		SubmittedAt: time.Now(),
	}))
}

func TestHandleRating(t *testing.T) {
	router, store := newRouter(t)
	userID := id.NewUserID()

	t.Run("unrated user", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/users/"+userID.String()+"/rating"))
		assert.Equal(t, http.StatusOK, rr.Code)

		resp := testutil.UnmarshalResponse[rating.UserRating](t, rr)
		assert.Equal(t, rating.TierUnrated, resp.Tier)
		assert.Zero(t, resp.TotalFlags)
	})

	t.Run("rated user", func(t *testing.T) {
		addVisibleFlag(t, store, userID, false, 0)
		addVisibleFlag(t, store, userID, false, 0)

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/users/"+userID.String()+"/rating"))
		assert.Equal(t, http.StatusOK, rr.Code)

		resp := testutil.UnmarshalResponse[rating.UserRating](t, rr)
		assert.Equal(t, 2, resp.GreenFlags)
		assert.Equal(t, 100, resp.OverallScore)
		assert.Equal(t, rating.TierExcellent, resp.Tier)
		assert.True(t, resp.Recommended)
	})

	t.Run("malformed id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/users/nope/rating"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandleUserStatistics(t *testing.T) {
	router, store := newRouter(t)
	userID := id.NewUserID()
	addVisibleFlag(t, store, userID, false, 0)
	addVisibleFlag(t, store, userID, true, 5)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/users/"+userID.String()+"/statistics"))
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := testutil.UnmarshalResponse[rating.UserStats](t, rr)
	assert.Equal(t, 2, resp.TotalFlags)
	assert.Equal(t, 1, resp.RedFlags)
	assert.Equal(t, 1, resp.GreenFlags)
	assert.Zero(t, resp.PendingFlags)
}

func TestHandleCategoryStatistics(t *testing.T) {
	router, store := newRouter(t)
	userID := id.NewUserID()
	addVisibleFlag(t, store, userID, true, 4)

	t.Run("known category", func(t *testing.T) {
		path := "/users/" + userID.String() + "/statistics/" + string(id.CategoryBehavior)
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
		assert.Equal(t, http.StatusOK, rr.Code)

		resp := testutil.UnmarshalResponse[rating.CategoryBreakdown](t, rr)
		assert.Equal(t, 1, resp.RedCount)
		assert.Equal(t, 4, resp.AverageSeverity)
		assert.Equal(t, 60, resp.Score)
	})

	t.Run("unknown category", func(t *testing.T) {
		path := "/users/" + userID.String() + "/statistics/astrology"
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandleDistribution(t *testing.T) {
	router, store := newRouter(t)
	userID := id.NewUserID()
	addVisibleFlag(t, store, userID, false, 0)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/users/"+userID.String()+"/distribution"))
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := testutil.UnmarshalResponse[map[string][]rating.CategoryBreakdown](t, rr)
	assert.Len(t, (*resp)["distribution"], len(id.SeedCategories()))
}

func TestHandleStatistics(t *testing.T) {
	router, store := newRouter(t)
	addVisibleFlag(t, store, id.NewUserID(), true, 5)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/stats"))
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := testutil.UnmarshalResponse[rating.LedgerStats](t, rr)
	assert.Equal(t, 1, resp.TotalFlags)
	assert.Equal(t, 1, resp.RedFlags)
	assert.Equal(t, 1, resp.VisibleFlags)
	assert.Zero(t, resp.PendingFlags)
}
