package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "flagledger/pkg/domain"
	"flagledger/pkg/platform/sentinel"
)

func newStoredUser(t *testing.T, store *InMemoryUserStore) id.UserID {
	t.Helper()
	userID := id.NewUserID()
	require.NoError(t, store.Create(context.Background(), User{ID: userID, RegisteredAt: time.Now()}))
	return userID
}

func TestInMemoryUserStoreCreate(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryUserStore()

	userID := newStoredUser(t, store)

	err := store.Create(ctx, User{ID: userID})
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	_, err = store.FindByID(ctx, id.NewUserID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryUserStoreSetVerified(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryUserStore()
	userID := newStoredUser(t, store)

	require.NoError(t, store.SetVerified(ctx, userID, time.Now(), InitialReputation))

	user, err := store.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.True(t, user.Verified)
	assert.Equal(t, InitialReputation, user.Reputation)

	assert.ErrorIs(t, store.SetVerified(ctx, userID, time.Now(), InitialReputation), sentinel.ErrInvalidState)
	assert.ErrorIs(t, store.SetVerified(ctx, id.NewUserID(), time.Now(), InitialReputation), sentinel.ErrNotFound)
}

func TestInMemoryUserStoreMatches(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryUserStore()
	a := newStoredUser(t, store)
	b := newStoredUser(t, store)

	matched, err := store.HasMatched(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, matched)

	require.NoError(t, store.CreateMatch(ctx, a, b))

	// Symmetric regardless of argument order.
	matched, err = store.HasMatched(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, matched)

	assert.ErrorIs(t, store.CreateMatch(ctx, a, id.NewUserID()), sentinel.ErrNotFound)
}

func TestInMemoryUserStoreAdjustReputation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryUserStore()
	userID := newStoredUser(t, store)
	require.NoError(t, store.SetVerified(ctx, userID, time.Now(), InitialReputation))

	got, err := store.AdjustReputation(ctx, userID, -20)
	require.NoError(t, err)
	assert.Equal(t, InitialReputation-20, got)

	got, err = store.AdjustReputation(ctx, userID, -1000)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = store.AdjustReputation(ctx, id.NewUserID(), 1)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryUserStoreConcurrentAdjust(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryUserStore()
	userID := newStoredUser(t, store)
	require.NoError(t, store.SetVerified(ctx, userID, time.Now(), 0))

	const workers = 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AdjustReputation(ctx, userID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	user, err := store.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, workers, user.Reputation)
}
