package flag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "flagledger/pkg/domain"
	"flagledger/pkg/platform/sentinel"
)

func appendFlag(t *testing.T, store *InMemoryFlagStore, f Flag) Flag {
	t.Helper()
	if f.ID.IsNil() {
		f.ID = id.NewFlagID()
	}
	if f.SubmittedAt.IsZero() {
		f.SubmittedAt = time.Now()
	}
	require.NoError(t, store.Append(context.Background(), f))
	return f
}

func TestInMemoryFlagStoreAppendAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryFlagStore()
	f := appendFlag(t, store, Flag{From: id.NewUserID(), To: id.NewUserID(), Category: id.CategoryGeneral})

	got, err := store.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)

	assert.ErrorIs(t, store.Append(ctx, f), sentinel.ErrConflict)

	_, err = store.FindByID(ctx, id.NewFlagID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryFlagStoreListByRecipient(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryFlagStore()
	to := id.NewUserID()

	first := appendFlag(t, store, Flag{From: id.NewUserID(), To: to})
	second := appendFlag(t, store, Flag{From: id.NewUserID(), To: to})
	appendFlag(t, store, Flag{From: id.NewUserID(), To: id.NewUserID()})

	got, err := store.ListByRecipient(ctx, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Submission order is preserved.
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
}

func TestInMemoryFlagStoreMarkVisible(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryFlagStore()
	f := appendFlag(t, store, Flag{From: id.NewUserID(), To: id.NewUserID()})

	require.NoError(t, store.MarkVisible(ctx, f.ID))

	got, err := store.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, got.Visible)
	assert.NotNil(t, got.ApprovedAt)

	assert.ErrorIs(t, store.MarkVisible(ctx, f.ID), sentinel.ErrInvalidState)
	assert.ErrorIs(t, store.MarkVisible(ctx, id.NewFlagID()), sentinel.ErrNotFound)
}

func TestInMemoryFlagStoreFirstPendingFrom(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryFlagStore()
	from, to := id.NewUserID(), id.NewUserID()

	first := appendFlag(t, store, Flag{From: from, To: to})
	second := appendFlag(t, store, Flag{From: from, To: to})

	got, err := store.FirstPendingFrom(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	require.NoError(t, store.MarkVisible(ctx, first.ID))

	got, err = store.FirstPendingFrom(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = store.FirstPendingFrom(ctx, to, from)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryFlagStoreTotals(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryFlagStore()

	red := appendFlag(t, store, Flag{From: id.NewUserID(), To: id.NewUserID(), Red: true, Severity: 4})
	appendFlag(t, store, Flag{From: id.NewUserID(), To: id.NewUserID()})
	require.NoError(t, store.MarkVisible(ctx, red.ID))

	totals, err := store.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, Totals{Total: 2, Red: 1, Green: 1, Visible: 1}, totals)
}
