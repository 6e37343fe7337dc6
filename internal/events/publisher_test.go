package events

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "flagledger/pkg/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPublisherEmit(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps time when unset", func(t *testing.T) {
		p := NewPublisher(discardLogger())
		p.Emit(ctx, Event{Kind: KindFlagSubmitted})

		got := <-p.Outbox()
		assert.False(t, got.At.IsZero())
	})

	t.Run("never blocks on full outbox", func(t *testing.T) {
		p := NewPublisher(discardLogger())
		done := make(chan struct{})
		go func() {
			defer close(done)
			for range defaultOutboxDepth + 10 {
				p.Emit(ctx, Event{Kind: KindFlagSubmitted})
			}
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Emit blocked on a full outbox")
		}
	})

	t.Run("counts every overflow drop", func(t *testing.T) {
		p := NewPublisher(discardLogger())
		const overflow = 10
		for range defaultOutboxDepth + overflow {
			p.Emit(ctx, Event{Kind: KindFlagSubmitted})
		}
		assert.EqualValues(t, overflow, p.Dropped())
	})
}

func TestWorkerDrainsToStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPublisher(discardLogger())
	store := NewMemoryStore()
	w := NewWorker(store, p.Outbox(), discardLogger())

	go func() { _ = w.Run(ctx) }()

	actor := id.NewUserID()
	subject := id.NewUserID()
	p.Emit(ctx, Event{Kind: KindFlagApproved, Actor: actor, Subject: subject})

	require.Eventually(t, func() bool {
		return len(store.List()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := store.List()[0]
	assert.Equal(t, KindFlagApproved, got.Kind)
	assert.Equal(t, actor, got.Actor)
	assert.Equal(t, subject, got.Subject)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPublisher(discardLogger())
	w := NewWorker(NewMemoryStore(), p.Outbox(), discardLogger())

	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
