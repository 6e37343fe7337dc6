package flag

import (
	"context"
	"sync"
	"time"

	id "flagledger/pkg/domain"
	"flagledger/pkg/platform/sentinel"
)

// InMemoryFlagStore keeps flags in submission order with an index by ID.
type InMemoryFlagStore struct {
	mu    sync.RWMutex
	order []id.FlagID
	flags map[id.FlagID]Flag
}

func NewInMemoryFlagStore() *InMemoryFlagStore {
	return &InMemoryFlagStore{flags: make(map[id.FlagID]Flag)}
}

func (s *InMemoryFlagStore) Append(_ context.Context, f Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[f.ID]; ok {
		return sentinel.ErrConflict
	}
	s.order = append(s.order, f.ID)
	s.flags[f.ID] = f
	return nil
}

func (s *InMemoryFlagStore) FindByID(_ context.Context, flagID id.FlagID) (Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.flags[flagID]; ok {
		return f, nil
	}
	return Flag{}, sentinel.ErrNotFound
}

func (s *InMemoryFlagStore) ListByRecipient(_ context.Context, userID id.UserID) ([]Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Flag
	for _, flagID := range s.order {
		if f := s.flags[flagID]; f.To == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *InMemoryFlagStore) MarkVisible(_ context.Context, flagID id.FlagID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flags[flagID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if f.Visible {
		return sentinel.ErrInvalidState
	}
	now := time.Now()
	f.Visible = true
	f.ApprovedAt = &now
	s.flags[flagID] = f
	return nil
}

func (s *InMemoryFlagStore) FirstPendingFrom(_ context.Context, from, to id.UserID) (Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, flagID := range s.order {
		f := s.flags[flagID]
		if f.From == from && f.To == to && !f.Visible {
			return f, nil
		}
	}
	return Flag{}, sentinel.ErrNotFound
}

func (s *InMemoryFlagStore) Totals(_ context.Context) (Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var t Totals
	for _, f := range s.flags {
		t.Total++
		if f.Red {
			t.Red++
		} else {
			t.Green++
		}
		if f.Visible {
			t.Visible++
		}
	}
	return t, nil
}
