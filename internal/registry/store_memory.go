package registry

import (
	"context"
	"sync"
	"time"

	id "flagledger/pkg/domain"
	"flagledger/pkg/platform/sentinel"
)

// InMemoryUserStore keeps the development and test implementation
// lightweight. It intentionally favors clarity over performance.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]User
	matches map[matchKey]bool
}

type matchKey struct {
	a, b id.UserID
}

// normalized orders the pair so A-B and B-A share one entry.
func normalized(a, b id.UserID) matchKey {
	if a.String() > b.String() {
		a, b = b, a
	}
	return matchKey{a: a, b: b}
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]User),
		matches: make(map[matchKey]bool),
	}
}

func (s *InMemoryUserStore) Create(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return sentinel.ErrConflict
	}
	s.users[user.ID] = user
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		return user, nil
	}
	return User{}, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) SetVerified(_ context.Context, userID id.UserID, at time.Time, reputation int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if user.Verified {
		return sentinel.ErrInvalidState
	}
	user.Verified = true
	user.VerifiedAt = &at
	user.Reputation = reputation
	s.users[userID] = user
	return nil
}

func (s *InMemoryUserStore) CreateMatch(_ context.Context, a, b id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[a]; !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := s.users[b]; !ok {
		return sentinel.ErrNotFound
	}
	s.matches[normalized(a, b)] = true
	return nil
}

func (s *InMemoryUserStore) HasMatched(_ context.Context, a, b id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matches[normalized(a, b)], nil
}

func (s *InMemoryUserStore) AdjustReputation(_ context.Context, userID id.UserID, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	user.Reputation += delta
	if user.Reputation < 0 {
		user.Reputation = 0
	}
	s.users[userID] = user
	return user.Reputation, nil
}
