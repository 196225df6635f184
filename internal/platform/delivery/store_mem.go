package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemAttemptStore is a thread-safe in-memory AttemptStore with insertion
// order kept for deterministic listing.
type MemAttemptStore struct {
	mu       sync.RWMutex
	attempts map[uuid.UUID]*Attempt
	order    []uuid.UUID
}

// NewMemAttemptStore creates an empty in-memory attempt store.
func NewMemAttemptStore() *MemAttemptStore {
	return &MemAttemptStore{attempts: make(map[uuid.UUID]*Attempt)}
}

func (s *MemAttemptStore) Create(_ context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	s.attempts[a.ID] = &cp
	s.order = append(s.order, a.ID)
	return nil
}

func (s *MemAttemptStore) Update(_ context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[a.ID]; !ok {
		return fmt.Errorf("attempt %s not found", a.ID)
	}
	cp := *a
	s.attempts[a.ID] = &cp
	return nil
}

func (s *MemAttemptStore) ListBySubscription(_ context.Context, subscriptionID uuid.UUID, limit, offset int) ([]*Attempt, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []*Attempt
	for _, id := range s.order {
		a := s.attempts[id]
		if a != nil && a.SubscriptionID == subscriptionID {
			cp := *a
			filtered = append(filtered, &cp)
		}
	}
	total := len(filtered)
	if offset >= total {
		return []*Attempt{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return filtered[offset:end], total, nil
}
