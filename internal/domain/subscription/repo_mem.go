package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ngsanogo/keneyapp/internal/core"
)

// memRepo is a thread-safe in-memory Repository for development mode and
// tests. A single mutex makes every operation linearizable per
// subscription id. Insertion order is kept for deterministic listing.
type memRepo struct {
	mu    sync.RWMutex
	subs  map[uuid.UUID]*Subscription
	order []uuid.UUID
}

// NewRepoMem creates an empty in-memory subscription repository.
func NewRepoMem() Repository {
	return &memRepo{subs: make(map[uuid.UUID]*Subscription)}
}

func (r *memRepo) Create(_ context.Context, sub *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	cp := *sub
	r.subs[sub.ID] = &cp
	r.order = append(r.order, sub.ID)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[id]
	if !ok || s.TenantID != tenantID {
		return nil, &core.NotFoundError{Kind: "Subscription", ID: id.String()}
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) List(_ context.Context, tenantID string, limit, offset int) ([]*Subscription, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []*Subscription
	for _, id := range r.order {
		if s := r.subs[id]; s != nil && s.TenantID == tenantID {
			cp := *s
			filtered = append(filtered, &cp)
		}
	}
	total := len(filtered)
	if offset >= total {
		return []*Subscription{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return filtered[offset:end], total, nil
}

func (r *memRepo) ListActiveByTopic(_ context.Context, tenantID string, kind core.Kind) ([]*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Subscription
	for _, id := range r.order {
		s := r.subs[id]
		if s == nil || s.TenantID != tenantID || s.Status != StatusActive || s.Topic.Kind != kind {
			continue
		}
		cp := *s
		matched = append(matched, &cp)
	}
	return matched, nil
}

func (r *memRepo) ExistsDuplicate(_ context.Context, tenantID, criteria, endpoint string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if s.TenantID == tenantID && s.Topic.Criteria == criteria &&
			s.Channel.Endpoint == endpoint && s.Status != StatusOff {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status, errorText *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return &core.NotFoundError{Kind: "Subscription", ID: id.String()}
	}
	s.Status = status
	s.ErrorText = errorText
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memRepo) Delete(_ context.Context, tenantID string, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.TenantID != tenantID {
		return &core.NotFoundError{Kind: "Subscription", ID: id.String()}
	}
	delete(r.subs, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
