package core

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemStore is a thread-safe in-memory implementation of Reader and Writer.
// It backs development mode and tests; production deployments plug the
// real persistence layer in behind the same interfaces.
type MemStore struct {
	mu        sync.RWMutex
	resources map[string]map[Kind]map[int64]Resource
	nextID    map[string]map[Kind]int64
	hook      MutationHook
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		resources: make(map[string]map[Kind]map[int64]Resource),
		nextID:    make(map[string]map[Kind]int64),
	}
}

// SetMutationHook registers the hook invoked after every committed write.
func (s *MemStore) SetMutationHook(hook MutationHook) {
	s.hook = hook
}

func (s *MemStore) bucket(tenantID string, kind Kind) map[int64]Resource {
	byKind, ok := s.resources[tenantID]
	if !ok {
		byKind = make(map[Kind]map[int64]Resource)
		s.resources[tenantID] = byKind
	}
	byID, ok := byKind[kind]
	if !ok {
		byID = make(map[int64]Resource)
		byKind[kind] = byID
	}
	return byID
}

func (s *MemStore) Create(ctx context.Context, r Resource) (Resource, error) {
	s.mu.Lock()
	meta := r.ResourceMeta()
	bucket := s.bucket(meta.TenantID, r.Kind())

	byKind, ok := s.nextID[meta.TenantID]
	if !ok {
		byKind = make(map[Kind]int64)
		s.nextID[meta.TenantID] = byKind
	}
	if meta.ID == 0 {
		byKind[r.Kind()]++
		meta.ID = byKind[r.Kind()]
	} else if meta.ID > byKind[r.Kind()] {
		byKind[r.Kind()] = meta.ID
	}
	if _, exists := bucket[meta.ID]; exists {
		s.mu.Unlock()
		return nil, &ConflictError{Msg: meta.Reference(r.Kind()) + " already exists"}
	}
	meta.Version = 1
	meta.LastModified = time.Now().UTC()
	bucket[meta.ID] = r
	s.mu.Unlock()

	if s.hook != nil {
		s.hook(ctx, r, MutationCreate)
	}
	return r, nil
}

func (s *MemStore) GetByID(_ context.Context, tenantID string, kind Kind, id int64) (Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[tenantID][kind][id]
	if !ok {
		return nil, &NotFoundError{Kind: kind, ID: strconv.FormatInt(id, 10)}
	}
	return r, nil
}

func (s *MemStore) List(_ context.Context, q ListQuery) ([]Resource, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Resource
	for _, r := range s.resources[q.TenantID][q.Kind] {
		if matchesFilters(r, q.Filters) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ResourceMeta().ID < matched[j].ResourceMeta().ID
	})

	total := len(matched)
	if q.Offset >= total {
		return []Resource{}, total, nil
	}
	end := q.Offset + q.Limit
	if q.Limit <= 0 || end > total {
		end = total
	}
	return matched[q.Offset:end], total, nil
}

// matchesFilters evaluates allow-listed equality/membership filters against
// canonical fields. Unknown fields never match anything.
func matchesFilters(r Resource, filters map[string]string) bool {
	for field, want := range filters {
		got, ok := FieldValue(r, field)
		if !ok {
			return false
		}
		if !valueIn(got, want) {
			return false
		}
	}
	return true
}

func valueIn(got, want string) bool {
	if !strings.Contains(want, ",") {
		return got == want
	}
	for _, v := range strings.Split(want, ",") {
		if got == v {
			return true
		}
	}
	return false
}
