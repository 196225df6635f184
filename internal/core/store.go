package core

import "context"

// ListQuery describes one page of a tenant-scoped search.
// Filters are restricted to the per-kind allow-list (see fields.go);
// values with commas are membership tests.
type ListQuery struct {
	TenantID string
	Kind     Kind
	Filters  map[string]string
	Offset   int
	Limit    int
}

// Reader is the read accessor this subsystem consumes from the
// collaborating persistence layer.
type Reader interface {
	GetByID(ctx context.Context, tenantID string, kind Kind, id int64) (Resource, error)
	// List returns one page of matching resources plus the total match
	// count at query time. Result order is owned by the implementation
	// and must be stable across identical queries.
	List(ctx context.Context, q ListQuery) ([]Resource, int, error)
}

// Writer persists new resources. Implementations assign the tenant-scoped
// identity and initial version before returning.
type Writer interface {
	Create(ctx context.Context, r Resource) (Resource, error)
}

// MutationHook is invoked by the persistence layer immediately after every
// committed write.
type MutationHook func(ctx context.Context, r Resource, mutation MutationKind)
