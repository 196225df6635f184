package subscription

import (
	"context"

	"github.com/google/uuid"

	"github.com/ngsanogo/keneyapp/internal/core"
)

// Repository defines the data access interface for subscriptions. All
// reads and writes are tenant-scoped except the status transitions the
// delivery worker performs by id; implementations must be linearizable
// per subscription id.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Subscription, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]*Subscription, int, error)
	// ListActiveByTopic returns every active subscription of the tenant
	// whose topic kind equals kind.
	ListActiveByTopic(ctx context.Context, tenantID string, kind core.Kind) ([]*Subscription, error)
	// ExistsDuplicate reports whether the tenant already holds a
	// subscription with the same criteria and endpoint.
	ExistsDuplicate(ctx context.Context, tenantID, criteria, endpoint string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, errorText *string) error
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
}
