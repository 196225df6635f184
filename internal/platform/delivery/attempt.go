// Package delivery implements the asynchronous webhook pipeline: the event
// publisher that fans committed mutations out to matching subscriptions,
// the tenant-partitioned queue, and the worker pool that posts signed
// payloads with retry, backoff, and terminal-failure reporting.
package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ngsanogo/keneyapp/internal/core"
)

// Result is the delivery attempt lifecycle state. Delivered and abandoned
// are terminal.
type Result string

const (
	ResultPending   Result = "pending"
	ResultDelivered Result = "delivered"
	ResultFailed    Result = "failed"
	ResultAbandoned Result = "abandoned"
)

// Attempt records a single webhook delivery attempt. Attempts are created
// by the event publisher (number 1) or by the worker when scheduling a
// retry, and mutated only by the worker.
type Attempt struct {
	ID              uuid.UUID
	SubscriptionID  uuid.UUID
	TenantID        string
	ResourceRef     string
	ResourceVersion int
	Mutation        core.MutationKind
	AttemptNumber   int
	ScheduledAt     time.Time
	Result          Result
	LastError       *string
	DeliveredAt     *time.Time
	CreatedAt       time.Time
}

// AttemptStore persists delivery attempts.
type AttemptStore interface {
	Create(ctx context.Context, a *Attempt) error
	Update(ctx context.Context, a *Attempt) error
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit, offset int) ([]*Attempt, int, error)
}
