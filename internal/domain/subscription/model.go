// Package subscription implements the criteria-based subscription registry:
// tenants register interest in future resource changes and receive webhook
// deliveries on the channel they supply.
package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/ngsanogo/keneyapp/internal/core"
)

// Status is the subscription lifecycle state.
type Status string

const (
	// StatusRequested is the initial state before the handshake probe.
	StatusRequested Status = "requested"
	// StatusActive means the handshake succeeded and deliveries flow.
	StatusActive Status = "active"
	// StatusError means handshake or delivery failed terminally; explicit
	// reactivation is required.
	StatusError Status = "error"
	// StatusOff means the subscription was deactivated.
	StatusOff Status = "off"
)

// Topic names the resource type and filter a subscription listens on.
// Criteria keeps the original expression string; the validated form is
// cached by the service.
type Topic struct {
	Kind     core.Kind
	Criteria string
}

// Channel is the webhook delivery target.
type Channel struct {
	Endpoint string
	Secret   string
}

// Subscription registers a tenant's interest in resource mutations
// matching its topic. A subscription only ever matches resources owned by
// its own tenant.
type Subscription struct {
	ID        uuid.UUID
	TenantID  string
	Topic     Topic
	Channel   Channel
	Status    Status
	ErrorText *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
