package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ngsanogo/keneyapp/internal/core"
	"github.com/ngsanogo/keneyapp/internal/domain/subscription"
)

// Publisher turns committed resource mutations into delivery jobs. It is
// wired as the store's mutation hook, so it fires exactly once per commit.
type Publisher struct {
	registry *subscription.Service
	attempts AttemptStore
	queue    *Queue
	logger   zerolog.Logger
}

// NewPublisher creates an event publisher.
func NewPublisher(registry *subscription.Service, attempts AttemptStore, queue *Queue, logger zerolog.Logger) *Publisher {
	return &Publisher{registry: registry, attempts: attempts, queue: queue, logger: logger}
}

// Publish matches the mutated resource against active subscriptions of its
// tenant and enqueues one job per match. A mutation with no matching
// subscription produces no side effects at all.
func (p *Publisher) Publish(ctx context.Context, r core.Resource, mutation core.MutationKind) {
	matched, err := p.registry.Match(ctx, r, mutation)
	if err != nil {
		p.logger.Error().Err(err).
			Str("resource", r.ResourceMeta().Reference(r.Kind())).
			Msg("failed to match subscriptions")
		return
	}
	if len(matched) == 0 {
		return
	}

	meta := r.ResourceMeta()
	ref := meta.Reference(r.Kind())
	for _, sub := range matched {
		attempt := &Attempt{
			SubscriptionID:  sub.ID,
			TenantID:        sub.TenantID,
			ResourceRef:     ref,
			ResourceVersion: meta.Version,
			Mutation:        mutation,
			AttemptNumber:   1,
			ScheduledAt:     time.Now().UTC(),
			Result:          ResultPending,
			CreatedAt:       time.Now().UTC(),
		}
		if err := p.attempts.Create(ctx, attempt); err != nil {
			p.logger.Error().Err(err).
				Str("subscription", sub.ID.String()).
				Str("resource", ref).
				Msg("failed to create delivery attempt")
			continue
		}

		if !p.queue.Enqueue(Job{Sub: sub, Resource: r, Mutation: mutation, Attempt: attempt}) {
			errText := "delivery queue full"
			attempt.Result = ResultFailed
			attempt.LastError = &errText
			if uerr := p.attempts.Update(ctx, attempt); uerr != nil {
				p.logger.Error().Err(uerr).Str("attempt", attempt.ID.String()).Msg("failed to record queue overflow")
			}
			p.logger.Warn().
				Str("subscription", sub.ID.String()).
				Str("resource", ref).
				Msg("delivery queue full, attempt dropped")
			continue
		}

		p.logger.Debug().
			Str("subscription", sub.ID.String()).
			Str("resource", ref).
			Str("mutation", string(mutation)).
			Msg("delivery enqueued")
	}
}
