package delivery

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type attemptStorePG struct{ pool *pgxpool.Pool }

// NewAttemptStorePG creates a PostgreSQL-backed attempt store.
func NewAttemptStorePG(pool *pgxpool.Pool) AttemptStore {
	return &attemptStorePG{pool: pool}
}

const attemptCols = `id, subscription_id, tenant_id, resource_ref, resource_version,
	mutation, attempt_number, scheduled_at, result, last_error, delivered_at, created_at`

func scanAttempt(row pgx.Row) (*Attempt, error) {
	var a Attempt
	err := row.Scan(&a.ID, &a.SubscriptionID, &a.TenantID, &a.ResourceRef, &a.ResourceVersion,
		&a.Mutation, &a.AttemptNumber, &a.ScheduledAt, &a.Result, &a.LastError,
		&a.DeliveredAt, &a.CreatedAt)
	return &a, err
}

func (s *attemptStorePG) Create(ctx context.Context, a *Attempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_attempt (id, subscription_id, tenant_id, resource_ref,
			resource_version, mutation, attempt_number, scheduled_at, result, last_error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.SubscriptionID, a.TenantID, a.ResourceRef,
		a.ResourceVersion, a.Mutation, a.AttemptNumber, a.ScheduledAt, a.Result, a.LastError)
	return err
}

func (s *attemptStorePG) Update(ctx context.Context, a *Attempt) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE delivery_attempt
		SET result = $2, last_error = $3, delivered_at = $4, scheduled_at = $5
		WHERE id = $1`,
		a.ID, a.Result, a.LastError, a.DeliveredAt, a.ScheduledAt)
	return err
}

func (s *attemptStorePG) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit, offset int) ([]*Attempt, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM delivery_attempt WHERE subscription_id = $1`, subscriptionID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+attemptCols+` FROM delivery_attempt
		WHERE subscription_id = $1 ORDER BY created_at, attempt_number LIMIT $2 OFFSET $3`,
		subscriptionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
