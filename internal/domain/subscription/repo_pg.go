package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ngsanogo/keneyapp/internal/core"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates a PostgreSQL-backed subscription repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const subCols = `id, tenant_id, kind, criteria, endpoint, secret, status, error_text,
	created_at, updated_at`

func scanSub(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.TenantID, &s.Topic.Kind, &s.Topic.Criteria,
		&s.Channel.Endpoint, &s.Channel.Secret, &s.Status, &s.ErrorText,
		&s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, sub *Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscription (id, tenant_id, kind, criteria, endpoint, secret, status, error_text)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		sub.ID, sub.TenantID, sub.Topic.Kind, sub.Topic.Criteria,
		sub.Channel.Endpoint, sub.Channel.Secret, sub.Status, sub.ErrorText)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Subscription, error) {
	sub, err := scanSub(r.pool.QueryRow(ctx,
		`SELECT `+subCols+` FROM subscription WHERE tenant_id = $1 AND id = $2`, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &core.NotFoundError{Kind: "Subscription", ID: id.String()}
	}
	return sub, err
}

func (r *repoPG) List(ctx context.Context, tenantID string, limit, offset int) ([]*Subscription, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM subscription WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+subCols+` FROM subscription
		WHERE tenant_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListActiveByTopic(ctx context.Context, tenantID string, kind core.Kind) ([]*Subscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+subCols+` FROM subscription
		WHERE tenant_id = $1 AND kind = $2 AND status = $3
		ORDER BY created_at, id`,
		tenantID, kind, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) ExistsDuplicate(ctx context.Context, tenantID, criteria, endpoint string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscription
			WHERE tenant_id = $1 AND criteria = $2 AND endpoint = $3 AND status <> $4
		)`, tenantID, criteria, endpoint, StatusOff).Scan(&exists)
	return exists, err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, errorText *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscription SET status = $2, error_text = $3, updated_at = NOW()
		WHERE id = $1`, id, status, errorText)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Kind: "Subscription", ID: id.String()}
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM subscription WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Kind: "Subscription", ID: id.String()}
	}
	return nil
}
