package audit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository writes events into audit_events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record persists the event.
func (r *Repository) Record(ctx context.Context, ev Event) error {
	if r == nil || r.pool == nil {
		return errors.New("audit: repository not initialised")
	}
	if ev.Action == "" || ev.Entity == "" {
		return errors.New("audit: event requires action and entity")
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO audit_events (id, actor_id, tenant_id, action, entity, entity_id, occurred_at)
		VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.ActorID, ev.TenantID, ev.Action, ev.Entity, ev.EntityID, at)
	return err
}

var _ Recorder = (*Repository)(nil)
