// Package audit records administrative actions for later review.
package audit

import (
	"context"
	"time"
)

// Event is a single auditable action.
type Event struct {
	ID       string    `json:"id"`
	ActorID  int64     `json:"actor_id"`
	TenantID int64     `json:"tenant_id,omitempty"`
	Action   string    `json:"action"`
	Entity   string    `json:"entity"`
	EntityID string    `json:"entity_id"`
	At       time.Time `json:"at"`
}

// Recorder accepts events for durable storage. Implementations may write
// synchronously or hand the event to a queue; callers treat recording as
// best-effort and never fail the originating operation on error.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}
