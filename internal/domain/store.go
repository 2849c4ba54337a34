package domain

import (
	"context"
	"time"
)

// ListOpts carries standard pagination and time-range parameters for store
// listing queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// RebalanceStore persists executor pipeline runs.
type RebalanceStore interface {
	// Create inserts a new rebalance record at pipeline start.
	Create(ctx context.Context, r Rebalance) error

	// Update overwrites the record identified by r.ID with the current
	// stage, amounts, references, and completion state.
	Update(ctx context.Context, r Rebalance) error

	// List returns rebalance records, newest first.
	List(ctx context.Context, opts ListOpts) ([]Rebalance, error)

	// ListBefore returns completed rebalances started strictly before the
	// cutoff, for archival.
	ListBefore(ctx context.Context, before time.Time) ([]Rebalance, error)
}

// Alert is one operator notification, recorded for audit.
type Alert struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// AlertStore persists the notification audit trail.
type AlertStore interface {
	Create(ctx context.Context, a Alert) error
	List(ctx context.Context, opts ListOpts) ([]Alert, error)

	// ListBefore returns alerts created strictly before the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]Alert, error)
}
