package domain

import (
	"context"
	"time"
)

// BinCache stores the last observed active bin and reference price per pool.
type BinCache interface {
	// SetActiveBin stores the latest active bin and price for a pool.
	SetActiveBin(ctx context.Context, poolID string, bin int32, price float64, ts time.Time) error

	// GetActiveBin returns the last stored bin and price. It returns
	// ErrNotFound when no observation has been stored yet.
	GetActiveBin(ctx context.Context, poolID string) (int32, float64, time.Time, error)
}

// Publisher publishes JSON-encoded events on named channels for the
// dashboard hub.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// LockManager provides a cross-process lock. It guards against a second
// rangekeeper instance rebalancing the same owner concurrently; the
// in-process executor mutex remains the primary pipeline guard.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL and returns an
	// unlock function, or ErrLockHeld when another holder owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
