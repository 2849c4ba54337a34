package domain

import "errors"

// Sentinel errors shared across packages.
var (
	// ErrNotFound indicates a missing cache or store entry.
	ErrNotFound = errors.New("not found")

	// ErrLockHeld indicates the rebalance lock is already held.
	ErrLockHeld = errors.New("rebalance already in progress")

	// ErrNoRoute indicates the swap collaborator returned zero routes.
	ErrNoRoute = errors.New("no swap route found")

	// ErrTxReverted indicates a submitted transaction was mined but failed.
	ErrTxReverted = errors.New("transaction reverted")

	// ErrConfirmTimeout indicates a transaction was not confirmed within the
	// bounded wait.
	ErrConfirmTimeout = errors.New("transaction confirmation timed out")
)
