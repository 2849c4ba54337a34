package domain

import "context"

// PoolClient queries the bin pool for owned positions and the current active
// bin. Both calls are idempotent and side-effect-free.
type PoolClient interface {
	// ListPositions returns all positions owned by the given address.
	ListPositions(ctx context.Context, owner string) ([]Position, error)

	// ActiveBin returns the pool's current active bin index.
	ActiveBin(ctx context.Context) (int32, error)

	// ReferencePrice returns the pool's current price of asset Y denominated
	// in asset X, as reported by the pool contract for the active bin.
	ReferencePrice(ctx context.Context) (float64, error)
}

// BalanceReader queries the wallet's spendable balances of the two pool
// assets. Failures propagate to the caller; no retries at this layer.
type BalanceReader interface {
	Balances(ctx context.Context, owner string) (Balances, error)
}

// SwapRouter is the external swap/routing collaborator.
type SwapRouter interface {
	// FindRoutes returns candidate routes for the requested conversion. An
	// empty slice is a valid response and is treated by callers as a hard
	// failure for the attempt.
	FindRoutes(ctx context.Context, req RouteRequest) ([]Route, error)

	// Execute fills the given route and reports the realized amounts.
	Execute(ctx context.Context, route Route) (ExecutedRoute, error)
}

// LiquidityManager withdraws from and deposits into the bin pool.
type LiquidityManager interface {
	// Withdraw removes bpsToRemove basis points of liquidity across the
	// position's full bin range. When claimAndClose is set it also claims
	// accrued fees and closes the position. Individual constituent
	// transactions may fail without aborting their siblings; those failures
	// are reported in the returned TxResults. A non-nil error means the
	// operation itself failed and the caller must abort.
	Withdraw(ctx context.Context, pos Position, bpsToRemove int, claimAndClose bool) ([]TxResult, error)

	// Deposit opens a new position with the given amounts and range.
	Deposit(ctx context.Context, req DepositRequest) (DepositResult, error)
}

// Alerter delivers human-readable notifications to the operator. Delivery is
// best-effort: implementations log failures and never propagate them.
type Alerter interface {
	Alert(ctx context.Context, event, title, message string)
}
