package rebalance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lpwatch/rangekeeper/internal/domain"
	"github.com/lpwatch/rangekeeper/internal/notify"
)

// settlePollInterval is how often balances are re-read during the settle
// phase when polling is enabled.
const settlePollInterval = 5 * time.Second

// crossLockTTL bounds how long the cross-process lock can outlive a crashed
// holder.
const crossLockTTL = 10 * time.Minute

// Config carries the executor's tunables.
type Config struct {
	Owner string

	// TokenX and TokenY identify the pool assets for the swap router.
	// TokenY may be "native" (or empty) when Y is the chain's native asset.
	TokenX string
	TokenY string

	RangeHalfWidth int32

	// SwapSlippageBps is the slippage tolerance passed to the swap router's
	// route requests.
	SwapSlippageBps int

	// SettleWait is the post-swap wait before balances are re-read.
	SettleWait time.Duration

	// SettlePoll re-reads balances during the settle wait and proceeds as
	// soon as the swap output is visible.
	SettlePoll bool

	// GasReserve is the amount of the native asset, in base units, held
	// back from deposits for future transaction fees. Applied only when
	// TokenY is the native asset.
	GasReserve *big.Int

	// SlippageBps bounds the deposit's minimum accepted amounts.
	SlippageBps int
}

func (c Config) nativeY() bool {
	return c.TokenY == "" || c.TokenY == "native"
}

// Executor sequences the rebalance pipeline: withdraw, swap, settle,
// deposit. A process-wide mutex guarantees at most one in-flight rebalance;
// a second trigger while one is running produces a skip notification and
// returns immediately without queueing.
type Executor struct {
	mu sync.Mutex // the rebalance lock

	cfg       Config
	pool      domain.PoolClient
	balances  domain.BalanceReader
	router    domain.SwapRouter
	liquidity domain.LiquidityManager
	alerts    domain.Alerter
	store     domain.RebalanceStore // optional
	locks     domain.LockManager    // optional cross-process guard
	pub       domain.Publisher      // optional
	logger    *slog.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an Executor. store, locks, and pub may be nil.
func NewExecutor(
	cfg Config,
	pool domain.PoolClient,
	balances domain.BalanceReader,
	router domain.SwapRouter,
	liquidity domain.LiquidityManager,
	alerts domain.Alerter,
	store domain.RebalanceStore,
	locks domain.LockManager,
	pub domain.Publisher,
	logger *slog.Logger,
) *Executor {
	if cfg.GasReserve == nil {
		cfg.GasReserve = new(big.Int)
	}
	return &Executor{
		cfg:       cfg,
		pool:      pool,
		balances:  balances,
		router:    router,
		liquidity: liquidity,
		alerts:    alerts,
		store:     store,
		locks:     locks,
		pub:       pub,
		logger:    logger.With(slog.String("component", "executor")),
		sleep:     sleepCtx,
	}
}

// Rebalance runs the full pipeline for pos. activeBin and price are the pool
// state at detection time; the deposit range is centered on the active bin
// fetched again at deposit time, which may have drifted since.
//
// The lock is released on every exit path. Failures are not retried here:
// the next monitoring cycle re-detects the out-of-range condition and
// triggers a fresh attempt.
func (e *Executor) Rebalance(ctx context.Context, pos domain.Position, activeBin int32, price float64) error {
	if !e.mu.TryLock() {
		e.alerts.Alert(ctx, notify.EventRebalanceSkip,
			"Rebalance skipped",
			fmt.Sprintf("%s: another rebalance is already in progress", pos.ID),
		)
		return nil
	}
	defer e.mu.Unlock()

	// Cross-process guard for multi-instance deployments. The in-process
	// mutex above remains the primary guard; an unreachable lock backend
	// does not block the rebalance.
	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, "rebalance:"+e.cfg.Owner, crossLockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			e.alerts.Alert(ctx, notify.EventRebalanceSkip,
				"Rebalance skipped",
				fmt.Sprintf("%s: another instance holds the rebalance lock", pos.ID),
			)
			return nil
		case err != nil:
			e.logger.WarnContext(ctx, "cross-process lock unavailable, proceeding",
				slog.String("error", err.Error()),
			)
		default:
			defer unlock()
		}
	}

	rec := domain.Rebalance{
		ID:         uuid.New().String(),
		PositionID: pos.ID,
		Stage:      domain.StageWithdrawing,
		ActiveBin:  activeBin,
		StartedAt:  time.Now().UTC(),
	}
	e.create(ctx, rec)

	e.alerts.Alert(ctx, notify.EventRebalanceStart,
		"Rebalance started",
		fmt.Sprintf("%s: withdrawing liquidity from [%d, %d]", pos.ID, pos.LowerBin, pos.UpperBin),
	)

	if err := e.withdraw(ctx, pos); err != nil {
		return e.fail(ctx, &rec, fmt.Errorf("withdraw: %w", err))
	}

	bal, err := e.balances.Balances(ctx, e.cfg.Owner)
	if err != nil {
		return e.fail(ctx, &rec, fmt.Errorf("read balances: %w", err))
	}

	plan := Plan(bal.AmountX, bal.AmountY, price, e.cfg.RangeHalfWidth)
	if plan != nil {
		rec.Stage = domain.StageSwapping
		rec.SellSide = string(plan.SellSide)
		rec.SellAmount = plan.SellAmount.String()
		e.update(ctx, rec)

		executed, err := e.swap(ctx, plan)
		if err != nil {
			return e.fail(ctx, &rec, err)
		}
		rec.SwapTxRef = executed.TxRef

		rec.Stage = domain.StageSettling
		e.update(ctx, rec)

		if err := e.settle(ctx, bal, plan); err != nil {
			return e.fail(ctx, &rec, fmt.Errorf("settle: %w", err))
		}
	}

	rec.Stage = domain.StageDepositing
	e.update(ctx, rec)

	result, err := e.deposit(ctx)
	if err != nil {
		return e.fail(ctx, &rec, err)
	}

	now := time.Now().UTC()
	rec.Stage = domain.StageCompleted
	rec.NewPositionID = result.PositionID
	rec.DepositTxRef = result.TxRef
	rec.NewLowerBin = result.LowerBin
	rec.NewUpperBin = result.UpperBin
	rec.CompletedAt = &now
	e.update(ctx, rec)

	e.alerts.Alert(ctx, notify.EventRebalanceDone,
		"Rebalance complete",
		fmt.Sprintf("new position %s in range [%d, %d]\ntx: %s",
			result.PositionID, result.LowerBin, result.UpperBin, result.TxRef),
	)
	return nil
}

// withdraw removes all liquidity across the position's full bin range,
// claims fees, and closes the position. Individual transaction failures are
// reported but do not abort the remaining transactions; an error from the
// removal call itself does.
func (e *Executor) withdraw(ctx context.Context, pos domain.Position) error {
	results, err := e.liquidity.Withdraw(ctx, pos, 10_000, true)
	for _, r := range results {
		if r.Err != nil {
			e.alerts.Alert(ctx, notify.EventRebalanceStep,
				"Withdraw transaction failed",
				fmt.Sprintf("%s: %v", pos.ID, r.Err),
			)
		}
	}
	return err
}

// swap requests a route for the planned sale and executes it, reporting the
// quoted amounts before and the realized amounts after.
func (e *Executor) swap(ctx context.Context, plan *domain.RebalancePlan) (domain.ExecutedRoute, error) {
	fromAsset, toAsset := e.cfg.TokenX, e.cfg.TokenY
	if plan.SellSide == domain.SideY {
		fromAsset, toAsset = e.cfg.TokenY, e.cfg.TokenX
	}

	routes, err := e.router.FindRoutes(ctx, domain.RouteRequest{
		FromAsset:   fromAsset,
		ToAsset:     toAsset,
		Amount:      plan.SellAmount,
		FromAddress: e.cfg.Owner,
		SlippageBps: e.cfg.SwapSlippageBps,
	})
	if err != nil {
		return domain.ExecutedRoute{}, fmt.Errorf("find routes: %w", err)
	}
	if len(routes) == 0 {
		return domain.ExecutedRoute{}, domain.ErrNoRoute
	}

	route := routes[0]
	e.alerts.Alert(ctx, notify.EventRebalanceStep,
		"Swapping",
		fmt.Sprintf("selling %s %s for %s\nexpected: in %s, out %s",
			plan.SellAmount.String(), fromAsset, toAsset,
			route.AmountIn.String(), route.AmountOut.String()),
	)

	executed, err := e.router.Execute(ctx, route)
	if err != nil {
		return domain.ExecutedRoute{}, fmt.Errorf("execute route: %w", err)
	}

	e.alerts.Alert(ctx, notify.EventRebalanceStep,
		"Swap executed",
		fmt.Sprintf("realized: in %s, out %s\ntx: %s",
			executed.RealizedIn.String(), executed.RealizedOut.String(), executed.TxRef),
	)
	return executed, nil
}

// settle waits for wallet balances to reflect the just-executed swap. The
// fixed wait is the floor behavior; with polling enabled it returns as soon
// as the bought side's balance has grown past its pre-swap level, never
// waiting longer than the configured settle duration.
func (e *Executor) settle(ctx context.Context, preSwap domain.Balances, plan *domain.RebalancePlan) error {
	if !e.cfg.SettlePoll {
		return e.sleep(ctx, e.cfg.SettleWait)
	}

	deadline := time.Now().Add(e.cfg.SettleWait)
	for time.Now().Before(deadline) {
		if err := e.sleep(ctx, settlePollInterval); err != nil {
			return err
		}

		bal, err := e.balances.Balances(ctx, e.cfg.Owner)
		if err != nil {
			e.logger.DebugContext(ctx, "settle poll balance read failed",
				slog.String("error", err.Error()),
			)
			continue
		}

		if plan.SellSide == domain.SideX {
			if bal.AmountY.Cmp(preSwap.AmountY) > 0 {
				return nil
			}
		} else if bal.AmountX.Cmp(preSwap.AmountX) > 0 {
			return nil
		}
	}
	return nil
}

// deposit re-reads balances, reserves the native gas amount, and opens a new
// position centered on the active bin at deposit time.
func (e *Executor) deposit(ctx context.Context) (domain.DepositResult, error) {
	bal, err := e.balances.Balances(ctx, e.cfg.Owner)
	if err != nil {
		return domain.DepositResult{}, fmt.Errorf("read balances: %w", err)
	}

	// The gas reserve comes out of Y only when Y is the asset that pays for
	// gas; an ERC-20 Y deposits in full.
	depositY := new(big.Int).Set(bal.AmountY)
	if e.cfg.nativeY() {
		depositY.Sub(depositY, e.cfg.GasReserve)
		if depositY.Sign() < 0 {
			depositY.SetInt64(0)
		}
	}

	activeBin, err := e.pool.ActiveBin(ctx)
	if err != nil {
		return domain.DepositResult{}, fmt.Errorf("active bin: %w", err)
	}

	result, err := e.liquidity.Deposit(ctx, domain.DepositRequest{
		Owner:       e.cfg.Owner,
		AmountX:     bal.AmountX,
		AmountY:     depositY,
		LowerBin:    activeBin - e.cfg.RangeHalfWidth,
		UpperBin:    activeBin + e.cfg.RangeHalfWidth,
		SlippageBps: e.cfg.SlippageBps,
	})
	if err != nil {
		return domain.DepositResult{}, fmt.Errorf("deposit: %w", err)
	}
	return result, nil
}

// fail marks the record failed, alerts the operator once, and returns err to
// the caller.
func (e *Executor) fail(ctx context.Context, rec *domain.Rebalance, err error) error {
	now := time.Now().UTC()
	rec.Stage = domain.StageFailed
	rec.Error = err.Error()
	rec.CompletedAt = &now
	e.update(ctx, *rec)

	e.alerts.Alert(ctx, notify.EventRebalanceError,
		"Rebalance failed",
		fmt.Sprintf("%s: %v", rec.PositionID, err),
	)
	return err
}

func (e *Executor) create(ctx context.Context, rec domain.Rebalance) {
	if e.store != nil {
		if err := e.store.Create(ctx, rec); err != nil {
			e.logger.WarnContext(ctx, "rebalance record create failed",
				slog.String("id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	e.publish(ctx, rec)
}

func (e *Executor) update(ctx context.Context, rec domain.Rebalance) {
	if e.store != nil {
		if err := e.store.Update(ctx, rec); err != nil {
			e.logger.WarnContext(ctx, "rebalance record update failed",
				slog.String("id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	e.publish(ctx, rec)
}

func (e *Executor) publish(ctx context.Context, rec domain.Rebalance) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(ctx, "rebalances", rec); err != nil {
		e.logger.DebugContext(ctx, "rebalance publish failed",
			slog.String("error", err.Error()),
		)
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
