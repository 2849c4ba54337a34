package rebalance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpwatch/rangekeeper/internal/domain"
	"github.com/lpwatch/rangekeeper/internal/notify"
)

// --- fakes ---------------------------------------------------------------

type fakePool struct {
	activeBin int32
	binErr    error
}

func (f *fakePool) ListPositions(ctx context.Context, owner string) ([]domain.Position, error) {
	return nil, nil
}

func (f *fakePool) ActiveBin(ctx context.Context) (int32, error) {
	return f.activeBin, f.binErr
}

func (f *fakePool) ReferencePrice(ctx context.Context) (float64, error) {
	return 1.0, nil
}

type fakeBalances struct {
	mu       sync.Mutex
	balances domain.Balances
	err      error
	reads    int
}

func (f *fakeBalances) Balances(ctx context.Context, owner string) (domain.Balances, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.balances, f.err
}

func (f *fakeBalances) set(x, y int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances = domain.Balances{AmountX: big.NewInt(x), AmountY: big.NewInt(y)}
}

type fakeRouter struct {
	routes   []domain.Route
	findErr  error
	executed domain.ExecutedRoute
	execErr  error

	gotRequest domain.RouteRequest
	gotRoute   domain.Route
}

func (f *fakeRouter) FindRoutes(ctx context.Context, req domain.RouteRequest) ([]domain.Route, error) {
	f.gotRequest = req
	return f.routes, f.findErr
}

func (f *fakeRouter) Execute(ctx context.Context, route domain.Route) (domain.ExecutedRoute, error) {
	f.gotRoute = route
	return f.executed, f.execErr
}

type fakeLiquidity struct {
	withdrawResults []domain.TxResult
	withdrawErr     error
	depositResult   domain.DepositResult
	depositErr      error

	gotBps        int
	gotClose      bool
	gotDeposit    domain.DepositRequest
	withdrawEnter chan struct{} // optional: signals a withdraw in flight
	withdrawBlock chan struct{} // optional: blocks withdraw until closed
}

func (f *fakeLiquidity) Withdraw(ctx context.Context, pos domain.Position, bps int, claimAndClose bool) ([]domain.TxResult, error) {
	f.gotBps = bps
	f.gotClose = claimAndClose
	if f.withdrawEnter != nil {
		f.withdrawEnter <- struct{}{}
	}
	if f.withdrawBlock != nil {
		<-f.withdrawBlock
	}
	return f.withdrawResults, f.withdrawErr
}

func (f *fakeLiquidity) Deposit(ctx context.Context, req domain.DepositRequest) (domain.DepositResult, error) {
	f.gotDeposit = req
	return f.depositResult, f.depositErr
}

type recordedAlert struct {
	Event, Title, Message string
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (r *alertRecorder) Alert(ctx context.Context, event, title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, recordedAlert{event, title, message})
}

func (r *alertRecorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, a.Event)
	}
	return out
}

func (r *alertRecorder) count(event string) int {
	n := 0
	for _, e := range r.events() {
		if e == event {
			n++
		}
	}
	return n
}

type memStore struct {
	mu      sync.Mutex
	created []domain.Rebalance
	updated []domain.Rebalance
}

func (s *memStore) Create(ctx context.Context, r domain.Rebalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, r)
	return nil
}

func (s *memStore) Update(ctx context.Context, r domain.Rebalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, r)
	return nil
}

func (s *memStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Rebalance, error) {
	return nil, nil
}

func (s *memStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Rebalance, error) {
	return nil, nil
}

func (s *memStore) stages() []domain.RebalanceStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RebalanceStage
	for _, r := range s.created {
		out = append(out, r.Stage)
	}
	for _, r := range s.updated {
		out = append(out, r.Stage)
	}
	return out
}

type fakeLocks struct {
	err      error
	acquired int
}

func (f *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return func() {}, nil
}

// --- helpers -------------------------------------------------------------

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPosition() domain.Position {
	return domain.Position{
		ID:       "0xabc",
		LowerBin: 100,
		UpperBin: 110,
		AmountX:  big.NewInt(0),
		AmountY:  big.NewInt(0),
	}
}

type execFixture struct {
	pool      *fakePool
	balances  *fakeBalances
	router    *fakeRouter
	liquidity *fakeLiquidity
	alerts    *alertRecorder
	store     *memStore
	exec      *Executor
}

func newFixture(t *testing.T, cfg Config) *execFixture {
	t.Helper()
	f := &execFixture{
		pool:      &fakePool{activeBin: 120},
		balances:  &fakeBalances{},
		router:    &fakeRouter{},
		liquidity: &fakeLiquidity{},
		alerts:    &alertRecorder{},
		store:     &memStore{},
	}
	f.balances.set(1000, 400)
	f.router.routes = []domain.Route{{
		ID:        "r1",
		AmountIn:  big.NewInt(500),
		AmountOut: big.NewInt(480),
	}}
	f.router.executed = domain.ExecutedRoute{
		RealizedIn:  big.NewInt(500),
		RealizedOut: big.NewInt(478),
		TxRef:       "0xswap",
	}
	f.liquidity.depositResult = domain.DepositResult{
		PositionID: "0xnew",
		TxRef:      "0xdeposit",
		LowerBin:   115,
		UpperBin:   125,
	}

	if cfg.Owner == "" {
		cfg.Owner = "0xowner"
	}
	if cfg.TokenX == "" {
		cfg.TokenX = "0xtokenx"
	}
	if cfg.TokenY == "" {
		cfg.TokenY = "native"
	}
	if cfg.RangeHalfWidth == 0 {
		cfg.RangeHalfWidth = 5
	}
	if cfg.SettleWait == 0 {
		cfg.SettleWait = 50 * time.Second
	}

	f.exec = NewExecutor(cfg, f.pool, f.balances, f.router, f.liquidity,
		f.alerts, f.store, nil, nil, testLogger())
	f.exec.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return f
}

// --- tests ---------------------------------------------------------------

func TestRebalanceFullPipeline(t *testing.T) {
	f := newFixture(t, Config{GasReserve: big.NewInt(70)})

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)

	// Withdraw removed everything and closed the position.
	assert.Equal(t, 10_000, f.liquidity.gotBps)
	assert.True(t, f.liquidity.gotClose)

	// Plan sold half of X (1000 vs 400 at price 1).
	assert.Equal(t, "0xtokenx", f.router.gotRequest.FromAsset)
	assert.Equal(t, int64(500), f.router.gotRequest.Amount.Int64())
	assert.Equal(t, "r1", f.router.gotRoute.ID)

	// Deposit centered on the active bin with the gas reserve held back.
	assert.Equal(t, int32(115), f.liquidity.gotDeposit.LowerBin)
	assert.Equal(t, int32(125), f.liquidity.gotDeposit.UpperBin)
	assert.Equal(t, int64(400-70), f.liquidity.gotDeposit.AmountY.Int64())
	assert.Equal(t, int64(1000), f.liquidity.gotDeposit.AmountX.Int64())

	// Record walked the stages in order, completed, and carries the
	// detection-time active bin.
	stages := f.store.stages()
	require.NotEmpty(t, stages)
	assert.Equal(t, domain.StageWithdrawing, stages[0])
	assert.Equal(t, domain.StageCompleted, stages[len(stages)-1])
	require.NotEmpty(t, f.store.created)
	assert.Equal(t, int32(115), f.store.created[0].ActiveBin)

	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceStart))
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceDone))
	assert.Zero(t, f.alerts.count(notify.EventRebalanceError))
}

func TestRebalanceSkipsSwapWhenPlanIsNil(t *testing.T) {
	f := newFixture(t, Config{})
	// One-sided dust: sell amount rounds to zero, so no swap.
	f.balances.set(1, 0)

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)

	assert.Empty(t, f.router.gotRequest.FromAsset, "router must not be called")
	assert.Equal(t, "0xowner", f.liquidity.gotDeposit.Owner, "deposit still proceeds")
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceDone))
}

func TestRebalanceSlippagePerSurface(t *testing.T) {
	f := newFixture(t, Config{SwapSlippageBps: 80, SlippageBps: 40})

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)

	// Route requests use the aggregator tolerance, deposits their own.
	assert.Equal(t, 80, f.router.gotRequest.SlippageBps)
	assert.Equal(t, 40, f.liquidity.gotDeposit.SlippageBps)
}

func TestRebalanceGasReserveOnlyDocksNativeY(t *testing.T) {
	f := newFixture(t, Config{TokenY: "0xtokeny", GasReserve: big.NewInt(70)})

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)

	// Y is an ERC-20 here: it does not pay for gas, so it deposits in full.
	assert.Equal(t, int64(400), f.liquidity.gotDeposit.AmountY.Int64())
}

func TestRebalanceConcurrentTriggerSkips(t *testing.T) {
	f := newFixture(t, Config{})
	f.liquidity.withdrawEnter = make(chan struct{})
	f.liquidity.withdrawBlock = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	}()

	// Wait until the first run is inside the pipeline, then trigger again.
	<-f.liquidity.withdrawEnter
	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceSkip))

	close(f.liquidity.withdrawBlock)
	require.NoError(t, <-done)

	// Only one pipeline ran.
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceStart))
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceDone))
}

func TestRebalanceLockReleasedAfterFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.router.routes = nil // zero routes is a hard failure

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.ErrorIs(t, err, domain.ErrNoRoute)
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceError))

	stages := f.store.stages()
	assert.Equal(t, domain.StageFailed, stages[len(stages)-1])

	// The lock is free again: a second attempt starts a fresh pipeline.
	f.router.routes = []domain.Route{{ID: "r2", AmountIn: big.NewInt(500), AmountOut: big.NewInt(480)}}
	err = f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 2, f.alerts.count(notify.EventRebalanceStart))
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceDone))
}

func TestRebalanceWithdrawTxFailuresAreBestEffort(t *testing.T) {
	f := newFixture(t, Config{})
	f.liquidity.withdrawResults = []domain.TxResult{
		{Ref: "0x1"},
		{Ref: "0x2", Err: errors.New("chunk reverted")},
		{Ref: "0x3"},
	}

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)

	// One step alert per failed constituent transaction, pipeline completes.
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceDone))
	failures := 0
	for _, a := range f.alerts.alerts {
		if a.Event == notify.EventRebalanceStep && a.Title == "Withdraw transaction failed" {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestRebalanceWithdrawErrorAborts(t *testing.T) {
	f := newFixture(t, Config{})
	f.liquidity.withdrawErr = errors.New("rpc down")

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.Error(t, err)
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceError))
	assert.Empty(t, f.liquidity.gotDeposit.Owner, "deposit must not run")
}

func TestRebalanceCrossProcessLockHeldSkips(t *testing.T) {
	f := newFixture(t, Config{})
	locks := &fakeLocks{err: domain.ErrLockHeld}
	f.exec = NewExecutor(f.exec.cfg, f.pool, f.balances, f.router, f.liquidity,
		f.alerts, f.store, locks, nil, testLogger())
	f.exec.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceSkip))
	assert.Zero(t, f.alerts.count(notify.EventRebalanceStart))
}

func TestRebalanceLockBackendErrorProceeds(t *testing.T) {
	f := newFixture(t, Config{})
	locks := &fakeLocks{err: errors.New("redis unreachable")}
	f.exec = NewExecutor(f.exec.cfg, f.pool, f.balances, f.router, f.liquidity,
		f.alerts, f.store, locks, nil, testLogger())
	f.exec.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.alerts.count(notify.EventRebalanceDone))
}

func TestSettleFixedWait(t *testing.T) {
	f := newFixture(t, Config{SettleWait: 50 * time.Second})

	var slept []time.Duration
	f.exec.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)
	require.Len(t, slept, 1)
	assert.Equal(t, 50*time.Second, slept[0])
}

func TestSettlePollReturnsEarlyOnBalanceGrowth(t *testing.T) {
	f := newFixture(t, Config{SettleWait: 50 * time.Second, SettlePoll: true})

	polls := 0
	f.exec.sleep = func(ctx context.Context, d time.Duration) error {
		polls++
		if polls == 2 {
			// Swap output lands: Y grows past its pre-swap level.
			f.balances.set(500, 900)
		}
		return nil
	}

	err := f.exec.Rebalance(context.Background(), testPosition(), 115, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 2, polls, "poll loop must stop as soon as the bought side settles")
}
