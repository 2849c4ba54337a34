package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lpwatch/rangekeeper/internal/domain"
	"github.com/lpwatch/rangekeeper/internal/notify"
)

// Rebalancer runs the full withdraw-swap-settle-deposit pipeline for one
// position. Implemented by the rebalance package.
type Rebalancer interface {
	Rebalance(ctx context.Context, pos domain.Position, activeBin int32, price float64) error
}

// Monitor drives periodic check cycles and serves the on-demand status
// query. Cycles run from a single goroutine, so tracker state is never
// mutated concurrently; only the executor's own lock guards the rebalance
// pipeline.
type Monitor struct {
	pool       domain.PoolClient
	tracker    *Tracker
	rebalancer Rebalancer // nil in monitor-only mode
	alerts     domain.Alerter
	binCache   domain.BinCache  // optional
	pub        domain.Publisher // optional dashboard feed
	owner      string
	poolID     string
	interval   time.Duration
	logger     *slog.Logger
}

// binUpdate is the payload published on the bins channel after each cycle.
type binUpdate struct {
	PoolID    string    `json:"pool_id"`
	ActiveBin int32     `json:"active_bin"`
	Price     float64   `json:"price"`
	Ts        time.Time `json:"ts"`
}

// New creates a Monitor. rebalancer, binCache, and pub may be nil.
func New(
	pool domain.PoolClient,
	tracker *Tracker,
	rebalancer Rebalancer,
	alerts domain.Alerter,
	binCache domain.BinCache,
	pub domain.Publisher,
	owner string,
	poolID string,
	interval time.Duration,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		pool:       pool,
		tracker:    tracker,
		rebalancer: rebalancer,
		alerts:     alerts,
		binCache:   binCache,
		pub:        pub,
		owner:      owner,
		poolID:     poolID,
		interval:   interval,
		logger:     logger.With(slog.String("component", "monitor")),
	}
}

// Run executes one immediate check cycle and then repeats on the configured
// interval until the context is cancelled. An in-flight cycle finishes
// before Run returns.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.InfoContext(ctx, "monitor started",
		slog.Duration("interval", m.interval),
		slog.String("owner", m.owner),
	)
	defer m.logger.Info("monitor stopped")

	m.RunCycle(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle performs one synchronous check pass: fetch positions and active
// bin, evaluate each position, and on an exit transition run the rebalance
// pipeline before moving to the next position. A query failure aborts the
// cycle with an error alert and leaves all tracker state untouched.
func (m *Monitor) RunCycle(ctx context.Context) {
	start := time.Now()

	activeBin, err := m.pool.ActiveBin(ctx)
	if err != nil {
		m.alerts.Alert(ctx, notify.EventQueryError,
			"Range check failed",
			fmt.Sprintf("active bin query: %v", err),
		)
		return
	}

	price, err := m.pool.ReferencePrice(ctx)
	if err != nil {
		m.alerts.Alert(ctx, notify.EventQueryError,
			"Range check failed",
			fmt.Sprintf("reference price query: %v", err),
		)
		return
	}

	positions, err := m.pool.ListPositions(ctx, m.owner)
	if err != nil {
		m.alerts.Alert(ctx, notify.EventQueryError,
			"Range check failed",
			fmt.Sprintf("position query: %v", err),
		)
		return
	}

	if m.binCache != nil {
		if err := m.binCache.SetActiveBin(ctx, m.poolID, activeBin, price, start.UTC()); err != nil {
			m.logger.DebugContext(ctx, "bin cache update failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if m.pub != nil {
		update := binUpdate{
			PoolID:    m.poolID,
			ActiveBin: activeBin,
			Price:     price,
			Ts:        start.UTC(),
		}
		if err := m.pub.Publish(ctx, "bins", update); err != nil {
			m.logger.DebugContext(ctx, "bin update publish failed",
				slog.String("error", err.Error()),
			)
		}
	}

	live := make(map[string]bool, len(positions))
	for _, pos := range positions {
		live[pos.ID] = true

		transition := m.tracker.Evaluate(ctx, pos, activeBin)
		if transition != domain.TransitionExited || m.rebalancer == nil {
			continue
		}

		if err := m.rebalancer.Rebalance(ctx, pos, activeBin, price); err != nil {
			// The executor has already alerted; the next cycle re-detects
			// the out-of-range condition and retries from scratch.
			m.logger.WarnContext(ctx, "rebalance failed",
				slog.String("position", pos.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	m.tracker.Forget(live)

	m.logger.InfoContext(ctx, "cycle complete",
		slog.Int("positions", len(positions)),
		slog.Int("active_bin", int(activeBin)),
		slog.Duration("took", time.Since(start)),
	)
}

// Status classifies every currently held position against a freshly fetched
// active bin. It does not consult or mutate the tracker's stored state.
func (m *Monitor) Status(ctx context.Context) ([]domain.PositionRangeView, error) {
	activeBin, err := m.pool.ActiveBin(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitor: status: active bin: %w", err)
	}

	positions, err := m.pool.ListPositions(ctx, m.owner)
	if err != nil {
		return nil, fmt.Errorf("monitor: status: positions: %w", err)
	}

	views := make([]domain.PositionRangeView, 0, len(positions))
	for _, pos := range positions {
		views = append(views, domain.PositionRangeView{
			ID:        pos.ID,
			LowerBin:  pos.LowerBin,
			UpperBin:  pos.UpperBin,
			ActiveBin: activeBin,
			InRange:   pos.Contains(activeBin),
			Distance:  pos.BinDistance(activeBin),
			AmountX:   pos.AmountX.String(),
			AmountY:   pos.AmountY.String(),
		})
	}
	return views, nil
}
