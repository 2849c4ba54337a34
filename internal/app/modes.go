package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lpwatch/rangekeeper/internal/domain"
	"github.com/lpwatch/rangekeeper/internal/monitor"
	"github.com/lpwatch/rangekeeper/internal/rebalance"
	"github.com/lpwatch/rangekeeper/internal/server"
	"github.com/lpwatch/rangekeeper/internal/server/handler"
	"github.com/lpwatch/rangekeeper/internal/server/ws"
)

// MonitorMode watches positions and sends range alerts without ever touching
// the wallet.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runWatch(ctx, deps, nil)
}

// AutoMode watches positions and runs the rebalance pipeline whenever a
// position exits its range.
func (a *App) AutoMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting auto mode")

	exec := rebalance.NewExecutor(rebalance.Config{
		Owner:           deps.Owner(a.cfg),
		TokenX:          a.cfg.Pool.TokenX,
		TokenY:          a.cfg.Pool.TokenY,
		RangeHalfWidth:  int32(a.cfg.Rebalance.RangeHalfWidth),
		SwapSlippageBps: a.cfg.Aggregator.SlippageBps,
		SettleWait:      a.cfg.Rebalance.SettleWait.Duration,
		SettlePoll:      a.cfg.Rebalance.SettlePoll,
		GasReserve:      gasReserveBase(a.cfg.Rebalance.GasReserve),
		SlippageBps:     a.cfg.Rebalance.SlippageBps,
	},
		deps.Pool, deps.Pool, deps.Router, deps.Pool,
		deps.Alerter, deps.RebalanceStore, deps.LockManager, publisher(deps),
		a.logger,
	)

	return a.runWatch(ctx, deps, exec)
}

// StatusMode performs a single range check and prints the result as JSON to
// stdout.
func (a *App) StatusMode(ctx context.Context, deps *Dependencies) error {
	mon := a.buildMonitor(deps, nil)

	views, err := mon.Status(ctx)
	if err != nil {
		return fmt.Errorf("app: status: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

// runWatch starts the monitor loop plus the HTTP/WS server and archiver when
// configured, and blocks until the context is cancelled.
func (a *App) runWatch(ctx context.Context, deps *Dependencies, rebalancer monitor.Rebalancer) error {
	mon := a.buildMonitor(deps, rebalancer)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mon.Run(ctx)
	})

	if a.cfg.Server.Port > 0 {
		var hub *ws.Hub
		if deps.Bus != nil {
			hub = ws.NewHub(deps.Bus, a.logger)
			g.Go(func() error {
				return hub.Run(ctx)
			})
		}

		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, server.Handlers{
			Health:     handler.NewHealthHandler(),
			Status:     handler.NewStatusHandler(a.cfg.Mode, mon, time.Now().UTC()),
			Positions:  handler.NewPositionHandler(mon),
			Rebalances: handler.NewRebalanceHandler(deps.RebalanceStore),
			Alerts:     handler.NewAlertHandler(deps.AlertStore),
		}, hub, a.logger)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			deps.Archiver.Run(ctx, a.cfg.S3.ArchiveAfter.Duration)
			return nil
		})
	}

	return g.Wait()
}

// buildMonitor assembles the monitor with its tracker and optional
// collaborators.
func (a *App) buildMonitor(deps *Dependencies, rebalancer monitor.Rebalancer) *monitor.Monitor {
	tracker := monitor.NewTracker(deps.Alerter, a.logger)
	return monitor.New(
		deps.Pool,
		tracker,
		rebalancer,
		deps.Alerter,
		deps.BinCache,
		publisher(deps),
		deps.Owner(a.cfg),
		a.cfg.Monitor.PoolID,
		a.cfg.Monitor.Interval.Duration,
		a.logger,
	)
}

func publisher(deps *Dependencies) domain.Publisher {
	if deps.Bus == nil {
		return nil
	}
	return deps.Bus
}
