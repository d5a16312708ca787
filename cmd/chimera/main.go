// Command chimera runs the execution and safety spine: the Execution
// Router, the full admission cascade, the Exchange Truth Loop, the Profit
// Ledger's auto-tuner, and a set of reference strategy engines, wired
// together per the configuration file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chimera/internal/app"
	"chimera/internal/config"
	"chimera/internal/core"
	"chimera/internal/engine"
	"chimera/internal/threadmodel"
	"chimera/pkg/logging"
	"chimera/pkg/retry"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/chimera.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chimera version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.System.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting chimera", "version", version, "mode", cfg.App.Mode, "instance_id", cfg.App.InstanceID)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire application", "error", err.Error())
		os.Exit(1)
	}

	if err := runColdStartGate(a); err != nil {
		logger.Fatal("cold-start reconciliation gate failed", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		threadmodel.PinnedLoop(ctx, threadmodel.RoleFeed, cfg.System.FeedCore, logger, func(c context.Context) {
			if err := a.Adapter.RunMarket(c, a.Router.OnMarketTick); err != nil && c.Err() == nil {
				logger.Warn("market feed loop exited", "error", err.Error())
			}
		})
		return nil
	})

	g.Go(func() error {
		threadmodel.PinnedLoop(ctx, threadmodel.RoleFeed, cfg.System.FeedCore, logger, func(c context.Context) {
			if err := a.Adapter.RunUser(c, a.Router.OnUserEvent); err != nil && c.Err() == nil {
				logger.Warn("user feed loop exited", "error", err.Error())
			}
		})
		return nil
	})

	g.Go(func() error {
		threadmodel.PinnedLoop(ctx, threadmodel.RoleExecution, cfg.System.ExecutionCore, logger, a.Router.Run)
		return nil
	})

	for _, symbol := range a.Symbols {
		ref := engine.NewReferenceEngine(
			"ref_"+symbol.Name, []string{symbol.Name}, a.QueueModel, a.Router,
			decimal.NewFromFloat(0.001), decimal.NewFromFloat(6.0), 250*time.Millisecond, logger, a.Pool,
		)
		g.Go(func() error {
			threadmodel.PinnedLoop(ctx, threadmodel.RoleExecution, cfg.System.ExecutionCore, logger, ref.Run)
			return nil
		})
	}

	g.Go(func() error {
		threadmodel.Unpinned(ctx, logger, a.TruthLoop.Run)
		return nil
	})

	a.AutoTuner.Start()

	snapshotInterval, err := parseCronInterval(cfg.Snapshot.Interval)
	if err != nil {
		logger.Warn("could not parse snapshot interval, defaulting to 30s", "interval", cfg.Snapshot.Interval, "error", err.Error())
		snapshotInterval = 30 * time.Second
	}
	g.Go(func() error {
		threadmodel.Unpinned(ctx, logger, func(c context.Context) {
			runPeriodicSnapshots(c, a, snapshotInterval, logger)
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("chimera stopped with error", "error", err.Error())
	}

	a.AutoTuner.Stop()
	a.Pool.Stop()

	if err := a.SaveSnapshot(); err != nil {
		logger.Error("final snapshot save failed", "error", err.Error())
	}
	if err := a.EventLog.Close(); err != nil {
		logger.Error("event log close failed", "error", err.Error())
	}

	logger.Info("chimera shut down gracefully")
}

func newLogger(levelStr string) (core.ILogger, error) {
	return logging.NewZapLogger(levelStr)
}

// runColdStartGate, in live mode, refuses to let the process start until a
// position pull and an open-order pull have both succeeded; non-zero
// exchange positions are folded into the Risk governor. Open orders found on
// the exchange are only logged: they are not checked against the OSM and do
// not stop the start. In shadow mode there is nothing to reconcile, so the
// gate passes immediately.
func runColdStartGate(a *app.App) error {
	if a.Cfg.App.Mode != "live" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var positions []core.ExchangePosition
	if err := retry.Do(ctx, retry.RESTOncePolicy, func(error) bool { return true }, func() error {
		p, err := a.Adapter.GetAllPositions(ctx)
		positions = p
		return err
	}); err != nil {
		return fmt.Errorf("cold-start gate: fetch positions: %w", err)
	}
	for _, p := range positions {
		if !p.SignedQuantity.IsZero() {
			a.Cascade.Risk.Reconcile(p.Symbol, p.SignedQuantity)
		}
	}

	var orders []core.ExchangeOrder
	if err := retry.Do(ctx, retry.RESTOncePolicy, func(error) bool { return true }, func() error {
		o, err := a.Adapter.GetAllOpenOrders(ctx)
		orders = o
		return err
	}); err != nil {
		return fmt.Errorf("cold-start gate: fetch open orders: %w", err)
	}
	if len(orders) > 0 {
		a.Logger.Warn("cold-start gate: exchange reports open orders predating this process", "count", len(orders))
	}
	return nil
}

func runPeriodicSnapshots(ctx context.Context, a *app.App, interval time.Duration, logger core.ILogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.SaveSnapshot(); err != nil {
				logger.Error("periodic snapshot save failed", "error", err.Error())
			}
		}
	}
}

// parseCronInterval accepts either a Go duration ("30s") or a cron
// "@every <duration>" spec, both of which configs/chimera.yaml may use for
// snapshot.interval.
func parseCronInterval(spec string) (time.Duration, error) {
	const prefix = "@every "
	if len(spec) > len(prefix) && spec[:len(prefix)] == prefix {
		return time.ParseDuration(spec[len(prefix):])
	}
	return time.ParseDuration(spec)
}
