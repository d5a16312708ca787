// Package app wires every collaborator of the execution and safety spine
// into a single root value, constructed once at process start. Every other
// component — the router, the truth loop, the auto-tuner, the reference
// engines — holds a non-owning reference into this value; nothing downstream
// constructs its own copy of shared state.
package app

import (
	"context"
	"fmt"
	"time"

	"chimera/internal/coalescer"
	"chimera/internal/config"
	"chimera/internal/core"
	"chimera/internal/eventlog"
	"chimera/internal/exchangeadapter"
	"chimera/internal/federation"
	"chimera/internal/governor"
	"chimera/internal/ledger"
	"chimera/internal/osm"
	"chimera/internal/queue"
	"chimera/internal/router"
	"chimera/internal/snapshot"
	"chimera/internal/telemetry"
	"chimera/internal/threadmodel"
	"chimera/internal/throttle"
	"chimera/internal/truth"

	"github.com/shopspring/decimal"
)

// App is the process's single root value.
type App struct {
	Cfg    *config.Config
	Logger core.ILogger

	Symbols   []core.Symbol
	EngineIDs []string

	OSM        *osm.OSM
	QueueModel *queue.Model
	Ledger     *ledger.Ledger
	Cascade    *governor.Cascade
	Edge       *governor.Edge
	QueueDecay *governor.QueueDecay
	Coalescer  *coalescer.Coalescer
	Throttle   *throttle.Throttle
	EventLog   *eventlog.Writer
	Federation *federation.Federation
	Telemetry  *telemetry.State
	Adapter    core.ExchangeAdapter
	Router     *router.Router
	TruthLoop  *truth.Loop
	AutoTuner  *ledger.AutoTuner
	Pool       *threadmodel.WorkerPool

	liveMode bool
}

// New constructs every component per cfg and wires them together. None of
// the loops (router, feeds, engines, truth loop, auto-tuner) has started
// yet; the caller starts each of them.
func New(cfg *config.Config, logger core.ILogger) (*App, error) {
	liveMode := cfg.App.Mode == "live"

	symbols := make([]core.Symbol, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols = append(symbols, core.Symbol{
			Name:             s.Name,
			TickSize:         decimal.NewFromFloat(s.TickSize),
			LotSize:          decimal.NewFromFloat(s.LotSize),
			MinNotional:      decimal.NewFromFloat(s.MinNotional),
			PriceDecimals:    s.PriceDecimals,
			QuantityDecimals: s.QuantityDecimals,
			MaxPosition:      decimal.NewFromFloat(s.MaxPosition),
		})
	}

	fed := federation.New()
	osmStore := osm.New()
	queueModel := queue.NewModel()

	pnl := governor.NewPnL(
		decimal.NewFromFloat(cfg.Governors.StrategyFloorUSD),
		decimal.NewFromFloat(cfg.Governors.PortfolioDDUSD),
	)
	cascade := &governor.Cascade{
		Arm:     governor.NewArm(cfg.Governors.MinArmSeconds),
		Risk:    governor.NewRisk(symbols, decimal.NewFromFloat(cfg.Governors.PortfolioNotionalCap), fed),
		PnL:     pnl,
		Desk:    governor.NewDesk(fed),
		Latency: governor.NewLatency(fed),
	}
	var engineIDs []string
	for deskID, deskEngineIDs := range cfg.Desks {
		for _, engineID := range deskEngineIDs {
			cascade.Desk.Register(engineID, deskID)
			engineIDs = append(engineIDs, engineID)
		}
	}

	led := ledger.New(ledger.Config{
		FeeBps:                 cfg.Ledger.FeeBps,
		SafetyMultiplier:       cfg.Ledger.SafetyMultiplier,
		DefaultVolatilityBpsMs: cfg.Ledger.DefaultVolatilityBpsMs,
		KillFloorBps:           cfg.Ledger.KillFloorBps,
		KillSustainSeconds:     cfg.Ledger.KillSustainSeconds,
		KillMinFills:           cfg.Ledger.KillMinFills,
	})
	for _, engineID := range engineIDs {
		led.RegisterEngine(engineID)
	}

	edge := governor.NewEdge(pnl)
	queueDecay := governor.NewQueueDecay(
		cfg.Governors.HardTTLSeconds, cfg.Governors.SoftTTLSeconds,
		decimal.NewFromFloat(cfg.Governors.UrgencyThreshold), fed,
	)
	coal := coalescer.New()
	thr := throttle.New(cfg.Throttle.GlobalPerSecond, cfg.Throttle.SymbolPerSecond)
	telem := telemetry.NewState()

	causalStart, wasArmed := restoreSnapshot(cfg, osmStore, queueModel, coal, led, cascade.Risk, logger)

	elog, err := eventlog.NewWriter(cfg.EventLog.Path, cfg.EventLog.MaxSizeBytes, cfg.EventLog.CompressRotated, causalStart, logger)
	if err != nil {
		return nil, fmt.Errorf("app: open event log: %w", err)
	}

	cascade.Arm.RestoreFromSnapshot(wasArmed)

	var adapter core.ExchangeAdapter = exchangeadapter.NewMockAdapter()

	r := router.New(router.Config{
		Symbols:    symbols,
		OSM:        osmStore,
		QueueModel: queueModel,
		Ledger:     led,
		Cascade:    cascade,
		Edge:       edge,
		QueueDecay: queueDecay,
		Coalescer:  coal,
		Throttle:   thr,
		EventLog:   elog,
		Federation: fed,
		Telemetry:  telem,
		Adapter:    adapter,
		LiveMode:   liveMode,
		Logger:     logger,
	})

	truthInterval, err := time.ParseDuration(cfg.System.TruthLoopInterval)
	if err != nil {
		return nil, fmt.Errorf("app: parse truth_loop_interval: %w", err)
	}
	truthLoop := truth.NewLoop(adapter, osmStore, fed, logger, truthInterval, liveMode, func(symbol string, pos core.ExchangePosition) {
		cascade.Risk.Reconcile(symbol, pos.SignedQuantity)
	})

	autoTuner, err := ledger.NewAutoTuner(led, cfg.Ledger.AutoTuneIntervalCron, logger)
	if err != nil {
		return nil, fmt.Errorf("app: build auto-tuner: %w", err)
	}

	pool := threadmodel.NewWorkerPool(threadmodel.PoolConfig{
		Name:        "reference-engines",
		MaxWorkers:  len(symbols) + 1,
		MaxCapacity: 256,
	}, logger)

	return &App{
		Cfg:        cfg,
		Logger:     logger,
		Symbols:    symbols,
		EngineIDs:  engineIDs,
		OSM:        osmStore,
		QueueModel: queueModel,
		Ledger:     led,
		Cascade:    cascade,
		Edge:       edge,
		QueueDecay: queueDecay,
		Coalescer:  coal,
		Throttle:   thr,
		EventLog:   elog,
		Federation: fed,
		Telemetry:  telem,
		Adapter:    adapter,
		Router:     r,
		TruthLoop:  truthLoop,
		AutoTuner:  autoTuner,
		Pool:       pool,
		liveMode:   liveMode,
	}, nil
}

// restoreSnapshot loads cfg.Snapshot.Path if present and repopulates the
// OSM, queue model, and coalescer from it. A missing or corrupt snapshot is
// treated as a cold boot, not a fatal error.
func restoreSnapshot(cfg *config.Config, osmStore *osm.OSM, queueModel *queue.Model, coal *coalescer.Coalescer, led *ledger.Ledger, risk *governor.Risk, logger core.ILogger) (causalID uint64, wasArmed bool) {
	snap, err := snapshot.Load(cfg.Snapshot.Path)
	if err != nil {
		logger.Info("app: no usable snapshot, cold booting", "path", cfg.Snapshot.Path, "error", err.Error())
		return 0, false
	}
	logger.Info("app: loading snapshot", "path", cfg.Snapshot.Path, "snapshot_id", snap.Body.SnapshotID)

	for _, rec := range snap.Body.OpenOrders {
		osmStore.RestoreOrder(rec)
	}
	for _, p := range snap.Body.Positions {
		risk.Reconcile(p.Symbol, p.Qty)
	}
	queueModel.Restore(snap.Body.Books)
	for _, p := range snap.Body.PendingCoalesced {
		coal.Submit(p.ClientID, p.Record)
	}
	for _, es := range snap.Body.Engines {
		led.RegisterEngine(es.EngineID)
		led.RestoreParams(es.EngineID, ledger.EngineParams{
			MinEdgeBps:      es.MinEdgeBps,
			SizeMultiplier:  es.SizeMultiplier,
			SoftTTLFillProb: es.SoftTTLFillProb,
		})
	}
	logger.Info("app: restored from snapshot", "path", cfg.Snapshot.Path, "causal_id", snap.Body.CausalID, "open_orders", len(snap.Body.OpenOrders))
	return snap.Body.CausalID, snap.Body.WasArmed
}

// SaveSnapshot serializes the process's restart-relevant state to
// cfg.Snapshot.Path. cmd/chimera calls it on a timer while the loops run and
// once more after every pinned loop has joined; never from signal-handling
// context.
func (a *App) SaveSnapshot() error {
	body := snapshot.Body{
		Positions:        positionEntries(a.Cascade.Risk),
		OpenOrders:       a.OSM.DumpOrders(),
		Books:            a.QueueModel.Dump(),
		PendingCoalesced: pendingEntries(a.Coalescer),
		CausalID:         a.EventLog.CausalID(),
		// Only ARMED/VERIFIED count as "was armed": restoring ARM_REQUESTED
		// as ARMED would let a restart skip the remainder of the arm
		// time-lock the operator hasn't actually cleared yet.
		WasArmed: a.Cascade.Arm.State() == governor.Armed || a.Cascade.Arm.State() == governor.Verified,
	}
	for _, engineID := range a.EngineIDs {
		body.Engines = append(body.Engines, engineState(engineID, a))
	}
	return snapshot.Save(a.Cfg.Snapshot.Path, body)
}

func positionEntries(r *governor.Risk) []snapshot.PositionEntry {
	positions := r.Positions()
	out := make([]snapshot.PositionEntry, 0, len(positions))
	for symbol, qty := range positions {
		out = append(out, snapshot.PositionEntry{Symbol: symbol, Qty: qty})
	}
	return out
}

func pendingEntries(c *coalescer.Coalescer) []snapshot.PendingEntry {
	out := make([]snapshot.PendingEntry, 0)
	for _, clientID := range c.PendingKeys() {
		rec, ok := c.Get(clientID)
		if !ok {
			continue
		}
		out = append(out, snapshot.PendingEntry{ClientID: clientID, Record: rec})
	}
	return out
}

func engineState(engineID string, a *App) snapshot.EngineState {
	p := a.Ledger.Params(engineID)
	return snapshot.EngineState{
		EngineID:        engineID,
		MinEdgeBps:      p.MinEdgeBps,
		SizeMultiplier:  p.SizeMultiplier,
		SoftTTLFillProb: p.SoftTTLFillProb,
	}
}

// Runner is anything with a blocking Run(ctx) — the shape every pinned loop
// and auxiliary goroutine in this process shares.
type Runner interface {
	Run(ctx context.Context)
}
