// Package router implements the Execution Router: the central hub that
// consumes order intents from engine threads, runs the eight-layer
// admission cascade, coordinates the OSM, coalescer, throttle, and ledger,
// and talks to the exchange adapter. It is the one component every other
// governor, the queue model, and the event log are wired through.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chimera/internal/coalescer"
	"chimera/internal/core"
	"chimera/internal/eventlog"
	"chimera/internal/federation"
	"chimera/internal/governor"
	"chimera/internal/ledger"
	"chimera/internal/osm"
	"chimera/internal/quant"
	"chimera/internal/queue"
	"chimera/internal/telemetry"
	"chimera/internal/throttle"

	apperrors "chimera/pkg/errors"

	"github.com/shopspring/decimal"
)

// DefaultPollPeriod is the Execution Router's poll sleep between ticks.
const DefaultPollPeriod = 50 * time.Microsecond

// DefaultPurgeEveryTicks bounds how often OSM.PurgeTerminal runs; running it
// every tick would be wasted work against a map that rarely has terminal
// entries to reclaim.
const DefaultPurgeEveryTicks = 20000

// Config bundles every collaborator the Router is wired to at construction.
// Adapter is nil in shadow mode: shadow never touches a live exchange.
type Config struct {
	Symbols     []core.Symbol
	OSM         *osm.OSM
	QueueModel  *queue.Model
	Ledger      *ledger.Ledger
	Cascade     *governor.Cascade
	Edge        *governor.Edge
	QueueDecay  *governor.QueueDecay
	Coalescer   *coalescer.Coalescer
	Throttle    *throttle.Throttle
	EventLog    *eventlog.Writer
	Federation  *federation.Federation
	Telemetry   *telemetry.State
	Adapter     core.ExchangeAdapter
	LiveMode    bool
	Logger      core.ILogger
	PollPeriod  time.Duration
	PurgeEveryN int
}

// Router is the single point of contact between strategy engines and the
// exchange. SubmitOrder is safe to call concurrently from any number of
// engine goroutines; Run's poll loop is meant to own a single pinned
// goroutine (see internal/threadmodel).
type Router struct {
	symbols map[string]core.Symbol

	osm        *osm.OSM
	queueModel *queue.Model
	ledger     *ledger.Ledger
	cascade    *governor.Cascade
	edge       *governor.Edge
	queueDecay *governor.QueueDecay
	coalescer  *coalescer.Coalescer
	throttle   *throttle.Throttle
	eventlog   *eventlog.Writer
	fed        *federation.Federation
	telemetry  *telemetry.State
	adapter    core.ExchangeAdapter
	liveMode   bool
	logger     core.ILogger

	pollPeriod  time.Duration
	purgeEveryN int
	tickCount   int64

	// submitMu serializes the submit pipeline end to end. Engine threads
	// and the router poll loop are cooperatively multiplexed onto one
	// execution core, so a mutex here reproduces the "never two submits
	// interleaved" guarantee without claiming a whole OS thread per engine.
	submitMu sync.Mutex

	// bookMu guards the tiny per-symbol bookkeeping OnMarketTick keeps for
	// the ledger's volatility EWMA; deliberately separate from submitMu so
	// feed-thread ticks never contend with the submit pipeline.
	bookMu    sync.Mutex
	lastMid   map[string]decimal.Decimal
	lastTickNs map[string]int64

	// ackLatency remembers each open order's ACK round-trip time (sampled
	// at ACK time) so it can be folded into the ledger/edge EWMAs once the
	// order's fill arrives.
	ackMu       sync.Mutex
	ackLatencyUs map[string]decimal.Decimal

	lifecycleCh chan core.LifecycleEvent
}

// New builds a Router wired to cfg's collaborators.
func New(cfg Config) *Router {
	symbolIndex := make(map[string]core.Symbol, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbolIndex[s.Name] = s
	}
	pollPeriod := cfg.PollPeriod
	if pollPeriod <= 0 {
		pollPeriod = DefaultPollPeriod
	}
	purgeEveryN := cfg.PurgeEveryN
	if purgeEveryN <= 0 {
		purgeEveryN = DefaultPurgeEveryTicks
	}
	return &Router{
		symbols:      symbolIndex,
		osm:          cfg.OSM,
		queueModel:   cfg.QueueModel,
		ledger:       cfg.Ledger,
		cascade:      cfg.Cascade,
		edge:         cfg.Edge,
		queueDecay:   cfg.QueueDecay,
		coalescer:    cfg.Coalescer,
		throttle:     cfg.Throttle,
		eventlog:     cfg.EventLog,
		fed:          cfg.Federation,
		telemetry:    cfg.Telemetry,
		adapter:      cfg.Adapter,
		liveMode:     cfg.LiveMode,
		logger:       cfg.Logger,
		pollPeriod:   pollPeriod,
		purgeEveryN:  purgeEveryN,
		lastMid:      make(map[string]decimal.Decimal),
		lastTickNs:   make(map[string]int64),
		ackLatencyUs: make(map[string]decimal.Decimal),
		lifecycleCh:  make(chan core.LifecycleEvent, 4096),
	}
}

// OnUserEvent is the core.UserCallback the exchange adapter's user feed is
// wired to. It never blocks the feed thread beyond the channel's buffer: a
// full buffer means the execution thread has fallen dangerously behind, at
// which point backpressure onto the feed thread is the correct failure mode.
// Lifecycle events must be applied in arrival order on the execution thread,
// which this channel hand-off preserves.
func (r *Router) OnUserEvent(ev core.LifecycleEvent) {
	r.lifecycleCh <- ev
}

// OnMarketTick is the core.MarketCallback the exchange adapter's market feed
// is wired to: it updates the queue model, records the tick in the forensic
// log, and folds the tick's bps-per-ms move into the profit ledger's
// per-symbol volatility EWMA.
func (r *Router) OnMarketTick(tick core.MarketTick) {
	r.queueModel.OnBookUpdate(tick.Symbol, tick.Bid, tick.BidQty, tick.Ask, tick.AskQty, tick.TimestampNs)

	if r.eventlog != nil {
		payload := eventlog.MarketTickPayload(tick.Symbol, tick.Bid, tick.BidQty, tick.Ask, tick.AskQty)
		if _, err := r.eventlog.Append(core.EventMarketTick, payload); err != nil {
			r.logger.Error("router: failed to append market tick", "error", err.Error())
		}
	}

	mid := tick.Bid.Add(tick.Ask).Div(decimal.NewFromInt(2))

	r.bookMu.Lock()
	prevMid, hadPrev := r.lastMid[tick.Symbol]
	prevTs := r.lastTickNs[tick.Symbol]
	r.lastMid[tick.Symbol] = mid
	r.lastTickNs[tick.Symbol] = tick.TimestampNs
	r.bookMu.Unlock()

	if hadPrev && tick.TimestampNs > prevTs && !prevMid.IsZero() {
		dtMs := decimal.NewFromInt(tick.TimestampNs - prevTs).Div(decimal.NewFromInt(1_000_000))
		if dtMs.IsPositive() {
			bpsMove := quant.BpsOf(mid.Sub(prevMid), prevMid).Abs()
			r.ledger.OnMarketTick(tick.Symbol, bpsMove.Div(dtMs))
		}
	}
}

// SubmitOrder runs the full nine-step admission pipeline for intent and
// returns the allocated client id on success.
func (r *Router) SubmitOrder(intent core.OrderIntent) (string, error) {
	sym, ok := r.symbols[intent.Symbol]
	if !ok {
		return "", apperrors.ErrInvalidSymbol
	}

	r.submitMu.Lock()
	defer r.submitMu.Unlock()

	if !r.throttle.Allow(intent.Symbol) {
		r.telemetry.IncThrottleBlocks()
		return "", apperrors.ErrThrottled
	}

	if reason := r.cascade.Admit(r.liveMode, intent.EngineID, intent.Symbol, intent.LimitPrice, intent.SignedQuantity); reason != "" {
		r.telemetry.IncRiskBlocks()
		r.logger.Debug("router: submit blocked by cascade", "reason", reason, "engine", intent.EngineID, "symbol", intent.Symbol)
		return "", apperrors.ErrRiskBlocked
	}

	sizeMultiplier := r.cascade.Latency.SizeMultiplier().Mul(r.ledger.Params(intent.EngineID).SizeMultiplier)
	scaledQty := intent.SignedQuantity.Mul(sizeMultiplier)
	normalizedQty := quant.FloorToLot(scaledQty, sym.LotSize)
	if normalizedQty.IsZero() || normalizedQty.Abs().Mul(intent.LimitPrice).LessThan(sym.MinNotional) {
		r.telemetry.IncAdmissionDrops()
		return "", apperrors.ErrBelowMinNotional
	}
	isBuy := normalizedQty.IsPositive()

	if priorClientID, priorRec, found := r.coalescer.FindByEngineSymbol(intent.EngineID, intent.Symbol); found && !priorRec.Price.Equal(intent.LimitPrice) {
		r.cancelPendingLocked(priorClientID)
		r.telemetry.IncCoalescedCancels()
	}

	top := r.queueModel.Top(intent.Symbol)
	fillEst := r.queueModel.Estimate(intent.Symbol, intent.LimitPrice, normalizedQty.Abs(), isBuy)
	ackLatencyUs := r.ledger.P95AckLatencyUs(intent.EngineID)
	_, admit := r.ledger.AdmissionThreshold(intent.EngineID, intent.Symbol, ackLatencyUs, top.SpreadBps(), fillEst.ExpectedFillProbability, intent.PredictedEdgeBps)
	if !admit {
		r.telemetry.IncAdmissionDrops()
		return "", apperrors.ErrAdmissionRejected
	}

	clientID := osm.NextClientID(intent.EngineID)
	rec := core.OrderRecord{
		ClientID:           clientID,
		Symbol:             intent.Symbol,
		Price:              intent.LimitPrice,
		SignedRemainingQty: normalizedQty,
		InitialSignedQty:   normalizedQty,
		EngineID:           intent.EngineID,
	}
	r.osm.OnNew(rec)
	r.coalescer.Submit(clientID, coalescer.Record{EngineID: intent.EngineID, Symbol: intent.Symbol, Price: intent.LimitPrice, Qty: normalizedQty})
	r.edge.OnSubmit(clientID, intent.EngineID, intent.PredictedEdgeBps, fillEst.AheadQty)
	r.ledger.OnSubmit(intent.EngineID)
	r.queueDecay.Track(clientID, intent.Symbol, intent.LimitPrice, isBuy, time.Now())
	r.telemetry.OnSubmit(intent.Symbol)

	if r.eventlog != nil {
		if _, err := r.eventlog.Append(core.EventSubmit, eventlog.SubmitPayload(clientID, intent.Symbol, intent.LimitPrice, normalizedQty)); err != nil {
			r.logger.Error("router: failed to append submit event", "error", err.Error())
		}
	}

	if r.liveMode {
		queued, err := r.adapter.SendOrder(clientID, intent.Symbol, intent.LimitPrice, normalizedQty)
		if err != nil || !queued {
			r.dropNewOrderLocked(clientID)
			if err == nil {
				err = fmt.Errorf("router: adapter declined to queue order %s", clientID)
			}
			return "", err
		}
		return clientID, nil
	}

	// Shadow mode: synthesize the ACK immediately. There is no live
	// exchange round trip, so the order goes straight to ACKED and the
	// poll loop's shadow fill simulator takes it from there.
	exchangeID := "SHADOW-" + clientID
	if err := r.osm.OnAck(clientID, exchangeID); err != nil {
		r.logger.Error("router: shadow ack failed", "client_id", clientID, "error", err.Error())
	}
	if r.eventlog != nil {
		if _, err := r.eventlog.Append(core.EventAck, eventlog.AckPayload(clientID, exchangeID)); err != nil {
			r.logger.Error("router: failed to append shadow ack event", "error", err.Error())
		}
	}
	return clientID, nil
}

// dropNewOrderLocked unwinds the bookkeeping for an order the adapter
// rejected before it ever left the process. Caller must hold submitMu.
func (r *Router) dropNewOrderLocked(clientID string) {
	_ = r.osm.OnReject(clientID)
	r.coalescer.Clear(clientID)
	r.queueDecay.Untrack(clientID)
	r.edge.OnCancel(clientID)
}

// cancelPendingLocked cancels clientID's still-pending order as part of the
// coalescer's cancel-replace protocol. Caller must hold submitMu.
func (r *Router) cancelPendingLocked(clientID string) {
	rec, err := r.osm.Get(clientID)
	if err != nil {
		return
	}
	if r.liveMode {
		if err := r.adapter.CancelOrder(clientID); err != nil {
			r.logger.Warn("router: cancel-replace CancelOrder failed", "client_id", clientID, "error", err.Error())
		}
		return
	}

	if rec.Status == core.StatusNew {
		_ = r.osm.OnCancelByClientID(clientID)
	} else if rec.ExchangeID != "" {
		_ = r.osm.OnCancel(rec.ExchangeID)
	}
	r.coalescer.Clear(clientID)
	r.queueDecay.Untrack(clientID)
	r.edge.OnCancel(clientID)
	r.clearAckLatency(clientID)
	r.telemetry.OnCancel(rec.Symbol)
	if r.eventlog != nil {
		if _, err := r.eventlog.Append(core.EventCancel, eventlog.CancelPayload(clientID)); err != nil {
			r.logger.Error("router: failed to append cancel-replace cancel event", "error", err.Error())
		}
	}
}

func (r *Router) setAckLatency(clientID string, latencyUs decimal.Decimal) {
	r.ackMu.Lock()
	r.ackLatencyUs[clientID] = latencyUs
	r.ackMu.Unlock()
}

func (r *Router) takeAckLatency(clientID string) decimal.Decimal {
	r.ackMu.Lock()
	defer r.ackMu.Unlock()
	v, ok := r.ackLatencyUs[clientID]
	if !ok {
		return decimal.Zero
	}
	delete(r.ackLatencyUs, clientID)
	return v
}

func (r *Router) clearAckLatency(clientID string) {
	r.ackMu.Lock()
	delete(r.ackLatencyUs, clientID)
	r.ackMu.Unlock()
}

// Run blocks, ticking Poll every pollPeriod until ctx is canceled. It is
// meant to be the body handed to threadmodel.PinnedLoop for the execution
// core.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.Poll(ctx)
		time.Sleep(r.pollPeriod)
	}
}

// Poll runs one execution-thread tick: federation sweep, lifecycle event
// drain, periodic purge, queue decay evaluation, and — in shadow mode only —
// the fill simulator.
func (r *Router) Poll(ctx context.Context) {
	r.submitMu.Lock()
	defer r.submitMu.Unlock()

	if r.cascade.PnL.PortfolioKilled() {
		r.fed.Trigger("PORTFOLIO_DD: portfolio drawdown breach")
	}

	if r.fed.Triggered() {
		r.executeCancelSweepLocked(ctx)
	}

	r.drainLifecycleLocked()

	r.tickCount++
	if r.tickCount%int64(r.purgeEveryN) == 0 {
		r.osm.PurgeTerminal()
	}

	r.pollQueueDecayLocked()

	if !r.liveMode {
		r.pollShadowFillsLocked()
	}
}

func (r *Router) drainLifecycleLocked() {
	for {
		select {
		case ev := <-r.lifecycleCh:
			r.handleLifecycleLocked(ev)
		default:
			return
		}
	}
}

func (r *Router) handleLifecycleLocked(ev core.LifecycleEvent) {
	clientID := ev.ClientID
	if clientID == "" && ev.ExchangeID != "" {
		clientID, _ = r.osm.ClientIDFor(ev.ExchangeID)
	}
	if clientID == "" {
		r.logger.Warn("router: lifecycle event with no resolvable client id", "kind", ev.Kind.String())
		return
	}
	rec, err := r.osm.Get(clientID)
	if err != nil {
		r.logger.Warn("router: lifecycle event for unknown order", "client_id", clientID, "kind", ev.Kind.String())
		return
	}
	exchangeID := rec.ExchangeID
	if ev.ExchangeID != "" {
		exchangeID = ev.ExchangeID
	}

	switch ev.Kind {
	case core.EventAck:
		r.handleAckLocked(clientID, exchangeID, rec)
	case core.EventFill:
		r.handleFillLocked(clientID, exchangeID, rec, ev)
	case core.EventCancel:
		r.handleTerminalLocked(clientID, exchangeID, rec, core.EventCancel)
	case core.EventReject:
		r.handleTerminalLocked(clientID, exchangeID, rec, core.EventReject)
	default:
		r.logger.Warn("router: unrecognized lifecycle event kind", "kind", ev.Kind.String())
	}
}

func (r *Router) handleAckLocked(clientID, exchangeID string, rec core.OrderRecord) {
	if err := r.osm.OnAck(clientID, exchangeID); err != nil {
		r.logger.Error("router: OnAck failed", "client_id", clientID, "error", err.Error())
		return
	}
	latencyUs := decimal.NewFromInt(time.Now().UnixNano() - rec.LastUpdateTimestampNs).Div(decimal.NewFromInt(1000))
	if latencyUs.IsNegative() {
		latencyUs = decimal.Zero
	}
	r.setAckLatency(clientID, latencyUs)
	r.cascade.Latency.OnAck(latencyUs)

	if r.eventlog != nil {
		if _, err := r.eventlog.Append(core.EventAck, eventlog.AckPayload(clientID, exchangeID)); err != nil {
			r.logger.Error("router: failed to append ack event", "error", err.Error())
		}
	}
}

func (r *Router) handleFillLocked(clientID, exchangeID string, rec core.OrderRecord, ev core.LifecycleEvent) {
	if err := r.osm.OnFill(exchangeID, ev.FilledQty); err != nil {
		r.logger.Error("router: OnFill failed", "client_id", clientID, "error", err.Error())
		return
	}

	netBps, netUSD := r.fillEconomics(rec, ev.FilledQty, ev.FillPrice)
	ackLatencyUs := r.takeAckLatency(clientID)

	r.ledger.OnFill(rec.EngineID, netBps, netUSD, ackLatencyUs, time.Now().UnixNano())
	r.edge.OnFill(clientID, netBps, ackLatencyUs)
	r.cascade.Desk.OnFill(rec.EngineID, netBps)
	r.cascade.PnL.OnFill(rec.EngineID, netBps, netUSD)
	if r.ledger.Killed(rec.EngineID) {
		r.cascade.PnL.BlockEngine(rec.EngineID)
	}

	signedFill := ev.FilledQty.Abs()
	if !rec.IsBuy() {
		signedFill = signedFill.Neg()
	}
	r.cascade.Risk.OnExecutionAck(rec.Symbol, signedFill)

	r.telemetry.IncLiveFills()
	r.telemetry.OnFill(rec.Symbol)

	if r.eventlog != nil {
		if _, err := r.eventlog.Append(core.EventFill, eventlog.FillPayload(clientID, ev.FilledQty, ev.FillPrice)); err != nil {
			r.logger.Error("router: failed to append fill event", "error", err.Error())
		}
	}

	if updated, err := r.osm.Get(clientID); err == nil && updated.Status.IsTerminal() {
		r.coalescer.Clear(clientID)
		r.queueDecay.Untrack(clientID)
		r.clearAckLatency(clientID)
	}
}

// fillEconomics estimates the realized edge (bps, vs the book mid at fill
// time) and net USD PnL of a fill. This is necessarily approximate without
// a full cost-basis ledger; it is consistent with the bps convention the
// rest of the profit ledger uses.
func (r *Router) fillEconomics(rec core.OrderRecord, filledQty, fillPrice decimal.Decimal) (netBps, netUSD decimal.Decimal) {
	mid := r.queueModel.Top(rec.Symbol).Mid()
	if mid.IsZero() {
		mid = fillPrice
	}
	side := decimal.NewFromInt(1)
	if !rec.IsBuy() {
		side = decimal.NewFromInt(-1)
	}
	netBps = quant.BpsOf(mid.Sub(fillPrice).Mul(side), mid)
	netUSD = netBps.Div(decimal.NewFromInt(10000)).Mul(fillPrice).Mul(filledQty.Abs())
	return netBps, netUSD
}

func (r *Router) handleTerminalLocked(clientID, exchangeID string, rec core.OrderRecord, kind core.EventType) {
	var err error
	switch {
	case rec.Status == core.StatusNew:
		err = r.osm.OnCancelByClientID(clientID)
	case kind == core.EventCancel:
		err = r.osm.OnCancel(exchangeID)
	default:
		err = r.osm.OnReject(clientID)
	}
	if err != nil {
		r.logger.Error("router: terminal transition failed", "client_id", clientID, "kind", kind.String(), "error", err.Error())
	}

	r.edge.OnCancel(clientID)
	r.ledger.OnCancel(rec.EngineID)
	r.coalescer.Clear(clientID)
	r.queueDecay.Untrack(clientID)
	r.clearAckLatency(clientID)

	if kind == core.EventCancel {
		r.telemetry.OnCancel(rec.Symbol)
	} else {
		r.telemetry.OnReject(rec.Symbol)
	}

	if r.eventlog != nil {
		var payload []byte
		if kind == core.EventCancel {
			payload = eventlog.CancelPayload(clientID)
		} else {
			payload = eventlog.RejectPayload(clientID)
		}
		if _, err := r.eventlog.Append(kind, payload); err != nil {
			r.logger.Error("router: failed to append terminal event", "kind", kind.String(), "error", err.Error())
		}
	}
}

func (r *Router) pollQueueDecayLocked() {
	now := time.Now()
	for _, entry := range r.queueDecay.Snapshot() {
		rec, err := r.osm.Get(entry.ClientID)
		if err != nil || !rec.Status.IsOpen() {
			r.queueDecay.Untrack(entry.ClientID)
			continue
		}
		fillEst := r.queueModel.Estimate(entry.Symbol, entry.Price, rec.SignedRemainingQty.Abs(), entry.IsBuy)
		ackLatencyUs := r.ledger.P95AckLatencyUs(rec.EngineID)
		r.queueDecay.Evaluate(entry, fillEst.ExpectedFillProbability, ackLatencyUs, now)
	}
}

// pollShadowFillsLocked implements the deterministic shadow fill rule: a
// pending order fills on the first poll at which its expected fill
// probability clears the engine's soft_ttl_fill_prob threshold.
func (r *Router) pollShadowFillsLocked() {
	for _, clientID := range r.coalescer.PendingKeys() {
		pending, ok := r.coalescer.Get(clientID)
		if !ok {
			continue
		}
		rec, err := r.osm.Get(clientID)
		if err != nil || !rec.Status.IsOpen() || rec.Status == core.StatusNew {
			continue
		}

		fillEst := r.queueModel.Estimate(pending.Symbol, rec.Price, rec.SignedRemainingQty.Abs(), rec.IsBuy())
		threshold := r.ledger.Params(rec.EngineID).SoftTTLFillProb
		if fillEst.ExpectedFillProbability.GreaterThanOrEqual(threshold) {
			r.applyShadowFillLocked(clientID, rec)
		}
	}
}

func (r *Router) applyShadowFillLocked(clientID string, rec core.OrderRecord) {
	filledQty := rec.SignedRemainingQty.Abs()
	fillPrice := rec.Price

	if err := r.osm.OnFill(rec.ExchangeID, filledQty); err != nil {
		r.logger.Error("router: shadow OnFill failed", "client_id", clientID, "error", err.Error())
		return
	}

	netBps, netUSD := r.fillEconomics(rec, filledQty, fillPrice)
	r.ledger.OnFill(rec.EngineID, netBps, netUSD, decimal.Zero, time.Now().UnixNano())
	r.edge.OnFill(clientID, netBps, decimal.Zero)
	r.cascade.Desk.OnFill(rec.EngineID, netBps)
	r.cascade.PnL.OnFill(rec.EngineID, netBps, netUSD)
	if r.ledger.Killed(rec.EngineID) {
		r.cascade.PnL.BlockEngine(rec.EngineID)
	}

	signedFill := filledQty
	if !rec.IsBuy() {
		signedFill = signedFill.Neg()
	}
	r.cascade.Risk.OnExecutionAck(rec.Symbol, signedFill)

	r.telemetry.IncShadowFills()
	r.telemetry.OnFill(rec.Symbol)

	r.coalescer.Clear(clientID)
	r.queueDecay.Untrack(clientID)

	if r.eventlog != nil {
		if _, err := r.eventlog.Append(core.EventFill, eventlog.FillPayload(clientID, filledQty, fillPrice)); err != nil {
			r.logger.Error("router: failed to append shadow fill event", "error", err.Error())
		}
	}
}

// executeCancelSweepLocked implements the Cancel Federation sweep: cancel
// every open order, clear the coalescer, and drift-kill the system. Caller
// must hold submitMu.
func (r *Router) executeCancelSweepLocked(ctx context.Context) {
	reason := r.fed.Reason()
	r.logger.Warn("router: executing cancel federation sweep", "reason", reason)

	for _, clientID := range r.osm.OpenClientIDs() {
		rec, err := r.osm.Get(clientID)
		if err != nil {
			continue
		}
		if r.liveMode {
			if err := r.adapter.CancelOrder(clientID); err != nil {
				r.logger.Warn("router: cancel federation CancelOrder failed", "client_id", clientID, "error", err.Error())
			}
		} else if rec.Status == core.StatusNew {
			_ = r.osm.OnCancelByClientID(clientID)
		} else if rec.ExchangeID != "" {
			_ = r.osm.OnCancel(rec.ExchangeID)
		}
		r.coalescer.Clear(clientID)
		r.queueDecay.Untrack(clientID)
		r.clearAckLatency(clientID)
	}

	r.cascade.Risk.Drift("CANCEL_FED: " + reason)
}
