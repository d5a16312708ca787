// Package ledger implements the Profit Ledger & Cost Model: per-engine EV
// tracking, the admission-threshold cost formula, the sustained-loss kill
// rule, and the auto-tuner that adapts each engine's admission parameters.
package ledger

import (
	"sync"

	"chimera/internal/quant"

	"github.com/shopspring/decimal"
)

var (
	evAlpha        = decimal.NewFromFloat(0.01)
	volatilityAlpha = decimal.NewFromFloat(0.1)

	feeBps           = decimal.NewFromFloat(10.0)
	safetyMultiplier = decimal.NewFromFloat(1.5)

	killFloorBps = decimal.NewFromFloat(-3.0)
	killMinFills = int64(10)
)

// EngineParams are the per-engine tunables the auto-tuner adjusts.
type EngineParams struct {
	MinEdgeBps     decimal.Decimal
	SizeMultiplier decimal.Decimal
	SoftTTLFillProb decimal.Decimal
}

type engineState struct {
	evEWMA      decimal.Decimal
	latencyWindow *latencyWindow

	submits int64
	fills   int64
	cancels int64
	netPnLUSD decimal.Decimal

	params EngineParams

	negativeSince   int64 // unix nanos; 0 if not currently negative
	killed          bool
}

// Ledger tracks per-engine and per-symbol cost-model state.
type Ledger struct {
	mu sync.Mutex

	engines map[string]*engineState
	symbolVol map[string]decimal.Decimal // bps-per-ms EWMA, per symbol

	feeBps           decimal.Decimal
	safetyMultiplier decimal.Decimal
	defaultVolatility decimal.Decimal

	killFloorBps       decimal.Decimal
	killSustainNanos   int64
	killMinFills       int64
}

// Config bundles the ledger's tunable floor/ceiling constants, sourced from
// configuration rather than hardcoded, per symbol-set deployment.
type Config struct {
	FeeBps                 float64
	SafetyMultiplier       float64
	DefaultVolatilityBpsMs float64
	KillFloorBps           float64
	KillSustainSeconds     int
	KillMinFills           int64
}

func New(cfg Config) *Ledger {
	return &Ledger{
		engines:            make(map[string]*engineState),
		symbolVol:          make(map[string]decimal.Decimal),
		feeBps:             decimal.NewFromFloat(cfg.FeeBps),
		safetyMultiplier:   decimal.NewFromFloat(cfg.SafetyMultiplier),
		defaultVolatility:  decimal.NewFromFloat(cfg.DefaultVolatilityBpsMs),
		killFloorBps:       decimal.NewFromFloat(cfg.KillFloorBps),
		killSustainNanos:   int64(cfg.KillSustainSeconds) * 1_000_000_000,
		killMinFills:       cfg.KillMinFills,
	}
}

func defaultParams() EngineParams {
	return EngineParams{
		MinEdgeBps:      decimal.NewFromFloat(5.0),
		SizeMultiplier:  decimal.NewFromFloat(1.0),
		SoftTTLFillProb: decimal.NewFromFloat(0.35),
	}
}

func (l *Ledger) engine(engineID string) *engineState {
	e, ok := l.engines[engineID]
	if !ok {
		e = &engineState{
			params:        defaultParams(),
			latencyWindow: newLatencyWindow(200),
		}
		l.engines[engineID] = e
	}
	return e
}

// RegisterEngine ensures engineID has a state entry with default params,
// called at startup so the auto-tuner and admission threshold have a home
// before the first fill.
func (l *Ledger) RegisterEngine(engineID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.engine(engineID)
}

// RestoreParams overwrites engineID's tunables from a prior snapshot. The
// engine must already be registered; called once at boot, before any
// submit/fill activity.
func (l *Ledger) RestoreParams(engineID string, params EngineParams) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.engine(engineID).params = params
}

// Params returns engineID's current tunables.
func (l *Ledger) Params(engineID string) EngineParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine(engineID).params
}

// OnSubmit increments the submit counter for engineID.
func (l *Ledger) OnSubmit(engineID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.engine(engineID).submits++
}

// OnCancel increments the cancel counter for engineID.
func (l *Ledger) OnCancel(engineID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.engine(engineID).cancels++
}

// OnFill folds a fill's net bps and USD PnL into the engine's EV EWMA,
// counters, and ACK-latency window, and runs the sustained-loss kill check.
// nowNanos is the caller-supplied wall clock so tests can drive the kill
// timer deterministically.
func (l *Ledger) OnFill(engineID string, netBps, netUSD decimal.Decimal, ackLatencyUs decimal.Decimal, nowNanos int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.engine(engineID)

	e.evEWMA = quant.Ewma(e.evEWMA, netBps, evAlpha)
	e.fills++
	e.netPnLUSD = e.netPnLUSD.Add(netUSD)
	e.latencyWindow.add(ackLatencyUs)

	l.evaluateKillLocked(e, nowNanos)
}

func (l *Ledger) evaluateKillLocked(e *engineState, nowNanos int64) {
	if e.killed {
		return
	}
	if e.evEWMA.LessThan(l.killFloorBps) {
		if e.negativeSince == 0 {
			e.negativeSince = nowNanos
		}
		if e.fills >= killMinFillsOrDefault(l.killMinFills) && nowNanos-e.negativeSince >= l.killSustainNanos {
			e.killed = true
		}
	} else {
		e.negativeSince = 0
	}
}

func killMinFillsOrDefault(v int64) int64 {
	if v == 0 {
		return killMinFills
	}
	return v
}

// Killed reports whether engineID has tripped the sustained-loss kill rule.
// This is purely informational bookkeeping in the ledger; the router is
// responsible for also calling PnL.BlockEngine when this flips true.
func (l *Ledger) Killed(engineID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine(engineID).killed
}

// OnMarketTick folds an absolute bps-per-ms move into symbol's volatility
// EWMA.
func (l *Ledger) OnMarketTick(symbol string, absBpsPerMs decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev, ok := l.symbolVol[symbol]
	if !ok {
		prev = l.defaultVolatility
	}
	l.symbolVol[symbol] = quant.Ewma(prev, absBpsPerMs, volatilityAlpha)
}

func (l *Ledger) volatility(symbol string) decimal.Decimal {
	if v, ok := l.symbolVol[symbol]; ok {
		return v
	}
	return l.defaultVolatility
}

// AdmissionThreshold computes the real cost of a prospective order and
// returns whether predictedEdgeBps clears it.
func (l *Ledger) AdmissionThreshold(engineID, symbol string, ackLatencyUs, spreadBps, expectedFillProbability, predictedEdgeBps decimal.Decimal) (threshold decimal.Decimal, admit bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.engine(engineID)

	latencyBps := ackLatencyUs.Div(decimal.NewFromInt(1000)).Mul(l.volatility(symbol))
	queueBps := decimal.NewFromInt(1).Sub(expectedFillProbability).Mul(spreadBps).Mul(decimal.NewFromFloat(0.5))
	realCostBps := l.feeBps.Add(latencyBps).Add(queueBps)

	threshold = realCostBps.Mul(l.safetyMultiplier)
	if floor := e.params.MinEdgeBps; floor.GreaterThan(threshold) {
		threshold = floor
	}
	return threshold, predictedEdgeBps.GreaterThanOrEqual(threshold)
}

// P95AckLatencyUs returns the p95 of the most recent ACK-latency samples.
func (l *Ledger) P95AckLatencyUs(engineID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine(engineID).latencyWindow.p95()
}

// Metrics is a point-in-time snapshot of an engine's counters, for
// telemetry and snapshotting.
type Metrics struct {
	EVEwmaBps      decimal.Decimal
	Submits        int64
	Fills          int64
	Cancels        int64
	NetPnLUSD      decimal.Decimal
	Killed         bool
	Params         EngineParams
}

func (l *Ledger) Metrics(engineID string) Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.engine(engineID)
	return Metrics{
		EVEwmaBps: e.evEWMA,
		Submits:   e.submits,
		Fills:     e.fills,
		Cancels:   e.cancels,
		NetPnLUSD: e.netPnLUSD,
		Killed:    e.killed,
		Params:    e.params,
	}
}
