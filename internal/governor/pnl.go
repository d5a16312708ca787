package governor

import (
	"sync"

	"chimera/internal/quant"

	"github.com/shopspring/decimal"
)

var pnlAlpha = decimal.NewFromFloat(0.1)

type engineEV struct {
	rollingEV decimal.Decimal
	blocked   bool
}

// PnL is the PnL Governor: per-engine rolling EV EWMA plus a portfolio-wide
// drawdown kill. Blocking an engine is sticky; the portfolio kill is sticky
// too and is surfaced to the caller so it can fire Drift on the Risk
// Governor.
type PnL struct {
	mu sync.Mutex

	engines map[string]*engineEV

	strategyFloor  decimal.Decimal
	portfolioDD    decimal.Decimal
	portfolioTotal decimal.Decimal
	portfolioKilled bool
}

func NewPnL(strategyFloor, portfolioDD decimal.Decimal) *PnL {
	return &PnL{
		engines:       make(map[string]*engineEV),
		strategyFloor: strategyFloor,
		portfolioDD:   portfolioDD,
	}
}

func (p *PnL) engine(engineID string) *engineEV {
	e, ok := p.engines[engineID]
	if !ok {
		e = &engineEV{}
		p.engines[engineID] = e
	}
	return e
}

// OnFill folds a fill's realized bps into the engine's rolling EV and the
// portfolio's cumulative USD total.
func (p *PnL) OnFill(engineID string, netBps, netUSD decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.engine(engineID)
	e.rollingEV = quant.Ewma(e.rollingEV, netBps, pnlAlpha)
	if e.rollingEV.LessThan(p.strategyFloor) {
		e.blocked = true
	}

	p.portfolioTotal = p.portfolioTotal.Add(netUSD)
	if p.portfolioTotal.LessThan(p.portfolioDD) {
		p.portfolioKilled = true
	}
}

// AllowStrategy reports whether engineID may still trade: false once its
// rolling EV has breached strategy_floor, or once the portfolio has
// breached portfolio_dd.
func (p *PnL) AllowStrategy(engineID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.portfolioKilled {
		return false
	}
	e, ok := p.engines[engineID]
	if !ok {
		return true
	}
	return !e.blocked
}

// BlockEngine forces an immediate, sticky kill of engineID, bypassing the
// rolling EV check. Used by Edge Attribution and the Profit Ledger's kill
// rule.
func (p *PnL) BlockEngine(engineID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.engine(engineID).blocked = true
}

// PortfolioKilled reports whether the portfolio-wide drawdown kill has
// fired. The Router observes this and calls Risk.Drift.
func (p *PnL) PortfolioKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.portfolioKilled
}

// RollingEV returns engineID's current EV EWMA, for telemetry/auto-tuning.
func (p *PnL) RollingEV(engineID string) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.engines[engineID]; ok {
		return e.rollingEV
	}
	return decimal.Zero
}
