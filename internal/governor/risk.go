package governor

import (
	"sync"

	"chimera/internal/core"
	"chimera/internal/federation"

	"github.com/shopspring/decimal"
)

// Risk is the Global Risk Governor: tracks live per-symbol position against
// the symbol's max_position ceiling and the portfolio notional ceiling, and
// owns the system's one-shot drift-kill trigger.
type Risk struct {
	mu sync.RWMutex

	symbols      map[string]core.Symbol
	positions    map[string]decimal.Decimal // symbol -> signed qty
	notionalCap  decimal.Decimal

	killed bool
	fed    *federation.Federation
}

func NewRisk(symbols []core.Symbol, portfolioNotionalCap decimal.Decimal, fed *federation.Federation) *Risk {
	symbolIndex := make(map[string]core.Symbol, len(symbols))
	positions := make(map[string]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		symbolIndex[s.Name] = s
		positions[s.Name] = decimal.Zero
	}
	return &Risk{
		symbols:     symbolIndex,
		positions:   positions,
		notionalCap: portfolioNotionalCap,
		fed:         fed,
	}
}

// PreCheck returns false if adding signedQty at price on symbol would push
// the resulting position past the symbol's max_position, or the portfolio's
// aggregate notional past the portfolio cap.
func (r *Risk) PreCheck(symbol string, price, signedQty decimal.Decimal) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.killed {
		return false
	}

	sym, ok := r.symbols[symbol]
	if !ok {
		return false
	}

	resulting := r.positions[symbol].Add(signedQty)
	if resulting.Abs().GreaterThan(sym.MaxPosition) {
		return false
	}

	portfolioNotional := decimal.Zero
	for s, pos := range r.positions {
		p := pos
		if s == symbol {
			p = resulting
		}
		portfolioNotional = portfolioNotional.Add(p.Abs().Mul(price))
	}
	return portfolioNotional.LessThanOrEqual(r.notionalCap)
}

// OnExecutionAck updates the local position view following a confirmed fill.
func (r *Risk) OnExecutionAck(symbol string, signedQty decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[symbol] = r.positions[symbol].Add(signedQty)
}

// Reconcile overwrites the local position view with the exchange's reported
// truth, called from the Exchange Truth Loop.
func (r *Risk) Reconcile(symbol string, signedQty decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[symbol] = signedQty
}

// Position returns the current local view for symbol.
func (r *Risk) Position(symbol string) decimal.Decimal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.positions[symbol]
}

// Positions returns a snapshot of every symbol's current signed position,
// for persistence by the Context Snapshotter.
func (r *Risk) Positions() map[string]decimal.Decimal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(r.positions))
	for symbol, qty := range r.positions {
		out[symbol] = qty
	}
	return out
}

// Drift is the one-shot sticky kill trigger. Any caller may invoke it; after
// the first call Killed() is permanently true.
func (r *Risk) Drift(reason string) {
	r.mu.Lock()
	r.killed = true
	r.mu.Unlock()
	if r.fed != nil {
		r.fed.Trigger(reason)
	}
}

// Killed reports whether Drift has ever fired.
func (r *Risk) Killed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.killed
}
