// Package throttle implements the Execution Router's global and per-symbol
// submit-rate limiting, one-second rolling windows backed by token buckets.
package throttle

import (
	"sync"

	"golang.org/x/time/rate"
)

// Throttle holds one global limiter and a per-symbol limiter map, both
// refilling at their configured per-second rate with no burst beyond that
// rate (burst == rate: a full second's worth of submits, no more).
type Throttle struct {
	mu sync.Mutex

	global       *rate.Limiter
	perSymbol    map[string]*rate.Limiter
	symbolRate   rate.Limit
	symbolBurst  int
}

func New(globalPerSecond, symbolPerSecond int) *Throttle {
	return &Throttle{
		global:      rate.NewLimiter(rate.Limit(globalPerSecond), globalPerSecond),
		perSymbol:   make(map[string]*rate.Limiter),
		symbolRate:  rate.Limit(symbolPerSecond),
		symbolBurst: symbolPerSecond,
	}
}

func (t *Throttle) symbolLimiter(symbol string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.perSymbol[symbol]
	if !ok {
		l = rate.NewLimiter(t.symbolRate, t.symbolBurst)
		t.perSymbol[symbol] = l
	}
	return l
}

// Allow reports whether a submit for symbol may proceed right now, consuming
// one token from both the global and the symbol bucket if so. Both buckets
// must have a token available; a deny from either counts as a single
// throttle block.
func (t *Throttle) Allow(symbol string) bool {
	symLimiter := t.symbolLimiter(symbol)
	// Check both without partially consuming on a denial: reserve from the
	// global bucket first, cancel if the symbol bucket denies.
	globalRes := t.global.Reserve()
	if !globalRes.OK() || globalRes.Delay() > 0 {
		globalRes.Cancel()
		return false
	}
	if !symLimiter.Allow() {
		globalRes.Cancel()
		return false
	}
	return true
}
