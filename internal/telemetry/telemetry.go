// Package telemetry holds the process's in-memory counters: lock-free
// atomics for the hot-path throttle/risk/fill counts, and a mutex-guarded
// per-symbol map for the rest. Exporting these over HTTP is intentionally
// out of scope; this package only tracks the counters.
package telemetry

import (
	"sync"
	"sync/atomic"
)

// SymbolStats is a point-in-time snapshot of one symbol's counters.
type SymbolStats struct {
	Submits int64
	Fills   int64
	Cancels int64
	Rejects int64
}

// State is the router's live counter set. Throttle/risk/fill counts are
// plain atomics (read far more often than written, under contention from
// every engine thread); the per-symbol map is mutex-guarded since its shape
// grows over the process lifetime.
type State struct {
	ThrottleBlocks int64
	RiskBlocks     int64
	AdmissionDrops int64
	CoalescedCancels int64
	ShadowFills    int64
	LiveFills      int64

	mu      sync.Mutex
	symbols map[string]*SymbolStats
}

func NewState() *State {
	return &State{symbols: make(map[string]*SymbolStats)}
}

func (s *State) IncThrottleBlocks()   { atomic.AddInt64(&s.ThrottleBlocks, 1) }
func (s *State) IncRiskBlocks()       { atomic.AddInt64(&s.RiskBlocks, 1) }
func (s *State) IncAdmissionDrops()   { atomic.AddInt64(&s.AdmissionDrops, 1) }
func (s *State) IncCoalescedCancels() { atomic.AddInt64(&s.CoalescedCancels, 1) }
func (s *State) IncShadowFills()      { atomic.AddInt64(&s.ShadowFills, 1) }
func (s *State) IncLiveFills()        { atomic.AddInt64(&s.LiveFills, 1) }

func (s *State) symbol(name string) *SymbolStats {
	st, ok := s.symbols[name]
	if !ok {
		st = &SymbolStats{}
		s.symbols[name] = st
	}
	return st
}

// OnSubmit records an order submission for symbol.
func (s *State) OnSubmit(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbol(symbol).Submits++
}

// OnFill records a fill for symbol.
func (s *State) OnFill(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbol(symbol).Fills++
}

// OnCancel records a cancel for symbol.
func (s *State) OnCancel(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbol(symbol).Cancels++
}

// OnReject records a reject for symbol.
func (s *State) OnReject(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbol(symbol).Rejects++
}

// SymbolSnapshot returns a copy of symbol's counters, for forensic tooling.
func (s *State) SymbolSnapshot(symbol string) SymbolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.symbols[symbol]; ok {
		return *st
	}
	return SymbolStats{}
}

// AllSymbols returns a copy of the tracked symbol set's stats.
func (s *State) AllSymbols() map[string]SymbolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]SymbolStats, len(s.symbols))
	for k, v := range s.symbols {
		out[k] = *v
	}
	return out
}
