// Package coalescer implements the Cancel/Replace Coalescer: per-engine,
// per-symbol pending-order deduplication so the router can emit
// cancel-replace semantics without relying on exchange-native modify.
package coalescer

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Record is a pending order awaiting a terminal lifecycle event.
type Record struct {
	EngineID string
	Symbol   string
	Price    decimal.Decimal
	Qty      decimal.Decimal
}

type keyed struct {
	clientID string
	record   Record
}

// Coalescer is the single-mutex pending-entry map.
type Coalescer struct {
	mu sync.Mutex

	byClientID     map[string]Record
	byEngineSymbol map[string]keyed // "engineID\x00symbol" -> entry
}

func New() *Coalescer {
	return &Coalescer{
		byClientID:     make(map[string]Record),
		byEngineSymbol: make(map[string]keyed),
	}
}

func engineSymbolKey(engineID, symbol string) string {
	return engineID + "\x00" + symbol
}

// Submit inserts a new pending entry, overwriting any existing entry for the
// same (engine, symbol) key — the caller is responsible for having already
// emitted a cancel for the prior entry if one existed.
func (c *Coalescer) Submit(clientID string, rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byClientID[clientID] = rec
	c.byEngineSymbol[engineSymbolKey(rec.EngineID, rec.Symbol)] = keyed{clientID: clientID, record: rec}
}

// FindByEngineSymbol returns the single existing pending entry for
// (engineID, symbol), if any.
func (c *Coalescer) FindByEngineSymbol(engineID, symbol string) (clientID string, rec Record, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.byEngineSymbol[engineSymbolKey(engineID, symbol)]
	if !ok {
		return "", Record{}, false
	}
	return k.clientID, k.record, true
}

// Get returns clientID's pending entry directly, if any, for callers (the
// shadow fill simulator) that already have the client id in hand rather
// than the (engine, symbol) pair.
func (c *Coalescer) Get(clientID string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.byClientID[clientID]
	return rec, ok
}

// Clear removes clientID's pending entry (and its engine/symbol index entry,
// if it still points at clientID).
func (c *Coalescer) Clear(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.byClientID[clientID]
	if !ok {
		return
	}
	delete(c.byClientID, clientID)
	key := engineSymbolKey(rec.EngineID, rec.Symbol)
	if k, ok := c.byEngineSymbol[key]; ok && k.clientID == clientID {
		delete(c.byEngineSymbol, key)
	}
}

// PendingKeys returns every currently pending client id.
func (c *Coalescer) PendingKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.byClientID))
	for clientID := range c.byClientID {
		out = append(out, clientID)
	}
	return out
}
