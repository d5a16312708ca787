// Package queue implements the per-symbol top-of-book model and its
// fill-probability estimator: the single source of truth the router and
// every strategy engine consult for the current market.
package queue

import (
	"sync"

	"chimera/internal/core"

	"github.com/shopspring/decimal"
)

// fillProbabilityCeiling is intentional: no passive order is ever treated as
// certain to fill, even when marketable.
var fillProbabilityCeiling = decimal.NewFromFloat(0.85)

// Model is the single-mutex, O(1)-per-op top-of-book store. One writer (the
// market feed), many readers (engines, router).
type Model struct {
	mu    sync.RWMutex
	books map[string]core.TopOfBook
}

func NewModel() *Model {
	return &Model{books: make(map[string]core.TopOfBook)}
}

// OnBookUpdate overwrites a symbol's book snapshot.
func (m *Model) OnBookUpdate(symbol string, bid, bidDepth, ask, askDepth decimal.Decimal, timestampNs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[symbol] = core.TopOfBook{
		BidPrice:              bid,
		BidSize:               bidDepth,
		AskPrice:              ask,
		AskSize:               askDepth,
		LastUpdateTimestampNs: timestampNs,
		Valid:                 true,
	}
}

// Top returns a snapshot read; Valid is false if no update has ever arrived.
func (m *Model) Top(symbol string) core.TopOfBook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.books[symbol]
}

// Estimate computes the queue-position fill-probability estimate for a
// prospective order at orderPrice/orderQty on the given side.
func (m *Model) Estimate(symbol string, orderPrice, orderQty decimal.Decimal, isBuy bool) core.FillEstimate {
	top := m.Top(symbol)
	if !top.Valid {
		return core.FillEstimate{}
	}

	marketable := (isBuy && orderPrice.GreaterThanOrEqual(top.AskPrice)) ||
		(!isBuy && orderPrice.LessThanOrEqual(top.BidPrice))

	if marketable {
		return core.FillEstimate{
			AheadQty:                decimal.Zero,
			BehindQty:               orderQty,
			ExpectedFillProbability: fillProbabilityCeiling,
		}
	}

	ahead := decimal.Zero
	if isBuy && orderPrice.Equal(top.BidPrice) {
		ahead = top.BidSize
	} else if !isBuy && orderPrice.Equal(top.AskPrice) {
		ahead = top.AskSize
	}

	denom := decimal.NewFromInt(1).Add(ahead)
	prob := fillProbabilityCeiling.Div(denom)
	if prob.GreaterThan(decimal.NewFromInt(1)) {
		prob = decimal.NewFromInt(1)
	}
	return core.FillEstimate{
		AheadQty:                ahead,
		BehindQty:               decimal.Zero,
		ExpectedFillProbability: prob,
	}
}

// BookDump is the snapshot-friendly form of the whole book map.
type BookDump struct {
	Symbol string
	Book   core.TopOfBook
}

// Dump returns a point-in-time copy of every tracked book, for snapshotting.
func (m *Model) Dump() []BookDump {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BookDump, 0, len(m.books))
	for symbol, book := range m.books {
		out = append(out, BookDump{Symbol: symbol, Book: book})
	}
	return out
}

// Restore repopulates the book map from a prior snapshot dump, at boot.
func (m *Model) Restore(dumps []BookDump) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range dumps {
		m.books[d.Symbol] = d.Book
	}
}
