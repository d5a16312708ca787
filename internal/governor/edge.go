package governor

import (
	"sync"

	"chimera/internal/quant"

	"github.com/shopspring/decimal"
)

var (
	edgeAlpha             = decimal.NewFromFloat(0.05)
	edgeLeakThreshold     = decimal.NewFromFloat(1.5)
	latencySensitivityThr = decimal.NewFromFloat(0.002)
)

type pendingSubmit struct {
	engineID        string
	predictedEdgeBps decimal.Decimal
	queuePos        decimal.Decimal
}

type engineEdgeStats struct {
	edgeLeakBps         decimal.Decimal
	latencySensitivity  decimal.Decimal
	fillCount           int64
}

// Edge is the Edge Attribution governor: compares predicted to realized edge
// per fill and kills an engine whose leak or latency-sensitivity EWMA
// exceeds threshold. It never triggers cancel-federation itself; a
// single-engine kill is not a system event.
type Edge struct {
	mu sync.Mutex

	pending map[string]pendingSubmit // client_id -> submit record
	stats   map[string]*engineEdgeStats

	pnl *PnL
}

func NewEdge(pnl *PnL) *Edge {
	return &Edge{
		pending: make(map[string]pendingSubmit),
		stats:   make(map[string]*engineEdgeStats),
		pnl:     pnl,
	}
}

// OnSubmit records the predicted edge for a freshly submitted order.
func (e *Edge) OnSubmit(clientID, engineID string, predictedEdgeBps, queuePos decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[clientID] = pendingSubmit{
		engineID:         engineID,
		predictedEdgeBps: predictedEdgeBps,
		queuePos:         queuePos,
	}
}

// OnCancel releases clientID's pending slot without attribution, used for
// cancels/rejects/expiries.
func (e *Edge) OnCancel(clientID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, clientID)
}

// OnFill computes the edge leak for clientID's fill and folds it into the
// engine's EWMAs, blocking the engine via PnL if either exceeds threshold.
func (e *Edge) OnFill(clientID string, realizedEdgeBps decimal.Decimal, ackLatencyUs decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub, ok := e.pending[clientID]
	if !ok {
		return
	}
	delete(e.pending, clientID)

	st, ok := e.stats[sub.engineID]
	if !ok {
		st = &engineEdgeStats{}
		e.stats[sub.engineID] = st
	}

	leak := sub.predictedEdgeBps.Sub(realizedEdgeBps)
	st.edgeLeakBps = quant.Ewma(st.edgeLeakBps, leak, edgeAlpha)
	sensitivity := leak.Mul(ackLatencyUs)
	st.latencySensitivity = quant.Ewma(st.latencySensitivity, sensitivity, edgeAlpha)
	st.fillCount++

	if st.fillCount < 5 {
		return
	}
	if st.edgeLeakBps.GreaterThan(edgeLeakThreshold) || st.latencySensitivity.GreaterThan(latencySensitivityThr) {
		if e.pnl != nil {
			e.pnl.BlockEngine(sub.engineID)
		}
	}
}
