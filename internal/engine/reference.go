// Package engine provides ReferenceEngine: a minimal, deliberately
// non-predictive passive-quoting loop that exercises the Execution Router's
// SubmitOrder entrypoint end to end. Real alpha generation is intentionally
// out of scope; this exists so the router, the cascade, and the queue model
// have a caller to drive them in cmd/chimera.
package engine

import (
	"context"
	"time"

	"chimera/internal/core"
	"chimera/internal/queue"
	"chimera/internal/router"
	"chimera/internal/threadmodel"

	"github.com/shopspring/decimal"
)

// Submitter is the narrow router surface a strategy engine depends on.
type Submitter interface {
	SubmitOrder(intent core.OrderIntent) (string, error)
}

// ReferenceEngine posts a passive bid at the best bid and a passive ask at
// the best ask for each symbol, re-quoting on a fixed interval. Its "predicted edge" is a
// constant configured at construction, standing in for whatever a real
// strategy would compute; the admission cascade and profit ledger decide
// whether that is ever good enough to trade.
type ReferenceEngine struct {
	id               string
	symbols          []string
	queueModel       *queue.Model
	submitter        Submitter
	quoteSize        decimal.Decimal
	predictedEdgeBps decimal.Decimal
	requoteInterval  time.Duration
	logger           core.ILogger
	pool             *threadmodel.WorkerPool
}

// NewReferenceEngine builds a reference engine for engineID quoting symbols.
// pool may be nil, in which case each symbol is quoted inline on the
// engine's own goroutine instead of being dispatched to the pool.
func NewReferenceEngine(engineID string, symbols []string, queueModel *queue.Model, submitter Submitter, quoteSize, predictedEdgeBps decimal.Decimal, requoteInterval time.Duration, logger core.ILogger, pool *threadmodel.WorkerPool) *ReferenceEngine {
	return &ReferenceEngine{
		id:               engineID,
		symbols:          symbols,
		queueModel:       queueModel,
		submitter:        submitter,
		quoteSize:        quoteSize,
		predictedEdgeBps: predictedEdgeBps,
		requoteInterval:  requoteInterval,
		logger:           logger,
		pool:             pool,
	}
}

// Run blocks, re-quoting every symbol on requoteInterval until ctx is
// canceled. Meant to be the body handed to threadmodel.PinnedLoop for the
// execution core, alongside the Router's own poll loop.
func (e *ReferenceEngine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.requoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.quoteOnce()
		}
	}
}

func (e *ReferenceEngine) quoteOnce() {
	for _, symbol := range e.symbols {
		symbol := symbol
		if e.pool == nil {
			e.quoteSymbol(symbol)
			continue
		}
		if err := e.pool.Submit(func() { e.quoteSymbol(symbol) }); err != nil {
			e.logger.Debug("reference engine: pool submit dropped tick", "engine", e.id, "symbol", symbol, "error", err.Error())
		}
	}
}

func (e *ReferenceEngine) quoteSymbol(symbol string) {
	top := e.queueModel.Top(symbol)
	if !top.Valid {
		return
	}

	bidQty := e.quoteSize
	askQty := e.quoteSize.Neg()
	for _, intent := range []core.OrderIntent{
		{EngineID: e.id, Symbol: symbol, SignedQuantity: bidQty, LimitPrice: top.BidPrice, PredictedEdgeBps: e.predictedEdgeBps},
		{EngineID: e.id, Symbol: symbol, SignedQuantity: askQty, LimitPrice: top.AskPrice, PredictedEdgeBps: e.predictedEdgeBps},
	} {
		if _, err := e.submitter.SubmitOrder(intent); err != nil {
			e.logger.Debug("reference engine: submit declined", "engine", e.id, "symbol", symbol, "error", err.Error())
		}
	}
}

var _ Submitter = (*router.Router)(nil)
