// Package truth implements the Exchange Truth Loop: a dedicated polling
// thread that periodically reconciles the OSM's view of open orders against
// what the exchange actually reports, and escalates on REST failure or
// order-level divergence it cannot explain.
package truth

import (
	"context"
	"time"

	"chimera/internal/core"
	"chimera/internal/federation"
	"chimera/internal/osm"
	"chimera/pkg/retry"

	"github.com/sony/gobreaker"
)

// restIsTransient treats every REST failure observed here as retryable: the
// truth loop's own circuit breaker is what escalates a truly broken
// connection, so retry.Do only needs to absorb the occasional dropped
// request before the breaker sees it.
func restIsTransient(error) bool { return true }

// Loop runs the periodic REST reconciliation tick. It is inert (no-op ticks)
// in shadow mode, since there is no live exchange state to reconcile.
type Loop struct {
	adapter core.ExchangeAdapter
	osm     *osm.OSM
	fed     *federation.Federation
	logger  core.ILogger
	breaker *gobreaker.CircuitBreaker

	interval time.Duration
	liveMode bool

	onReconcilePosition func(symbol string, signedQty core.ExchangePosition)
}

// NewLoop builds a truth loop. onReconcilePosition is called once per
// reported non-zero exchange position per tick; app.New wires it to
// governor.Risk.Reconcile.
func NewLoop(adapter core.ExchangeAdapter, osmStore *osm.OSM, fed *federation.Federation, logger core.ILogger, interval time.Duration, liveMode bool, onReconcilePosition func(symbol string, signedQty core.ExchangePosition)) *Loop {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "exchange-truth-loop",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Loop{
		adapter:             adapter,
		osm:                 osmStore,
		fed:                 fed,
		logger:              logger,
		breaker:             breaker,
		interval:            interval,
		liveMode:            liveMode,
		onReconcilePosition: onReconcilePosition,
	}
}

// Run blocks, ticking every interval until ctx is canceled.
func (l *Loop) Run(ctx context.Context) {
	if !l.liveMode {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

type truthSnapshot struct {
	positions []core.ExchangePosition
	orders    []core.ExchangeOrder
}

func (l *Loop) tick(ctx context.Context) {
	result, err := l.breaker.Execute(func() (interface{}, error) {
		var positions []core.ExchangePosition
		var orders []core.ExchangeOrder

		if err := retry.Do(ctx, retry.RESTOncePolicy, restIsTransient, func() error {
			p, err := l.adapter.GetAllPositions(ctx)
			positions = p
			return err
		}); err != nil {
			return nil, err
		}
		if err := retry.Do(ctx, retry.RESTOncePolicy, restIsTransient, func() error {
			o, err := l.adapter.GetAllOpenOrders(ctx)
			orders = o
			return err
		}); err != nil {
			return nil, err
		}
		return truthSnapshot{positions: positions, orders: orders}, nil
	})

	if err != nil {
		l.logger.Error("exchange truth loop REST pull failed", "error", err.Error())
		l.fed.Trigger("TRUTH_LOOP: REST pull failed")
		return
	}

	snap := result.(truthSnapshot)
	l.reconcilePositions(snap.positions)
	l.reconcileOrders(snap.orders)
}

func (l *Loop) reconcilePositions(positions []core.ExchangePosition) {
	for _, pos := range positions {
		if pos.SignedQuantity.IsZero() {
			continue
		}
		l.logger.Warn("exchange reports non-zero position", "symbol", pos.Symbol, "qty", pos.SignedQuantity.String())
		if l.onReconcilePosition != nil {
			l.onReconcilePosition(pos.Symbol, pos)
		}
	}
}

func (l *Loop) reconcileOrders(exchangeOrders []core.ExchangeOrder) {
	openClientIDs := make(map[string]bool)
	for _, clientID := range l.osm.OpenClientIDs() {
		openClientIDs[clientID] = true
	}

	seenClientIDs := make(map[string]bool)
	for _, eo := range exchangeOrders {
		clientID, ok := l.osm.ClientIDFor(eo.ExchangeID)
		if !ok {
			// Phantom: the exchange knows an order the OSM has no record of.
			l.fed.Trigger("TRUTH_LOOP: phantom order " + eo.ExchangeID)
			continue
		}
		seenClientIDs[clientID] = true
	}

	for clientID := range openClientIDs {
		if !seenClientIDs[clientID] {
			// Local ghost: transient, normal cancel policy resolves it.
			l.logger.Info("local ghost order not seen on exchange", "client_id", clientID)
		}
	}
}
