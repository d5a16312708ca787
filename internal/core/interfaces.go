// Package core defines the shared data types and consumed interfaces for the
// execution and safety spine.
package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// ILogger is the narrow structured-logging surface every component depends
// on; never a concrete *zap.Logger.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// MarketCallback receives parsed book updates from an ExchangeAdapter's market feed.
type MarketCallback func(MarketTick)

// UserCallback receives parsed lifecycle events from an ExchangeAdapter's user feed.
type UserCallback func(LifecycleEvent)

// ExchangeAdapter is the interface the core consumes. Wire-format parsing,
// HMAC signing, and transport framing are the adapter's problem, not the
// core's; the core only ever sees already-decoded ticks and lifecycle events.
type ExchangeAdapter interface {
	// RunMarket blocks, streaming book updates via cb, until ctx is canceled
	// or shutdown is observed.
	RunMarket(ctx context.Context, cb MarketCallback) error
	// RunUser blocks, streaming lifecycle events via cb, until ctx is
	// canceled or shutdown is observed.
	RunUser(ctx context.Context, cb UserCallback) error
	// SendOrder is a non-blocking submit; qty sign encodes side. Returns
	// whether the submission was queued.
	SendOrder(clientID, symbol string, price, qty decimal.Decimal) (bool, error)
	// CancelOrder is a non-blocking cancel by client id.
	CancelOrder(clientID string) error
	GetAllPositions(ctx context.Context) ([]ExchangePosition, error)
	GetAllOpenOrders(ctx context.Context) ([]ExchangeOrder, error)
}
