package core

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the OSM's state-graph position for an Order Record. States
// only move forward: NEW -> ACKED -> PARTIALLY_FILLED* -> FILLED, or any
// non-terminal state -> CANCELED, or NEW -> REJECTED.
type OrderStatus int

const (
	StatusNew OrderStatus = iota
	StatusAcked
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusAcked:
		return "ACKED"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCanceled:
		return "CANCELED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether an order in this status can never transition again.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusRejected
}

// IsOpen reports whether an order in this status is still live on the book.
func (s OrderStatus) IsOpen() bool {
	return s == StatusNew || s == StatusAcked || s == StatusPartiallyFilled
}

// Symbol holds process-immutable per-instrument trading metadata.
type Symbol struct {
	Name             string
	TickSize         decimal.Decimal
	LotSize          decimal.Decimal
	MinNotional      decimal.Decimal
	PriceDecimals    int32
	QuantityDecimals int32
	MaxPosition      decimal.Decimal
}

// OrderIntent is an engine's ephemeral proposal for an order. It is consumed
// by the Execution Router and either materialized into an OrderRecord or
// dropped by the admission cascade.
type OrderIntent struct {
	EngineID         string
	Symbol           string
	SignedQuantity   decimal.Decimal
	LimitPrice       decimal.Decimal
	PredictedEdgeBps decimal.Decimal
}

func (oi OrderIntent) IsBuy() bool {
	return oi.SignedQuantity.IsPositive()
}

// OrderRecord is the authoritative, canonical per-order entry owned by the OSM.
type OrderRecord struct {
	ClientID              string
	ExchangeID            string
	Symbol                string
	Price                 decimal.Decimal
	SignedRemainingQty    decimal.Decimal
	InitialSignedQty      decimal.Decimal
	EngineID              string
	Status                OrderStatus
	LastUpdateTimestampNs int64
}

func (r OrderRecord) IsBuy() bool {
	return r.InitialSignedQty.IsPositive()
}

// TopOfBook is the per-symbol market-feed snapshot. Mutated only by the
// market feed; read by engines and the router.
type TopOfBook struct {
	BidPrice              decimal.Decimal
	BidSize               decimal.Decimal
	AskPrice              decimal.Decimal
	AskSize               decimal.Decimal
	LastUpdateTimestampNs int64
	Valid                 bool
}

func (t TopOfBook) Mid() decimal.Decimal {
	if !t.Valid {
		return decimal.Zero
	}
	return t.BidPrice.Add(t.AskPrice).Div(decimal.NewFromInt(2))
}

func (t TopOfBook) SpreadBps() decimal.Decimal {
	mid := t.Mid()
	if !t.Valid || mid.IsZero() {
		return decimal.Zero
	}
	return t.AskPrice.Sub(t.BidPrice).Div(mid).Mul(decimal.NewFromInt(10000))
}

// FillEstimate is the output of the Queue Model's per-order admission estimate.
type FillEstimate struct {
	AheadQty                decimal.Decimal
	BehindQty               decimal.Decimal
	ExpectedFillProbability decimal.Decimal
}

// EngineMetrics is the Profit Ledger's per-engine bookkeeping record.
type EngineMetrics struct {
	mu sync.RWMutex

	EngineID        string
	DeskID          string
	EVEwmaBps       decimal.Decimal
	WinRate         decimal.Decimal
	RealizedPnLUSD  decimal.Decimal
	Fills           int64
	Cancels         int64
	Submits         int64
	MinEdgeBps      decimal.Decimal
	SizeMultiplier  decimal.Decimal
	SoftTTLFillProb decimal.Decimal
	Alive           bool

	// NegativeEVSince tracks when ev_ewma_bps first dipped below the kill
	// floor, for the Profit Ledger's sustained-for-3-minutes kill rule.
	NegativeEVSince time.Time
}

func (e *EngineMetrics) Lock()    { e.mu.Lock() }
func (e *EngineMetrics) Unlock()  { e.mu.Unlock() }
func (e *EngineMetrics) RLock()   { e.mu.RLock() }
func (e *EngineMetrics) RUnlock() { e.mu.RUnlock() }

// DeskState groups many engines under shared capital-pause governance.
type DeskState struct {
	mu sync.RWMutex

	DeskID     string
	EwmaPnLBps decimal.Decimal
	Trades     int64
	Paused     bool
}

func (d *DeskState) Lock()    { d.mu.Lock() }
func (d *DeskState) Unlock()  { d.mu.Unlock() }
func (d *DeskState) RLock()   { d.mu.RLock() }
func (d *DeskState) RUnlock() { d.mu.RUnlock() }

// EventType tags the fixed-layout typed payload following an event-log header.
type EventType uint8

const (
	EventMarketTick EventType = 1
	EventAck        EventType = 2
	EventFill       EventType = 3
	EventCancel     EventType = 4
	EventReject     EventType = 5
	// EventSubmit is a Chimera-specific addition beyond the base five payload
	// types: every admitted order intent is causally significant in its own
	// right (it is what the downstream ACK/FILL/CANCEL/REJECT refer back to),
	// so it gets its own forensic record rather than being inferred.
	EventSubmit EventType = 6
)

func (t EventType) String() string {
	switch t {
	case EventMarketTick:
		return "MARKET_TICK"
	case EventAck:
		return "ACK"
	case EventFill:
		return "FILL"
	case EventCancel:
		return "CANCEL"
	case EventReject:
		return "REJECT"
	case EventSubmit:
		return "SUBMIT"
	default:
		return "UNKNOWN"
	}
}

// LifecycleEvent is what the exchange adapter's user feed delivers for an
// in-flight order: the side-channel data the router needs to drive the OSM
// and the governors downstream of an ACK/FILL/CANCEL/REJECT.
type LifecycleEvent struct {
	Kind        EventType
	ClientID    string
	ExchangeID  string
	FilledQty   decimal.Decimal
	FillPrice   decimal.Decimal
	TimestampNs int64
}

// MarketTick is what the exchange adapter's market feed delivers per book update.
type MarketTick struct {
	Symbol      string
	Bid         decimal.Decimal
	BidQty      decimal.Decimal
	Ask         decimal.Decimal
	AskQty      decimal.Decimal
	TimestampNs int64
}

// ExchangePosition and ExchangeOrder are what get_all_positions/get_all_open_orders
// return, consumed by the Exchange Truth Loop and the cold-start reconciler.
type ExchangePosition struct {
	Symbol         string
	SignedQuantity decimal.Decimal
}

type ExchangeOrder struct {
	ExchangeID   string
	ClientID     string
	Symbol       string
	Price        decimal.Decimal
	RemainingQty decimal.Decimal
}
