// Package exchangeadapter provides implementations of core.ExchangeAdapter.
// MockAdapter is a deterministic in-process exchange used by shadow mode and
// by tests; it never touches a network.
package exchangeadapter

import (
	"context"
	"strconv"
	"sync"

	"chimera/internal/core"

	"github.com/shopspring/decimal"
)

type mockOrder struct {
	clientID  string
	symbol    string
	price     decimal.Decimal
	remaining decimal.Decimal
	canceled  bool
}

// MockAdapter is an in-memory core.ExchangeAdapter. SendOrder is idempotent
// on client id: a duplicate submit for an already-known client id is
// accepted silently rather than creating a second order, matching how a
// real exchange's client-order-id dedup behaves.
type MockAdapter struct {
	mu sync.Mutex

	orders         map[string]*mockOrder // client_id -> order
	exchangeIDSeq  int64
	clientToExch   map[string]string

	positions map[string]decimal.Decimal

	userCallbacks []core.UserCallback
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		orders:       make(map[string]*mockOrder),
		clientToExch: make(map[string]string),
		positions:    make(map[string]decimal.Decimal),
	}
}

// RunMarket is a no-op for the mock: tests drive the book directly via the
// queue model, not through this adapter.
func (m *MockAdapter) RunMarket(ctx context.Context, cb core.MarketCallback) error {
	<-ctx.Done()
	return ctx.Err()
}

// RunUser registers cb to receive synthesized lifecycle events and blocks
// until ctx is canceled.
func (m *MockAdapter) RunUser(ctx context.Context, cb core.UserCallback) error {
	m.mu.Lock()
	m.userCallbacks = append(m.userCallbacks, cb)
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (m *MockAdapter) emit(event core.LifecycleEvent) {
	m.mu.Lock()
	callbacks := append([]core.UserCallback(nil), m.userCallbacks...)
	m.mu.Unlock()
	for _, cb := range callbacks {
		cb(event)
	}
}

// SendOrder places an order and immediately synthesizes an ACK. Idempotent:
// a repeated clientID returns the already-placed order's ack outcome again
// without creating a duplicate.
func (m *MockAdapter) SendOrder(clientID, symbol string, price, qty decimal.Decimal) (bool, error) {
	m.mu.Lock()
	if _, ok := m.orders[clientID]; ok {
		m.mu.Unlock()
		return true, nil
	}
	m.exchangeIDSeq++
	exchangeID := exchangeIDFromSeq(m.exchangeIDSeq)
	m.orders[clientID] = &mockOrder{
		clientID:  clientID,
		symbol:    symbol,
		price:     price,
		remaining: qty,
	}
	m.clientToExch[clientID] = exchangeID
	m.mu.Unlock()

	m.emit(core.LifecycleEvent{
		Kind:       core.EventAck,
		ClientID:   clientID,
		ExchangeID: exchangeID,
	})
	return true, nil
}

// CancelOrder marks clientID's order canceled and emits a cancel event.
func (m *MockAdapter) CancelOrder(clientID string) error {
	m.mu.Lock()
	order, ok := m.orders[clientID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	order.canceled = true
	exchangeID := m.clientToExch[clientID]
	m.mu.Unlock()

	m.emit(core.LifecycleEvent{Kind: core.EventCancel, ClientID: clientID, ExchangeID: exchangeID})
	return nil
}

// Fill synthesizes a fill event for clientID. Test/shadow-simulator helper,
// not part of core.ExchangeAdapter.
func (m *MockAdapter) Fill(clientID string, qty, price decimal.Decimal) {
	m.mu.Lock()
	order, ok := m.orders[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	order.remaining = order.remaining.Sub(qty)
	if order.remaining.IsNegative() {
		order.remaining = decimal.Zero
	}
	m.positions[order.symbol] = m.positions[order.symbol].Add(qty)
	m.mu.Unlock()

	m.emit(core.LifecycleEvent{
		Kind:      core.EventFill,
		ClientID:  clientID,
		FilledQty: qty,
		FillPrice: price,
	})
}

// GetAllPositions returns the mock's synthesized position book.
func (m *MockAdapter) GetAllPositions(ctx context.Context) ([]core.ExchangePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.ExchangePosition, 0, len(m.positions))
	for symbol, qty := range m.positions {
		if qty.IsZero() {
			continue
		}
		out = append(out, core.ExchangePosition{Symbol: symbol, SignedQuantity: qty})
	}
	return out, nil
}

// GetAllOpenOrders returns every non-canceled, non-fully-filled order.
func (m *MockAdapter) GetAllOpenOrders(ctx context.Context) ([]core.ExchangeOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.ExchangeOrder, 0, len(m.orders))
	for clientID, order := range m.orders {
		if order.canceled || order.remaining.IsZero() {
			continue
		}
		out = append(out, core.ExchangeOrder{
			ExchangeID:   m.clientToExch[clientID],
			ClientID:     clientID,
			Symbol:       order.symbol,
			Price:        order.price,
			RemainingQty: order.remaining,
		})
	}
	return out, nil
}

func exchangeIDFromSeq(seq int64) string {
	return "EX" + strconv.FormatInt(seq, 10)
}
