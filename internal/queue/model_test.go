package queue

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEstimate_UnknownSymbolReturnsInvalid(t *testing.T) {
	m := NewModel()
	est := m.Estimate("BTCUSDT", decimal.NewFromFloat(100), decimal.NewFromFloat(0.01), true)
	assert.True(t, est.ExpectedFillProbability.IsZero())
}

func TestEstimate_MarketableOrderCapsAt85(t *testing.T) {
	m := NewModel()
	m.OnBookUpdate("BTCUSDT", decimal.NewFromFloat(100.00), decimal.NewFromFloat(1.0), decimal.NewFromFloat(100.01), decimal.NewFromFloat(1.0), 1)

	est := m.Estimate("BTCUSDT", decimal.NewFromFloat(100.01), decimal.NewFromFloat(0.01), true)
	assert.True(t, est.AheadQty.IsZero())
	assert.True(t, decimal.NewFromFloat(0.85).Equal(est.ExpectedFillProbability))
}

func TestEstimate_PassiveOrderScalesWithDepth(t *testing.T) {
	m := NewModel()
	m.OnBookUpdate("BTCUSDT", decimal.NewFromFloat(100.00), decimal.NewFromFloat(3.0), decimal.NewFromFloat(100.01), decimal.NewFromFloat(1.0), 1)

	est := m.Estimate("BTCUSDT", decimal.NewFromFloat(100.00), decimal.NewFromFloat(0.01), true)
	assert.True(t, decimal.NewFromFloat(3.0).Equal(est.AheadQty))
	expected := decimal.NewFromFloat(0.85).Div(decimal.NewFromFloat(4.0))
	assert.True(t, expected.Equal(est.ExpectedFillProbability), "got %s want %s", est.ExpectedFillProbability, expected)
}

func TestDumpRestoreRoundTrip(t *testing.T) {
	m := NewModel()
	m.OnBookUpdate("BTCUSDT", decimal.NewFromFloat(100.00), decimal.NewFromFloat(1.0), decimal.NewFromFloat(100.01), decimal.NewFromFloat(1.0), 42)

	dump := m.Dump()

	m2 := NewModel()
	m2.Restore(dump)

	assert.Equal(t, m.Top("BTCUSDT"), m2.Top("BTCUSDT"))
}
