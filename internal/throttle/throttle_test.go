package throttle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllow_BlocksPastGlobalRate(t *testing.T) {
	th := New(2, 100)
	assert.True(t, th.Allow("BTCUSDT"))
	assert.True(t, th.Allow("BTCUSDT"))
	assert.False(t, th.Allow("BTCUSDT"), "third submit within the same window must be throttled")
}

func TestAllow_BlocksPastPerSymbolRate(t *testing.T) {
	th := New(100, 2)
	assert.True(t, th.Allow("BTCUSDT"))
	assert.True(t, th.Allow("BTCUSDT"))
	assert.False(t, th.Allow("BTCUSDT"))
	// A different symbol has its own independent bucket.
	assert.True(t, th.Allow("ETHUSDT"))
}

func TestAllow_GlobalCapAppliesAcrossSymbols(t *testing.T) {
	th := New(2, 100)
	assert.True(t, th.Allow("BTCUSDT"))
	assert.True(t, th.Allow("ETHUSDT"))
	assert.False(t, th.Allow("BTCUSDT"))
	assert.False(t, th.Allow("ETHUSDT"))
}
