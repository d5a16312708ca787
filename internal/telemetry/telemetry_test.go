package telemetry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters_IncrementAtomically(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncThrottleBlocks()
			s.IncRiskBlocks()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 100, s.ThrottleBlocks)
	assert.EqualValues(t, 100, s.RiskBlocks)
}

func TestSymbolStats_TracksPerSymbol(t *testing.T) {
	s := NewState()
	s.OnSubmit("BTCUSDT")
	s.OnSubmit("BTCUSDT")
	s.OnFill("BTCUSDT")
	s.OnSubmit("ETHUSDT")

	btc := s.SymbolSnapshot("BTCUSDT")
	assert.EqualValues(t, 2, btc.Submits)
	assert.EqualValues(t, 1, btc.Fills)

	all := s.AllSymbols()
	assert.Len(t, all, 2)
}

func TestSymbolSnapshot_UnknownSymbolIsZeroValue(t *testing.T) {
	s := NewState()
	assert.Equal(t, SymbolStats{}, s.SymbolSnapshot("NOPE"))
}
