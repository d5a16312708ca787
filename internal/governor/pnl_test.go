package governor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPnL_AllowStrategy_TrueByDefault(t *testing.T) {
	p := NewPnL(decimal.NewFromFloat(-10), decimal.NewFromFloat(-500))
	assert.True(t, p.AllowStrategy("eng1"))
}

func TestPnL_BlocksEngineBelowStrategyFloor(t *testing.T) {
	p := NewPnL(decimal.NewFromFloat(-10), decimal.NewFromFloat(-500))
	for i := 0; i < 20; i++ {
		p.OnFill("eng1", decimal.NewFromFloat(-50), decimal.NewFromFloat(-1))
	}
	assert.False(t, p.AllowStrategy("eng1"))
}

func TestPnL_BlockEngine_ForcesImmediateKill(t *testing.T) {
	p := NewPnL(decimal.NewFromFloat(-10), decimal.NewFromFloat(-500))
	p.BlockEngine("eng1")
	assert.False(t, p.AllowStrategy("eng1"))
}

func TestPnL_PortfolioDrawdown_BlocksEveryEngine(t *testing.T) {
	p := NewPnL(decimal.NewFromFloat(-10), decimal.NewFromFloat(-500))
	p.OnFill("eng1", decimal.NewFromFloat(1), decimal.NewFromFloat(-600))
	assert.True(t, p.PortfolioKilled())
	assert.False(t, p.AllowStrategy("eng1"))
	assert.False(t, p.AllowStrategy("eng2"), "portfolio kill must block engines with no prior fills too")
}
