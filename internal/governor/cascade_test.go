package governor

import (
	"testing"

	"chimera/internal/core"
	"chimera/internal/federation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCascade() *Cascade {
	fed := federation.New()
	return &Cascade{
		Arm:     NewArm(0),
		Risk:    NewRisk(testSymbols(), decimal.NewFromFloat(1_000_000), fed),
		PnL:     NewPnL(decimal.NewFromFloat(-10), decimal.NewFromFloat(-500)),
		Desk:    NewDesk(fed),
		Latency: NewLatency(fed),
	}
}

func TestCascade_ShadowModeSkipsArm(t *testing.T) {
	c := newTestCascade()
	reason := c.Admit(false, "eng1", "BTCUSDT", decimal.NewFromFloat(100), decimal.NewFromFloat(0.01))
	assert.Equal(t, "", reason)
}

func TestCascade_LiveModeRequiresVerifiedArm(t *testing.T) {
	c := newTestCascade()
	reason := c.Admit(true, "eng1", "BTCUSDT", decimal.NewFromFloat(100), decimal.NewFromFloat(0.01))
	assert.Contains(t, reason, "ARM")

	c.Arm.Request()
	require.NoError(t, c.Arm.Confirm())
	require.NoError(t, c.Arm.Verify())
	reason = c.Admit(true, "eng1", "BTCUSDT", decimal.NewFromFloat(100), decimal.NewFromFloat(0.01))
	assert.Equal(t, "", reason)
}

func TestCascade_RiskDenialPrecedesPnLAndDesk(t *testing.T) {
	c := newTestCascade()
	c.Arm.Request()
	require.NoError(t, c.Arm.Confirm())
	require.NoError(t, c.Arm.Verify())
	c.PnL.BlockEngine("eng1") // would also fail, but risk must be checked first
	c.Desk.Register("eng1", "desk1")
	for i := 0; i < 6; i++ {
		c.Desk.OnFill("eng1", decimal.NewFromFloat(-20)) // pauses desk1 as well
	}
	reason := c.Admit(true, "eng1", "BTCUSDT", decimal.NewFromFloat(100), decimal.NewFromFloat(5.0))
	assert.Contains(t, reason, "RISK")
}

func TestCascade_ShadowModeSkipsRiskPreCheck(t *testing.T) {
	c := newTestCascade()
	// A quantity that would blow through any sane position ceiling is still
	// admitted in shadow: the live risk pre-check never runs there.
	reason := c.Admit(false, "eng1", "BTCUSDT", decimal.NewFromFloat(100), decimal.NewFromFloat(5.0))
	assert.Equal(t, "", reason)
}

func TestCascade_PnLDenialBeforeDesk(t *testing.T) {
	c := newTestCascade()
	c.Desk.Register("eng1", "desk1")
	for i := 0; i < 6; i++ {
		c.Desk.OnFill("eng1", decimal.NewFromFloat(-20)) // desk1 would deny too
	}
	c.PnL.BlockEngine("eng1")
	reason := c.Admit(false, "eng1", "BTCUSDT", decimal.NewFromFloat(100), decimal.NewFromFloat(0.01))
	assert.Contains(t, reason, "PNL")
}

func TestCascade_LatencyCriticalBlocksEvenWhenEverythingElsePasses(t *testing.T) {
	c := newTestCascade()
	for i := 0; i < 200; i++ {
		c.Latency.OnAck(decimal.NewFromInt(10000))
	}
	reason := c.Admit(false, "eng1", "BTCUSDT", decimal.NewFromFloat(100), decimal.NewFromFloat(0.01))
	assert.Contains(t, reason, "LATENCY")
}
