package router

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"chimera/internal/coalescer"
	"chimera/internal/core"
	"chimera/internal/eventlog"
	"chimera/internal/exchangeadapter"
	"chimera/internal/federation"
	"chimera/internal/governor"
	"chimera/internal/ledger"
	"chimera/internal/osm"
	"chimera/internal/queue"
	"chimera/internal/telemetry"
	"chimera/internal/throttle"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})                     {}
func (nopLogger) Info(string, ...interface{})                      {}
func (nopLogger) Warn(string, ...interface{})                      {}
func (nopLogger) Error(string, ...interface{})                     {}
func (nopLogger) Fatal(string, ...interface{})                     {}
func (l nopLogger) WithField(string, interface{}) core.ILogger     { return l }
func (l nopLogger) WithFields(map[string]interface{}) core.ILogger { return l }

func testSymbols() []core.Symbol {
	return []core.Symbol{
		{
			Name:        "BTCUSDT",
			LotSize:     decimal.NewFromFloat(0.001),
			MinNotional: decimal.NewFromFloat(10),
			MaxPosition: decimal.NewFromFloat(5.0),
		},
	}
}

// harness bundles a fully-wired shadow-mode Router and every collaborator a
// test might want to poke directly.
type harness struct {
	router   *Router
	osm      *osm.OSM
	queue    *queue.Model
	ledger   *ledger.Ledger
	cascade  *governor.Cascade
	coalesce *coalescer.Coalescer
	fed      *federation.Federation
	telem    *telemetry.State
	elog     *eventlog.Writer
	elogPath string
}

func newHarness(t *testing.T, liveMode bool, adapter core.ExchangeAdapter) *harness {
	t.Helper()
	symbols := testSymbols()
	fed := federation.New()
	pnl := governor.NewPnL(decimal.NewFromFloat(-1000), decimal.NewFromFloat(-100000))
	cascade := &governor.Cascade{
		Arm:     governor.NewArm(0),
		Risk:    governor.NewRisk(symbols, decimal.NewFromFloat(1_000_000), fed),
		PnL:     pnl,
		Desk:    governor.NewDesk(fed),
		Latency: governor.NewLatency(fed),
	}
	cascade.Desk.Register("E1", "DESK1")

	led := ledger.New(ledger.Config{
		FeeBps:                 1,
		SafetyMultiplier:       1,
		DefaultVolatilityBpsMs: 0.5,
		KillFloorBps:           -3,
		KillSustainSeconds:     180,
		KillMinFills:           10,
	})
	led.RegisterEngine("E1")

	path := filepath.Join(t.TempDir(), "events.bin")
	elog, err := eventlog.NewWriter(path, eventlog.DefaultMaxSize, false, 0, nopLogger{})
	require.NoError(t, err)

	coal := coalescer.New()
	telem := telemetry.NewState()

	r := New(Config{
		Symbols:    symbols,
		OSM:        osm.New(),
		QueueModel: queue.NewModel(),
		Ledger:     led,
		Cascade:    cascade,
		Edge:       governor.NewEdge(pnl),
		QueueDecay: governor.NewQueueDecay(60, 5, decimal.NewFromFloat(50), fed),
		Coalescer:  coal,
		Throttle:   throttle.New(1000, 1000),
		EventLog:   elog,
		Federation: fed,
		Telemetry:  telem,
		Adapter:    adapter,
		LiveMode:   liveMode,
		Logger:     nopLogger{},
	})

	h := &harness{
		router:   r,
		osm:      r.osm,
		queue:    r.queueModel,
		ledger:   led,
		cascade:  cascade,
		coalesce: coal,
		fed:      fed,
		telem:    telem,
		elog:     elog,
		elogPath: path,
	}
	t.Cleanup(func() { elog.Close() })
	return h
}

func (h *harness) setBook(symbol string, bid, bidQty, ask, askQty float64) {
	h.queue.OnBookUpdate(symbol,
		decimal.NewFromFloat(bid), decimal.NewFromFloat(bidQty),
		decimal.NewFromFloat(ask), decimal.NewFromFloat(askQty),
		time.Now().UnixNano())
}

func readEventTypes(t *testing.T, path string) []core.EventType {
	t.Helper()
	entries, err := eventlog.ReadAll(path)
	require.NoError(t, err)
	types := make([]core.EventType, 0, len(entries))
	for _, e := range entries {
		types = append(types, e.EventType)
	}
	return types
}

// Scenario 1: a marketable shadow submit clears the fill-probability
// threshold on the very first poll and fills deterministically.
func TestSubmitOrder_ShadowFillsWhenMarketable(t *testing.T) {
	h := newHarness(t, false, nil)
	h.setBook("BTCUSDT", 100, 5, 100.1, 5)

	clientID, err := h.router.SubmitOrder(core.OrderIntent{
		EngineID:         "E1",
		Symbol:           "BTCUSDT",
		SignedQuantity:   decimal.NewFromFloat(1.0),
		LimitPrice:       decimal.NewFromFloat(100.1),
		PredictedEdgeBps: decimal.NewFromFloat(50),
	})
	require.NoError(t, err)
	require.NotEmpty(t, clientID)

	rec, err := h.osm.Get(clientID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusAcked, rec.Status)

	h.router.Poll(nil)

	rec, err = h.osm.Get(clientID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFilled, rec.Status)
	assert.EqualValues(t, 1, h.telem.ShadowFills)

	types := readEventTypes(t, h.elogPath)
	assert.Contains(t, types, core.EventSubmit)
	assert.Contains(t, types, core.EventFill)
}

// Scenario 2: an order blocked by the cascade never reaches the OSM or the
// event log's submit record.
func TestSubmitOrder_CascadeBlockLeavesNoTrace(t *testing.T) {
	// Live mode: the risk pre-check never runs in shadow.
	h := newHarness(t, true, exchangeadapter.NewMockAdapter())
	h.cascade.Arm.Request()
	require.NoError(t, h.cascade.Arm.Confirm())
	require.NoError(t, h.cascade.Arm.Verify())
	h.setBook("BTCUSDT", 100, 5, 100.1, 5)

	// Push the position right up to the symbol's max before the real
	// submit under test, so PreCheck denies it.
	h.cascade.Risk.OnExecutionAck("BTCUSDT", decimal.NewFromFloat(5.0))

	clientID, err := h.router.SubmitOrder(core.OrderIntent{
		EngineID:         "E1",
		Symbol:           "BTCUSDT",
		SignedQuantity:   decimal.NewFromFloat(1.0),
		LimitPrice:       decimal.NewFromFloat(100.1),
		PredictedEdgeBps: decimal.NewFromFloat(50),
	})
	assert.Error(t, err)
	assert.Empty(t, clientID)
	assert.EqualValues(t, 1, h.telem.RiskBlocks)

	types := readEventTypes(t, h.elogPath)
	assert.NotContains(t, types, core.EventSubmit)
	assert.Empty(t, h.osm.OpenClientIDs())
}

// Scenario 6: a second submit for the same (engine, symbol) at a different
// price cancels the first pending order and coalesces into one.
func TestSubmitOrder_CoalescesCancelReplace(t *testing.T) {
	h := newHarness(t, false, nil)
	// Passive (non-marketable) book so the first order stays pending.
	h.setBook("BTCUSDT", 90, 5, 100, 5)

	intent := core.OrderIntent{
		EngineID:         "E1",
		Symbol:           "BTCUSDT",
		SignedQuantity:   decimal.NewFromFloat(1.0),
		LimitPrice:       decimal.NewFromFloat(90),
		// A passive bid behind 5 on a ~1053 bps spread needs about 453 bps
		// of predicted edge to clear the admission threshold.
		PredictedEdgeBps: decimal.NewFromFloat(1000),
	}
	firstID, err := h.router.SubmitOrder(intent)
	require.NoError(t, err)

	intent.LimitPrice = decimal.NewFromFloat(91)
	secondID, err := h.router.SubmitOrder(intent)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	firstRec, err := h.osm.Get(firstID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCanceled, firstRec.Status)

	_, ok := h.coalesce.Get(firstID)
	assert.False(t, ok)
	_, ok = h.coalesce.Get(secondID)
	assert.True(t, ok)
	assert.EqualValues(t, 1, h.telem.CoalescedCancels)
}

// A cancel-federation trigger cancels every still-open order on the next
// poll and drift-kills the risk governor.
func TestPoll_CancelFederationSweepCancelsOpenOrders(t *testing.T) {
	h := newHarness(t, false, nil)
	h.setBook("BTCUSDT", 90, 5, 100, 5)

	clientID, err := h.router.SubmitOrder(core.OrderIntent{
		EngineID:         "E1",
		Symbol:           "BTCUSDT",
		SignedQuantity:   decimal.NewFromFloat(1.0),
		LimitPrice:       decimal.NewFromFloat(90),
		PredictedEdgeBps: decimal.NewFromFloat(1000), // clears the ~453 bps threshold
	})
	require.NoError(t, err)

	h.fed.Trigger("TEST: manual sweep")
	h.router.Poll(nil)

	rec, err := h.osm.Get(clientID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCanceled, rec.Status)
	assert.True(t, h.cascade.Risk.Killed())

	_, ok := h.coalesce.Get(clientID)
	assert.False(t, ok)
}

// Live mode exercises the real core.ExchangeAdapter surface end to end via
// the in-process mock, including the ACK->latency->FILL path.
func TestSubmitOrder_LiveModeAcksAndFillsThroughAdapter(t *testing.T) {
	adapter := exchangeadapter.NewMockAdapter()
	h := newHarness(t, true, adapter)
	h.cascade.Arm.Request()
	require.NoError(t, h.cascade.Arm.Confirm())
	require.NoError(t, h.cascade.Arm.Verify())
	h.setBook("BTCUSDT", 100, 5, 100.1, 5)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go adapter.RunUser(ctx, h.router.OnUserEvent) //nolint:errcheck

	clientID, err := h.router.SubmitOrder(core.OrderIntent{
		EngineID:         "E1",
		Symbol:           "BTCUSDT",
		SignedQuantity:   decimal.NewFromFloat(1.0),
		LimitPrice:       decimal.NewFromFloat(100.1),
		PredictedEdgeBps: decimal.NewFromFloat(50),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		h.router.Poll(nil)
		rec, err := h.osm.Get(clientID)
		return err == nil && rec.Status == core.StatusAcked
	}, time.Second, time.Millisecond)

	adapter.Fill(clientID, decimal.NewFromFloat(1.0), decimal.NewFromFloat(100.1))

	require.Eventually(t, func() bool {
		h.router.Poll(nil)
		rec, err := h.osm.Get(clientID)
		return err == nil && rec.Status == core.StatusFilled
	}, time.Second, time.Millisecond)

	assert.EqualValues(t, 1, h.telem.LiveFills)
}

// newTunedHarness mirrors newHarness but lets a test pick tight ledger/PnL
// thresholds so a kill/drift condition can be reached in a handful of fills
// instead of the production defaults' 10-fill/180s/−500 USD thresholds.
func newTunedHarness(t *testing.T, ledgerCfg ledger.Config, strategyFloorUSD, portfolioDDUSD decimal.Decimal) *harness {
	t.Helper()
	symbols := testSymbols()
	fed := federation.New()
	pnl := governor.NewPnL(strategyFloorUSD, portfolioDDUSD)
	cascade := &governor.Cascade{
		Arm:     governor.NewArm(0),
		Risk:    governor.NewRisk(symbols, decimal.NewFromFloat(1_000_000), fed),
		PnL:     pnl,
		Desk:    governor.NewDesk(fed),
		Latency: governor.NewLatency(fed),
	}
	cascade.Desk.Register("E1", "DESK1")

	led := ledger.New(ledgerCfg)
	led.RegisterEngine("E1")

	path := filepath.Join(t.TempDir(), "events.bin")
	elog, err := eventlog.NewWriter(path, eventlog.DefaultMaxSize, false, 0, nopLogger{})
	require.NoError(t, err)

	coal := coalescer.New()
	telem := telemetry.NewState()

	r := New(Config{
		Symbols:    symbols,
		OSM:        osm.New(),
		QueueModel: queue.NewModel(),
		Ledger:     led,
		Cascade:    cascade,
		Edge:       governor.NewEdge(pnl),
		QueueDecay: governor.NewQueueDecay(60, 5, decimal.NewFromFloat(50), fed),
		Coalescer:  coal,
		Throttle:   throttle.New(1000, 1000),
		EventLog:   elog,
		Federation: fed,
		Telemetry:  telem,
		Adapter:    nil,
		LiveMode:   false,
		Logger:     nopLogger{},
	})

	h := &harness{
		router:   r,
		osm:      r.osm,
		queue:    r.queueModel,
		ledger:   led,
		cascade:  cascade,
		coalesce: coal,
		fed:      fed,
		telem:    telem,
		elog:     elog,
		elogPath: path,
	}
	t.Cleanup(func() { elog.Close() })
	return h
}

// Ledger's sustained-loss kill must actually reach the PnL Governor: once
// Ledger.Killed flips true for an engine, the router is required to call
// PnL.BlockEngine so AllowStrategy starts denying that engine everywhere,
// not just leave Ledger.Killed as unread bookkeeping.
func TestShadowFill_LedgerSustainedLossKillReachesPnLGovernor(t *testing.T) {
	h := newTunedHarness(t, ledger.Config{
		FeeBps:                 0,
		SafetyMultiplier:       1,
		DefaultVolatilityBpsMs: 0.5,
		KillFloorBps:           -3,
		KillSustainSeconds:     0,
		KillMinFills:           3,
	}, decimal.NewFromFloat(-1_000_000), decimal.NewFromFloat(-1_000_000))

	// Wide, deeply unmarketable spread: every shadow fill at the ask realizes
	// a large negative bps move versus mid, driving the EV EWMA well past
	// the kill floor within KillMinFills fills.
	h.setBook("BTCUSDT", 50, 5, 100, 5)

	assert.True(t, h.cascade.PnL.AllowStrategy("E1"), "must be allowed before any loss accrues")

	for i := 0; i < 3; i++ {
		_, err := h.router.SubmitOrder(core.OrderIntent{
			EngineID:         "E1",
			Symbol:           "BTCUSDT",
			SignedQuantity:   decimal.NewFromFloat(1.0),
			LimitPrice:       decimal.NewFromFloat(100),
			PredictedEdgeBps: decimal.NewFromFloat(100_000),
		})
		require.NoError(t, err)
		h.router.Poll(nil)
	}

	assert.True(t, h.ledger.Killed("E1"), "ledger must have tripped its sustained-loss kill")
	assert.False(t, h.cascade.PnL.AllowStrategy("E1"), "PnL Governor must have been told to block the killed engine")
}

// A portfolio-wide drawdown must not just block new submits: it has to
// escalate to Cancel Federation (and, through the sweep, to Risk.Drift),
// per spec.md's Fatal error taxonomy.
func TestPoll_PortfolioDrawdownKillEscalatesToCancelFederation(t *testing.T) {
	h := newTunedHarness(t, ledger.Config{
		FeeBps:                 0,
		SafetyMultiplier:       1,
		DefaultVolatilityBpsMs: 0.5,
		KillFloorBps:           -1_000_000,
		KillSustainSeconds:     180,
		KillMinFills:           10,
	}, decimal.NewFromFloat(-1_000_000), decimal.NewFromFloat(-10))

	h.setBook("BTCUSDT", 50, 5, 100, 5)

	_, err := h.router.SubmitOrder(core.OrderIntent{
		EngineID:         "E1",
		Symbol:           "BTCUSDT",
		SignedQuantity:   decimal.NewFromFloat(1.0),
		LimitPrice:       decimal.NewFromFloat(100),
		PredictedEdgeBps: decimal.NewFromFloat(100_000),
	})
	require.NoError(t, err)

	assert.False(t, h.fed.Triggered())
	h.router.Poll(nil) // applies the shadow fill, which breaches portfolioDD
	assert.True(t, h.cascade.PnL.PortfolioKilled())

	h.router.Poll(nil) // observes PortfolioKilled and sweeps
	assert.True(t, h.fed.Triggered())
	assert.True(t, h.cascade.Risk.Killed())
}
