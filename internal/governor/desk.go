package governor

import (
	"sync"

	"chimera/internal/core"
	"chimera/internal/federation"
	"chimera/internal/quant"

	"github.com/shopspring/decimal"
)

var (
	deskAlpha       = decimal.NewFromFloat(0.05)
	deskPauseBps    = decimal.NewFromFloat(-5.0)
	deskPauseTrades = int64(5)
)

// Desk is the Desk Arbiter: many engines roll up to one desk; a desk with
// enough trades and a sufficiently negative PnL EWMA pauses every engine
// under it. Two or more desks paused at once is a system-level event and
// escalates to cancel-federation.
type Desk struct {
	mu sync.Mutex

	engineToDesk map[string]string
	desks        map[string]*core.DeskState

	fed *federation.Federation
}

func NewDesk(fed *federation.Federation) *Desk {
	return &Desk{
		engineToDesk: make(map[string]string),
		desks:        make(map[string]*core.DeskState),
		fed:          fed,
	}
}

// Register assigns engineID to deskID. Called at startup only.
func (d *Desk) Register(engineID, deskID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.engineToDesk[engineID] = deskID
	if _, ok := d.desks[deskID]; !ok {
		d.desks[deskID] = &core.DeskState{DeskID: deskID}
	}
}

// OnFill folds a fill's realized bps into the engine's desk EWMA.
func (d *Desk) OnFill(engineID string, netBps decimal.Decimal) {
	d.mu.Lock()
	deskID, ok := d.engineToDesk[engineID]
	if !ok {
		d.mu.Unlock()
		return
	}
	desk := d.desks[deskID]
	d.mu.Unlock()

	desk.Lock()
	desk.EwmaPnLBps = quant.Ewma(desk.EwmaPnLBps, netBps, deskAlpha)
	desk.Trades++
	wasPaused := desk.Paused
	if desk.Trades >= deskPauseTrades && desk.EwmaPnLBps.LessThan(deskPauseBps) {
		desk.Paused = true
	} else if desk.EwmaPnLBps.GreaterThanOrEqual(decimal.Zero) {
		desk.Paused = false
	}
	becamePaused := desk.Paused && !wasPaused
	desk.Unlock()

	if becamePaused {
		d.checkDualPause()
	}
}

func (d *Desk) checkDualPause() {
	d.mu.Lock()
	desks := make([]*core.DeskState, 0, len(d.desks))
	for _, desk := range d.desks {
		desks = append(desks, desk)
	}
	d.mu.Unlock()

	paused := 0
	for _, desk := range desks {
		desk.RLock()
		if desk.Paused {
			paused++
		}
		desk.RUnlock()
	}
	if paused >= 2 && d.fed != nil {
		d.fed.Trigger("DESK_REGIME: multiple desks paused concurrently")
	}
}

// AllowSubmit returns false for engines whose desk is currently paused.
func (d *Desk) AllowSubmit(engineID string) bool {
	d.mu.Lock()
	deskID, ok := d.engineToDesk[engineID]
	var desk *core.DeskState
	if ok {
		desk = d.desks[deskID]
	}
	d.mu.Unlock()
	if !ok {
		return true
	}
	desk.RLock()
	defer desk.RUnlock()
	return !desk.Paused
}
