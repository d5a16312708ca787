package governor

import "github.com/shopspring/decimal"

// Cascade bundles the governors the Router queries, in fixed order, on every
// admission. liveMode controls whether the Arm step participates: shadow
// mode never checks Arm.
type Cascade struct {
	Arm     *Arm
	Risk    *Risk
	PnL     *PnL
	Desk    *Desk
	Latency *Latency
}

// Admit runs Arm (live only) -> Risk (live only) -> PnL -> Desk ->
// Latency-critical, in that fixed order, and returns the first denial's
// reason, or "" if every step passed. Risk.PreCheck is gated on liveMode the
// same as Arm: shadow mode never touches the live risk ceiling, since shadow
// positions accumulate from simulated fills with no corresponding exchange
// reset, and a shadow engine that hits max_position would otherwise wedge
// itself into a permanent submit->block loop. In shadow the queue-
// probability admission check is the sole gate.
func (c *Cascade) Admit(liveMode bool, engineID, symbol string, price, signedQty decimal.Decimal) string {
	if liveMode && !c.Arm.Allow() {
		return "ARM: system not verified for live trading"
	}
	if liveMode && !c.Risk.PreCheck(symbol, price, signedQty) {
		return "RISK: position or portfolio ceiling breach"
	}
	if !c.PnL.AllowStrategy(engineID) {
		return "PNL: engine or portfolio drawdown blocked"
	}
	if !c.Desk.AllowSubmit(engineID) {
		return "DESK: engine's desk is paused"
	}
	if c.Latency.Critical() {
		return "LATENCY: critical ladder rung, cancel-federation demanded"
	}
	return ""
}
