package ledger

import (
	"chimera/internal/core"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

var (
	minEdgeFloor   = decimal.NewFromFloat(5.0)
	minEdgeCeiling = decimal.NewFromFloat(50.0)

	sizeMultFloor   = decimal.NewFromFloat(0.1)
	sizeMultCeiling = decimal.NewFromFloat(3.0)

	softTTLFloor   = decimal.NewFromFloat(0.15)
	softTTLCeiling = decimal.NewFromFloat(0.60)

	tuneEVHighBps = decimal.NewFromFloat(5.0)
	fillRateLow   = decimal.NewFromFloat(0.15)
	cancelRateLow = decimal.NewFromFloat(0.30)

	minFillsToTune = int64(5)
)

// TuneAll runs one auto-tuning pass over every engine with at least
// minFillsToTune fills, adjusting min_edge_bps, size_multiplier, and
// soft_ttl_fill_prob per the EV/fill-rate/cancel-rate rules.
func (l *Ledger) TuneAll(logger core.ILogger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for engineID, e := range l.engines {
		if e.fills < minFillsToTune {
			continue
		}
		l.tuneLocked(engineID, e, logger)
	}
}

func (l *Ledger) tuneLocked(engineID string, e *engineState, logger core.ILogger) {
	p := e.params

	switch {
	case e.evEWMA.GreaterThan(tuneEVHighBps):
		p.MinEdgeBps = clamp(p.MinEdgeBps.Sub(decimal.NewFromFloat(1.0)), minEdgeFloor, minEdgeCeiling)
		p.SizeMultiplier = clamp(p.SizeMultiplier.Mul(decimal.NewFromFloat(1.1)), sizeMultFloor, sizeMultCeiling)
	case e.evEWMA.LessThan(decimal.Zero):
		p.MinEdgeBps = clamp(p.MinEdgeBps.Add(decimal.NewFromFloat(2.0)), minEdgeFloor, minEdgeCeiling)
		p.SizeMultiplier = clamp(p.SizeMultiplier.Mul(decimal.NewFromFloat(0.8)), sizeMultFloor, sizeMultCeiling)
	}

	if e.submits > 0 {
		fillRate := decimal.NewFromInt(e.fills).Div(decimal.NewFromInt(e.submits))
		cancelRate := decimal.NewFromInt(e.cancels).Div(decimal.NewFromInt(e.submits))

		if fillRate.LessThan(fillRateLow) {
			p.SoftTTLFillProb = clamp(p.SoftTTLFillProb.Sub(decimal.NewFromFloat(0.05)), softTTLFloor, softTTLCeiling)
		}
		if cancelRate.LessThan(cancelRateLow) {
			p.SoftTTLFillProb = clamp(p.SoftTTLFillProb.Add(decimal.NewFromFloat(0.05)), softTTLFloor, softTTLCeiling)
		}
	}

	e.params = p
	if logger != nil {
		logger.Debug("auto-tuner pass", "engine", engineID, "min_edge_bps", p.MinEdgeBps.String(), "size_multiplier", p.SizeMultiplier.String())
	}
}

func clamp(v, floor, ceiling decimal.Decimal) decimal.Decimal {
	if v.LessThan(floor) {
		return floor
	}
	if v.GreaterThan(ceiling) {
		return ceiling
	}
	return v
}

// AutoTuner wraps a cron schedule driving periodic TuneAll passes.
type AutoTuner struct {
	cron   *cron.Cron
	ledger *Ledger
	logger core.ILogger
}

// NewAutoTuner builds a cron-scheduled tuner using spec, e.g. "@every 5m".
func NewAutoTuner(l *Ledger, spec string, logger core.ILogger) (*AutoTuner, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() { l.TuneAll(logger) })
	if err != nil {
		return nil, err
	}
	return &AutoTuner{cron: c, ledger: l, logger: logger}, nil
}

func (t *AutoTuner) Start() { t.cron.Start() }
func (t *AutoTuner) Stop()  { t.cron.Stop() }
