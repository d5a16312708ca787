package governor

import (
	"sync"

	"chimera/internal/federation"
	"chimera/internal/quant"

	"github.com/shopspring/decimal"
)

var (
	latencyAlpha = decimal.NewFromFloat(0.1)

	latencyWarnUs     = decimal.NewFromInt(500)
	latencyStressedUs = decimal.NewFromInt(2000)
	latencyCriticalUs = decimal.NewFromInt(5000)

	sizeMultiplierNormal   = decimal.NewFromFloat(1.0)
	sizeMultiplierWarn     = decimal.NewFromFloat(0.5)
	sizeMultiplierStressed = decimal.NewFromFloat(0.25)
)

// Latency is the Latency Governor: an EWMA of ACK round-trip time in
// microseconds, mapped onto a four-rung ladder. At the critical rung it
// demands a federation-wide cancel sweep rather than just derating size.
type Latency struct {
	mu      sync.RWMutex
	ewmaUs  decimal.Decimal
	fed     *federation.Federation
}

func NewLatency(fed *federation.Federation) *Latency {
	return &Latency{fed: fed}
}

// OnAck folds a new ACK latency sample (microseconds) into the EWMA and
// escalates to cancel-federation if the critical rung is reached.
func (l *Latency) OnAck(latencyUs decimal.Decimal) {
	l.mu.Lock()
	l.ewmaUs = quant.Ewma(l.ewmaUs, latencyUs, latencyAlpha)
	critical := l.ewmaUs.GreaterThanOrEqual(latencyCriticalUs)
	l.mu.Unlock()

	if critical && l.fed != nil {
		l.fed.Trigger("LATENCY_GOVERNOR: critical ACK latency")
	}
}

// EwmaUs returns the current latency EWMA in microseconds.
func (l *Latency) EwmaUs() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ewmaUs
}

// SizeMultiplier returns the ladder rung's size multiplier for the current
// EWMA.
func (l *Latency) SizeMultiplier() decimal.Decimal {
	l.mu.RLock()
	ewma := l.ewmaUs
	l.mu.RUnlock()

	switch {
	case ewma.LessThan(latencyWarnUs):
		return sizeMultiplierNormal
	case ewma.LessThan(latencyStressedUs):
		return sizeMultiplierWarn
	default:
		return sizeMultiplierStressed
	}
}

// Critical reports whether the EWMA is at or past the critical rung.
func (l *Latency) Critical() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ewmaUs.GreaterThanOrEqual(latencyCriticalUs)
}
