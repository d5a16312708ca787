package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// latencyWindow is a fixed-size ring buffer over the most recent ACK
// latency samples, used to compute a rolling p95.
type latencyWindow struct {
	samples []decimal.Decimal
	cap     int
	next    int
	full    bool
}

func newLatencyWindow(capacity int) *latencyWindow {
	return &latencyWindow{samples: make([]decimal.Decimal, capacity), cap: capacity}
}

func (w *latencyWindow) add(sample decimal.Decimal) {
	w.samples[w.next] = sample
	w.next = (w.next + 1) % w.cap
	if w.next == 0 {
		w.full = true
	}
}

func (w *latencyWindow) p95() decimal.Decimal {
	n := w.next
	if w.full {
		n = w.cap
	}
	if n == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, n)
	copy(sorted, w.samples[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	idx := int(float64(n) * 0.95)
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
