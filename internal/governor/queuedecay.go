package governor

import (
	"sync"
	"time"

	"chimera/internal/federation"

	"github.com/shopspring/decimal"
)

const urgencyK = 0.002

var epsilon = decimal.NewFromFloat(0.0001)

// QueueDecayEntry is a tracked live order's submit-time context.
type QueueDecayEntry struct {
	ClientID    string
	Symbol      string
	Price       decimal.Decimal
	IsBuy       bool
	SubmittedAt time.Time
}

// QueueDecay is the Queue Decay Governor: every live order is tracked from
// submit until terminal, and each execution tick the router re-checks the
// still-open set against a hard TTL and a soft-TTL-plus-urgency rule.
type QueueDecay struct {
	mu      sync.Mutex
	entries map[string]QueueDecayEntry

	hardTTL           time.Duration
	softTTL           time.Duration
	urgencyThreshold  decimal.Decimal

	fed *federation.Federation
}

func NewQueueDecay(hardTTLSeconds, softTTLSeconds float64, urgencyThreshold decimal.Decimal, fed *federation.Federation) *QueueDecay {
	return &QueueDecay{
		entries:          make(map[string]QueueDecayEntry),
		hardTTL:          time.Duration(hardTTLSeconds * float64(time.Second)),
		softTTL:          time.Duration(softTTLSeconds * float64(time.Second)),
		urgencyThreshold: urgencyThreshold,
		fed:              fed,
	}
}

// Track begins tracking a freshly submitted live order.
func (q *QueueDecay) Track(clientID, symbol string, price decimal.Decimal, isBuy bool, submittedAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[clientID] = QueueDecayEntry{
		ClientID:    clientID,
		Symbol:      symbol,
		Price:       price,
		IsBuy:       isBuy,
		SubmittedAt: submittedAt,
	}
}

// Untrack removes clientID once it reaches a terminal state.
func (q *QueueDecay) Untrack(clientID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, clientID)
}

// Snapshot returns every currently-tracked entry for the router's poll tick.
func (q *QueueDecay) Snapshot() []QueueDecayEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueueDecayEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e)
	}
	return out
}

// Evaluate checks a single tracked entry against the hard TTL and the
// soft-TTL-plus-urgency rule, firing cancel-federation on a breach.
// fillProb and ackLatencyUs are supplied by the caller (the Queue Model and
// Latency Governor respectively) to keep this governor decoupled from them.
func (q *QueueDecay) Evaluate(entry QueueDecayEntry, fillProb, ackLatencyUs decimal.Decimal, now time.Time) {
	age := now.Sub(entry.SubmittedAt)
	if age >= q.hardTTL {
		if q.fed != nil {
			q.fed.Trigger("QUEUE_DECAY: hard TTL exceeded")
		}
		return
	}

	if age < q.softTTL {
		return
	}

	urgency := decimal.NewFromInt(1).Div(fillProb.Add(epsilon)).
		Mul(decimal.NewFromInt(1).Add(ackLatencyUs.Mul(decimal.NewFromFloat(urgencyK))))

	if urgency.GreaterThan(q.urgencyThreshold) {
		if q.fed != nil {
			q.fed.Trigger("QUEUE_DECAY: urgency breach past soft TTL")
		}
	}
}
