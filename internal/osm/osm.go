// Package osm implements the Order State Machine: the canonical per-order
// record with dual-index lookup (client_id primary, exchange_id secondary)
// and an explicit forward-only state graph.
//
// Lock ordering: a single mutex guards both the primary and secondary index.
// They are always updated in lockstep, under the same critical section —
// never acquire one without the other already held.
package osm

import (
	"sync"
	"time"

	"chimera/internal/core"

	apperrors "chimera/pkg/errors"

	"github.com/segmentio/ksuid"
	"github.com/shopspring/decimal"
)

// OSM is the single-mutex, dual-indexed order store.
type OSM struct {
	mu sync.Mutex

	primary   map[string]*core.OrderRecord // client_id -> record
	secondary map[string]string            // exchange_id -> client_id
}

func New() *OSM {
	return &OSM{
		primary:   make(map[string]*core.OrderRecord),
		secondary: make(map[string]string),
	}
}

// NextClientID allocates a process-unique, engine-namespaced client id. KSUIDs
// are K-sortable, so forensic log correlation can order ids by creation time
// without consulting the event log's own causal counter.
func NextClientID(engineID string) string {
	return engineID + "_" + ksuid.New().String()
}

// OnNew inserts a fresh order in NEW status. No exchange id yet.
func (o *OSM) OnNew(rec core.OrderRecord) {
	rec.Status = core.StatusNew
	rec.LastUpdateTimestampNs = time.Now().UnixNano()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.primary[rec.ClientID] = &rec
}

// OnAck transitions NEW -> ACKED and populates the secondary index.
func (o *OSM) OnAck(clientID, exchangeID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.primary[clientID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if rec.Status != core.StatusNew {
		return nil // already acked or moved on; idempotent no-op
	}
	rec.ExchangeID = exchangeID
	rec.Status = core.StatusAcked
	rec.LastUpdateTimestampNs = time.Now().UnixNano()
	o.secondary[exchangeID] = clientID
	return nil
}

// OnFill decrements remaining quantity via the secondary index, O(1).
// filledQty is an unsigned fill size; it is applied toward zero on whichever
// side rec.SignedRemainingQty currently sits. Transitions to PARTIALLY_FILLED
// or FILLED; removes the secondary index entry on FILLED.
func (o *OSM) OnFill(exchangeID string, filledQty decimal.Decimal) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	clientID, ok := o.secondary[exchangeID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	rec, ok := o.primary[clientID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if rec.Status.IsTerminal() {
		return nil
	}

	remaining := decrementTowardZero(rec.SignedRemainingQty, filledQty.Abs())
	rec.SignedRemainingQty = remaining
	rec.LastUpdateTimestampNs = time.Now().UnixNano()

	if remaining.IsZero() {
		rec.Status = core.StatusFilled
		delete(o.secondary, exchangeID)
	} else {
		rec.Status = core.StatusPartiallyFilled
	}
	return nil
}

// decrementTowardZero reduces |remaining| by magnitude, preserving sign and
// never overshooting past zero (a late or duplicated fill report clamps
// rather than flipping the order to the opposite side).
func decrementTowardZero(remaining, magnitude decimal.Decimal) decimal.Decimal {
	if remaining.IsNegative() {
		result := remaining.Add(magnitude)
		if result.IsPositive() {
			return decimal.Zero
		}
		return result
	}
	result := remaining.Sub(magnitude)
	if result.IsNegative() {
		return decimal.Zero
	}
	return result
}

// OnCancel transitions to CANCELED via the secondary index (post-ACK path).
func (o *OSM) OnCancel(exchangeID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	clientID, ok := o.secondary[exchangeID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	return o.cancelLocked(clientID, exchangeID)
}

// OnCancelByClientID covers the pre-ACK case where no exchange id exists yet.
func (o *OSM) OnCancelByClientID(clientID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.primary[clientID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	return o.cancelLocked(clientID, rec.ExchangeID)
}

func (o *OSM) cancelLocked(clientID, exchangeID string) error {
	rec, ok := o.primary[clientID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if rec.Status.IsTerminal() {
		return nil
	}
	rec.Status = core.StatusCanceled
	rec.LastUpdateTimestampNs = time.Now().UnixNano()
	if exchangeID != "" {
		delete(o.secondary, exchangeID)
	}
	return nil
}

// OnReject transitions NEW -> REJECTED.
func (o *OSM) OnReject(clientID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.primary[clientID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if rec.Status != core.StatusNew {
		return nil
	}
	rec.Status = core.StatusRejected
	rec.LastUpdateTimestampNs = time.Now().UnixNano()
	return nil
}

// IsOpen reports whether clientID currently names a live order.
func (o *OSM) IsOpen(clientID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.primary[clientID]
	return ok && rec.Status.IsOpen()
}

// Get returns a copy of the order record, or ErrOrderNotFound.
func (o *OSM) Get(clientID string) (core.OrderRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.primary[clientID]
	if !ok {
		return core.OrderRecord{}, apperrors.ErrOrderNotFound
	}
	return *rec, nil
}

// ClientIDFor resolves the secondary index (exchange_id -> client_id) without
// mutating anything; used by the truth loop's divergence check.
func (o *OSM) ClientIDFor(exchangeID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	clientID, ok := o.secondary[exchangeID]
	return clientID, ok
}

// OpenClientIDs returns every client id currently in a non-terminal state.
func (o *OSM) OpenClientIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.primary))
	for clientID, rec := range o.primary {
		if rec.Status.IsOpen() {
			out = append(out, clientID)
		}
	}
	return out
}

// DumpOrders returns a point-in-time copy of every order record, for snapshotting.
func (o *OSM) DumpOrders() []core.OrderRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.OrderRecord, 0, len(o.primary))
	for _, rec := range o.primary {
		out = append(out, *rec)
	}
	return out
}

// RestoreOrder reinserts a record from a snapshot, rebuilding the secondary
// index entry if the order is in an open, post-ACK state.
func (o *OSM) RestoreOrder(rec core.OrderRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := rec
	o.primary[rec.ClientID] = &cp
	if rec.ExchangeID != "" && (rec.Status == core.StatusAcked || rec.Status == core.StatusPartiallyFilled) {
		o.secondary[rec.ExchangeID] = rec.ClientID
	}
}

// PurgeTerminal removes every record in a terminal state and returns the
// count removed, bounding memory growth over a long-running process.
func (o *OSM) PurgeTerminal() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	removed := 0
	for clientID, rec := range o.primary {
		if rec.Status.IsTerminal() {
			delete(o.primary, clientID)
			removed++
		}
	}
	return removed
}
