package governor

import (
	"testing"
	"time"

	"chimera/internal/federation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDecay_TrackAndSnapshot(t *testing.T) {
	q := NewQueueDecay(5, 1, decimal.NewFromFloat(12.0), federation.New())
	now := time.Now()
	q.Track("C1", "BTCUSDT", decimal.NewFromFloat(100), true, now)

	snap := q.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "C1", snap[0].ClientID)

	q.Untrack("C1")
	assert.Empty(t, q.Snapshot())
}

func TestQueueDecay_HardTTLTriggersFederation(t *testing.T) {
	fed := federation.New()
	q := NewQueueDecay(5, 1, decimal.NewFromFloat(12.0), fed)
	old := time.Now().Add(-10 * time.Second)
	entry := QueueDecayEntry{ClientID: "C1", Symbol: "BTCUSDT", SubmittedAt: old}

	q.Evaluate(entry, decimal.NewFromFloat(0.5), decimal.NewFromInt(100), time.Now())
	assert.True(t, fed.Triggered())
}

func TestQueueDecay_UrgencyBreachPastSoftTTLTriggersFederation(t *testing.T) {
	fed := federation.New()
	q := NewQueueDecay(5, 1, decimal.NewFromFloat(12.0), fed)
	past := time.Now().Add(-2 * time.Second) // past soft TTL, under hard TTL
	entry := QueueDecayEntry{ClientID: "C1", Symbol: "BTCUSDT", SubmittedAt: past}

	// Very low fill probability and nonzero latency push urgency well above 12.
	q.Evaluate(entry, decimal.NewFromFloat(0.01), decimal.NewFromInt(5000), time.Now())
	assert.True(t, fed.Triggered())
}

func TestQueueDecay_NoBreachBeforeSoftTTL(t *testing.T) {
	fed := federation.New()
	q := NewQueueDecay(5, 1, decimal.NewFromFloat(12.0), fed)
	entry := QueueDecayEntry{ClientID: "C1", Symbol: "BTCUSDT", SubmittedAt: time.Now()}

	q.Evaluate(entry, decimal.NewFromFloat(0.01), decimal.NewFromInt(5000), time.Now())
	assert.False(t, fed.Triggered())
}
