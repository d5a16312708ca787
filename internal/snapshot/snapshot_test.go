package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"chimera/internal/core"
	"chimera/internal/coalescer"
	"chimera/internal/queue"

	apperrors "chimera/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBody() Body {
	return Body{
		Positions: []PositionEntry{{Symbol: "BTCUSDT", Qty: decimal.NewFromFloat(0.01)}},
		OpenOrders: []core.OrderRecord{
			{ClientID: "E1_X", Symbol: "BTCUSDT", Price: decimal.NewFromFloat(100), Status: core.StatusAcked},
		},
		Books: []queue.BookDump{
			{Symbol: "BTCUSDT", Book: core.TopOfBook{BidPrice: decimal.NewFromFloat(100), Valid: true}},
		},
		PendingCoalesced: []PendingEntry{
			{ClientID: "E1_X", Record: coalescer.Record{EngineID: "E1", Symbol: "BTCUSDT", Price: decimal.NewFromFloat(100)}},
		},
		CausalID: 42,
		WasArmed: true,
		Engines: []EngineState{
			{EngineID: "E1", MinEdgeBps: decimal.NewFromFloat(5), SizeMultiplier: decimal.NewFromFloat(1), SoftTTLFillProb: decimal.NewFromFloat(0.35)},
		},
	}
}

func TestSaveLoad_RoundTripsExactly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.bin")
	body := sampleBody()
	require.NoError(t, Save(path, body))

	loaded, err := Load(path)
	require.NoError(t, err)

	// Save mints a fresh SnapshotID on its own copy of body, so the caller's
	// body never observes it; compare everything else exactly and assert the
	// id was actually generated.
	assert.NotEmpty(t, loaded.Body.SnapshotID)
	loaded.Body.SnapshotID = ""
	assert.Equal(t, body, loaded.Body)
}

func TestLoad_RejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.bin")
	require.NoError(t, os.WriteFile(path, []byte("NOT-A-SNAPSHOT-HEADER-AT-ALL-00"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, apperrors.ErrSnapshotBadMagic)
}

func TestLoad_RejectsCorruptedBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.bin")
	require.NoError(t, Save(path, sampleBody()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a byte deep in the JSON body without touching the header.
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = Load(path)
	assert.ErrorIs(t, err, apperrors.ErrSnapshotCRCMismatch)
}
