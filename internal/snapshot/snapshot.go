// Package snapshot implements the Context Snapshotter: the subset of
// process state needed for restart continuity, serialized to a single
// CRC-framed binary file and restored on boot.
//
// File format: a fixed 24-byte header {magic "CHMR", version u32,
// timestamp_ns u64, body_size u32, body_crc u32} followed by body_size
// bytes of JSON-encoded typed sections. JSON is used for the body instead
// of a hand-rolled binary layout because, unlike the event log's
// per-payload hot path, the snapshot is written only on a periodic timer and
// at shutdown, and read once at boot; the CRC framing is what actually
// matters for correctness, not the body's encoding.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"time"

	"chimera/internal/core"
	"chimera/internal/coalescer"
	"chimera/internal/queue"

	apperrors "chimera/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const magic = "CHMR"
const version = uint32(1)
const headerSize = 4 + 4 + 8 + 4 + 4 // magic + version + timestamp_ns + body_size + body_crc

var crcTable = crc32.MakeTable(crc32.IEEE)

// PositionEntry is one symbol's signed position, as the Risk Governor held it.
type PositionEntry struct {
	Symbol string
	Qty    decimal.Decimal
}

// EngineState is one engine's Profit Ledger tunables and arm-adjacent
// bookkeeping, restored so the auto-tuner resumes from where it left off.
type EngineState struct {
	EngineID        string
	MinEdgeBps      decimal.Decimal
	SizeMultiplier  decimal.Decimal
	SoftTTLFillProb decimal.Decimal
}

// PendingEntry pairs a coalescer record with the client id it was filed
// under, since coalescer.Record itself carries no client id.
type PendingEntry struct {
	ClientID string
	Record   coalescer.Record
}

// Body is the full set of typed sections persisted across a restart.
type Body struct {
	// SnapshotID is a fresh id minted on every Save, independent of the
	// header's timestamp. It lets forensic tooling correlate a snapshot file
	// to the event log entries written around it even when two snapshots
	// land in the same millisecond.
	SnapshotID       string
	Positions        []PositionEntry
	OpenOrders       []core.OrderRecord
	Books            []queue.BookDump
	PendingCoalesced []PendingEntry
	CausalID         uint64
	WasArmed         bool
	Engines          []EngineState
}

// Snapshot is the decoded, validated form of a snapshot file.
type Snapshot struct {
	TimestampNs int64
	Body        Body
}

// Save writes body to path atomically: it encodes to a temp file, then
// renames over the destination, so a crash mid-write never leaves a
// truncated snapshot in place of a good one.
func Save(path string, body Body) error {
	body.SnapshotID = uuid.NewString()
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("snapshot: encode body: %w", err)
	}

	buf := &bytes.Buffer{}
	header := make([]byte, headerSize)
	copy(header[0:4], magic)
	binary.LittleEndian.PutUint32(header[4:8], version)
	binary.LittleEndian.PutUint64(header[8:16], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[20:24], crc32.Checksum(payload, crcTable))
	buf.Write(header)
	buf.Write(payload)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("snapshot: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("snapshot: rename into place: %w", err)
	}
	return nil
}

// Load reads and validates a snapshot file. On a CRC or magic mismatch it
// returns the sentinel errors so the caller can proceed with a cold boot
// rather than treating a corrupt snapshot as fatal.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	if len(data) < headerSize {
		return Snapshot{}, io.ErrUnexpectedEOF
	}

	header := data[:headerSize]
	if string(header[0:4]) != magic {
		return Snapshot{}, apperrors.ErrSnapshotBadMagic
	}
	timestampNs := int64(binary.LittleEndian.Uint64(header[8:16]))
	bodySize := binary.LittleEndian.Uint32(header[16:20])
	expectedCRC := binary.LittleEndian.Uint32(header[20:24])

	payload := data[headerSize:]
	if uint32(len(payload)) != bodySize {
		return Snapshot{}, io.ErrUnexpectedEOF
	}
	if crc32.Checksum(payload, crcTable) != expectedCRC {
		return Snapshot{}, apperrors.ErrSnapshotCRCMismatch
	}

	var body Body
	if err := json.Unmarshal(payload, &body); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decode body: %w", err)
	}

	return Snapshot{TimestampNs: timestampNs, Body: body}, nil
}
