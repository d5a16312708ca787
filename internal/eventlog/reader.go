package eventlog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"chimera/internal/core"

	apperrors "chimera/pkg/errors"
)

// Entry is a decoded event-log record, used by forensic replay tooling.
type Entry struct {
	TimestampNs int64
	CausalID    uint64
	EventType   core.EventType
	Payload     []byte
}

// Reader streams entries from a closed (rotated) or still-growing event-log
// segment, verifying each entry's CRC as it goes.
type Reader struct {
	r *bufio.Reader
	f *os.File
}

// OpenReader opens path for sequential forensic replay.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open reader %s: %w", path, err)
	}
	return &Reader{r: bufio.NewReader(f), f: f}, nil
}

// Next returns the next entry, or io.EOF when the file is exhausted.
func (r *Reader) Next() (Entry, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r.r, header); err != nil {
		return Entry{}, err
	}
	timestampNs := int64(binary.LittleEndian.Uint64(header[0:8]))
	causalID := binary.LittleEndian.Uint64(header[8:16])
	eventType := core.EventType(binary.LittleEndian.Uint32(header[16:20]))
	payloadLen := binary.LittleEndian.Uint32(header[20:24])
	expectedCRC := binary.LittleEndian.Uint32(header[24:28])

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Entry{}, fmt.Errorf("eventlog: truncated payload: %w", err)
	}
	if crc32.Checksum(payload, crcTable) != expectedCRC {
		return Entry{}, fmt.Errorf("eventlog: %w", apperrors.ErrEventLogCRCMismatch)
	}

	return Entry{
		TimestampNs: timestampNs,
		CausalID:    causalID,
		EventType:   eventType,
		Payload:     payload,
	}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// ReadAll drains every entry from path, stopping at the first CRC failure or
// EOF. Intended for small forensic segments and tests, not the hot segment.
func ReadAll(path string) ([]Entry, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []Entry
	for {
		e, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
