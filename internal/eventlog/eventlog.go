// Package eventlog implements the append-only, CRC-framed binary forensic
// log: every causally significant event the execution spine produces, with
// size-based rotation and background compression of rotated segments.
package eventlog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"chimera/internal/core"

	"github.com/klauspost/compress/gzip"
)

// headerSize is the fixed entry header: timestamp_ns(8) + causal_id(8) +
// event_type padded to u32(4) + payload_len(4) + payload_crc(4) = 28 bytes.
const headerSize = 28

// DefaultMaxSize is the default rotation threshold (1 GiB).
const DefaultMaxSize int64 = 1 << 30

var crcTable = crc32.MakeTable(crc32.IEEE)

// Writer is the single-writer-thread append-only event log. The mutex exists
// to future-proof multi-writer use; today only the Router thread writes.
type Writer struct {
	mu sync.Mutex

	path     string
	maxSize  int64
	compress bool
	logger   core.ILogger
	file     *os.File
	buf      *bufio.Writer
	written  int64
	causal   uint64 // the in-memory, process-wide causal id counter

	rotateCount int64
}

// NewWriter opens (or creates) the log file in append mode. causalStart is
// the value restored from the last snapshot (0 on a cold boot); the counter
// is seeded with a single store, never a fetch_add loop, so a large prior
// counter costs nothing at boot.
func NewWriter(path string, maxSize int64, compressRotated bool, causalStart uint64, logger core.ILogger) (*Writer, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("eventlog: stat %s: %w", path, err)
	}
	return &Writer{
		path:     path,
		maxSize:  maxSize,
		compress: compressRotated,
		logger:   logger,
		file:     f,
		buf:      bufio.NewWriter(f),
		written:  info.Size(),
		causal:   causalStart,
	}, nil
}

// SetCausal overwrites the in-memory counter with a single store. Snapshot
// restore does not go through it: app.New seeds the counter via NewWriter's
// causalStart.
func (w *Writer) SetCausal(v uint64) { atomic.StoreUint64(&w.causal, v) }

// CausalID returns the current counter value, for snapshotting.
func (w *Writer) CausalID() uint64 { return atomic.LoadUint64(&w.causal) }

func (w *Writer) nextCausal() uint64 { return atomic.AddUint64(&w.causal, 1) }

func encodeHeader(timestampNs int64, causalID uint64, eventType core.EventType, payload []byte) []byte {
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(header[0:8], uint64(timestampNs))
	binary.LittleEndian.PutUint64(header[8:16], causalID)
	binary.LittleEndian.PutUint32(header[16:20], uint32(eventType))
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[24:28], crc32.Checksum(payload, crcTable))
	return header
}

// Append writes one entry: header + typed payload. payload must already be
// the fixed-layout encoded bytes for eventType. Returns the allocated causal id.
func (w *Writer) Append(eventType core.EventType, payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	causalID := w.nextCausal()
	header := encodeHeader(time.Now().UnixNano(), causalID, eventType, payload)
	entryLen := int64(len(header) + len(payload))

	// Rotate before an entry that would push a non-empty segment past the
	// cap, so the entry starts the fresh segment.
	if w.written > 0 && w.written+entryLen > w.maxSize {
		if err := w.rotate(); err != nil {
			w.logger.Error("eventlog: rotation failed", "error", err)
		}
	}

	writeEntry := func() error {
		if _, err := w.buf.Write(header); err != nil {
			return err
		}
		if _, err := w.buf.Write(payload); err != nil {
			return err
		}
		return w.buf.Flush()
	}

	if err := writeEntry(); err != nil {
		if err := writeEntry(); err != nil {
			return causalID, fmt.Errorf("eventlog: append failed after retry: %w", err)
		}
	}

	w.written += entryLen
	return causalID, nil
}

// rotate renames the current file to <base>.<epoch_ms>.bin and reopens a
// fresh file. Must be called with w.mu held.
func (w *Writer) rotate() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	rotatedPath := fmt.Sprintf("%s.%d.bin", w.path, time.Now().UnixMilli())
	if err := os.Rename(w.path, rotatedPath); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.written = 0
	atomic.AddInt64(&w.rotateCount, 1)

	if w.compress {
		go compressFile(rotatedPath, w.logger)
	}
	return nil
}

// compressFile gzip-compresses a rotated (already-closed) segment in the
// background and removes the uncompressed copy on success. Never touches the
// active (hot) segment.
func compressFile(path string, logger core.ILogger) {
	src, err := os.Open(path)
	if err != nil {
		logger.Error("eventlog: compress open failed", "path", path, "error", err)
		return
	}
	defer src.Close()

	dstPath := path + ".gz"
	dst, err := os.Create(dstPath)
	if err != nil {
		logger.Error("eventlog: compress create failed", "path", dstPath, "error", err)
		return
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	buf := make([]byte, 256*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := gw.Write(buf[:n]); werr != nil {
				logger.Error("eventlog: compress write failed", "path", dstPath, "error", werr)
				gw.Close()
				os.Remove(dstPath)
				return
			}
		}
		if rerr != nil {
			break
		}
	}
	if err := gw.Close(); err != nil {
		logger.Error("eventlog: compress close failed", "path", dstPath, "error", err)
		return
	}
	if err := os.Remove(path); err != nil {
		logger.Error("eventlog: failed to remove uncompressed segment", "path", path, "error", err)
	}
}

// RotateCount reports how many rotations have occurred, for tests/telemetry.
func (w *Writer) RotateCount() int64 { return atomic.LoadInt64(&w.rotateCount) }

// Close flushes and closes the underlying file handle.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}
