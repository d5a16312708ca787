package eventlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chimera/internal/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})                      {}
func (nopLogger) Info(string, ...interface{})                       {}
func (nopLogger) Warn(string, ...interface{})                       {}
func (nopLogger) Error(string, ...interface{})                      {}
func (nopLogger) Fatal(string, ...interface{})                      {}
func (l nopLogger) WithField(string, interface{}) core.ILogger      { return l }
func (l nopLogger) WithFields(map[string]interface{}) core.ILogger  { return l }

func TestWriterAppendAndReadBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.bin")

	w, err := NewWriter(path, DefaultMaxSize, false, 0, nopLogger{})
	require.NoError(t, err)

	_, err = w.Append(core.EventAck, AckPayload("C1", "E1"))
	require.NoError(t, err)
	_, err = w.Append(core.EventFill, FillPayload("C1", decimal.NewFromFloat(0.01), decimal.NewFromFloat(100.0)))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, core.EventAck, entries[0].EventType)
	cid, eid := DecodeAck(entries[0].Payload)
	assert.Equal(t, "C1", cid)
	assert.Equal(t, "E1", eid)

	assert.Equal(t, core.EventFill, entries[1].EventType)
	fcid, qty, price := DecodeFill(entries[1].Payload)
	assert.Equal(t, "C1", fcid)
	assert.True(t, decimal.NewFromFloat(0.01).Equal(qty))
	assert.True(t, decimal.NewFromFloat(100.0).Equal(price))

	// causal ids are monotonic and start from 1
	assert.Equal(t, uint64(1), entries[0].CausalID)
	assert.Equal(t, uint64(2), entries[1].CausalID)
}

func TestWriterCausalIDRestoresFromSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.bin")

	w, err := NewWriter(path, DefaultMaxSize, false, 500, nopLogger{})
	require.NoError(t, err)
	defer w.Close()

	cid, err := w.Append(core.EventCancel, CancelPayload("C9"))
	require.NoError(t, err)
	assert.Equal(t, uint64(501), cid)
}

func TestWriterRotatesOnSizeCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.bin")

	// Tiny cap forces rotation after the very first entry.
	w, err := NewWriter(path, 1, false, 0, nopLogger{})
	require.NoError(t, err)

	_, err = w.Append(core.EventCancel, CancelPayload("C1"))
	require.NoError(t, err)
	_, err = w.Append(core.EventCancel, CancelPayload("C2"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, int64(1), w.RotateCount())

	matches, err := filepath.Glob(path + ".*.bin")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// The active file still exists and holds only the post-rotation entry.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestReaderRejectsCorruptedPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.bin")

	w, err := NewWriter(path, DefaultMaxSize, false, 0, nopLogger{})
	require.NoError(t, err)
	_, err = w.Append(core.EventCancel, CancelPayload("C1"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Flip a byte inside the payload region without touching the header's
	// declared length, so the CRC check is what must catch it.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[headerSize] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = ReadAll(path)
	require.Error(t, err)
}
