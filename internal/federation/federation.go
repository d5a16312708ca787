// Package federation implements the Cancel Federation: the single
// system-wide "stop and sweep" signal any component can raise without
// holding a reference to the thread-affine REST/WebSocket resources that
// actually perform the sweep.
package federation

import "sync/atomic"

// Federation is a single atomic CAS flag plus the first-winning reason.
// Multiple concurrent Trigger calls produce exactly one winner; every other
// caller's reason is discarded.
type Federation struct {
	triggered atomic.Bool
	reason    atomic.Value // string
}

func New() *Federation {
	return &Federation{}
}

// Trigger attempts to flip the flag false->true. Returns true if this call
// won the race and its reason was recorded.
func (f *Federation) Trigger(reason string) bool {
	if !f.triggered.CompareAndSwap(false, true) {
		return false
	}
	f.reason.Store(reason)
	return true
}

// Triggered reports whether a sweep has been requested.
func (f *Federation) Triggered() bool {
	return f.triggered.Load()
}

// Reason returns the winning trigger's reason, or "" if never triggered.
func (f *Federation) Reason() string {
	v := f.reason.Load()
	if v == nil {
		return ""
	}
	return v.(string)
}

// Reset clears the flag and reason. Only the operator-driven restart path
// calls this; nothing in the polling loops resets a federation on its own.
func (f *Federation) Reset() {
	f.triggered.Store(false)
	f.reason.Store("")
}
