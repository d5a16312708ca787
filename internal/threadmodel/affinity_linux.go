//go:build linux

package threadmodel

import "golang.org/x/sys/unix"

// setAffinity pins the calling OS thread to a single logical core via
// sched_setaffinity. Must be called after runtime.LockOSThread so the pin
// sticks to the goroutine's dedicated thread rather than a future one the
// Go scheduler might move it to.
func setAffinity(logicalCore int) error {
	if logicalCore < 0 {
		return nil // unpinned by configuration
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(logicalCore)
	return unix.SchedSetaffinity(0, &set)
}
