//go:build !linux

package threadmodel

// setAffinity is a no-op off Linux: sched_setaffinity has no portable
// equivalent, and the system still functions correctly unpinned, just
// without the cross-core-contention guarantee pinning provides.
func setAffinity(logicalCore int) error {
	return nil
}
