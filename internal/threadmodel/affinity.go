// Package threadmodel binds the process's goroutine roles to dedicated
// physical cores: a feed core for market/user feed threads, an
// execution core shared by the Execution Router's poll loop and every
// strategy engine's poll loop, and unpinned auxiliary threads for the Truth
// Loop. CPU affinity is pinned with LockOSThread + SchedSetaffinity on
// Linux; other platforms run unpinned (see affinity_other.go).
package threadmodel

import (
	"context"
	"runtime"

	"chimera/internal/core"
)

// Role names a pinned thread's purpose, for logging only.
type Role string

const (
	RoleFeed      Role = "feed"
	RoleExecution Role = "execution"
	RoleAuxiliary Role = "auxiliary"
)

// PinnedLoop runs fn on an OS thread pinned to the given logical core before
// invoking it. fn is expected to block until ctx is canceled, the way every
// poll loop in this system does. Multiple PinnedLoop calls against the same
// core are expected and fine: the execution core deliberately multiplexes
// the Router's poll loop and every engine's poll loop via OS time-slicing
// rather than claiming exclusive use of the core.
func PinnedLoop(ctx context.Context, role Role, core_ int, logger core.ILogger, fn func(context.Context)) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := setAffinity(core_); err != nil {
		logger.Warn("threadmodel: failed to pin thread to core, running unpinned",
			"role", string(role), "core", core_, "error", err.Error())
	} else {
		logger.Debug("threadmodel: pinned thread", "role", string(role), "core", core_)
	}

	fn(ctx)
}

// Unpinned runs fn without CPU affinity, for auxiliary threads that have no
// dedicated core assignment.
func Unpinned(ctx context.Context, logger core.ILogger, fn func(context.Context)) {
	fn(ctx)
}
