// Package governor implements the governors behind the Execution Router:
// Arm, Risk, PnL, Edge Attribution, Desk Arbiter, Latency, and Queue Decay.
// Cascade.Admit consults Arm and Risk (live mode only), then PnL, Desk and
// Latency, in that fixed order, before every submit; Edge Attribution is fed
// from submits, fills and cancels, and Queue Decay is evaluated on every
// router poll tick.
package governor

import (
	"sync"
	"time"

	apperrors "chimera/pkg/errors"
)

// ArmState is the system's readiness state machine.
type ArmState int

const (
	Disarmed ArmState = iota
	ArmRequested
	Armed
	Verified
)

func (s ArmState) String() string {
	switch s {
	case Disarmed:
		return "DISARMED"
	case ArmRequested:
		return "ARM_REQUESTED"
	case Armed:
		return "ARMED"
	case Verified:
		return "VERIFIED"
	default:
		return "UNKNOWN"
	}
}

// Arm is the time-locked arm/disarm state machine. Live trading requires
// Verified; every other state blocks the Arm step of the cascade.
type Arm struct {
	mu            sync.Mutex
	state         ArmState
	minArm        time.Duration
	requestedAt   time.Time
}

func NewArm(minArmSeconds int) *Arm {
	return &Arm{
		state:  Disarmed,
		minArm: time.Duration(minArmSeconds) * time.Second,
	}
}

// Request moves DISARMED -> ARM_REQUESTED and starts the time-lock clock.
func (a *Arm) Request() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Disarmed {
		return
	}
	a.state = ArmRequested
	a.requestedAt = time.Now()
}

// Confirm moves ARM_REQUESTED -> ARMED, but only once the time-lock has
// elapsed since Request.
func (a *Arm) Confirm() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != ArmRequested {
		return apperrors.ErrNotArmed
	}
	if time.Since(a.requestedAt) < a.minArm {
		return apperrors.ErrNotArmed
	}
	a.state = Armed
	return nil
}

// Verify moves ARMED -> VERIFIED. Called only after an operator-driven
// exchange connectivity/credential check succeeds.
func (a *Arm) Verify() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Armed {
		return apperrors.ErrNotArmed
	}
	a.state = Verified
	return nil
}

// Disarm resets to DISARMED unconditionally; used on drift-kill recovery.
func (a *Arm) Disarm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Disarmed
}

// State returns the current state.
func (a *Arm) State() ArmState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Allow implements the cascade's Arm step: only VERIFIED permits live
// submission.
func (a *Arm) Allow() bool {
	return a.State() == Verified
}

// RestoreFromSnapshot reinstates ARMED after a restart but always resets
// VERIFIED to false: the exchange must be re-checked on every boot.
func (a *Arm) RestoreFromSnapshot(wasArmed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if wasArmed {
		a.state = Armed
	} else {
		a.state = Disarmed
	}
}
