package apperrors

import "errors"

// Sentinel errors for the execution and safety spine's error taxonomy.
var (
	// Gate / transient errors: order dropped silently, counter incremented,
	// no state damage.
	ErrThrottled          = errors.New("execution throttle rejected order")
	ErrRiskBlocked        = errors.New("risk governor blocked order")
	ErrAdmissionRejected  = errors.New("predicted edge below admission threshold")
	ErrBelowMinNotional   = errors.New("order notional below symbol minimum")
	ErrNotArmed           = errors.New("system is not armed for live trading")

	// Lookup / protocol errors.
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("duplicate client id")
	ErrInvalidSymbol  = errors.New("invalid or unconfigured symbol")

	// Fatal / drift-kill class: one-shot, sticky, system-wide.
	ErrDriftKilled         = errors.New("system has drift-killed; trading halted")
	ErrPhantomOrder        = errors.New("exchange reports an order unknown to the OSM")
	ErrPortfolioDrawdown   = errors.New("portfolio drawdown breach")
	ErrTruthLoopCircuitOpen = errors.New("exchange truth loop circuit breaker open")

	// Persistence errors.
	ErrEventLogCRCMismatch  = errors.New("event log entry failed CRC verification")
	ErrSnapshotCRCMismatch  = errors.New("snapshot failed CRC verification")
	ErrSnapshotBadMagic     = errors.New("snapshot file has an invalid magic header")

	// Network/IO.
	ErrNetwork             = errors.New("network error")
	ErrAuthenticationFailed = errors.New("authentication failed")
)
