package domain

import "time"

// BreakerKind enumerates the independent circuit breakers guarding the
// trading gate.
type BreakerKind string

const (
	BreakerDailyLoss          BreakerKind = "DAILY_LOSS"
	BreakerMaxDrawdown        BreakerKind = "MAX_DRAWDOWN"
	BreakerConsecutiveLosses  BreakerKind = "CONSECUTIVE_LOSSES"
	BreakerVolatilitySpike    BreakerKind = "VOLATILITY_SPIKE"
	BreakerRapidDrawdown      BreakerKind = "RAPID_DRAWDOWN"
	BreakerManual             BreakerKind = "MANUAL"
)

// BreakerLifecycle is ARMED (trading allowed) or TRIPPED (gate closed for
// new plans).
type BreakerLifecycle int

const (
	StateArmed BreakerLifecycle = iota + 1
	StateTripped
)

func (s BreakerLifecycle) String() string {
	if s == StateTripped {
		return "TRIPPED"
	}
	return "ARMED"
}

// BreakerState is the per-kind state tracked by CircuitBreaker.
type BreakerState struct {
	Kind             BreakerKind
	State            BreakerLifecycle
	TrippedAt        *time.Time
	Reason           string
	ConfirmationCode string
}
