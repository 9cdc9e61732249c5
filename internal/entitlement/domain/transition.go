package domain

import "time"

// Every successful payment buys a fixed 30 day window regardless of
// calendar month length.
const RenewalDays = 30

// RenewalPeriod is the access bought by one successful payment.
const RenewalPeriod = RenewalDays * 24 * time.Hour

// TransitionType classifies what a confirmation did to an entitlement.
type TransitionType string

const (
	TransitionNew     TransitionType = "new"
	TransitionExtend  TransitionType = "extend"
	TransitionUpgrade TransitionType = "upgrade"
)

// TransitionDecision is the outcome of classifying a confirmation
// against current entitlement state.
type TransitionDecision struct {
	Type        TransitionType
	WindowStart time.Time
	WindowEnd   time.Time
}

// Decide classifies a payment confirmation against the existing
// entitlement, if any, and computes the resulting access window.
//
// Remaining time is never lost: the new window extends from whichever is
// later, now or the current window end. Upgrades follow the same rule,
// so the window end never moves backwards.
func Decide(existing *Entitlement, tierLevel int, now time.Time) TransitionDecision {
	now = now.UTC()

	if existing == nil || !existing.IsActive {
		return TransitionDecision{
			Type:        TransitionNew,
			WindowStart: now,
			WindowEnd:   now.Add(RenewalPeriod),
		}
	}

	baseline := existing.WindowEnd.UTC()
	if baseline.Before(now) {
		baseline = now
	}

	transition := TransitionExtend
	if tierLevel > existing.TierLevel {
		transition = TransitionUpgrade
	}

	start := existing.WindowStart.UTC()
	if start.IsZero() {
		start = now
	}

	return TransitionDecision{
		Type:        transition,
		WindowStart: start,
		WindowEnd:   baseline.Add(RenewalPeriod),
	}
}
