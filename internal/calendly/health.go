package calendly

import "time"

// HealthState classifies how the scheduling provider has been responding.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthDown     HealthState = "down"
)

// downThreshold is the consecutive-failure count at which the provider is
// considered down rather than merely degraded.
const downThreshold = 3

// Health is an immutable snapshot of provider responsiveness. Transitions
// are pure: Observe returns the next snapshot and never mutates the
// receiver, so callers can store it behind their own synchronization.
type Health struct {
	State               HealthState
	ConsecutiveFailures int
	LastSuccess         time.Time
	LastFailure         time.Time
}

// NewHealth returns the starting snapshot. A provider is assumed healthy
// until observed otherwise.
func NewHealth() Health {
	return Health{State: HealthHealthy}
}

// Observe folds one provider call outcome into the snapshot. A success
// resets the failure count and restores the healthy state. A transient
// failure increments the count; the state degrades on the first failure and
// goes down once the count reaches the threshold. Terminal (non-retryable)
// errors do not change health: the provider answered, the request was wrong.
func (h Health) Observe(err error, at time.Time) Health {
	if err == nil {
		return Health{
			State:       HealthHealthy,
			LastSuccess: at,
			LastFailure: h.LastFailure,
		}
	}
	if !IsTransient(err) {
		return h
	}
	next := Health{
		ConsecutiveFailures: h.ConsecutiveFailures + 1,
		LastSuccess:         h.LastSuccess,
		LastFailure:         at,
	}
	if next.ConsecutiveFailures >= downThreshold {
		next.State = HealthDown
	} else {
		next.State = HealthDegraded
	}
	return next
}

// Available reports whether the provider should still be called.
func (h Health) Available() bool {
	return h.State != HealthDown
}
