package transport

import (
	"time"
)

// Transition is a circuit breaker state change, reported through the
// pipeline itself as a lifecycle event.
type Transition int

const (
	// TransitionOpened fires when consecutive failures reach the threshold.
	TransitionOpened Transition = iota

	// TransitionHalfOpened fires when cooldown elapses and a single trial
	// send is allowed through.
	TransitionHalfOpened

	// TransitionClosed fires when a successful send closes an open breaker.
	TransitionClosed
)

// String returns the lifecycle event action for the transition.
func (t Transition) String() string {
	switch t {
	case TransitionOpened:
		return "breaker_open"
	case TransitionHalfOpened:
		return "breaker_half_open"
	case TransitionClosed:
		return "breaker_closed"
	default:
		return "unknown"
	}
}

// BreakerSnapshot is a point-in-time view of breaker state for diagnostics.
type BreakerSnapshot struct {
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	Open                bool      `json:"open"`
	OpenedAt            time.Time `json:"openedAt,omitzero"`
}

// breaker stops batch sends against an endpoint that keeps failing.
//
// States: closed (normal), open (sends skipped), and a transient half-open
// probe once cooldown elapses. A failed probe re-opens the breaker with a
// fresh cooldown window, so a permanently down endpoint costs exactly one
// trial request per cooldown. Only a success clears the failure count.
//
// The breaker is not self-locking; the owning Transport serializes access.
type breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	consecutiveFailures int
	open                bool
	openedAt            time.Time
}

func newBreaker(threshold int, cooldown time.Duration, now func() time.Time) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       now,
	}
}

// allow reports whether a send may proceed. probe is true when this send is
// the single half-open trial after cooldown.
func (b *breaker) allow() (ok, probe bool) {
	if !b.open {
		return true, false
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		return true, true
	}
	return false, false
}

// recordFailure counts a failed batch send. Returns TransitionOpened when the
// breaker trips. A failure at or past the threshold always refreshes
// openedAt, which is what restarts the cooldown after a failed probe.
func (b *breaker) recordFailure() (Transition, bool) {
	b.consecutiveFailures++
	if b.consecutiveFailures < b.threshold {
		return 0, false
	}
	wasOpen := b.open
	b.open = true
	b.openedAt = b.now()
	if wasOpen {
		return 0, false
	}
	return TransitionOpened, true
}

// recordSuccess resets the failure count. Returns TransitionClosed when a
// previously open breaker closes.
func (b *breaker) recordSuccess() (Transition, bool) {
	b.consecutiveFailures = 0
	if !b.open {
		return 0, false
	}
	b.open = false
	b.openedAt = time.Time{}
	return TransitionClosed, true
}

func (b *breaker) snapshot() BreakerSnapshot {
	return BreakerSnapshot{
		ConsecutiveFailures: b.consecutiveFailures,
		Open:                b.open,
		OpenedAt:            b.openedAt,
	}
}
