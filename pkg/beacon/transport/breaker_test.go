package transport

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTransitionString(t *testing.T) {
	tests := []struct {
		transition Transition
		expected   string
	}{
		{TransitionOpened, "breaker_open"},
		{TransitionHalfOpened, "breaker_half_open"},
		{TransitionClosed, "breaker_closed"},
		{Transition(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.transition.String(); got != tt.expected {
				t.Errorf("String() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	clock := newFakeClock()
	b := newBreaker(3, time.Minute, clock.now)

	for i := 0; i < 2; i++ {
		if _, ok := b.recordFailure(); ok {
			t.Fatalf("failure %d should not trip the breaker", i+1)
		}
		if ok, _ := b.allow(); !ok {
			t.Fatalf("breaker should stay closed below threshold")
		}
	}

	tr, ok := b.recordFailure()
	if !ok || tr != TransitionOpened {
		t.Fatalf("third failure should open the breaker, got (%v, %v)", tr, ok)
	}
	if ok, _ := b.allow(); ok {
		t.Error("open breaker should disallow sends")
	}

	// Further failures keep it open without re-reporting the transition.
	if _, ok := b.recordFailure(); ok {
		t.Error("already-open breaker should not report opening again")
	}
}

func TestBreakerProbeAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	b := newBreaker(2, time.Minute, clock.now)

	b.recordFailure()
	b.recordFailure()

	clock.advance(59 * time.Second)
	if ok, _ := b.allow(); ok {
		t.Fatal("breaker should stay closed before cooldown elapses")
	}

	clock.advance(time.Second)
	ok, probe := b.allow()
	if !ok || !probe {
		t.Fatalf("allow() after cooldown = (%v, %v), want trial send", ok, probe)
	}
}

func TestBreakerFailedProbeRestartsCooldown(t *testing.T) {
	clock := newFakeClock()
	b := newBreaker(2, time.Minute, clock.now)

	b.recordFailure()
	b.recordFailure()
	clock.advance(time.Minute)

	if ok, probe := b.allow(); !ok || !probe {
		t.Fatal("expected a trial send after cooldown")
	}
	if _, ok := b.recordFailure(); ok {
		t.Error("failed probe should not report a transition")
	}

	// The failed probe restarts the window: one trial per cooldown.
	if ok, _ := b.allow(); ok {
		t.Error("breaker should disallow sends right after a failed probe")
	}
	clock.advance(time.Minute)
	if ok, probe := b.allow(); !ok || !probe {
		t.Error("next trial should be allowed one cooldown later")
	}
}

func TestBreakerSuccessCloses(t *testing.T) {
	clock := newFakeClock()
	b := newBreaker(2, time.Minute, clock.now)

	b.recordFailure()
	b.recordFailure()
	clock.advance(time.Minute)

	tr, ok := b.recordSuccess()
	if !ok || tr != TransitionClosed {
		t.Fatalf("success should close the breaker, got (%v, %v)", tr, ok)
	}

	snap := b.snapshot()
	if snap.Open || snap.ConsecutiveFailures != 0 || !snap.OpenedAt.IsZero() {
		t.Errorf("snapshot after close = %+v, want reset state", snap)
	}

	// Success while closed resets the count silently.
	b.recordFailure()
	if _, ok := b.recordSuccess(); ok {
		t.Error("success on a closed breaker should not report a transition")
	}
	if got := b.snapshot().ConsecutiveFailures; got != 0 {
		t.Errorf("consecutiveFailures = %d, want 0", got)
	}
}
