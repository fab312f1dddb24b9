package clock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultStart is the initial time of a virtual clock created with a zero
// start time.
var DefaultStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Virtual is a deterministic clock driven by Advance.
type Virtual struct {
	mu sync.Mutex

	// now is the current virtual time.
	now time.Time

	// seq orders timers scheduled for the same deadline.
	seq uint64

	// timers holds all armed timers.
	timers []*virtualTimer
}

// virtualTimer is a timer armed on a Virtual clock.
type virtualTimer struct {
	clock    *Virtual
	seq      uint64
	deadline time.Time
	period   time.Duration
	fn       func()
	stopped  bool
}

// NewVirtual creates a virtual clock starting at start.
// A zero start uses DefaultStart.
func NewVirtual(start time.Time) *Virtual {
	if start.IsZero() {
		start = DefaultStart
	}
	return &Virtual{now: start}
}

// Now returns the current virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// AfterFunc schedules f to run once the clock reaches now+d.
func (v *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	return v.schedule(d, 0, f)
}

// Every schedules f to run each time period elapses.
func (v *Virtual) Every(period time.Duration, f func()) Timer {
	if period <= 0 {
		return stoppedTimer{}
	}
	return v.schedule(period, period, f)
}

// Sleep blocks until the clock has been advanced by d or ctx is done.
func (v *Virtual) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	done := make(chan struct{})
	t := v.AfterFunc(d, func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}

// Advance moves the clock forward by d, firing every timer that becomes
// due. It returns the number of callbacks fired.
func (v *Virtual) Advance(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	return v.AdvanceTo(v.Now().Add(d))
}

// AdvanceTo moves the clock forward to target, firing every timer due at
// or before it. Targets in the past only fire timers already due.
func (v *Virtual) AdvanceTo(target time.Time) int {
	fired := 0
	for {
		v.mu.Lock()
		if target.Before(v.now) {
			target = v.now
		}

		t := v.nextDueLocked(target)
		if t == nil {
			v.now = target
			v.mu.Unlock()
			return fired
		}

		if t.deadline.After(v.now) {
			v.now = t.deadline
		}
		if t.period > 0 {
			t.deadline = t.deadline.Add(t.period)
			t.seq = v.nextSeqLocked()
		} else {
			t.stopped = true
			v.removeLocked(t)
		}
		fn := t.fn
		v.mu.Unlock()

		// Run the callback outside the lock so it can schedule timers.
		fn()
		fired++
	}
}

// Set moves the clock to t, firing due timers like AdvanceTo. The clock
// never moves backwards: a t before now fails and leaves it unchanged.
func (v *Virtual) Set(t time.Time) (int, error) {
	if now := v.Now(); t.Before(now) {
		return 0, fmt.Errorf("clock: cannot set %s before %s", t.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	}
	return v.AdvanceTo(t), nil
}

// Pending returns the number of armed timers.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.timers)
}

// NextDeadline returns the deadline of the earliest armed timer.
func (v *Virtual) NextDeadline() (time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var next *virtualTimer
	for _, t := range v.timers {
		if next == nil || earlier(t, next) {
			next = t
		}
	}
	if next == nil {
		return time.Time{}, false
	}
	return next.deadline, true
}

func (v *Virtual) schedule(d, period time.Duration, f func()) *virtualTimer {
	if d < 0 {
		d = 0
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	t := &virtualTimer{
		clock:    v,
		seq:      v.nextSeqLocked(),
		deadline: v.now.Add(d),
		period:   period,
		fn:       f,
	}
	v.timers = append(v.timers, t)
	return t
}

func (v *Virtual) nextSeqLocked() uint64 {
	v.seq++
	return v.seq
}

// nextDueLocked returns the earliest timer due at or before target.
func (v *Virtual) nextDueLocked(target time.Time) *virtualTimer {
	var next *virtualTimer
	for _, t := range v.timers {
		if t.deadline.After(target) {
			continue
		}
		if next == nil || earlier(t, next) {
			next = t
		}
	}
	return next
}

func (v *Virtual) removeLocked(t *virtualTimer) {
	for i, candidate := range v.timers {
		if candidate == t {
			v.timers = append(v.timers[:i], v.timers[i+1:]...)
			return
		}
	}
}

// earlier orders timers by deadline, then by scheduling order.
func earlier(a, b *virtualTimer) bool {
	if a.deadline.Equal(b.deadline) {
		return a.seq < b.seq
	}
	return a.deadline.Before(b.deadline)
}

// Stop disarms the timer.
func (t *virtualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped {
		return false
	}
	t.stopped = true
	t.clock.removeLocked(t)
	return true
}

// Compile-time interface satisfaction check.
var _ Clock = (*Virtual)(nil)
