package clock

import (
	"context"
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the timer from firing again. It returns false if the
	// timer had already fired (one-shot) or was already stopped.
	Stop() bool
}

// Clock is a source of time and timers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer

	// Every calls f each time d elapses until the timer is stopped.
	// A non-positive period yields a timer that never fires.
	Every(d time.Duration, f func()) Timer

	// Sleep blocks until d has elapsed or ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) Every(d time.Duration, f func()) Timer {
	if d <= 0 {
		return stoppedTimer{}
	}

	t := &tickerTimer{done: make(chan struct{})}
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				f()
			case <-t.done:
				return
			}
		}
	}()
	return t
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tickerTimer stops a real periodic timer goroutine.
type tickerTimer struct {
	once sync.Once
	done chan struct{}
}

func (t *tickerTimer) Stop() bool {
	stopped := false
	t.once.Do(func() {
		close(t.done)
		stopped = true
	})
	return stopped
}

// stoppedTimer never fires.
type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return false }
