package hap

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hapkit/hap-go/pkg/haperr"
)

// Event describes a committed characteristic change.
type Event struct {
	CharacteristicType string
	CharacteristicName string
	ServiceType        string
	ServiceSubtype     string
	AccessoryUUID      string
	OldValue           any
	NewValue           any
	Timestamp          time.Time

	// Context is the value passed with WithEventContext, if any.
	Context any
}

// Subscription receives the change events of one characteristic.
//
// Events are buffered until consumed by WaitForNext; History keeps every
// event delivered while the subscription was active.
type Subscription struct {
	c *Characteristic

	mu      sync.Mutex
	active  bool
	queue   []Event
	history []Event
	waiters []*waiter
}

// waiter is a pending WaitForNext call. It is resolved exactly once.
type waiter struct {
	ch   chan waitResult
	done bool
}

type waitResult struct {
	ev  Event
	err error
}

// Characteristic returns the characteristic the subscription is bound to.
func (s *Subscription) Characteristic() *Characteristic {
	return s.c
}

// WaitForNext returns the oldest event not yet returned. When none is
// buffered it waits for the next delivery. The wait fails with
// haperr.ErrTimeout once timeout elapses on the runtime clock, with
// haperr.ErrCancelled when the subscription is closed, or with ctx's
// error. A non-positive timeout waits without a deadline.
func (s *Subscription) WaitForNext(ctx context.Context, timeout time.Duration) (Event, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return Event{}, s.cancelledErr()
	}
	if len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		return ev, nil
	}
	w := &waiter{ch: make(chan waitResult, 1)}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	if timeout > 0 {
		timeoutErr := &haperr.Error{
			Kind:       haperr.KindTimeout,
			Op:         "wait",
			Target:     s.c.name,
			Constraint: fmt.Sprintf("no event within %s", timeout),
		}
		t := s.c.runtime().Clock.AfterFunc(timeout, func() {
			s.settle(w, waitResult{err: timeoutErr})
		})
		defer t.Stop()
	}

	select {
	case r := <-w.ch:
		return r.ev, r.err
	case <-ctx.Done():
		// Another outcome may have won the race; the channel holds it.
		s.settle(w, waitResult{err: ctx.Err()})
		r := <-w.ch
		return r.ev, r.err
	}
}

// History returns every delivered event in delivery order.
func (s *Subscription) History() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Pending returns the number of buffered events not yet returned by
// WaitForNext.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Unsubscribe stops delivery, drops buffered events and cancels pending
// waits. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.queue = nil
	for _, w := range s.waiters {
		w.done = true
		w.ch <- waitResult{err: s.cancelledErr()}
	}
	s.waiters = nil
	s.mu.Unlock()

	s.c.removeSubscription(s)
}

// deliver records ev and hands it to the oldest waiter, if any.
func (s *Subscription) deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.history = append(s.history, ev)

	if len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		w.done = true
		w.ch <- waitResult{ev: ev}
		return
	}
	s.queue = append(s.queue, ev)
}

// settle resolves w with r unless it was already resolved.
func (s *Subscription) settle(w *waiter, r waitResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.done {
		return
	}
	w.done = true
	s.waiters = slices.DeleteFunc(s.waiters, func(x *waiter) bool { return x == w })
	w.ch <- r
}

func (s *Subscription) cancelledErr() error {
	return haperr.New(haperr.KindCancelled, "wait", s.c.name, "subscription closed")
}
