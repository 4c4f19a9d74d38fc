package activity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Poll intervals. High-power charging moves fast enough to warrant the shorter
// period; everything else polls slowly to stay inside upstream rate budgets.
const (
	// SlowChargeInterval is the default tick period.
	SlowChargeInterval = 150 * time.Second

	// FastChargeInterval is the tick period while DC fast charging.
	FastChargeInterval = 60 * time.Second
)

// Scheduler is a per-session recurring timer. Each fire invokes the tick callback
// in its own goroutine so a slow refresh never blocks the timing loop; if the
// previous invocation is still running when the timer fires again, that fire is
// skipped. At most one tick callback runs at a time for a session.
type Scheduler struct {
	tick func(context.Context)

	intervalNanos atomic.Int64
	inFlight      atomic.Bool

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewScheduler creates a scheduler in the stopped state.
func NewScheduler(interval time.Duration, tick func(context.Context)) *Scheduler {
	s := &Scheduler{tick: tick}
	s.intervalNanos.Store(int64(interval))
	return s
}

// Start begins the timing loop. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	go s.run(s.stop)
}

// Stop halts the timing loop. Idempotent, and safe to call from within the tick
// callback itself: after Stop returns no further tick fires, though one callback
// may still be in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
}

// Running reports whether the timing loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetInterval changes the period applied to subsequent ticks. A tick already
// scheduled fires on the old period.
func (s *Scheduler) SetInterval(interval time.Duration) {
	s.intervalNanos.Store(int64(interval))
}

// Interval returns the current tick period.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.intervalNanos.Load())
}

func (s *Scheduler) run(stop <-chan struct{}) {
	timer := time.NewTimer(s.Interval())
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			// Skip this fire if the previous tick is still in flight.
			if s.inFlight.CompareAndSwap(false, true) {
				go func() {
					defer s.inFlight.Store(false)
					s.tick(context.Background())
				}()
			}
			timer.Reset(s.Interval())
		}
	}
}
