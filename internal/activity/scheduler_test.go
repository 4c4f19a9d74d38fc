package activity_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chargewatch/chargewatch/internal/activity"
)

func TestScheduler_TicksAtInterval(t *testing.T) {
	var ticks atomic.Int32
	s := activity.NewScheduler(20*time.Millisecond, func(context.Context) {
		ticks.Add(1)
	})

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return ticks.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_StartsStopped(t *testing.T) {
	var ticks atomic.Int32
	s := activity.NewScheduler(10*time.Millisecond, func(context.Context) {
		ticks.Add(1)
	})

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, ticks.Load(), "no tick may fire before Start")
	assert.False(t, s.Running())
}

func TestScheduler_StopPreventsFurtherTicks(t *testing.T) {
	var ticks atomic.Int32
	s := activity.NewScheduler(10*time.Millisecond, func(context.Context) {
		ticks.Add(1)
	})

	s.Start()
	assert.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, time.Millisecond)
	s.Stop()

	settled := ticks.Load()
	time.Sleep(100 * time.Millisecond)
	// The loop may have had one fire racing Stop, never more.
	assert.LessOrEqual(t, ticks.Load(), settled+1)
	assert.False(t, s.Running())
}

func TestScheduler_StartAndStopAreIdempotent(t *testing.T) {
	s := activity.NewScheduler(time.Hour, func(context.Context) {})

	s.Start()
	s.Start()
	assert.True(t, s.Running())

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	// Restartable after a stop.
	s.Start()
	assert.True(t, s.Running())
	s.Stop()
}

func TestScheduler_SetIntervalAppliesToSubsequentTicks(t *testing.T) {
	s := activity.NewScheduler(time.Hour, func(context.Context) {})

	assert.Equal(t, time.Hour, s.Interval())

	s.SetInterval(activity.FastChargeInterval)
	assert.Equal(t, activity.FastChargeInterval, s.Interval())
}

func TestScheduler_SkipsTickWhileRefreshInFlight(t *testing.T) {
	var started atomic.Int32
	release := make(chan struct{})

	s := activity.NewScheduler(10*time.Millisecond, func(context.Context) {
		started.Add(1)
		<-release
	})

	s.Start()
	defer s.Stop()

	// Plenty of timer fires happen while the first invocation blocks; none may
	// start a second one.
	assert.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), started.Load())

	close(release)
	assert.Eventually(t, func() bool {
		return started.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond, "ticks resume once the refresh completes")
}

func TestScheduler_StopFromWithinTick(t *testing.T) {
	var s *activity.Scheduler
	done := make(chan struct{})
	var once atomic.Bool

	s = activity.NewScheduler(10*time.Millisecond, func(context.Context) {
		if once.CompareAndSwap(false, true) {
			s.Stop()
			close(done)
		}
	})

	s.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never fired")
	}

	assert.False(t, s.Running())
}
