package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock advances by the waited duration on every After call, so the
// scheduler loop steps through simulated time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	at := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- at
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// armed puts a fresh scheduler into the Waiting state as Run would,
// without starting the loop, so tick can be driven directly.
func armed(t *testing.T, fireTime string, clock Clock, job Job) *Scheduler {
	t.Helper()
	s, err := New(fireTime, time.UTC, time.Minute, clock, job, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.mu.Lock()
	s.state = Waiting
	s.nextFire = s.nextOccurrence(clock.Now())
	s.mu.Unlock()
	return s
}

func TestNextOccurrence(t *testing.T) {
	t.Parallel()

	s, err := New("02:00", time.UTC, time.Minute, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	before := time.Date(2026, 8, 24, 1, 30, 0, 0, time.UTC)
	if got := s.nextOccurrence(before); !got.Equal(time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("before fire time: next = %v", got)
	}

	// Exactly at the fire time the next occurrence is strictly after now.
	at := time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC)
	if got := s.nextOccurrence(at); !got.Equal(time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("at fire time: next = %v", got)
	}

	after := time.Date(2026, 8, 24, 14, 0, 0, 0, time.UTC)
	if got := s.nextOccurrence(after); !got.Equal(time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("after fire time: next = %v", got)
	}
}

func TestParseFireTime(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"", "2", "25:00", "02:61", "ab:cd", "02-00"} {
		if _, err := New(bad, time.UTC, time.Minute, nil, nil, nil); err == nil {
			t.Errorf("New(%q): expected error", bad)
		}
	}
	if _, err := New(" 09:30 ", time.UTC, time.Minute, nil, nil, nil); err != nil {
		t.Errorf("New with padded time: %v", err)
	}
}

// A cycle that takes three hours must not push the next fire to 05:00; the
// cadence is anchored to the fired target.
func TestSlowCycleDoesNotDrift(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 8, 24, 1, 59, 30, 0, time.UTC))
	var fired time.Time
	s := armed(t, "02:00", clock, func(ctx context.Context, fireTime time.Time) error {
		fired = fireTime
		clock.Advance(3 * time.Hour)
		return nil
	})

	clock.Advance(time.Minute) // past 02:00
	s.tick(context.Background(), clock.Now())

	wantTarget := time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC)
	if !fired.Equal(wantTarget) {
		t.Fatalf("fired at %v, want %v", fired, wantTarget)
	}
	wantNext := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	if got := s.NextFire(); !got.Equal(wantNext) {
		t.Errorf("next fire = %v, want %v", got, wantNext)
	}
	if s.LastSuccess().IsZero() {
		t.Error("last success not recorded")
	}
}

// Two simultaneous fire-condition checks during one running cycle produce
// exactly one execution.
func TestSingleFlight(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 8, 24, 2, 0, 30, 0, time.UTC))
	var runs atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	s := armed(t, "02:00", clock, func(ctx context.Context, fireTime time.Time) error {
		runs.Add(1)
		close(entered)
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		s.tick(context.Background(), clock.Now())
		close(done)
	}()
	<-entered

	// Second check while the cycle is in flight: must be a no-op.
	s.tick(context.Background(), clock.Now())
	if got := s.State(); got != Running {
		t.Fatalf("state during cycle = %v, want running", got)
	}

	close(release)
	<-done

	// A late re-check against the already-fired target is also a no-op.
	s.tick(context.Background(), clock.Now())

	if got := runs.Load(); got != 1 {
		t.Errorf("cycle ran %d times, want 1", got)
	}
	if got := s.State(); got != Waiting {
		t.Errorf("state after cycle = %v, want waiting", got)
	}
}

// A failing cycle is logged and skipped; the schedule still advances a full
// interval so the failure is not hot-looped.
func TestFailedCycleAdvancesSchedule(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 8, 24, 2, 1, 0, 0, time.UTC))
	s := armed(t, "02:00", clock, func(ctx context.Context, fireTime time.Time) error {
		return errors.New("upstream down")
	})

	s.tick(context.Background(), clock.Now())

	wantNext := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	if got := s.NextFire(); !got.Equal(wantNext) {
		t.Errorf("next fire = %v, want %v", got, wantNext)
	}
	if !s.LastSuccess().IsZero() {
		t.Error("failed cycle recorded as success")
	}
}

// A panicking cycle is contained and treated as a cycle failure.
func TestPanicContained(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 8, 24, 2, 1, 0, 0, time.UTC))
	s := armed(t, "02:00", clock, func(ctx context.Context, fireTime time.Time) error {
		panic("boom")
	})

	s.tick(context.Background(), clock.Now())

	if got := s.State(); got != Waiting {
		t.Errorf("state after panic = %v, want waiting", got)
	}
	if !s.LastSuccess().IsZero() {
		t.Error("panicked cycle recorded as success")
	}
}

// The poll loop fires through simulated days and stops promptly.
func TestRunLoopFiresAndStops(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 8, 24, 1, 58, 0, 0, time.UTC))
	var runs atomic.Int32
	fired := make(chan struct{}, 1)
	s, err := New("02:00", time.UTC, time.Minute, clock, func(ctx context.Context, fireTime time.Time) error {
		runs.Add(1)
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never fired")
	}

	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if got := s.State(); got != Stopped {
		t.Errorf("state after stop = %v, want stopped", got)
	}
	if runs.Load() < 1 {
		t.Errorf("cycle ran %d times, want at least 1", runs.Load())
	}
}
