package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fireInterval is the fixed cadence between fires. The next fire is always
// computed from the fire time just executed, never from "now", so a slow
// cycle cannot accumulate drift.
const fireInterval = 24 * time.Hour

const defaultPollInterval = time.Minute

// Clock abstracts wall time so tests can simulate days without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// State enumerates the scheduler's lifecycle.
type State int

const (
	Idle State = iota
	Waiting
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Job is one full collect-analyze-deliver cycle, invoked with the fire time.
type Job func(ctx context.Context, fireTime time.Time) error

// Scheduler drives the pipeline once per day at a configured wall-clock
// time. It polls at a short granularity so a stop signal is observed
// promptly rather than after a day-long sleep; fires are guarded by the
// recorded fired target, not a coarse equality check, and at most one cycle
// runs at a time.
type Scheduler struct {
	fireHour   int
	fireMinute int
	location   *time.Location
	poll       time.Duration
	clock      Clock
	job        Job
	logger     *slog.Logger

	mu          sync.Mutex
	state       State
	nextFire    time.Time
	firedTarget time.Time
	lastSuccess time.Time
	stop        chan struct{}
	stopOnce    sync.Once
}

// New builds a scheduler for a daily "HH:MM" fire time. A nil clock uses
// wall time.
func New(fireTime string, location *time.Location, poll time.Duration, clock Clock, job Job, logger *slog.Logger) (*Scheduler, error) {
	hour, minute, err := parseFireTime(fireTime)
	if err != nil {
		return nil, err
	}
	if location == nil {
		location = time.UTC
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Scheduler{
		fireHour:   hour,
		fireMinute: minute,
		location:   location,
		poll:       poll,
		clock:      clock,
		job:        job,
		logger:     logger,
		state:      Idle,
		stop:       make(chan struct{}),
	}, nil
}

func parseFireTime(value string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("fire time %q: want HH:MM", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("fire time %q: bad hour", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("fire time %q: bad minute", value)
	}
	return hour, minute, nil
}

// nextOccurrence finds the next daily fire time strictly after now.
func (s *Scheduler) nextOccurrence(now time.Time) time.Time {
	now = now.In(s.location)
	candidate := time.Date(now.Year(), now.Month(), now.Day(), s.fireHour, s.fireMinute, 0, 0, s.location)
	if !candidate.After(now) {
		candidate = candidate.Add(fireInterval)
	}
	return candidate
}

// Run drives the timer loop until the context is cancelled or Stop is
// called. The stop signal is checked at the top of every iteration and
// before starting a cycle; an in-flight cycle finishes before the loop
// exits.
func (s *Scheduler) Run(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	s.state = Waiting
	s.nextFire = s.nextOccurrence(now)
	next := s.nextFire
	s.mu.Unlock()

	s.info("scheduler started", "next_fire", next)

	for {
		select {
		case <-ctx.Done():
			s.halt("context cancelled")
			return
		case <-s.stop:
			s.halt("stop requested")
			return
		case <-s.clock.After(s.poll):
		}

		select {
		case <-s.stop:
			s.halt("stop requested")
			return
		default:
		}

		s.tick(ctx, s.clock.Now())
	}
}

// tick fires the cycle when the fire condition holds. It is safe under
// concurrent calls: the Running state and the recorded fired target together
// guarantee single-flight per target time.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if s.state != Waiting || now.Before(s.nextFire) || s.nextFire.Equal(s.firedTarget) {
		s.mu.Unlock()
		return
	}
	target := s.nextFire
	s.firedTarget = target
	s.state = Running
	s.mu.Unlock()

	err := s.runCycle(ctx, target)

	s.mu.Lock()
	if s.state != Stopped {
		s.state = Waiting
	}
	// Fixed cadence: one interval after the target just executed, however
	// long the cycle took. A failed cycle is skipped, not retried, so a
	// broken dependency is never hot-looped against.
	s.nextFire = target.Add(fireInterval)
	if err == nil {
		s.lastSuccess = s.clock.Now()
	}
	next := s.nextFire
	s.mu.Unlock()

	if err != nil {
		s.warn("cycle failed", "target", target, "next_fire", next, "error", err)
	} else {
		s.info("cycle complete", "target", target, "next_fire", next)
	}
}

// runCycle invokes the job with panic containment; an escaped panic is a
// cycle failure, not a process crash.
func (s *Scheduler) runCycle(ctx context.Context, target time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	if s.job == nil {
		return nil
	}
	return s.job(ctx, target)
}

// Stop signals the loop to exit. Idempotent; reachable from any state.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Scheduler) halt(reason string) {
	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
	s.info("scheduler stopped", "reason", reason)
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextFire reports the next scheduled fire time.
func (s *Scheduler) NextFire() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextFire
}

// LastSuccess reports when the last cycle completed without error.
func (s *Scheduler) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

func (s *Scheduler) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Scheduler) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
