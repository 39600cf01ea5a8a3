// Package scheduler runs sync passes on a cadence, one at a time.
package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
	"golang.org/x/sync/semaphore"
)

// RunFunc executes one pass
type RunFunc func(ctx context.Context) domain.RunResult

// Options tunes a Scheduler
type Options struct {
	// RunOnStart starts a pass as soon as the loop starts
	RunOnStart bool
	Logger     *log.Logger
}

// Status is a snapshot of the scheduler
type Status struct {
	Running bool
	NextRun time.Time
	LastRun *domain.RunResult
}

// Scheduler manages scheduled sync passes
type Scheduler struct {
	run        RunFunc
	cadence    Cadence
	runOnStart bool
	logger     *log.Logger
	now        func() time.Time

	sem     *semaphore.Weighted
	running atomic.Bool
	trigger chan struct{}
	passes  sync.WaitGroup

	mu      sync.RWMutex
	nextRun time.Time
	lastRun *domain.RunResult

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new Scheduler
func New(run RunFunc, cadence Cadence, opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		run:        run,
		cadence:    cadence,
		runOnStart: opts.RunOnStart,
		logger:     logger,
		now:        time.Now,
		sem:        semaphore.NewWeighted(1),
		trigger:    make(chan struct{}, 1),
	}
}

// Start begins the scheduler loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if s.runOnStart {
		s.tryRun(ctx, "start")
	}

	timer := time.NewTimer(s.schedule())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.tryRun(ctx, "schedule")
			timer.Reset(s.schedule())
		case <-s.trigger:
			s.tryRun(ctx, "trigger")
		}
	}
}

// schedule computes the next activation and returns the wait until it
func (s *Scheduler) schedule() time.Duration {
	now := s.now()
	next := s.cadence.Next(now)
	if next.IsZero() {
		// cron expressions that never fire again
		next = now.Add(24 * time.Hour)
	}
	s.mu.Lock()
	s.nextRun = next
	s.mu.Unlock()

	wait := next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	s.logger.Printf("next sync at %s", next.Format(time.RFC3339))
	return wait
}

// tryRun starts a pass unless one is in progress. The pass is detached
// from ctx so shutdown never interrupts it midway.
func (s *Scheduler) tryRun(ctx context.Context, reason string) {
	if !s.sem.TryAcquire(1) {
		s.logger.Printf("sync already in progress, skipping %s run", reason)
		return
	}
	s.running.Store(true)
	s.passes.Add(1)

	go func() {
		defer s.passes.Done()
		defer s.sem.Release(1)
		defer s.running.Store(false)

		s.logger.Printf("starting sync (%s)", reason)
		result := s.run(context.WithoutCancel(ctx))

		s.mu.Lock()
		s.lastRun = &result
		s.mu.Unlock()
	}()
}

// ForceSync requests an immediate pass. It returns false when a pass is
// already running and the request was dropped.
func (s *Scheduler) ForceSync() bool {
	if s.Running() {
		s.logger.Printf("sync already in progress, ignoring trigger")
		return false
	}
	select {
	case s.trigger <- struct{}{}:
	default:
		// a trigger is already pending
	}
	return true
}

// Running reports whether a pass is in progress
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Status returns a snapshot for status reporting
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{Running: s.Running(), NextRun: s.nextRun}
	if s.lastRun != nil {
		r := *s.lastRun
		st.LastRun = &r
	}
	return st
}

// Stop halts the loop and waits for an in-flight pass to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		s.passes.Wait()
	})
}
