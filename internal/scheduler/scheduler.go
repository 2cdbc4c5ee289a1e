package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Target is anything that can be ticked once by the scheduler.
type Target interface {
	Tick()
}

type pending struct {
	timer *time.Timer
}

// Scheduler runs one Tick per ScheduleAfterDelay call. Each expiry runs on
// its own goroutine, so the pool grows with demand and nothing sits idle
// between ticks. Ordering between targets is not guaranteed.
type Scheduler struct {
	Logger *zap.Logger

	mu      sync.Mutex
	timers  map[*pending]struct{}
	stopped bool
	wg      sync.WaitGroup
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Logger: logger,
		timers: make(map[*pending]struct{}),
	}
}

// ScheduleAfterDelay arranges a single t.Tick() after delay. Negative delays
// run immediately. Calls after Stop are dropped.
func (s *Scheduler) ScheduleAfterDelay(t Target, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	p := &pending{}
	s.timers[p] = struct{}{}
	s.wg.Add(1)
	// the callback takes s.mu first, so p.timer is set before it is read
	p.timer = time.AfterFunc(delay, func() { s.fire(p, t) })
}

func (s *Scheduler) fire(p *pending, t Target) {
	defer s.wg.Done()

	s.mu.Lock()
	delete(s.timers, p)
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("scheduler_tick_panic", zap.Any("panic", r))
		}
	}()
	t.Tick()
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels pending timers and waits for in-flight ticks to return,
// or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		for p := range s.timers {
			if p.timer.Stop() {
				s.wg.Done()
			}
			delete(s.timers, p)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.Logger.Info("scheduler_stopped")
		return nil
	case <-ctx.Done():
		s.Logger.Warn("scheduler_stop_timeout", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
