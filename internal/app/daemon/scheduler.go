package daemon

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Scheduler provides a mechanism to execute a callback function repeatedly at a specified interval.
type Scheduler struct {
	settings schedulerSettings
	quit     chan struct{} // Channel for signaling termination.
	mu       sync.Mutex    // Guards lazy creation of quit.
	stopOnce sync.Once
}

// Encapsulates the configuration options for a Scheduler.
type schedulerSettings struct {
	Callback        func()        // Function to be executed at each interval.
	Interval        time.Duration // Duration between callback executions.
	LaunchInitially bool          // Flag indicating whether to execute the callback immediately upon scheduling.
}

// ScheduleWithCtx launches a Scheduler with the provided settings.
//
// Launches a time.Ticker that signals the execution of the callback function at regular intervals.
// Returns an error only if invalid settings are provided (e.g., interval <= 0 or nil callback).
// A Scheduler can only be scheduled once.
func (s *Scheduler) ScheduleWithCtx(ctx context.Context, settings schedulerSettings) error {
	if settings.Interval <= 0 {
		return errors.New("interval must be larger than 0")
	}
	if settings.Callback == nil {
		return errors.New("callback is nil")
	}

	s.settings = settings
	go s.runSchedule(ctx, s.quitCh())
	return nil
}

func (s *Scheduler) runSchedule(ctx context.Context, quit <-chan struct{}) {
	if s.settings.LaunchInitially {
		s.settings.Callback()
	}

	ticker := time.NewTicker(s.settings.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.settings.Callback()
		case <-quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop gracefully terminates Scheduler. It is safe to call more than once
// and before scheduling.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.quitCh())
	})
}

func (s *Scheduler) quitCh() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quit == nil {
		s.quit = make(chan struct{})
	}
	return s.quit
}
