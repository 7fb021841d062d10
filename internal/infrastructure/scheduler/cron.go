package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"RiskMonitor/internal/ports"
	"RiskMonitor/pkg/logger"
)

// IntervalScheduler runs a job immediately and then at a fixed interval.
// Runs never overlap: a run that comes due while the previous one is still
// executing is skipped.
type IntervalScheduler struct {
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	stop    chan struct{}
	initial sync.WaitGroup
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler; intervals below one second are
// rounded up to one second.
func NewIntervalScheduler(interval time.Duration, log *slog.Logger) *IntervalScheduler {
	return &IntervalScheduler{interval: interval, logger: log}
}

// Start schedules the job. It is a no-op when already started. Cancelling
// ctx stops the scheduler as Stop does.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	cl := logger.Cron(s.logger)
	wrapped := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { job(time.Now()) }))

	c := cron.New(cron.WithLogger(cl))
	c.Schedule(cron.Every(s.interval), wrapped)

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		wrapped.Run()
	}()
	c.Start()

	stop := make(chan struct{})
	s.cron = c
	s.stop = stop

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop(context.Background())
		case <-stop:
		}
	}()

	return nil
}

// Stop cancels the interval and waits for a running job to return or for
// ctx to end, whichever comes first.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	if c == nil {
		s.mu.Unlock()
		return nil
	}
	s.cron = nil
	close(s.stop)
	s.stop = nil
	s.mu.Unlock()

	running := c.Stop()

	done := make(chan struct{})
	go func() {
		<-running.Done()
		s.initial.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
