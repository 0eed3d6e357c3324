package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodic reconciliation task. Run returns the number of rows it affected.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// Locker keeps two instances from running the same job at once
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context), acquired bool, err error)
}

// Scheduler runs each job once at start and then on its own ticker
type Scheduler struct {
	jobs    []Job
	locker  Locker
	timeout time.Duration
	logger  *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. locker may be nil; timeout bounds every run.
func NewScheduler(jobs []Job, locker Locker, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		jobs:    jobs,
		locker:  locker,
		timeout: timeout,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start launches one goroutine per job and returns immediately
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Stop signals every job loop to exit and waits for in-flight runs
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.RunOnce(ctx, job)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx, job)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce executes a single run of job under the lock and timeout
func (s *Scheduler) RunOnce(ctx context.Context, job Job) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.locker != nil {
		release, acquired, err := s.locker.Acquire(runCtx, job.Name, s.timeout)
		if err != nil {
			// Idempotent jobs can run without the lock
			s.logger.Warn("job lock unavailable", slog.String("job", job.Name), slog.Any("error", err))
		} else if !acquired {
			s.logger.Debug("job already running elsewhere", slog.String("job", job.Name))
			return
		} else {
			defer release(context.WithoutCancel(ctx))
		}
	}

	start := time.Now()
	affected, err := job.Run(runCtx)
	if err != nil {
		s.logger.Error("job failed",
			slog.String("job", job.Name),
			slog.Any("error", err),
		)
		return
	}

	s.logger.Info("job completed",
		slog.String("job", job.Name),
		slog.Int64("affected", affected),
		slog.Duration("duration", time.Since(start)),
	)
}
