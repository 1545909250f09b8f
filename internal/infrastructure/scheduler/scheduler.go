package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crm/invoicing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Job is a daily task executed at a fixed hour and minute
type Job struct {
	Name   string
	Hour   int
	Minute int
	Run    func(ctx context.Context, asOf time.Time) error
}

// ParseDailySchedule parses a cron-style expression of the form "M H * * *"
// into an hour and minute. Only daily schedules are supported.
func ParseDailySchedule(expr string) (hour, minute int, err error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return 0, 0, fmt.Errorf("schedule %q must have 5 fields", expr)
	}
	minute, err = strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("schedule %q has invalid minute field", expr)
	}
	hour, err = strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("schedule %q has invalid hour field", expr)
	}
	for _, f := range fields[2:] {
		if f != "*" {
			return 0, 0, fmt.Errorf("schedule %q must run daily, day and month fields must be *", expr)
		}
	}
	return hour, minute, nil
}

// JobLock serializes job execution across instances
type JobLock interface {
	Acquire(ctx context.Context, jobName string) (release func(), acquired bool)
}

// Scheduler runs registered daily jobs. A minute-grain ticker checks whether
// a job is due; the distributed lock ensures a job runs on one instance only.
type Scheduler struct {
	cfg           config.SchedulerConfig
	lock          JobLock
	logger        *zap.Logger
	jobs          []Job
	checkInterval time.Duration

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   map[string]string // job name -> date last run
}

// NewScheduler creates a scheduler for the given jobs
func NewScheduler(cfg config.SchedulerConfig, lock JobLock, logger *zap.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		cfg:           cfg,
		lock:          lock,
		logger:        logger.Named("scheduler"),
		jobs:          jobs,
		checkInterval: time.Minute,
		lastRun:       make(map[string]string),
	}
}

// Start starts the scheduler loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	for _, job := range s.jobs {
		s.logger.Info("Scheduled daily job",
			zap.String("job", job.Name),
			zap.Int("hour", job.Hour),
			zap.Int("minute", job.Minute),
		)
	}
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop checks periodically whether any job is due
func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRun(ctx, time.Now())
		}
	}
}

// checkAndRun fires every job whose scheduled time matches the current minute
func (s *Scheduler) checkAndRun(ctx context.Context, now time.Time) {
	currentDate := now.Format("2006-01-02")

	for _, job := range s.jobs {
		if now.Hour() != job.Hour || now.Minute() != job.Minute {
			continue
		}

		s.mu.Lock()
		if s.lastRun[job.Name] == currentDate {
			s.mu.Unlock()
			continue
		}
		s.lastRun[job.Name] = currentDate
		s.mu.Unlock()

		s.runJob(ctx, job, now)
	}
}

// RunNow executes a job immediately, bypassing the schedule but not the lock.
// Used by the manual trigger endpoint.
func (s *Scheduler) RunNow(ctx context.Context, name string, asOf time.Time) error {
	for _, job := range s.jobs {
		if job.Name == name {
			s.runJob(ctx, job, asOf)
			return nil
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

// runJob executes a job under the distributed lock with the configured timeout
func (s *Scheduler) runJob(ctx context.Context, job Job, asOf time.Time) {
	release, ok := s.lock.Acquire(ctx, job.Name)
	if !ok {
		s.logger.Info("Job skipped, another instance holds the lock",
			zap.String("job", job.Name),
		)
		return
	}
	defer release()

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("Running job", zap.String("job", job.Name))

	if err := job.Run(jobCtx, asOf); err != nil {
		s.logger.Error("Job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Job finished",
		zap.String("job", job.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
}
