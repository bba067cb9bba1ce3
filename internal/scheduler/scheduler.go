// Package scheduler runs housekeeping tasks (backups, metrics dumps) on cron
// schedules while stationflow watch is running.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

// Job binds a task to a cron expression.
type Job struct {
	Name string
	Spec string
	Task Task

	schedule   cron.Schedule
	NextRunAt  time.Time
	LastRunAt  time.Time
	LastStatus string
}

// Status values recorded after each run.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Scheduler checks its jobs on every tick and runs those that are due.
type Scheduler struct {
	parser   cron.Parser
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	jobsMu sync.Mutex
	jobs   []*Job

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job names currently executing (dedup)
}

// NewScheduler creates a Scheduler ticking every interval (60s when zero).
func NewScheduler(interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Scheduler{
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		interval: interval,
		logger:   logger,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
}

// Add registers a job. The first run is the next match of spec after now.
func (s *Scheduler) Add(name, spec string, task Task) (*Job, error) {
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	job := &Job{Name: name, Spec: spec, Task: task, schedule: sched}
	job.NextRunAt = sched.Next(s.now())

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	for _, j := range s.jobs {
		if j.Name == name {
			return nil, fmt.Errorf("job %q already scheduled", name)
		}
	}
	s.jobs = append(s.jobs, job)
	return job, nil
}

// Jobs returns the registered jobs.
func (s *Scheduler) Jobs() []*Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	return append([]*Job(nil), s.jobs...)
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.Jobs())))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every job whose next run is not after now.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	for _, job := range s.Jobs() {
		if job.NextRunAt.After(now) {
			continue
		}
		if !s.tryAcquire(job.Name) {
			continue // already running (dedup)
		}
		s.runJob(ctx, job, now)
		s.releaseJob(job.Name)
	}
}

// runJob executes a job and updates its timestamps.
func (s *Scheduler) runJob(ctx context.Context, job *Job, now time.Time) {
	s.logger.Info("running scheduled job", slog.String("job", job.Name))

	status := StatusSuccess
	if err := job.Task(ctx); err != nil {
		status = StatusError
		s.logger.Error("scheduled job failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()),
		)
	}

	s.jobsMu.Lock()
	job.LastRunAt = now
	job.LastStatus = status
	job.NextRunAt = job.schedule.Next(now)
	s.jobsMu.Unlock()
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *Scheduler) releaseJob(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
