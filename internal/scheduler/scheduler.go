// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one periodic maintenance task.
type Job struct {
	Name    string
	Spec    string // cron expression or descriptor like "@every 15m"
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs maintenance jobs on cron schedules. A failing job is logged
// and retried on its next tick.
type Scheduler struct {
	cron   *cron.Cron
	logger *logrus.Logger
	jobs   map[string]Job
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.run(s.ctx, job) }); err != nil {
		return fmt.Errorf("schedule %q: %w", job.Name, err)
	}
	s.jobs[job.Name] = job
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	start := time.Now()
	log := s.logger.WithField("job", job.Name)
	if err := job.Run(ctx); err != nil {
		log.WithError(err).Error("scheduled job failed")
		return err
	}
	log.WithField("duration", time.Since(start)).Debug("scheduled job finished")
	return nil
}

// RunNow executes a registered job immediately on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("jobs", len(s.jobs)).Info("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
