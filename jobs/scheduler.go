package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a unit of scheduled work
type Job interface {
	Name() string
	Run()
}

// Scheduler runs jobs on cron expressions. A panicking job is recovered and logged, and a
// job still running when its next tick arrives is skipped.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]cron.EntryID
}

func NewScheduler() *Scheduler {
	logger := cron.PrintfLogger(logrus.WithField("component", "Scheduler"))
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		jobs: make(map[string]cron.EntryID),
	}
}

// Schedule registers job under spec (standard five-field cron or @every/@daily descriptors).
func (s *Scheduler) Schedule(spec string, job Job) error {
	id, err := s.cron.AddFunc(spec, job.Run)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, job.Name(), err)
	}
	s.jobs[job.Name()] = id

	logrus.WithFields(logrus.Fields{
		"component": "Scheduler",
		"job":       job.Name(),
		"schedule":  spec,
	}).Info("Job scheduled")
	return nil
}

// Scheduled reports whether a job with name is registered
func (s *Scheduler) Scheduled(name string) bool {
	_, ok := s.jobs[name]
	return ok
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FuncJob adapts a plain function to Job
type FuncJob struct {
	JobName string
	Fn      func()
}

func (f FuncJob) Name() string {
	return f.JobName
}

func (f FuncJob) Run() {
	f.Fn()
}
