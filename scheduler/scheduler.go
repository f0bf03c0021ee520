// Package scheduler runs periodic maintenance, such as stale file cleanup and
// import journal pruning, on cron schedules.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Job interface {
	Run()
}

// JobFunc adapts a plain function to Job.
type JobFunc func()

func (f JobFunc) Run() { f() }

type SchedulerParams struct {
	Logger zerolog.Logger
}

func NewScheduler(params SchedulerParams) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: params.Logger,
		jobs:   make(map[cron.EntryID]string),
	}
}

type Scheduler struct {
	cron   *cron.Cron
	mu     sync.Mutex
	jobs   map[cron.EntryID]string
	logger zerolog.Logger
}

// Start the scheduler in its own routine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop the scheduler and wait for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// AddJob registers job under a standard five field cron schedule. Runs of the
// same job never overlap: a run due while the previous one is still going is
// skipped.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	logger := s.logger.With().Str("job", name).Str("schedule", schedule).Logger()
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(JobFunc(func() {
		start := time.Now()
		logger.Debug().Msg("scheduled job started")
		job.Run()
		logger.Debug().Dur("elapsed", time.Since(start)).Msg("scheduled job finished")
	}))

	entry, err := s.cron.AddJob(schedule, wrapped)
	if err != nil {
		return fmt.Errorf("could not add job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[entry] = name
	s.mu.Unlock()

	logger.Info().Msg("job scheduled")
	return nil
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for _, name := range s.jobs {
		out = append(out, name)
	}
	return out
}

func (s *Scheduler) RemoveJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for entry := range s.jobs {
		s.cron.Remove(entry)
		delete(s.jobs, entry)
	}
}
