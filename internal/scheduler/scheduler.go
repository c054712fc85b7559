// Package scheduler runs background maintenance on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job names
const (
	JobTrendingWarm = "trending-warm"
	JobHousekeeping = "housekeeping"
)

// jobTimeout bounds a single run of any job.
const jobTimeout = 30 * time.Minute

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron     *cron.Cron
	mu       sync.Mutex
	jobs     map[string]cron.EntryID
	timezone *time.Location
	log      zerolog.Logger
}

// New creates a new scheduler with the given timezone
func New(timezone string, log zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		jobs:     make(map[string]cron.EntryID),
		timezone: loc,
		log:      log,
	}, nil
}

// AddJob adds a job with a cron schedule such as "*/15 * * * *" or "@hourly".
// Adding a name twice replaces the earlier job.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	old, replaced := s.jobs[name]
	s.jobs[name] = entryID
	s.mu.Unlock()
	if replaced {
		s.cron.Remove(old)
	}

	s.log.Info().Str("job", name).Str("schedule", schedule).Msg("added job")
	return nil
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.log.Info().Str("job", name).Msg("starting job")
	start := time.Now()

	err := job(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("job failed")
	} else {
		s.log.Info().Str("job", name).Dur("took", time.Since(start)).Msg("job completed")
	}
	return err
}

// AddTrendingWarm refreshes the trending cache entry on schedule. An empty
// schedule leaves the job disabled.
func (s *Scheduler) AddTrendingWarm(schedule string, job Job) error {
	if schedule == "" {
		return nil
	}
	return s.AddJob(JobTrendingWarm, schedule, job)
}

// AddHousekeeping compacts the cache on schedule.
func (s *Scheduler) AddHousekeeping(schedule string, job Job) error {
	if schedule == "" {
		return nil
	}
	return s.AddJob(JobHousekeeping, schedule, job)
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	entryID, ok := s.jobs[name]
	delete(s.jobs, name)
	s.mu.Unlock()

	if ok {
		s.cron.Remove(entryID)
		s.log.Info().Str("job", name).Msg("removed job")
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.log.Info().Str("timezone", s.timezone.String()).Msg("starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	s.log.Info().Msg("stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a job outside its schedule
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// ListJobs returns info about scheduled jobs ordered by name
func (s *Scheduler) ListJobs() []JobInfo {
	entries := make(map[cron.EntryID]cron.Entry)
	for _, e := range s.cron.Entries() {
		entries[e.ID] = e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for name, id := range s.jobs {
		if e, ok := entries[id]; ok {
			infos = append(infos, JobInfo{Name: name, NextRun: e.Next, LastRun: e.Prev})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
