// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs.
// Cron jobs never overlap with themselves: a tick that fires while the
// previous run is still in progress is skipped. Interval jobs run in their
// own loop and wait the full interval after each run completes. Jobs run with
// a context that is never cancelled, so shutdown waits for the in-flight run
// to finish.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu        sync.Mutex
	entries   map[string]cron.Job // wrapped jobs by name
	intervals map[string]intervalEntry
	startup   []string
	stop      chan struct{}
	running   sync.WaitGroup // startup runs and interval loops
}

type intervalEntry struct {
	interval time.Duration
	job      cron.Job
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	l := log.With().Str("component", "scheduler").Logger()

	return &Scheduler{
		cron:      cron.New(cron.WithLogger(cronLogger{log: l})),
		log:       l,
		entries:   make(map[string]cron.Job),
		intervals: make(map[string]intervalEntry),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.start(nil)
}

func (s *Scheduler) start(runFirst map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := len(s.cron.Entries()) + len(s.intervals)
	s.stop = make(chan struct{})
	for name, entry := range s.intervals {
		s.running.Add(1)
		go s.loop(entry, runFirst[name], s.stop)
	}
	s.cron.Start()

	s.log.Info().Int("jobs", jobs).Msg("Scheduler started")
}

// Stop stops scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running.Wait()
	s.log.Info().Msg("Scheduler stopped")
}

// Run starts the scheduler, runs the startup jobs once and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	runFirst := make(map[string]bool)
	var startup []cron.Job
	for _, name := range s.startup {
		if _, ok := s.intervals[name]; ok {
			runFirst[name] = true
			continue
		}
		startup = append(startup, s.entries[name])
	}
	s.mu.Unlock()

	s.start(runFirst)

	for _, entry := range startup {
		entry := entry
		s.running.Add(1)
		go func() {
			defer s.running.Done()
			entry.Run()
		}()
	}

	<-ctx.Done()
	s.Stop()
}

// loop runs an interval job until stop is closed. The timer is armed only
// after a run returns.
func (s *Scheduler) loop(entry intervalEntry, runFirst bool, stop <-chan struct{}) {
	defer s.running.Done()

	if runFirst {
		entry.job.Run()
	}

	timer := time.NewTimer(entry.interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			entry.job.Run()
			timer.Reset(entry.interval)
		}
	}
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "*/5 * * * *"    - Every 5 minutes
//   - "@hourly"        - Every hour
//   - "@every 15m"     - Every 15 minutes
func (s *Scheduler) AddJob(schedule string, job Job) error {
	logger := cronLogger{log: s.log}
	wrapped := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(s.wrap(job))

	if _, err := s.cron.AddJob(schedule, wrapped); err != nil {
		return fmt.Errorf("failed to schedule job %s with %q: %w", job.Name(), schedule, err)
	}

	s.mu.Lock()
	s.entries[job.Name()] = wrapped
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// AddInterval registers a job that runs repeatedly, waiting interval after
// each run completes. A slow run delays the next one instead of being
// followed immediately by a queued tick.
func (s *Scheduler) AddInterval(interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", job.Name(), interval)
	}

	wrapped := s.wrap(job)

	s.mu.Lock()
	s.entries[job.Name()] = wrapped
	s.intervals[job.Name()] = intervalEntry{interval: interval, job: wrapped}
	s.mu.Unlock()

	s.log.Info().
		Dur("interval", interval).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

func (s *Scheduler) wrap(job Job) cron.Job {
	return cron.NewChain(cron.Recover(cronLogger{log: s.log})).
		Then(cron.FuncJob(func() { s.execute(job) }))
}

// RunAtStart marks a registered job to run once as soon as Run is called.
// For an interval job the startup run is the first iteration of its loop;
// a cron job's startup run shares the overlap guard with its scheduled runs.
func (s *Scheduler) RunAtStart(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return fmt.Errorf("job %s is not registered", name)
	}
	s.startup = append(s.startup, name)
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run(context.Background())
}

func (s *Scheduler) execute(job Job) {
	start := time.Now()
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	if err := job.Run(context.Background()); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", time.Since(start)).
			Msg("Job failed")
		return
	}

	s.log.Debug().
		Str("job", job.Name()).
		Dur("duration", time.Since(start)).
		Msg("Job completed")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
