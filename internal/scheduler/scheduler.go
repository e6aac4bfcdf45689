// Package scheduler drives periodic and wall-clock-based monitor runs.
//
// Each job owns one goroutine ticking at a fixed granularity. On every tick
// the job's wall-clock trigger is consulted first (the daily digest), then
// the periodic interval. The run executes synchronously inside the job's
// goroutine, so runs for one job never overlap while independent jobs
// interleave freely. The scheduler is an explicit per-process object with a
// Start/Stop lifecycle; there is no ambient job registry.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// defaultTickInterval matches the finest supported trigger granularity.
const defaultTickInterval = time.Minute

// Job is one schedulable unit of work.
type Job struct {
	// Name identifies the job in logs.
	Name string

	// Interval is the periodic trigger. Zero disables periodic runs.
	Interval time.Duration

	// DueNow is an optional wall-clock trigger checked on every tick,
	// before the interval. When it returns true the job runs with
	// wallClock=true.
	DueNow func(now time.Time) bool

	// Run executes the job. wallClock is true when the run was triggered
	// by DueNow rather than the interval.
	Run func(ctx context.Context, wallClock bool)

	// RunAtStart triggers an immediate run when the scheduler starts.
	RunAtStart bool
}

// Scheduler owns a set of jobs and their goroutines.
type Scheduler struct {
	logger       *zap.Logger
	tickInterval time.Duration
	jobs         []Job

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger:       logger.Named("scheduler"),
		tickInterval: defaultTickInterval,
	}
}

// SetTickInterval overrides the tick granularity. Intended for tests.
func (s *Scheduler) SetTickInterval(d time.Duration) { s.tickInterval = d }

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start launches one goroutine per job. Idempotent until Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.logger.Warn("Scheduler already started")
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(runCtx, job)
		s.logger.Info("Scheduled job",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval),
			zap.Bool("wall_clock_trigger", job.DueNow != nil),
		)
	}
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop cancels all job goroutines and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.started = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// runJob is the per-job loop.
func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer s.wg.Done()

	lastRun := time.Time{}
	if job.RunAtStart {
		s.execute(ctx, job, false)
		lastRun = time.Now()
	}

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			switch {
			case job.DueNow != nil && job.DueNow(now):
				s.execute(ctx, job, true)
				lastRun = now
			case job.Interval > 0 && now.Sub(lastRun) >= job.Interval:
				s.execute(ctx, job, false)
				lastRun = now
			}
		}
	}
}

// execute runs the job, containing panics so a failing run never halts the
// scheduler or other jobs.
func (s *Scheduler) execute(ctx context.Context, job Job, wallClock bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Job panicked",
				zap.String("job", job.Name),
				zap.Any("panic", r),
			)
		}
	}()
	job.Run(ctx, wallClock)
}
