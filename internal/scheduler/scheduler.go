package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// ErrJobNotFound is returned for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// JobStatus represents the status of a job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusScheduled JobStatus = "scheduled"
)

// JobInfo contains information about a scheduled job.
type JobInfo struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Status     JobStatus     `json:"status"`
	Interval   time.Duration `json:"interval"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	RunCount   int           `json:"run_count"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`

	job gocron.Job
}

// JobFunc represents a function that can be scheduled.
type JobFunc func(ctx context.Context) error

// Scheduler runs periodic background jobs.
type Scheduler struct {
	gocron gocron.Scheduler
	log    *log.Logger

	mu   sync.Mutex
	jobs map[string]*JobInfo

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler.
func New() (*Scheduler, error) {
	gocronScheduler, err := gocron.NewScheduler(gocron.WithLogger(newLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		gocron: gocronScheduler,
		log:    log.Default().WithPrefix("scheduler"),
		jobs:   make(map[string]*JobInfo),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.gocron.Start()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, info := range s.jobs {
		if nextRun, err := info.job.NextRun(); err == nil {
			info.NextRun = nextRun
		} else {
			s.log.Warn("Failed to get next run time for job", "id", id, "error", err)
		}
	}
	s.log.Info("Job scheduler started", "jobs", len(s.jobs))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.gocron.Shutdown()
}

// AddIntervalJob runs jobFunc every interval. Only one run of a job is active at a time.
func (s *Scheduler) AddIntervalJob(id, name string, interval time.Duration, jobFunc JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("interval of job %s must be positive", id)
	}

	info := &JobInfo{
		ID:       id,
		Name:     name,
		Status:   JobStatusScheduled,
		Interval: interval,
	}

	job, err := s.gocron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.wrapJobFunc(info, jobFunc)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	s.mu.Lock()
	info.job = job
	s.jobs[id] = info
	s.mu.Unlock()

	s.log.Debug("Added job to scheduler", "id", id, "name", name, "interval", interval)
	return nil
}

// RunJobNow manually triggers a job to run immediately.
func (s *Scheduler) RunJobNow(id string) error {
	s.mu.Lock()
	info, exists := s.jobs[id]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	if err := info.job.RunNow(); err != nil {
		return fmt.Errorf("failed to trigger job %s: %w", id, err)
	}
	return nil
}

// GetJobs returns a copy of all job information, ordered by id.
func (s *Scheduler) GetJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, info := range s.jobs {
		jobs = append(jobs, *info)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// wrapJobFunc wraps a job function to update job statistics.
func (s *Scheduler) wrapJobFunc(info *JobInfo, jobFunc JobFunc) func() {
	return func() {
		s.mu.Lock()
		info.Status = JobStatusRunning
		info.LastRun = time.Now()
		info.RunCount++
		s.mu.Unlock()

		err := jobFunc(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if info.job != nil {
			if nextRun, nerr := info.job.NextRun(); nerr == nil {
				info.NextRun = nextRun
			}
		}
		if err != nil {
			s.log.Error("Job failed", "id", info.ID, "error", err)
			info.Status = JobStatusFailed
			info.ErrorCount++
			info.LastError = err.Error()
			return
		}
		s.log.Debug("Job completed", "id", info.ID)
		info.Status = JobStatusCompleted
		info.LastError = ""
	}
}
