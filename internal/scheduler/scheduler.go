// Package scheduler runs the periodic background sync job.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// jobName identifies the recurring sync job. At most one job with this
// name is ever scheduled, and runs never overlap.
const jobName = "weather_sync"

const (
	defaultRetryDelay = 5 * time.Minute
	defaultMaxRetries = 3
	runTimeout        = 5 * time.Minute
)

// Syncer is the synchronization engine operation the job invokes.
type Syncer interface {
	SyncAllCities(ctx context.Context) error
}

// SettingsSource supplies the persisted flags that gate the job.
type SettingsSource interface {
	AutoUpdateEnabled(ctx context.Context) (bool, error)
	NotificationsEnabled(ctx context.Context) (bool, error)
	UpdateInterval(ctx context.Context) (time.Duration, error)
}

// Notifier is the user-visible notification collaborator. Presentation is
// outside this service; implementations receive the event and do the rest.
type Notifier interface {
	WeatherUpdated(ctx context.Context) error
}

// Outcome reports how a single job run ended.
type Outcome int

const (
	// OutcomeSuccess means the sync completed (including best-effort
	// per-city failures, which the engine swallows).
	OutcomeSuccess Outcome = iota
	// OutcomeSkipped means the run was a no-op: auto-update disabled or
	// no network.
	OutcomeSkipped
	// OutcomeRetry means the engine call failed and a retry was requested.
	OutcomeRetry
	// OutcomeFailure means the run hit an unexpected internal fault;
	// no retry is requested.
	OutcomeFailure
)

// Config tunes the scheduler. The zero value selects the defaults.
type Config struct {
	// RetryDelay is the wait before a requested retry runs. Default 5m.
	RetryDelay time.Duration
	// MaxRetries bounds consecutive retries for a failing run. Default 3.
	MaxRetries int
	// Online reports whether network connectivity is present. The job only
	// does work when it returns true. Default: always online.
	Online func(ctx context.Context) bool
}

// Scheduler owns the recurring sync job. Duplicate Start calls keep the
// existing job rather than scheduling a second one.
type Scheduler struct {
	cron     *gocron.Scheduler
	syncer   Syncer
	settings SettingsSource
	notifier Notifier
	log      *slog.Logger

	retryDelay time.Duration
	maxRetries int
	online     func(ctx context.Context) bool

	mu       sync.Mutex
	started  bool
	attempts int
	updated  []chan time.Time
}

// New constructs a Scheduler.
func New(syncer Syncer, settings SettingsSource, notifier Notifier, log *slog.Logger, cfg Config) *Scheduler {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Online == nil {
		cfg.Online = func(context.Context) bool { return true }
	}

	return &Scheduler{
		cron:       gocron.NewScheduler(time.UTC),
		syncer:     syncer,
		settings:   settings,
		notifier:   notifier,
		log:        log,
		retryDelay: cfg.RetryDelay,
		maxRetries: cfg.MaxRetries,
		online:     cfg.Online,
	}
}

// Start schedules the recurring job at the persisted update interval and
// starts the underlying scheduler. Calling Start while a job is already
// scheduled keeps the existing job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	interval, err := s.settings.UpdateInterval(ctx)
	if err != nil {
		return fmt.Errorf("reading update interval: %w", err)
	}

	job, err := s.cron.Every(interval).Tag(jobName).Do(func() {
		runCtx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		s.RunOnce(runCtx)
	})
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", jobName, err)
	}
	job.SingletonMode()

	s.cron.StartAsync()
	s.started = true
	s.log.Info("sync job scheduled", "job", jobName, "interval", interval)
	return nil
}

// Stop stops the scheduler and cancels future runs.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Updated returns a channel that receives the completion time of every
// successful sync run.
func (s *Scheduler) Updated() <-chan time.Time {
	ch := make(chan time.Time, 1)
	s.mu.Lock()
	s.updated = append(s.updated, ch)
	s.mu.Unlock()
	return ch
}

// RunOnce executes one sync run and reports its outcome. It is invoked by
// the recurring job and may be called directly for a manual run.
func (s *Scheduler) RunOnce(ctx context.Context) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sync run panicked", "recover", r)
			outcome = OutcomeFailure
		}
	}()

	if !s.online(ctx) {
		s.log.Info("skipping sync: no network connectivity")
		return OutcomeSkipped
	}

	enabled, err := s.settings.AutoUpdateEnabled(ctx)
	if err != nil {
		s.log.Error("reading auto-update flag failed", "err", err)
		return OutcomeFailure
	}
	if !enabled {
		s.log.Info("skipping sync: auto-update disabled")
		return OutcomeSkipped
	}

	if err := s.syncer.SyncAllCities(ctx); err != nil {
		s.log.Error("sync failed", "err", err)
		return s.requestRetry()
	}

	s.mu.Lock()
	s.attempts = 0
	now := time.Now().UTC()
	for _, ch := range s.updated {
		select {
		case ch <- now:
		default:
		}
	}
	s.mu.Unlock()

	notify, err := s.settings.NotificationsEnabled(ctx)
	if err != nil {
		s.log.Warn("reading notifications flag failed", "err", err)
	} else if notify {
		if err := s.notifier.WeatherUpdated(ctx); err != nil {
			s.log.Warn("notifier failed", "err", err)
		}
	}

	s.log.Info("sync completed")
	return OutcomeSuccess
}

// requestRetry enqueues a one-shot retry run unless the retry budget for
// this failure streak is exhausted.
func (s *Scheduler) requestRetry() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempts >= s.maxRetries {
		s.log.Error("sync retries exhausted", "attempts", s.attempts)
		s.attempts = 0
		return OutcomeFailure
	}
	s.attempts++

	_, err := s.cron.Every(s.retryDelay).LimitRunsTo(1).Tag(jobName + "_retry").Do(func() {
		runCtx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		s.RunOnce(runCtx)
	})
	if err != nil {
		s.log.Error("scheduling retry failed", "err", err)
		return OutcomeFailure
	}

	s.log.Warn("sync retry requested", "attempt", s.attempts, "delay", s.retryDelay)
	return OutcomeRetry
}
