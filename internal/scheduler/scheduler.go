// Package scheduler runs the daily reminder job at a fixed wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/infrastructure"
)

// Job is the two-step reminder batch: refresh overdue bookkeeping, then
// notify employees whose declarations are due or nearly due.
type Job interface {
	MarkOverdueTasks(ctx context.Context) (int, error)
	SendDueReminders(ctx context.Context) (int, error)
}

// Config fixes the daily slot and the pause after a failed run.
type Config struct {
	Hour     int
	Minute   int
	Location *time.Location
	Backoff  time.Duration
}

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Report summarises one run of the job.
type Report struct {
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	MarkedOverdue int           `json:"marked_overdue"`
	RemindersSent int           `json:"reminders_sent"`
	Error         string        `json:"error,omitempty"`
}

// Status is a snapshot for health and admin endpoints.
type Status struct {
	Running bool      `json:"running"`
	NextRun time.Time `json:"next_run,omitempty"`
	LastRun *Report   `json:"last_run,omitempty"`
}

// Scheduler owns the background loop. Run is called once per process.
type Scheduler struct {
	job     Job
	cfg     Config
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
	now     func() time.Time
	sleep   Sleeper

	running atomic.Bool
	runMu   sync.Mutex

	mu      sync.RWMutex
	nextRun time.Time
	lastRun *Report
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithSleeper replaces the timer-based wait.
func WithSleeper(sleep Sleeper) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

// WithMetrics records runs and failures.
func WithMetrics(m *infrastructure.BusinessMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a Scheduler. A nil Location means UTC and a non-positive
// Backoff means five minutes.
func New(job Job, cfg Config, logger *slog.Logger, opts ...Option) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Minute
	}
	if logger == nil {
		logger = infrastructure.DiscardLogger()
	}
	s := &Scheduler{
		job:    job,
		cfg:    cfg,
		logger: infrastructure.WithComponent(logger, "reminder_scheduler"),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextRun returns the first instant strictly after now at hour:minute in
// loc, expressed in UTC. Calling it at exactly that instant yields the slot
// one day later.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next.UTC()
}

// Run sleeps until each daily slot and runs the job, until ctx is cancelled.
// A failed run is logged and followed by the backoff pause before the next
// slot is computed. Cancellation is a normal stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler: already running")
	}
	defer s.running.Store(false)

	s.logger.InfoContext(ctx, "reminder scheduler started",
		slog.Int("hour", s.cfg.Hour),
		slog.Int("minute", s.cfg.Minute),
		slog.String("location", s.cfg.Location.String()))

	for {
		now := s.now()
		next := NextRun(now, s.cfg.Hour, s.cfg.Minute, s.cfg.Location)
		s.setNextRun(next)
		s.logger.InfoContext(ctx, "next reminder run scheduled",
			slog.Time("next_run", next),
			slog.Duration("wait", next.Sub(now)))

		if err := s.sleep(ctx, next.Sub(now)); err != nil {
			s.logger.InfoContext(ctx, "reminder scheduler stopped")
			return nil
		}

		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.InfoContext(ctx, "reminder scheduler stopped during run")
				return nil
			}
			s.logger.ErrorContext(ctx, "reminder run failed, backing off",
				slog.String("error", err.Error()),
				slog.Duration("backoff", s.cfg.Backoff))
			if err := s.sleep(ctx, s.cfg.Backoff); err != nil {
				s.logger.InfoContext(ctx, "reminder scheduler stopped")
				return nil
			}
		}
	}
}

// RunOnce runs the job immediately. Concurrent calls are serialised. A panic
// in the job is returned as an error. Runs started outside a request get
// their own trace id so their log lines can be correlated.
func (s *Scheduler) RunOnce(ctx context.Context) (report Report, err error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx = infrastructure.EnsureTraceID(ctx)

	report.StartedAt = s.now()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reminder job panicked: %v", r)
		}
		report.Duration = time.Since(start)
		if err != nil {
			report.Error = err.Error()
		}
		s.finish(ctx, report, err)
	}()

	report.MarkedOverdue, err = s.job.MarkOverdueTasks(ctx)
	if err != nil {
		return report, fmt.Errorf("mark overdue tasks: %w", err)
	}
	report.RemindersSent, err = s.job.SendDueReminders(ctx)
	if err != nil {
		return report, fmt.Errorf("send due reminders: %w", err)
	}
	return report, nil
}

// Status reports the loop state and the most recent run.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{Running: s.running.Load(), NextRun: s.nextRun}
	if s.lastRun != nil {
		r := *s.lastRun
		st.LastRun = &r
	}
	return st
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}

func (s *Scheduler) finish(ctx context.Context, report Report, err error) {
	s.mu.Lock()
	s.lastRun = &report
	s.mu.Unlock()

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if s.metrics != nil {
		s.metrics.SchedulerRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		if err != nil {
			s.metrics.SchedulerFailures.Add(ctx, 1)
		}
	}
	if err == nil {
		s.logger.InfoContext(ctx, "reminder run completed",
			slog.Int("marked_overdue", report.MarkedOverdue),
			slog.Int("reminders_sent", report.RemindersSent),
			slog.Duration("duration", report.Duration))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
