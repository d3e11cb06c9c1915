package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/infrastructure"
)

// CreditConsumer spends Central Hub credits. *centralhub.Client satisfies it.
type CreditConsumer interface {
	ConsumeCredits(ctx context.Context, amount int, reason string) (*centralhub.ConsumeResult, error)
}

// Config tunes reminder selection.
type Config struct {
	// NearDueWindow is how far ahead of the due date reminders start.
	NearDueWindow time.Duration
	// MinInterval is the minimum gap between two reminders for one task.
	MinInterval time.Duration
}

// Service implements task assignment and the daily reminder job.
type Service struct {
	store    Store
	notifier Notifier
	credits  CreditConsumer
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
	metrics  *infrastructure.BusinessMetrics
	validate *validator.Validate
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithMetrics records reminders sent.
func WithMetrics(m *infrastructure.BusinessMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service.
func NewService(store Store, notifier Notifier, credits CreditConsumer, cfg Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if cfg.NearDueWindow <= 0 {
		cfg.NearDueWindow = 72 * time.Hour
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 20 * time.Hour
	}
	if logger == nil {
		logger = infrastructure.DiscardLogger()
	}
	s := &Service{
		store:    store,
		notifier: notifier,
		credits:  credits,
		cfg:      cfg,
		now:      time.Now,
		logger:   infrastructure.WithComponent(logger, "task_service"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkOverdueTasks flags outstanding tasks whose due date has passed.
func (s *Service) MarkOverdueTasks(ctx context.Context) (int, error) {
	n, err := s.store.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "tasks marked overdue", slog.Int("count", n))
	}
	return n, nil
}

// SendDueReminders notifies every open task that is overdue or due within
// the near-due window and has not been reminded within MinInterval. A
// failed notification does not stop the rest; the failures are returned
// joined so the caller can retry later.
func (s *Service) SendDueReminders(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.DueForReminder(ctx, now.Add(s.cfg.NearDueWindow), now.Add(-s.cfg.MinInterval))
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs []error
	for _, t := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.notifier.NotifyReminder(ctx, t); err != nil {
			s.logger.WarnContext(ctx, "reminder not delivered",
				slog.String("task_id", t.ID),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("task %s: %w", t.ID, err))
			continue
		}
		if err := s.store.RecordReminder(ctx, t.ID, now); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", t.ID, err))
			continue
		}
		sent++
	}

	if s.metrics != nil && sent > 0 {
		s.metrics.RemindersSent.Add(ctx, int64(sent))
	}
	s.logger.InfoContext(ctx, "due reminders processed",
		slog.Int("candidates", len(due)),
		slog.Int("sent", sent),
		slog.Int("failed", len(errs)))
	return sent, errors.Join(errs...)
}

// BulkCreate assigns one task per row after spending one credit per task at
// Central Hub. Nothing is stored unless the credits were consumed.
func (s *Service) BulkCreate(ctx context.Context, req BulkCreateRequest) ([]*Task, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}

	count := len(req.Tasks)
	result, err := s.credits.ConsumeCredits(ctx, count, fmt.Sprintf("Bulk declaration request for %d employees", count))
	if err != nil {
		return nil, err
	}
	if !result.Success {
		s.logger.WarnContext(ctx, "bulk request rejected by Central Hub",
			slog.Int("requested", count),
			slog.String("remaining_balance", result.RemainingBalance.String()),
			slog.String("reason", result.Error))
		return nil, fmt.Errorf("%w: %s", ErrInsufficientCredits, result.Error)
	}

	now := s.now().UTC()
	created := make([]*Task, 0, count)
	for _, nt := range req.Tasks {
		created = append(created, &Task{
			ID:            uuid.NewString(),
			EmployeeName:  nt.EmployeeName,
			EmployeeEmail: nt.EmployeeEmail,
			ManagerEmail:  nt.ManagerEmail,
			TemplateName:  nt.TemplateName,
			Status:        StatusOutstanding,
			DueDate:       nt.DueDate.UTC(),
			CreatedAt:     now,
			AccessToken:   uuid.NewString(),
		})
	}
	if err := s.store.Create(ctx, created); err != nil {
		s.logger.ErrorContext(ctx, "credits consumed but tasks not stored",
			slog.Int("credits", count),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("store tasks: %w", err)
	}

	if s.metrics != nil {
		s.metrics.TasksCreated.Add(ctx, int64(count))
	}
	s.logger.InfoContext(ctx, "declaration tasks created",
		slog.Int("count", count),
		slog.String("remaining_balance", result.RemainingBalance.String()),
		slog.String("template", req.Tasks[0].TemplateName))
	return created, nil
}

// List returns tasks matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]*Task, error) {
	return s.store.List(ctx, f)
}

// Get returns one task.
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	return s.store.Get(ctx, id)
}

// Submit records the employee's completed declaration.
func (s *Service) Submit(ctx context.Context, id string) (*Task, error) {
	t, err := s.store.Submit(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TasksSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("template", t.TemplateName)))
	}
	s.logger.InfoContext(ctx, "declaration submitted", slog.String("task_id", id))
	return t, nil
}
