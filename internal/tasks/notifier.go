package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/infrastructure"
)

// Notifier delivers a reminder about one task.
type Notifier interface {
	NotifyReminder(ctx context.Context, task *Task) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, task *Task) error

func (f NotifierFunc) NotifyReminder(ctx context.Context, task *Task) error { return f(ctx, task) }

// LogNotifier writes reminders to the structured log instead of sending mail.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: infrastructure.WithComponent(logger, "reminder_notifier")}
}

func (n *LogNotifier) NotifyReminder(ctx context.Context, task *Task) error {
	n.logger.InfoContext(ctx, "declaration reminder",
		slog.String("task_id", task.ID),
		slog.String("employee_email", task.EmployeeEmail),
		slog.String("manager_email", task.ManagerEmail),
		slog.String("template", task.TemplateName),
		slog.String("status", string(task.Status)),
		slog.Time("due_date", task.DueDate),
		slog.Bool("overdue", task.Status == StatusOverdue || task.DueDate.Before(time.Now())),
	)
	return nil
}
