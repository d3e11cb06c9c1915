package http

import (
	"context"
	"time"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/license"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/scheduler"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/tasks"
)

// HubPinger checks Central Hub reachability.
type HubPinger interface {
	Ping(ctx context.Context) error
}

// LicenseStatusSource exposes the gate's cached decision without triggering a check.
type LicenseStatusSource interface {
	Snapshot() license.Snapshot
	TTL() time.Duration
}

// LicenseActivator activates a license key.
type LicenseActivator interface {
	Activate(ctx context.Context, clientID, key string) (centralhub.ActivationResult, error)
}

// CreditService reads and spends the tenant's Central Hub credits.
type CreditService interface {
	CheckCredits(ctx context.Context) (*centralhub.CreditBalance, error)
	ConsumeCredits(ctx context.Context, amount int, reason string) (*centralhub.ConsumeResult, error)
}

// TaskService manages declaration tasks.
type TaskService interface {
	List(ctx context.Context, f tasks.Filter) ([]*tasks.Task, error)
	Get(ctx context.Context, id string) (*tasks.Task, error)
	BulkCreate(ctx context.Context, req tasks.BulkCreateRequest) ([]*tasks.Task, error)
	Submit(ctx context.Context, id string) (*tasks.Task, error)
}

// ReminderRunner triggers and reports on the reminder job.
type ReminderRunner interface {
	RunOnce(ctx context.Context) (scheduler.Report, error)
	Status() scheduler.Status
}
