package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/license"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/scheduler"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/tasks"
)

// MockHub implements HubPinger and CreditService for testing
type MockHub struct {
	mock.Mock
}

func (m *MockHub) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockHub) CheckCredits(ctx context.Context) (*centralhub.CreditBalance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*centralhub.CreditBalance), args.Error(1)
}

func (m *MockHub) ConsumeCredits(ctx context.Context, amount int, reason string) (*centralhub.ConsumeResult, error) {
	args := m.Called(ctx, amount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*centralhub.ConsumeResult), args.Error(1)
}

// MockLicenseStatus implements LicenseStatusSource for testing
type MockLicenseStatus struct {
	mock.Mock
}

func (m *MockLicenseStatus) Snapshot() license.Snapshot {
	return m.Called().Get(0).(license.Snapshot)
}

func (m *MockLicenseStatus) TTL() time.Duration {
	return m.Called().Get(0).(time.Duration)
}

// MockActivator implements LicenseActivator for testing
type MockActivator struct {
	mock.Mock
}

func (m *MockActivator) Activate(ctx context.Context, clientID, key string) (centralhub.ActivationResult, error) {
	args := m.Called(ctx, clientID, key)
	return args.Get(0).(centralhub.ActivationResult), args.Error(1)
}

// MockTaskService implements TaskService for testing
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) List(ctx context.Context, f tasks.Filter) ([]*tasks.Task, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*tasks.Task), args.Error(1)
}

func (m *MockTaskService) Get(ctx context.Context, id string) (*tasks.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tasks.Task), args.Error(1)
}

func (m *MockTaskService) BulkCreate(ctx context.Context, req tasks.BulkCreateRequest) ([]*tasks.Task, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*tasks.Task), args.Error(1)
}

func (m *MockTaskService) Submit(ctx context.Context, id string) (*tasks.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tasks.Task), args.Error(1)
}

// MockReminderRunner implements ReminderRunner for testing
type MockReminderRunner struct {
	mock.Mock
}

func (m *MockReminderRunner) RunOnce(ctx context.Context) (scheduler.Report, error) {
	args := m.Called(ctx)
	return args.Get(0).(scheduler.Report), args.Error(1)
}

func (m *MockReminderRunner) Status() scheduler.Status {
	return m.Called().Get(0).(scheduler.Status)
}
