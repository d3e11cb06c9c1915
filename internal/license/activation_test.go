package license

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/tenant"
)

// mockActivationClient is a mock ActivationClient.
type mockActivationClient struct {
	calls        int
	activateFunc func(key string) (centralhub.ActivationResult, error)
}

func (m *mockActivationClient) Activate(ctx context.Context, key string) (centralhub.ActivationResult, error) {
	m.calls++
	return m.activateFunc(key)
}

func TestActivator_Success(t *testing.T) {
	client := &mockActivationClient{activateFunc: func(key string) (centralhub.ActivationResult, error) {
		assert.Equal(t, "DECL-2025-ACME", key)
		return centralhub.ActivationResult{Success: true, CompanyCode: "4411", TenantName: "Acme"}, nil
	}}
	checker := &mockChecker{checkFunc: valid}
	gate := NewGate(checker)
	gate.Evaluate(context.Background())
	holder := tenant.NewHolder("")

	a := NewActivator(client, holder, gate, nil, nil)
	res, err := a.Activate(context.Background(), "10.0.0.1", "  DECL-2025-ACME ")
	require.NoError(t, err)
	assert.True(t, res.Success)

	code, err := holder.ResolveTenant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4411", code)
	assert.Nil(t, gate.Snapshot().Result, "activation forces a fresh check")
}

func TestActivator_RejectedKeyLeavesStateAlone(t *testing.T) {
	client := &mockActivationClient{activateFunc: func(string) (centralhub.ActivationResult, error) {
		return centralhub.ActivationResult{Success: false, Message: "License key not recognised."}, nil
	}}
	gate := NewGate(&mockChecker{checkFunc: valid})
	gate.Evaluate(context.Background())
	holder := tenant.NewHolder("12")

	a := NewActivator(client, holder, gate, nil, nil)
	res, err := a.Activate(context.Background(), "10.0.0.1", "WRONG-KEY")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "License key not recognised.", res.Message)

	code, _ := holder.ResolveTenant(context.Background())
	assert.Equal(t, "12", code)
	assert.NotNil(t, gate.Snapshot().Result)
}

func TestActivator_LocksOutAfterRepeatedRejections(t *testing.T) {
	client := &mockActivationClient{activateFunc: func(string) (centralhub.ActivationResult, error) {
		return centralhub.ActivationResult{Success: false}, nil
	}}
	limiter := NewAttemptLimiter(3, 15*time.Minute, time.Hour, nil)
	a := NewActivator(client, nil, nil, limiter, nil)

	for i := 0; i < 3; i++ {
		_, err := a.Activate(context.Background(), "10.0.0.9", "GUESS-KEY")
		require.NoError(t, err)
	}
	_, err := a.Activate(context.Background(), "10.0.0.9", "GUESS-KEY")
	blocked, ok := IsBlocked(err)
	require.True(t, ok)
	assert.Greater(t, blocked.RetryAfter, time.Duration(0))
	assert.Equal(t, 3, client.calls, "blocked attempt never reaches Central Hub")

	_, err = a.Activate(context.Background(), "10.0.0.10", "GUESS-KEY")
	assert.NoError(t, err, "other clients are unaffected")
}

func TestActivator_OutageDoesNotCountAgainstClient(t *testing.T) {
	client := &mockActivationClient{activateFunc: func(string) (centralhub.ActivationResult, error) {
		return centralhub.ActivationResult{}, &centralhub.Error{Kind: centralhub.KindUnreachable, Message: "down"}
	}}
	limiter := NewAttemptLimiter(1, time.Minute, time.Hour, nil)
	a := NewActivator(client, nil, nil, limiter, nil)

	for i := 0; i < 3; i++ {
		_, err := a.Activate(context.Background(), "10.0.0.1", "DECL-KEY-1")
		assert.Equal(t, centralhub.KindUnreachable, centralhub.KindOf(err))
	}
	blocked, _ := limiter.Blocked("10.0.0.1")
	assert.False(t, blocked)
}

func TestActivator_TenantStoreFailure(t *testing.T) {
	client := &mockActivationClient{activateFunc: func(string) (centralhub.ActivationResult, error) {
		return centralhub.ActivationResult{Success: true, CompanyCode: "not-numeric"}, nil
	}}
	a := NewActivator(client, tenant.NewHolder(""), nil, nil, nil)

	_, err := a.Activate(context.Background(), "10.0.0.1", "DECL-KEY-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, tenant.ErrInvalidCode))
}

func TestAttemptLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	l := NewAttemptLimiter(2, 10*time.Minute, time.Hour, nil)
	l.now = func() time.Time { return now }

	assert.True(t, l.Record("a", false))
	assert.False(t, l.Record("a", false))
	blocked, remaining := l.Blocked("a")
	assert.True(t, blocked)
	assert.Equal(t, 10*time.Minute, remaining)

	now = now.Add(11 * time.Minute)
	blocked, _ = l.Blocked("a")
	assert.False(t, blocked)

	// failures outside the window start a new count
	assert.True(t, l.Record("b", false))
	now = now.Add(2 * time.Hour)
	assert.True(t, l.Record("b", false))

	// success resets
	assert.True(t, l.Record("b", true))
	assert.True(t, l.Record("b", false))

	now = now.Add(3 * time.Hour)
	l.Prune()
	assert.Empty(t, l.counts)
	assert.Empty(t, l.blocked)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "DECL****", MaskKey("DECL-2025-ACME-0001"))
}
