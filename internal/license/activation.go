package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/infrastructure"
)

// ActivationClient validates a license key at Central Hub.
type ActivationClient interface {
	Activate(ctx context.Context, licenseKey string) (centralhub.ActivationResult, error)
}

// TenantSetter stores the company code returned by a successful activation.
type TenantSetter interface {
	Set(code string) error
}

// ErrActivationBlocked is returned while a client is locked out.
type ErrActivationBlocked struct {
	RetryAfter time.Duration
}

func (e *ErrActivationBlocked) Error() string {
	return fmt.Sprintf("too many failed activation attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

// Activator runs a license activation end to end: Central Hub validation,
// tenant update and cache invalidation so the next request re-checks.
type Activator struct {
	client  ActivationClient
	tenant  TenantSetter
	gate    *Gate
	limiter *AttemptLimiter
	logger  *slog.Logger
}

// NewActivator creates an Activator. tenant and limiter may be nil.
func NewActivator(client ActivationClient, tenant TenantSetter, gate *Gate, limiter *AttemptLimiter, logger *slog.Logger) *Activator {
	if logger == nil {
		logger = infrastructure.DiscardLogger()
	}
	return &Activator{
		client:  client,
		tenant:  tenant,
		gate:    gate,
		limiter: limiter,
		logger:  infrastructure.WithComponent(logger, "license_activation"),
	}
}

// Activate validates key on behalf of clientID (usually the remote address).
// A rejected key is not an error: the result carries Success=false and the
// hub's message.
func (a *Activator) Activate(ctx context.Context, clientID, key string) (centralhub.ActivationResult, error) {
	key = strings.TrimSpace(key)
	if a.limiter != nil {
		if blocked, remaining := a.limiter.Blocked(clientID); blocked {
			return centralhub.ActivationResult{}, &ErrActivationBlocked{RetryAfter: remaining}
		}
	}

	result, err := a.client.Activate(ctx, key)
	if err != nil {
		// Only a rejected key counts against the client, not an outage.
		if centralhub.KindOf(err) == centralhub.KindInvalid {
			a.recordAttempt(clientID, false)
		}
		a.logger.WarnContext(ctx, "license activation failed",
			slog.String("license_key", MaskKey(key)),
			slog.String("outcome", centralhub.KindOf(err).String()),
			slog.String("error", err.Error()))
		return centralhub.ActivationResult{}, err
	}

	a.recordAttempt(clientID, result.Success)
	if !result.Success {
		a.logger.WarnContext(ctx, "license key rejected",
			slog.String("license_key", MaskKey(key)),
			slog.String("message", result.Message))
		return result, nil
	}

	if result.CompanyCode != "" && a.tenant != nil {
		if err := a.tenant.Set(result.CompanyCode); err != nil {
			return centralhub.ActivationResult{}, fmt.Errorf("store company code: %w", err)
		}
	}
	if a.gate != nil {
		a.gate.Invalidate()
	}
	a.logger.InfoContext(ctx, "license activated",
		slog.String("license_key", MaskKey(key)),
		slog.String("tenant_name", result.TenantName),
		slog.Int("max_users", result.MaxUsers))
	return result, nil
}

// IsBlocked reports whether err came from the attempt limiter.
func IsBlocked(err error) (*ErrActivationBlocked, bool) {
	var blocked *ErrActivationBlocked
	ok := errors.As(err, &blocked)
	return blocked, ok
}

func (a *Activator) recordAttempt(clientID string, success bool) {
	if a.limiter != nil {
		a.limiter.Record(clientID, success)
	}
}
