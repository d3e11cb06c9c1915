package license

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/infrastructure"
)

// DefaultTTL is how long a cached answer is served without asking Central Hub.
const DefaultTTL = 5 * time.Minute

// CachedSuffix is appended to the message of a fallback answer.
const CachedSuffix = " (using cached status)"

// Checker performs one remote license check. *centralhub.Client satisfies it.
type Checker interface {
	Check(ctx context.Context) centralhub.AuthorizationResult
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) centralhub.AuthorizationResult

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context) centralhub.AuthorizationResult {
	return f(ctx)
}

// Snapshot is a read-only view of the gate's cache.
type Snapshot struct {
	Result        *centralhub.AuthorizationResult
	LastCheckedAt time.Time
	Age           time.Duration
	Fresh         bool
}

// Gate caches the most recent authorization answer. It is safe for
// concurrent use; one Gate is created per process.
type Gate struct {
	checker Checker
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics

	group singleflight.Group

	mu            sync.RWMutex
	entry         *centralhub.AuthorizationResult
	lastCheckedAt time.Time
	generation    uint64
}

// GateOption customises a Gate.
type GateOption func(*Gate)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) GateOption {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = logger }
}

// WithMetrics records cache hits, misses, remote checks and fallbacks.
func WithMetrics(m *infrastructure.BusinessMetrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// NewGate creates a Gate with an empty cache.
func NewGate(checker Checker, opts ...GateOption) *Gate {
	g := &Gate{
		checker: checker,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = infrastructure.DiscardLogger()
	}
	g.logger = infrastructure.WithComponent(g.logger, "license_gate")
	return g
}

// Evaluate returns the current authorization answer, asking Central Hub only
// when the cached entry is missing or older than the TTL.
func (g *Gate) Evaluate(ctx context.Context) centralhub.AuthorizationResult {
	if res, ok := g.fresh(); ok {
		g.count(ctx, "hit")
		return res
	}
	g.count(ctx, "miss")

	// The shared check runs detached from any one caller so a disconnect
	// cannot fail it for the others. The client's per-call timeout bounds it.
	ch := g.group.DoChan("check", func() (any, error) {
		if res, ok := g.fresh(); ok {
			return res, nil
		}
		return g.refresh(context.WithoutCancel(ctx)), nil
	})
	select {
	case r := <-ch:
		return r.Val.(centralhub.AuthorizationResult)
	case <-ctx.Done():
		return g.abandoned(ctx)
	}
}

// abandoned answers a caller that gave up waiting on the shared check.
func (g *Gate) abandoned(ctx context.Context) centralhub.AuthorizationResult {
	g.logger.DebugContext(ctx, "caller stopped waiting for license check")
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.entry != nil {
		return *g.entry
	}
	return centralhub.CanceledResult()
}

// Invalidate drops the cached entry so the next Evaluate asks Central Hub.
// A check already in flight is not stored.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	g.entry = nil
	g.generation++
	g.mu.Unlock()
	g.group.Forget("check")
	g.logger.Info("license cache invalidated")
}

// Snapshot reports the cached entry without contacting Central Hub.
func (g *Gate) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Snapshot{LastCheckedAt: g.lastCheckedAt}
	if g.entry == nil {
		return s
	}
	res := *g.entry
	s.Result = &res
	s.Age = g.now().Sub(g.lastCheckedAt)
	s.Fresh = s.Age < g.ttl
	return s
}

// TTL returns the configured freshness window.
func (g *Gate) TTL() time.Duration {
	return g.ttl
}

func (g *Gate) fresh() (centralhub.AuthorizationResult, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.entry == nil || g.now().Sub(g.lastCheckedAt) >= g.ttl {
		return centralhub.AuthorizationResult{}, false
	}
	return *g.entry, true
}

func (g *Gate) refresh(ctx context.Context) centralhub.AuthorizationResult {
	g.mu.RLock()
	gen := g.generation
	g.mu.RUnlock()

	fresh := g.checker.Check(ctx)
	g.count(ctx, "remote")
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	prior := g.entry

	switch {
	case fresh.Outcome == centralhub.KindCanceled:
		g.logger.DebugContext(ctx, "license check cancelled")
		if prior != nil {
			return *prior
		}
		return fresh

	case fresh.Outcome.Transient() && prior != nil:
		res := *prior
		res.Message = fresh.Message + CachedSuffix
		res.Outcome = fresh.Outcome
		if g.metrics != nil {
			g.metrics.LicenseStaleFallback.Add(ctx, 1,
				metric.WithAttributes(attribute.String("outcome", fresh.Outcome.String())))
		}
		g.logger.WarnContext(ctx, "Central Hub unavailable, serving last known license status",
			slog.String("outcome", fresh.Outcome.String()),
			slog.Bool("cached_valid", prior.IsValid),
			slog.Duration("cached_age", now.Sub(g.lastCheckedAt)))
		return res
	}

	if gen != g.generation {
		return fresh
	}
	stored := fresh
	g.entry = &stored
	if now.After(g.lastCheckedAt) {
		g.lastCheckedAt = now
	}

	if fresh.IsValid {
		g.logger.DebugContext(ctx, "license check passed", slog.String("tenant", fresh.TenantName))
	} else {
		g.logger.WarnContext(ctx, "license check failed",
			slog.String("outcome", fresh.Outcome.String()),
			slog.String("message", fresh.Message))
	}
	return fresh
}

func (g *Gate) count(ctx context.Context, kind string) {
	if g.metrics == nil {
		return
	}
	switch kind {
	case "hit":
		g.metrics.LicenseCacheHits.Add(ctx, 1)
	case "miss":
		g.metrics.LicenseCacheMisses.Add(ctx, 1)
	case "remote":
		g.metrics.LicenseRemoteChecks.Add(ctx, 1)
	}
}
