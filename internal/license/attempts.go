package license

import (
	"log/slog"
	"sync"
	"time"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/infrastructure"
)

// AttemptLimiter blocks a client after too many failed activations inside
// a window. Successful activation clears the client's count.
type AttemptLimiter struct {
	mu            sync.Mutex
	counts        map[string]int
	lastAttempts  map[string]time.Time
	blocked       map[string]time.Time
	maxAttempts   int
	blockDuration time.Duration
	window        time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewAttemptLimiter creates a limiter. A non-positive maxAttempts disables blocking.
func NewAttemptLimiter(maxAttempts int, blockDuration, window time.Duration, logger *slog.Logger) *AttemptLimiter {
	if logger == nil {
		logger = infrastructure.DiscardLogger()
	}
	return &AttemptLimiter{
		counts:        make(map[string]int),
		lastAttempts:  make(map[string]time.Time),
		blocked:       make(map[string]time.Time),
		maxAttempts:   maxAttempts,
		blockDuration: blockDuration,
		window:        window,
		now:           time.Now,
		logger:        infrastructure.WithComponent(logger, "activation_limiter"),
	}
}

// Blocked reports whether client is blocked and for how much longer.
func (l *AttemptLimiter) Blocked(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	since, ok := l.blocked[client]
	if !ok {
		return false, 0
	}
	remaining := l.blockDuration - l.now().Sub(since)
	if remaining <= 0 {
		delete(l.blocked, client)
		return false, 0
	}
	return true, remaining
}

// Record notes an attempt. It returns false when this failure caused a block.
func (l *AttemptLimiter) Record(client string, success bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.counts, client)
		delete(l.lastAttempts, client)
		return true
	}

	now := l.now()
	if last, ok := l.lastAttempts[client]; ok && now.Sub(last) <= l.window {
		l.counts[client]++
	} else {
		l.counts[client] = 1
	}
	l.lastAttempts[client] = now

	if l.maxAttempts > 0 && l.counts[client] >= l.maxAttempts {
		l.blocked[client] = now
		l.logger.Warn("client blocked after repeated failed activations",
			slog.String("client", client),
			slog.Int("attempt_count", l.counts[client]),
			slog.Int("max_attempts", l.maxAttempts),
			slog.Duration("block_duration", l.blockDuration))
		delete(l.counts, client)
		delete(l.lastAttempts, client)
		return false
	}
	return true
}

// Prune drops expired counters and blocks.
func (l *AttemptLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for client, last := range l.lastAttempts {
		if now.Sub(last) > l.window {
			delete(l.counts, client)
			delete(l.lastAttempts, client)
		}
	}
	for client, since := range l.blocked {
		if now.Sub(since) > l.blockDuration {
			delete(l.blocked, client)
		}
	}
}

// MaskKey hides all but the leading characters of a license key for logs.
func MaskKey(key string) string {
	if len(key) < 8 {
		return "****"
	}
	return key[:4] + "****"
}
