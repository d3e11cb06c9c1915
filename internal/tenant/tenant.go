// Package tenant resolves the company code that identifies this installation
// to Central Hub.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrNotConfigured means no company code has been configured or activated yet.
	ErrNotConfigured = errors.New("company code is not configured")
	// ErrInvalidCode means the company code is not a positive integer.
	ErrInvalidCode = errors.New("company code is not a valid number")
)

// Resolver returns the tenant identifier for outbound Central Hub calls.
type Resolver interface {
	ResolveTenant(ctx context.Context) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (string, error)

// ResolveTenant calls f.
func (f ResolverFunc) ResolveTenant(ctx context.Context) (string, error) {
	return f(ctx)
}

// Validate checks that code is a positive integer and returns its normalized form.
func Validate(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrNotConfigured
	}
	n, err := strconv.ParseInt(code, 10, 64)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return strconv.FormatInt(n, 10), nil
}

// Holder is an in-process Resolver seeded from configuration and updated
// when a license is activated.
type Holder struct {
	mu   sync.RWMutex
	code string
}

// NewHolder returns a Holder with the given initial code, which may be empty.
func NewHolder(initial string) *Holder {
	return &Holder{code: strings.TrimSpace(initial)}
}

// ResolveTenant returns the current code. It does not validate the format;
// callers decide how to treat a malformed value.
func (h *Holder) ResolveTenant(ctx context.Context) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.code == "" {
		return "", ErrNotConfigured
	}
	return h.code, nil
}

// Set replaces the current code after validating it.
func (h *Holder) Set(code string) error {
	normalized, err := Validate(code)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.code = normalized
	h.mu.Unlock()
	return nil
}
