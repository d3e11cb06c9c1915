package centralhub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/tenant"
)

// Kind classifies the outcome of a Central Hub call.
type Kind int

const (
	KindSuccess Kind = iota
	// KindUnreachable covers DNS failures and refused or reset connections.
	KindUnreachable
	// KindTimeout means the call exceeded its deadline.
	KindTimeout
	// KindUnauthorized covers a missing or malformed company code and 401/403 replies.
	KindUnauthorized
	// KindServerError covers undecodable bodies and any failure that fits no
	// other kind.
	KindServerError
	// KindBadStatus is a non-2xx reply other than 401/403. The hub answered,
	// so the reply carries no data and is not retried from cache.
	KindBadStatus
	// KindCanceled means the caller's context was cancelled, typically by shutdown.
	KindCanceled
	// KindInvalid means the request failed local validation and was never sent.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindUnauthorized:
		return "unauthorized"
	case KindServerError:
		return "server_error"
	case KindBadStatus:
		return "bad_status"
	case KindCanceled:
		return "canceled"
	case KindInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Transient reports whether a later retry could plausibly succeed. The
// license gate falls back to its last known answer for these kinds.
// KindBadStatus is not transient: a non-2xx reply denies.
func (k Kind) Transient() bool {
	switch k {
	case KindUnreachable, KindTimeout, KindServerError:
		return true
	default:
		return false
	}
}

// User-facing messages. They end up on the deny page, so they never carry
// internal details.
const (
	msgUnreachable   = "Unable to connect to Central Hub. Please check your network connection."
	msgTimeout       = "Central Hub did not respond in time. Please try again later."
	msgNoTenant      = "Company code is not configured. Please activate your license."
	msgBadTenant     = "Company code is invalid. Please contact support."
	msgRejected      = "Central Hub rejected this installation. Please contact support."
	msgUnexpected    = "An unexpected error occurred while contacting Central Hub."
	msgBadResponse   = "Central Hub returned a response that could not be read."
	msgCanceled      = "The request to Central Hub was cancelled."
	msgStatusPattern = "Central Hub returned an error (status %d)."
)

// CanceledResult is the answer reported to a caller that stopped waiting
// for a check.
func CanceledResult() AuthorizationResult {
	return AuthorizationResult{Message: msgCanceled, Outcome: KindCanceled}
}

// Error is the only error type returned by Client.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("centralhub %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("centralhub %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. A nil error is KindSuccess; errors not produced by
// this package are KindServerError.
func KindOf(err error) Kind {
	if err == nil {
		return KindSuccess
	}
	var hubErr *Error
	if errors.As(err, &hubErr) {
		return hubErr.Kind
	}
	return KindServerError
}

// MessageOf returns the user-facing message carried by err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var hubErr *Error
	if errors.As(err, &hubErr) {
		return hubErr.Message
	}
	return msgUnexpected
}

func tenantError(err error) *Error {
	msg := msgBadTenant
	if errors.Is(err, tenant.ErrNotConfigured) {
		msg = msgNoTenant
	}
	return &Error{Kind: KindUnauthorized, Message: msg, Err: err}
}

// statusError maps a non-2xx reply. Anything but 401/403 is KindBadStatus,
// which the gate treats as a deny rather than a reason to serve the cache.
func statusError(status int) *Error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &Error{Kind: KindUnauthorized, StatusCode: status, Message: msgRejected}
	}
	return &Error{Kind: KindBadStatus, StatusCode: status, Message: fmt.Sprintf(msgStatusPattern, status)}
}

// classifyTransportError maps an error from http.Client.Do. parent is the
// caller's context, before the per-call timeout was applied.
func classifyTransportError(parent context.Context, err error) *Error {
	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.Canceled) {
			return &Error{Kind: KindCanceled, Message: msgCanceled, Err: err}
		}
		return &Error{Kind: KindTimeout, Message: msgTimeout, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: msgTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: msgTimeout, Err: err}
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return &Error{Kind: KindUnreachable, Message: msgUnreachable, Err: err}
	}

	return &Error{Kind: KindServerError, Message: msgUnexpected, Err: err}
}
