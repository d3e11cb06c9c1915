// Package centralhub is the HTTP client for Central Hub, the remote license
// and credit authority. Every failure is returned as an *Error carrying a
// Kind; nothing panics and no shared request state is mutated between calls.
package centralhub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/infrastructure"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/tenant"
)

// Central Hub endpoints, relative to the base URL.
const (
	EndpointPing           = "api/core/ping"
	EndpointValidate       = "api/core/validate"
	EndpointCheckLicense   = "api/core/check-license"
	EndpointCheckCredits   = "api/core/check-credits"
	EndpointConsumeCredits = "api/core/consume-credits"
)

// HeaderCompanyCode carries the tenant identifier on every outbound call.
const HeaderCompanyCode = "X-Company-Code"

// maxErrorBody bounds how much of a non-2xx body is logged.
const maxErrorBody = 2048

var licenseKeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to Central Hub. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	resolver   tenant.Resolver
	timeout    time.Duration
	userAgent  string
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *infrastructure.BusinessMetrics
	validate   *validator.Validate
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTracer sets the tracer used for per-call spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// WithMetrics records call counts and durations.
func WithMetrics(metrics *infrastructure.BusinessMetrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// New creates a Client. The base URL is required.
func New(cfg Config, resolver tenant.Resolver, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("centralhub: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("centralhub: invalid base url %q", cfg.BaseURL)
	}
	if resolver == nil {
		return nil, errors.New("centralhub: tenant resolver is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Declarify-Client/1.0"
	}

	v := validator.New()
	v.RegisterValidation("licensekey", func(fl validator.FieldLevel) bool {
		return licenseKeyPattern.MatchString(fl.Field().String())
	})

	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		resolver:   resolver,
		timeout:    cfg.Timeout,
		userAgent:  cfg.UserAgent,
		validate:   v,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = infrastructure.DiscardLogger()
	}
	c.logger = infrastructure.WithComponent(c.logger, "centralhub_client")
	if c.tracer == nil {
		c.tracer = otel.Tracer("centralhub")
	}
	return c, nil
}

// Get issues a GET to endpoint and decodes the JSON reply into a T.
func Get[T any](ctx context.Context, c *Client, endpoint string) (*T, error) {
	var out T
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Post issues a POST with a JSON body to endpoint and decodes the reply into a T.
func Post[T any](ctx context.Context, c *Client, endpoint string, body any) (*T, error) {
	var out T
	if err := c.do(ctx, http.MethodPost, endpoint, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping checks that Central Hub is reachable and accepts this installation.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, EndpointPing, nil, nil)
}

// Check asks Central Hub whether this installation's license is valid. It
// never returns an error: failures become an invalid result whose Outcome
// says why.
func (c *Client) Check(ctx context.Context) AuthorizationResult {
	resp, err := Get[licenseCheckResponse](ctx, c, EndpointCheckLicense)
	if err != nil {
		return AuthorizationResult{
			IsValid: false,
			Message: MessageOf(err),
			Outcome: KindOf(err),
		}
	}

	msg := resp.Message
	if msg == "" {
		if resp.IsValid {
			msg = "License is valid."
		} else {
			msg = "License is not valid."
		}
	}
	return AuthorizationResult{
		IsValid:    resp.IsValid,
		Message:    msg,
		ExpiryDate: resp.ExpiryDate.Ptr(),
		MaxUsers:   resp.MaxUsers,
		TenantName: resp.CompanyName,
		Outcome:    KindSuccess,
	}
}

// Activate validates a license key with Central Hub.
func (c *Client) Activate(ctx context.Context, licenseKey string) (ActivationResult, error) {
	licenseKey = strings.TrimSpace(licenseKey)
	if err := c.validate.Var(licenseKey, "required,max=128,licensekey"); err != nil {
		return ActivationResult{Message: "License key is missing or malformed."},
			&Error{Kind: KindInvalid, Message: "License key is missing or malformed.", Err: err}
	}

	resp, err := Get[licenseCheckResponse](ctx, c, EndpointValidate+"/"+url.PathEscape(licenseKey))
	if err != nil {
		return ActivationResult{Message: MessageOf(err)}, err
	}

	msg := resp.Message
	if msg == "" && !resp.IsValid {
		msg = "License key was not accepted."
	}
	return ActivationResult{
		Success:     resp.IsValid,
		Message:     msg,
		CompanyCode: strings.TrimSpace(string(resp.CompanyCode)),
		TenantName:  resp.CompanyName,
		ExpiryDate:  resp.ExpiryDate.Ptr(),
		MaxUsers:    resp.MaxUsers,
	}, nil
}

// CheckCredits returns the authoritative credit balance.
func (c *Client) CheckCredits(ctx context.Context) (*CreditBalance, error) {
	return Get[CreditBalance](ctx, c, EndpointCheckCredits)
}

// ConsumeCredits asks Central Hub to deduct amount credits. amount must be
// at least 1; invalid requests are rejected without a network call.
func (c *Client) ConsumeCredits(ctx context.Context, amount int, reason string) (*ConsumeResult, error) {
	req := CreditConsumptionRequest{CreditsToConsume: amount, Reason: reason}
	if err := c.validate.Struct(req); err != nil {
		return nil, &Error{
			Kind:    KindInvalid,
			Message: "Credits to consume must be at least 1.",
			Err:     err,
		}
	}

	res, err := Post[ConsumeResult](ctx, c, EndpointConsumeCredits, req)
	if err != nil {
		return nil, err
	}
	if res.Success && c.metrics != nil {
		c.metrics.CreditsConsumed.Add(ctx, int64(amount))
	}
	return res, nil
}

// do performs one call. out may be nil when the body is not needed.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) (err error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "centralhub."+endpointName(endpoint),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("centralhub.endpoint", endpointName(endpoint)),
		))
	defer func() {
		kind := KindOf(err)
		span.SetAttributes(attribute.String("centralhub.outcome", kind.String()))
		if err != nil && kind != KindCanceled {
			span.RecordError(err)
			span.SetStatus(codes.Error, kind.String())
		}
		span.End()
		c.record(ctx, endpoint, kind, time.Since(start))
	}()

	tenantID, terr := c.resolveTenant(ctx)
	if terr != nil {
		c.logger.WarnContext(ctx, "central hub call skipped: no usable company code",
			slog.String("endpoint", endpoint),
			slog.String("error", terr.Error()))
		return tenantError(terr)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, berr := buildRequest(callCtx, c.baseURL, tenantID, c.userAgent, method, endpoint, body)
	if berr != nil {
		return &Error{Kind: KindServerError, Message: msgUnexpected, Err: berr}
	}

	resp, derr := c.httpClient.Do(req)
	if derr != nil {
		hubErr := classifyTransportError(ctx, derr)
		if hubErr.Kind == KindCanceled {
			c.logger.DebugContext(ctx, "central hub call cancelled", slog.String("endpoint", endpoint))
		} else {
			c.logger.WarnContext(ctx, "central hub call failed",
				slog.String("endpoint", endpoint),
				slog.String("kind", hubErr.Kind.String()),
				slog.String("error", derr.Error()),
				slog.Duration("duration", time.Since(start)))
		}
		return hubErr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.WarnContext(ctx, "central hub returned non-success status",
			slog.String("endpoint", endpoint),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(snippet)))
		return statusError(resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := classifyReadError(ctx, callCtx, err); ctxErr != nil {
			return ctxErr
		}
		c.logger.WarnContext(ctx, "central hub response could not be decoded",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))
		return &Error{Kind: KindServerError, StatusCode: resp.StatusCode, Message: msgBadResponse, Err: err}
	}
	return nil
}

// classifyReadError reports cancellation or timeout that surfaced while the
// body was being read.
func classifyReadError(parent, callCtx context.Context, err error) *Error {
	if parent.Err() != nil || callCtx.Err() != nil {
		return classifyTransportError(parent, err)
	}
	return nil
}

func (c *Client) resolveTenant(ctx context.Context) (string, error) {
	raw, err := c.resolver.ResolveTenant(ctx)
	if err != nil {
		return "", err
	}
	return tenant.Validate(raw)
}

func (c *Client) record(ctx context.Context, endpoint string, kind Kind, d time.Duration) {
	if c.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpointName(endpoint)),
		attribute.String("outcome", kind.String()),
	)
	c.metrics.HubCallsTotal.Add(ctx, 1, attrs)
	c.metrics.HubCallDuration.Record(ctx, d.Seconds(), attrs)
}

// buildRequest constructs a fresh request for one call. The company code is
// set on this request only.
func buildRequest(ctx context.Context, base *url.URL, tenantID, userAgent, method, endpoint string, body any) (*http.Request, error) {
	target := base.JoinPath(strings.Split(strings.Trim(endpoint, "/"), "/")...)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(HeaderCompanyCode, tenantID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// endpointName strips path parameters so metrics and spans stay low-cardinality.
func endpointName(endpoint string) string {
	if strings.HasPrefix(endpoint, EndpointValidate+"/") {
		return EndpointValidate
	}
	return endpoint
}
