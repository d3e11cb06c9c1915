package middleware

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/infrastructure"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/license"
)

// Evaluator returns the current authorization answer. *license.Gate satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context) centralhub.AuthorizationResult
}

// DefaultExemptPaths are served without consulting the license gate.
var DefaultExemptPaths = []string{
	"/",
	"/health",
	"/api/health",
	"/api/health/live",
	"/api/health/ready",
	"/metrics",
	"/favicon.ico",
	"/login",
	"/account/login",
	"/license/activate",
	"/api/license/activate",
	"/api/license/status",
}

// DefaultExemptPrefixes cover static assets and the login and activation flows.
var DefaultExemptPrefixes = []string{
	"/static/",
	"/css/",
	"/js/",
	"/lib/",
	"/images/",
	"/account/login/",
	"/license/activate/",
}

var denyPage = template.Must(template.New("deny").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>License Required</title>
<style>
body{font-family:Segoe UI,Arial,sans-serif;background:#f5f6f8;color:#222;margin:0}
.box{max-width:560px;margin:12vh auto;background:#fff;border-radius:8px;padding:32px;box-shadow:0 2px 12px rgba(0,0,0,.08)}
h1{color:#b42318;font-size:1.5rem;margin-top:0}
.reason{background:#fef3f2;border-left:4px solid #b42318;padding:12px 16px}
</style>
</head>
<body>
<div class="box">
<h1>License Required</h1>
<p>This Declarify installation could not confirm a valid license.</p>
<p class="reason">{{.Message}}</p>
<p>Please contact your administrator or Declarify support if the problem persists.</p>
<p><a href="/license/activate">Activate a license</a></p>
</div>
</body>
</html>
`))

// AdmissionFilter rejects requests while the installation is unlicensed.
// Exempt paths are forwarded without consulting the gate. The exempt lists
// must be configured before the filter starts serving.
type AdmissionFilter struct {
	gate           Evaluator
	logger         *slog.Logger
	metrics        *infrastructure.BusinessMetrics
	exemptPaths    map[string]struct{}
	exemptPrefixes []string
}

// NewAdmissionFilter creates a filter with the default exempt lists.
func NewAdmissionFilter(gate Evaluator, logger *slog.Logger) *AdmissionFilter {
	if logger == nil {
		logger = infrastructure.DiscardLogger()
	}
	f := &AdmissionFilter{
		gate:        gate,
		logger:      infrastructure.WithComponent(logger, "admission_filter"),
		exemptPaths: make(map[string]struct{}, len(DefaultExemptPaths)),
	}
	for _, p := range DefaultExemptPaths {
		f.AddExemptPath(p)
	}
	for _, p := range DefaultExemptPrefixes {
		f.AddExemptPrefix(p)
	}
	return f
}

// SetMetrics enables admission decision counters.
func (f *AdmissionFilter) SetMetrics(m *infrastructure.BusinessMetrics) {
	f.metrics = m
}

// AddExemptPath exempts an exact path.
func (f *AdmissionFilter) AddExemptPath(p string) {
	f.exemptPaths[p] = struct{}{}
}

// AddExemptPrefix exempts every path starting with prefix.
func (f *AdmissionFilter) AddExemptPrefix(prefix string) {
	f.exemptPrefixes = append(f.exemptPrefixes, prefix)
}

// IsExempt reports whether p bypasses the gate. Dot segments are resolved
// first so that "/static/../api" is not treated as a static asset.
func (f *AdmissionFilter) IsExempt(p string) bool {
	if p == "" {
		p = "/"
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}

	if _, ok := f.exemptPaths[cleaned]; ok {
		return true
	}
	for _, prefix := range f.exemptPrefixes {
		if strings.HasPrefix(cleaned, prefix) {
			return true
		}
	}
	return false
}

// Handler returns the middleware.
func (f *AdmissionFilter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if f.IsExempt(r.URL.Path) {
			f.record(ctx, "exempt")
			next.ServeHTTP(w, r)
			return
		}

		res := f.gate.Evaluate(ctx)
		if !res.IsValid {
			f.record(ctx, "denied")
			f.logger.WarnContext(ctx, "request denied: license not valid",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("outcome", res.Outcome.String()),
				slog.String("reason", res.Message))
			f.deny(w, r, res)
			return
		}

		f.record(ctx, "admitted")
		next.ServeHTTP(w, r.WithContext(license.WithResult(ctx, res)))
	})
}

func (f *AdmissionFilter) deny(w http.ResponseWriter, r *http.Request, res centralhub.AuthorizationResult) {
	msg := res.Message
	if msg == "" {
		msg = "Your license could not be validated."
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusForbidden)
	if err := denyPage.Execute(w, struct{ Message string }{msg}); err != nil {
		f.logger.ErrorContext(r.Context(), "failed to render deny page", slog.String("error", err.Error()))
	}
}

func (f *AdmissionFilter) record(ctx context.Context, decision string) {
	if f.metrics == nil {
		return
	}
	f.metrics.AdmissionDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}
