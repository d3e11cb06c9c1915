package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/license"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/shared/testutil"
)

// mockGate is a mock Evaluator.
type mockGate struct {
	calls        int32
	evaluateFunc func() centralhub.AuthorizationResult
}

func (m *mockGate) Evaluate(ctx context.Context) centralhub.AuthorizationResult {
	atomic.AddInt32(&m.calls, 1)
	if m.evaluateFunc != nil {
		return m.evaluateFunc()
	}
	return centralhub.AuthorizationResult{IsValid: true}
}

func TestAdmissionFilter(t *testing.T) {
	validResult := func() centralhub.AuthorizationResult {
		return centralhub.AuthorizationResult{IsValid: true, Message: "License is valid.", TenantName: "Acme"}
	}
	deniedResult := func() centralhub.AuthorizationResult {
		return centralhub.AuthorizationResult{
			Message: "Unable to connect to Central Hub. Please check your network connection.",
			Outcome: centralhub.KindUnreachable,
		}
	}

	tests := []struct {
		name           string
		path           string
		evaluateFunc   func() centralhub.AuthorizationResult
		wantStatus     int
		wantNextCalled bool
		wantGateCalls  int32
	}{
		{name: "root is exempt", path: "/", evaluateFunc: deniedResult, wantStatus: http.StatusOK, wantNextCalled: true},
		{name: "health is exempt", path: "/api/health", evaluateFunc: deniedResult, wantStatus: http.StatusOK, wantNextCalled: true},
		{name: "metrics is exempt", path: "/metrics", evaluateFunc: deniedResult, wantStatus: http.StatusOK, wantNextCalled: true},
		{name: "login is exempt", path: "/account/login", evaluateFunc: deniedResult, wantStatus: http.StatusOK, wantNextCalled: true},
		{name: "login prefix is exempt", path: "/account/login/callback", evaluateFunc: deniedResult, wantStatus: http.StatusOK, wantNextCalled: true},
		{name: "activation api is exempt", path: "/api/license/activate", evaluateFunc: deniedResult, wantStatus: http.StatusOK, wantNextCalled: true},
		{name: "static asset is exempt", path: "/static/css/site.css", evaluateFunc: deniedResult, wantStatus: http.StatusOK, wantNextCalled: true},
		{name: "js asset is exempt", path: "/js/app.js", evaluateFunc: deniedResult, wantStatus: http.StatusOK, wantNextCalled: true},
		{name: "valid license admits", path: "/dashboard", evaluateFunc: validResult, wantStatus: http.StatusOK, wantNextCalled: true, wantGateCalls: 1},
		{name: "invalid license denies", path: "/dashboard", evaluateFunc: deniedResult, wantStatus: http.StatusForbidden, wantGateCalls: 1},
		{name: "api path denies", path: "/api/tasks", evaluateFunc: deniedResult, wantStatus: http.StatusForbidden, wantGateCalls: 1},
		{name: "dot segments do not escape gate", path: "/static/../api/tasks", evaluateFunc: deniedResult, wantStatus: http.StatusForbidden, wantGateCalls: 1},
		{name: "exact path is not a prefix", path: "/api/health/extra", evaluateFunc: deniedResult, wantStatus: http.StatusForbidden, wantGateCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			gate := &mockGate{evaluateFunc: tt.evaluateFunc}
			filter := NewAdmissionFilter(gate, logger)

			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			filter.Handler(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantNextCalled, nextCalled)
			assert.Equal(t, tt.wantGateCalls, atomic.LoadInt32(&gate.calls))
		})
	}
}

func TestAdmissionFilter_DenyPage(t *testing.T) {
	gate := &mockGate{evaluateFunc: func() centralhub.AuthorizationResult {
		return centralhub.AuthorizationResult{Message: `License expired <script>alert("x")</script>`}
	}}
	filter := NewAdmissionFilter(gate, nil)

	rec := httptest.NewRecorder()
	filter.Handler(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	body := rec.Body.String()
	assert.Contains(t, body, "License expired &lt;script&gt;")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "contact")
}

func TestAdmissionFilter_AttachesResult(t *testing.T) {
	gate := &mockGate{evaluateFunc: func() centralhub.AuthorizationResult {
		return centralhub.AuthorizationResult{IsValid: true, TenantName: "Acme", MaxUsers: 25}
	}}
	filter := NewAdmissionFilter(gate, nil)

	var got centralhub.AuthorizationResult
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = license.ResultFromContext(r.Context())
	})
	filter.Handler(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	require.True(t, ok)
	assert.Equal(t, "Acme", got.TenantName)
	assert.Equal(t, 25, got.MaxUsers)
}

func TestAdmissionFilter_CustomExemptions(t *testing.T) {
	gate := &mockGate{evaluateFunc: func() centralhub.AuthorizationResult { return centralhub.AuthorizationResult{} }}
	filter := NewAdmissionFilter(gate, nil)
	filter.AddExemptPath("/robots.txt")
	filter.AddExemptPrefix("/public/")

	assert.True(t, filter.IsExempt("/robots.txt"))
	assert.True(t, filter.IsExempt("/public/terms.html"))
	assert.True(t, filter.IsExempt(""))
	assert.True(t, filter.IsExempt("/static/"))
	assert.False(t, filter.IsExempt("/public"))
	assert.False(t, filter.IsExempt("/api/credits"))
}

func TestAdmissionFilter_WithChiRouter(t *testing.T) {
	gate := &mockGate{evaluateFunc: func() centralhub.AuthorizationResult { return centralhub.AuthorizationResult{} }}
	filter := NewAdmissionFilter(gate, nil)

	r := chi.NewRouter()
	r.Use(filter.Handler)
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	r.Get("/api/tasks", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("tasks")) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "tasks"))
}
