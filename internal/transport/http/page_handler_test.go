package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/license"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/shared/testutil"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/tasks"
)

func newPageHandler(t *testing.T, svc *MockTaskService, activator *MockActivator) *PageHandler {
	logger, _ := testutil.NewTestLogger(t)
	return NewPageHandler(svc, activator, "1.4.0", logger)
}

func TestPageHandler_Index(t *testing.T) {
	rec := httptest.NewRecorder()
	newPageHandler(t, nil, nil).Index(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Version 1.4.0")
}

func TestPageHandler_Dashboard(t *testing.T) {
	svc := new(MockTaskService)
	svc.On("List", mock.Anything, tasks.Filter{}).Return([]*tasks.Task{
		sampleTask("a", tasks.StatusOverdue),
		sampleTask("b", tasks.StatusOverdue),
		sampleTask("c", tasks.StatusSubmitted),
	}, nil)

	expiry := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(license.WithResult(req.Context(), centralhub.AuthorizationResult{
		IsValid:    true,
		Message:    "License is valid.",
		TenantName: "Acme <Holdings>",
		ExpiryDate: &expiry,
		MaxUsers:   25,
	}))
	rec := httptest.NewRecorder()
	newPageHandler(t, svc, nil).Dashboard(rec, req)

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "Acme &lt;Holdings&gt;")
	assert.Contains(t, body, "31 March 2026")
	assert.Contains(t, body, "Licensed users: 25")
	assert.Contains(t, body, "<th>Overdue</th><td>2</td>")
	assert.Contains(t, body, "<th>Submitted</th><td>1</td>")
}

func TestPageHandler_ActivateSubmit(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		setup      func(a *MockActivator)
		wantStatus int
		wantBody   string
	}{
		{
			name: "success",
			key:  "DECL-2025-ACME",
			setup: func(a *MockActivator) {
				a.On("Activate", mock.Anything, "192.0.2.1", "DECL-2025-ACME").
					Return(centralhub.ActivationResult{Success: true, TenantName: "Acme"}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   "License activated for Acme.",
		},
		{
			name: "rejected",
			key:  "NOPE-NOPE",
			setup: func(a *MockActivator) {
				a.On("Activate", mock.Anything, "192.0.2.1", "NOPE-NOPE").
					Return(centralhub.ActivationResult{Message: "License key not recognised."}, nil)
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "License key not recognised.",
		},
		{
			name: "hub down",
			key:  "DECL-1",
			setup: func(a *MockActivator) {
				a.On("Activate", mock.Anything, "192.0.2.1", "DECL-1").
					Return(centralhub.ActivationResult{}, &centralhub.Error{Kind: centralhub.KindUnreachable, Message: "Unable to connect to Central Hub."})
			},
			wantStatus: http.StatusBadGateway,
			wantBody:   "Unable to connect to Central Hub.",
		},
		{
			name:       "empty key",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Please enter a license key.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activator := new(MockActivator)
			if tt.setup != nil {
				tt.setup(activator)
			}
			form := url.Values{"license_key": {tt.key}}
			req := httptest.NewRequest(http.MethodPost, "/license/activate", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			newPageHandler(t, nil, activator).ActivateSubmit(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			activator.AssertExpectations(t)
		})
	}
}

func TestPageHandler_ActivateForm(t *testing.T) {
	rec := httptest.NewRecorder()
	newPageHandler(t, nil, nil).ActivateForm(rec, httptest.NewRequest(http.MethodGet, "/license/activate", nil))
	assert.Contains(t, rec.Body.String(), `name="license_key"`)
}
