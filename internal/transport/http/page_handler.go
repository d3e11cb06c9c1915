package http

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/centralhub"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/license"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/tasks"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PageHandler renders the server-side HTML pages.
type PageHandler struct {
	tasks     TaskService
	activator LicenseActivator
	version   string
	logger    *slog.Logger
}

// NewPageHandler creates a new page handler
func NewPageHandler(tasks TaskService, activator LicenseActivator, version string, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		tasks:     tasks,
		activator: activator,
		version:   version,
		logger:    logger.With(slog.String("handler", "pages")),
	}
}

type dashboardView struct {
	License centralhub.AuthorizationResult
	Counts  map[string]int
}

type activateView struct {
	LicenseKey string
	Message    string
	Success    bool
}

// Index handles GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index", map[string]string{"Version": h.version})
}

// Dashboard handles GET /dashboard. It sits behind the admission filter,
// which has already attached the authorization result.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	view := dashboardView{Counts: map[string]int{}}
	if res, ok := license.ResultFromContext(r.Context()); ok {
		view.License = res
	}

	list, err := h.tasks.List(r.Context(), tasks.Filter{})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load tasks for dashboard", slog.String("error", err.Error()))
	}
	for _, t := range list {
		view.Counts[string(t.Status)]++
	}
	h.render(w, r, http.StatusOK, "dashboard", view)
}

// ActivateForm handles GET /license/activate
func (h *PageHandler) ActivateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "activate", activateView{})
}

// ActivateSubmit handles POST /license/activate from the HTML form.
func (h *PageHandler) ActivateSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "activate", activateView{Message: "The form could not be read."})
		return
	}
	view := activateView{LicenseKey: r.PostFormValue("license_key")}
	if view.LicenseKey == "" {
		view.Message = "Please enter a license key."
		h.render(w, r, http.StatusBadRequest, "activate", view)
		return
	}

	result, err := h.activator.Activate(r.Context(), clientID(r), view.LicenseKey)
	status := http.StatusOK
	switch {
	case err != nil:
		if _, blocked := license.IsBlocked(err); blocked {
			status = http.StatusTooManyRequests
			view.Message = err.Error()
		} else {
			status = http.StatusBadGateway
			view.Message = centralhub.MessageOf(err)
		}
	case !result.Success:
		status = http.StatusUnprocessableEntity
		view.Message = result.Message
	default:
		view.Success = true
		view.LicenseKey = ""
		view.Message = "License activated."
		if result.TenantName != "" {
			view.Message = "License activated for " + result.TenantName + "."
		}
	}
	h.render(w, r, status, "activate", view)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		h.logger.ErrorContext(r.Context(), "template render failed",
			slog.String("template", name),
			slog.String("error", err.Error()))
	}
}
