package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/errors"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/tasks"
)

// TaskHandler serves declaration tasks.
type TaskHandler struct {
	service    TaskService
	errHandler *apierrors.ErrorHandler
	logger     *slog.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(service TaskService, errHandler *apierrors.ErrorHandler, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		service:    service,
		errHandler: errHandler,
		logger:     logger.With(slog.String("handler", "tasks")),
	}
}

// BulkCreateRequest wraps tasks.BulkCreateRequest for render.Bind.
type BulkCreateRequest struct {
	tasks.BulkCreateRequest
}

// Bind implements render.Binder. Field rules are enforced by the service.
func (b *BulkCreateRequest) Bind(r *http.Request) error { return nil }

// TaskListResponse is the body of GET /api/tasks.
type TaskListResponse struct {
	Tasks []*tasks.Task `json:"tasks"`
	Total int           `json:"total"`
}

// BulkCreateResponse is the body of POST /api/tasks/bulk.
type BulkCreateResponse struct {
	Created int           `json:"created"`
	Tasks   []*tasks.Task `json:"tasks"`
}

// Routes returns the router mounted at /api/tasks.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/bulk", h.BulkCreate)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/submit", h.Submit)
	return r
}

// List handles GET /api/tasks?status=overdue,outstanding&employee_email=...
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var f tasks.Filter
	if s := r.URL.Query().Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			f.Status = append(f.Status, tasks.Status(strings.TrimSpace(part)))
		}
	}
	f.EmployeeEmail = r.URL.Query().Get("employee_email")

	list, err := h.service.List(r.Context(), f)
	if err != nil {
		h.handleTaskError(w, r, err)
		return
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	render.JSON(w, r, TaskListResponse{Tasks: list, Total: len(list)})
}

// Get handles GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleTaskError(w, r, err)
		return
	}
	render.JSON(w, r, task)
}

// BulkCreate handles POST /api/tasks/bulk
func (h *TaskHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateRequest
	if err := render.Bind(r, &req); err != nil {
		h.errHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	created, err := h.service.BulkCreate(r.Context(), req.BulkCreateRequest)
	if err != nil {
		h.handleTaskError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, BulkCreateResponse{Created: len(created), Tasks: created})
}

// Submit handles POST /api/tasks/{id}/submit
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleTaskError(w, r, err)
		return
	}
	render.JSON(w, r, task)
}

// handleTaskError maps task package errors onto API errors. Central Hub
// errors pass through unchanged.
func (h *TaskHandler) handleTaskError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		err = apierrors.FromValidation(err)
	case errors.Is(err, tasks.ErrNotFound):
		err = apierrors.NotFoundError("task")
	case errors.Is(err, tasks.ErrAlreadySubmitted):
		err = apierrors.New(http.StatusConflict, apierrors.ErrConflict.ErrorCode, "task has already been submitted")
	case errors.Is(err, tasks.ErrInsufficientCredits):
		err = apierrors.ErrInsufficientCredits
	}
	h.errHandler.HandleError(w, r, err)
}
