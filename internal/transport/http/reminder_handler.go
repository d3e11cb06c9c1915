package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/errors"
)

// ReminderHandler reports on and manually triggers the reminder job.
type ReminderHandler struct {
	runner     ReminderRunner
	errHandler *apierrors.ErrorHandler
	logger     *slog.Logger
}

// NewReminderHandler creates a new reminder handler
func NewReminderHandler(runner ReminderRunner, errHandler *apierrors.ErrorHandler, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{
		runner:     runner,
		errHandler: errHandler,
		logger:     logger.With(slog.String("handler", "reminders")),
	}
}

// Routes returns the router mounted at /api/reminders.
func (h *ReminderHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.Status)
	r.Post("/run", h.Run)
	return r
}

// Status handles GET /api/reminders/status
func (h *ReminderHandler) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.runner.Status())
}

// Run handles POST /api/reminders/run
func (h *ReminderHandler) Run(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "manual reminder run requested")
	report, err := h.runner.RunOnce(r.Context())
	if err != nil {
		h.errHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}
