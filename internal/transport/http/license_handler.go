package http

import (
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/errors"
	"github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/license"
)

// LicenseHandler serves license status and activation.
type LicenseHandler struct {
	gate       LicenseStatusSource
	activator  LicenseActivator
	errHandler *apierrors.ErrorHandler
	logger     *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(gate LicenseStatusSource, activator LicenseActivator, errHandler *apierrors.ErrorHandler, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		gate:       gate,
		activator:  activator,
		errHandler: errHandler,
		logger:     logger.With(slog.String("handler", "license")),
	}
}

// ActivationRequest is the body of POST /api/license/activate.
type ActivationRequest struct {
	LicenseKey string `json:"license_key"`
}

// Bind implements render.Binder.
func (a *ActivationRequest) Bind(r *http.Request) error {
	a.LicenseKey = strings.TrimSpace(a.LicenseKey)
	if a.LicenseKey == "" {
		return errors.New("license_key is required")
	}
	return nil
}

// LicenseStatusResponse describes the cached authorization decision.
type LicenseStatusResponse struct {
	Checked         bool       `json:"checked"`
	Valid           bool       `json:"valid"`
	Message         string     `json:"message,omitempty"`
	Outcome         string     `json:"outcome,omitempty"`
	TenantName      string     `json:"tenant_name,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	MaxUsers        int        `json:"max_users,omitempty"`
	LastCheckedAt   *time.Time `json:"last_checked_at,omitempty"`
	AgeSeconds      int64      `json:"age_seconds"`
	Fresh           bool       `json:"fresh"`
	CacheTTLSeconds int64      `json:"cache_ttl_seconds"`
}

// Routes returns the router mounted at /api/license.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.GetStatus)
	r.Post("/activate", h.Activate)
	return r
}

// GetStatus handles GET /api/license/status. It never calls Central Hub.
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.gate.Snapshot()
	resp := LicenseStatusResponse{
		CacheTTLSeconds: int64(h.gate.TTL().Seconds()),
	}
	if snap.Result != nil {
		last := snap.LastCheckedAt
		resp.Checked = true
		resp.Valid = snap.Result.IsValid
		resp.Message = snap.Result.Message
		resp.Outcome = snap.Result.Outcome.String()
		resp.TenantName = snap.Result.TenantName
		resp.ExpiryDate = snap.Result.ExpiryDate
		resp.MaxUsers = snap.Result.MaxUsers
		resp.LastCheckedAt = &last
		resp.AgeSeconds = int64(snap.Age.Seconds())
		resp.Fresh = snap.Fresh
	}
	render.JSON(w, r, resp)
}

// Activate handles POST /api/license/activate.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivationRequest
	if err := render.Bind(r, &req); err != nil {
		h.errHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.activator.Activate(r.Context(), clientID(r), req.LicenseKey)
	if err != nil {
		if blocked, ok := license.IsBlocked(err); ok {
			h.errHandler.RateLimited(w, r, int(math.Ceil(blocked.RetryAfter.Seconds())))
			return
		}
		h.errHandler.HandleError(w, r, err)
		return
	}
	if !result.Success {
		render.Status(r, http.StatusUnprocessableEntity)
	}
	render.JSON(w, r, result)
}

// clientID identifies the caller for activation throttling. RealIP has
// already rewritten RemoteAddr when a proxy header was present.
func clientID(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
