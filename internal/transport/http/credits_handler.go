package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	apierrors "github.com/JabulaniSibeko11/Declarify-Client-sub001/internal/errors"
)

// CreditsHandler exposes the tenant's Central Hub credit balance.
type CreditsHandler struct {
	credits    CreditService
	errHandler *apierrors.ErrorHandler
	logger     *slog.Logger
}

// NewCreditsHandler creates a new credits handler
func NewCreditsHandler(credits CreditService, errHandler *apierrors.ErrorHandler, logger *slog.Logger) *CreditsHandler {
	return &CreditsHandler{
		credits:    credits,
		errHandler: errHandler,
		logger:     logger.With(slog.String("handler", "credits")),
	}
}

// BalanceResponse is the body of GET /api/credits.
type BalanceResponse struct {
	Balance     decimal.Decimal `json:"balance"`
	TenantName  string          `json:"tenant_name,omitempty"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
}

// ConsumeRequest is the body of POST /api/credits/consume.
type ConsumeRequest struct {
	CreditsToConsume int    `json:"credits_to_consume"`
	Reason           string `json:"reason,omitempty"`
}

// Bind implements render.Binder. Range checks happen in the client.
func (c *ConsumeRequest) Bind(r *http.Request) error {
	if c.CreditsToConsume == 0 {
		return errors.New("credits_to_consume is required")
	}
	return nil
}

// ConsumeResponse is the body of a successful consumption.
type ConsumeResponse struct {
	Success          bool            `json:"success"`
	Consumed         int             `json:"consumed"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// Routes returns the router mounted at /api/credits.
func (h *CreditsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetBalance)
	r.Post("/consume", h.Consume)
	return r
}

// GetBalance handles GET /api/credits
func (h *CreditsHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.credits.CheckCredits(r.Context())
	if err != nil {
		h.errHandler.HandleError(w, r, err)
		return
	}
	resp := BalanceResponse{Balance: balance.Balance, TenantName: balance.TenantName}
	if balance.LastUpdated != nil {
		t := balance.LastUpdated.Time
		resp.LastUpdated = &t
	}
	render.JSON(w, r, resp)
}

// Consume handles POST /api/credits/consume
func (h *CreditsHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
	if err := render.Bind(r, &req); err != nil {
		h.errHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.credits.ConsumeCredits(r.Context(), req.CreditsToConsume, req.Reason)
	if err != nil {
		h.errHandler.HandleError(w, r, err)
		return
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = apierrors.ErrInsufficientCredits.Message
		}
		h.errHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusPaymentRequired, apierrors.ErrInsufficientCredits.ErrorCode, msg,
			map[string]string{"remaining_balance": result.RemainingBalance.String()}))
		return
	}

	h.logger.InfoContext(r.Context(), "credits consumed",
		slog.Int("credits", req.CreditsToConsume),
		slog.String("remaining_balance", result.RemainingBalance.String()))
	render.JSON(w, r, ConsumeResponse{
		Success:          true,
		Consumed:         req.CreditsToConsume,
		RemainingBalance: result.RemainingBalance,
	})
}
