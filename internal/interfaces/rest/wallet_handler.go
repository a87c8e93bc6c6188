package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/application/services"
	"github.com/Cerjho/canteen-orders/internal/domain"
	"github.com/Cerjho/canteen-orders/internal/interfaces/rest/middleware"
)

type createTopupRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type topupResponse struct {
	TopupID     string     `json:"topup_id"`
	Status      string     `json:"status"`
	Amount      int64      `json:"amount"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type walletResponse struct {
	Balance int64 `json:"balance"`
}

// WalletHandler serves the guardian wallet routes: balance, top-up, and
// top-up status polling.
type WalletHandler struct {
	topups    *services.TopupService
	reconcile *services.ReconcileService
	wallets   application.WalletRepository
	logger    *slog.Logger
}

func NewWalletHandler(topups *services.TopupService, reconcile *services.ReconcileService, wallets application.WalletRepository, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{topups: topups, reconcile: reconcile, wallets: wallets, logger: logger}
}

// Balance returns the caller's wallet balance, creating an empty wallet on
// first sight.
func (h *WalletHandler) Balance(c echo.Context) error {
	account, err := h.wallets.FindOrCreate(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, application.NewInternalError(err))
	}
	return c.JSON(http.StatusOK, walletResponse{Balance: account.Balance})
}

// CreateTopup opens a gateway checkout session that credits the caller's
// wallet once paid.
func (h *WalletHandler) CreateTopup(c echo.Context) error {
	var req createTopupRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.logger, application.NewValidationError("malformed request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.logger, application.NewValidationError(err.Error()))
	}

	result, err := h.topups.CreateTopup(c.Request().Context(), middleware.UserID(c), req.Amount)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, topupResponse{
		TopupID:     result.TopupID,
		Status:      string(domain.TopupPending),
		Amount:      result.Amount,
		CheckoutURL: result.CheckoutURL,
		ExpiresAt:   result.ExpiresAt,
	})
}

// TopupStatus returns the current top-up state, consulting the gateway while
// the session is still pending.
func (h *WalletHandler) TopupStatus(c echo.Context) error {
	session, err := h.reconcile.PollTopupStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if session.ParentID != middleware.UserID(c) {
		return respondError(c, h.logger, application.NewForbiddenError("top-up session belongs to another guardian"))
	}
	return c.JSON(http.StatusOK, topupResponse{
		TopupID:     session.ID,
		Status:      string(session.Status),
		Amount:      session.Amount,
		ExpiresAt:   session.ExpiresAt,
		CompletedAt: session.CompletedAt,
	})
}
