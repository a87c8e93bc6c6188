package rest

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/application/services"
	"github.com/Cerjho/canteen-orders/internal/domain"
)

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type bulkUpdateStatusRequest struct {
	OrderIDs []string `json:"order_ids" validate:"required,min=1"`
	Status   string   `json:"status" validate:"required"`
}

type bulkUpdateStatusResponse struct {
	Updated int64 `json:"updated"`
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type refundResponse struct {
	OrderID         string  `json:"order_id"`
	RefundedAmount  int64   `json:"refunded_amount"`
	RefundReference *string `json:"refund_reference,omitempty"`
	Estimate        *string `json:"estimate,omitempty"`
}

// StaffHandler serves the kitchen-side order management routes.
type StaffHandler struct {
	transitions *services.TransitionService
	refunds     *services.RefundService
	logger      *slog.Logger
}

func NewStaffHandler(transitions *services.TransitionService, refunds *services.RefundService, logger *slog.Logger) *StaffHandler {
	return &StaffHandler{transitions: transitions, refunds: refunds, logger: logger}
}

// UpdateStatus moves a single order along the fulfilment flow.
func (h *StaffHandler) UpdateStatus(c echo.Context) error {
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.logger, application.NewValidationError("malformed request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.logger, application.NewValidationError(err.Error()))
	}

	order, err := h.transitions.UpdateStatus(c.Request().Context(), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

// BulkUpdateStatus moves a batch of orders to the same status. Cancellation
// is excluded; it has per-order stock and payment side effects.
func (h *StaffHandler) BulkUpdateStatus(c echo.Context) error {
	var req bulkUpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.logger, application.NewValidationError("malformed request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.logger, application.NewValidationError(err.Error()))
	}

	updated, err := h.transitions.BulkUpdateStatus(c.Request().Context(), req.OrderIDs, domain.OrderStatus(req.Status))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, bulkUpdateStatusResponse{Updated: updated})
}

// Refund reverses a paid order: stock back, money back on the rail it came in.
func (h *StaffHandler) Refund(c echo.Context) error {
	var req refundRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.logger, application.NewValidationError("malformed request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.logger, application.NewValidationError(err.Error()))
	}

	result, err := h.refunds.Refund(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, refundResponse{
		OrderID:         result.OrderID,
		RefundedAmount:  result.RefundedAmount,
		RefundReference: result.RefundReference,
		Estimate:        result.Estimate,
	})
}
