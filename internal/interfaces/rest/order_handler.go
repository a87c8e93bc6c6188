// Package rest exposes the HTTP API: guardian-facing checkout and wallet
// routes, staff order management, and the payment gateway webhook.
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

type checkoutItemRequest struct {
	ProductID     string `json:"product_id" validate:"required"`
	Quantity      int    `json:"quantity" validate:"required,gt=0"`
	ExpectedPrice int64  `json:"expected_price" validate:"required,gt=0"`
}

type checkoutGroupRequest struct {
	StudentID     string                `json:"student_id" validate:"required"`
	ClientOrderID string                `json:"client_order_id" validate:"required"`
	ScheduledFor  time.Time             `json:"scheduled_for" validate:"required"`
	Notes         *string               `json:"notes"`
	Items         []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createOrderRequest struct {
	PaymentMethod string                 `json:"payment_method" validate:"required,oneof=cash wallet gcash paymaya card"`
	Groups        []checkoutGroupRequest `json:"groups" validate:"required,min=1,dive"`
}

type orderItemResponse struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	PriceAtOrder int64  `json:"price_at_order"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	StudentID      string              `json:"student_id"`
	ClientOrderID  string              `json:"client_order_id"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	PaymentMethod  string              `json:"payment_method"`
	TotalAmount    int64               `json:"total_amount"`
	PaymentDueAt   *time.Time          `json:"payment_due_at,omitempty"`
	PaymentGroupID *string             `json:"payment_group_id,omitempty"`
	ScheduledFor   time.Time           `json:"scheduled_for"`
	Notes          *string             `json:"notes,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	Items          []orderItemResponse `json:"items"`
}

type checkoutResponse struct {
	Orders         []orderResponse `json:"orders"`
	CheckoutURL    string          `json:"checkout_url,omitempty"`
	PaymentGroupID *string         `json:"payment_group_id,omitempty"`
	PaymentDueAt   *time.Time      `json:"payment_due_at,omitempty"`
	TotalAmount    int64           `json:"total_amount"`
}

// OrderHandler serves the guardian-facing order routes.
type OrderHandler struct {
	checkout  *services.CheckoutService
	reconcile *services.ReconcileService
	logger    *slog.Logger
}

func NewOrderHandler(checkout *services.CheckoutService, reconcile *services.ReconcileService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{checkout: checkout, reconcile: reconcile, logger: logger}
}

// Create places one or more orders. Online methods open a gateway checkout
// session; cash and wallet settle immediately.
func (h *OrderHandler) Create(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, h.logger, application.NewValidationError("malformed request body"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, h.logger, application.NewValidationError(err.Error()))
	}

	parentID := middleware.UserID(c)
	method := domain.PaymentMethod(req.PaymentMethod)
	groups := make([]services.CheckoutGroup, 0, len(req.Groups))
	for _, g := range req.Groups {
		items := make([]services.CheckoutItem, 0, len(g.Items))
		for _, it := range g.Items {
			items = append(items, services.CheckoutItem{
				ProductID:     it.ProductID,
				Quantity:      it.Quantity,
				ExpectedPrice: it.ExpectedPrice,
			})
		}
		groups = append(groups, services.CheckoutGroup{
			StudentID:     g.StudentID,
			ClientOrderID: g.ClientOrderID,
			ScheduledFor:  g.ScheduledFor,
			Notes:         g.Notes,
			Items:         items,
		})
	}

	if method.IsOnline() {
		result, err := h.checkout.CreateCheckout(c.Request().Context(), services.CheckoutRequest{
			ParentID:      parentID,
			PaymentMethod: method,
			Groups:        groups,
		})
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return c.JSON(http.StatusCreated, toCheckoutResponse(result))
	}

	if len(groups) != 1 {
		return respondError(c, h.logger, application.NewValidationError("cash and wallet orders accept exactly one group"))
	}
	order, err := h.checkout.CreateDirectOrder(c.Request().Context(), services.DirectOrderRequest{
		ParentID:      parentID,
		PaymentMethod: method,
		Group:         groups[0],
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	resp := checkoutResponse{
		Orders:      []orderResponse{toOrderResponse(order)},
		TotalAmount: order.TotalAmount,
	}
	return c.JSON(http.StatusCreated, resp)
}

// Retry reopens the payment flow for an order whose checkout session died.
func (h *OrderHandler) Retry(c echo.Context) error {
	result, err := h.checkout.RetryCheckout(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, toCheckoutResponse(result))
}

// Status returns the current order state, consulting the gateway when a
// checkout session is still live so a missed webhook cannot strand the order.
func (h *OrderHandler) Status(c echo.Context) error {
	order, err := h.reconcile.PollOrderStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if role := middleware.Role(c); role == middleware.RoleParent && order.ParentID != middleware.UserID(c) {
		return respondError(c, h.logger, application.NewForbiddenError("order belongs to another guardian"))
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func toCheckoutResponse(result *services.CheckoutResult) checkoutResponse {
	orders := make([]orderResponse, 0, len(result.Orders))
	for _, o := range result.Orders {
		orders = append(orders, toOrderResponse(o))
	}
	resp := checkoutResponse{
		Orders:         orders,
		CheckoutURL:    result.CheckoutURL,
		PaymentGroupID: result.PaymentGroupID,
		TotalAmount:    result.TotalAmount,
	}
	if !result.PaymentDueAt.IsZero() {
		due := result.PaymentDueAt
		resp.PaymentDueAt = &due
	}
	return resp
}

func toOrderResponse(o *domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			PriceAtOrder: it.PriceAtOrder,
		})
	}
	return orderResponse{
		ID:             o.ID,
		StudentID:      o.StudentID,
		ClientOrderID:  o.ClientOrderID,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		PaymentMethod:  string(o.PaymentMethod),
		TotalAmount:    o.TotalAmount,
		PaymentDueAt:   o.PaymentDueAt,
		PaymentGroupID: o.PaymentGroupID,
		ScheduledFor:   o.ScheduledFor,
		Notes:          o.Notes,
		CreatedAt:      o.CreatedAt,
		Items:          items,
	}
}
