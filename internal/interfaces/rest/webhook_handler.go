package rest

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Cerjho/canteen-orders/internal/application/services"
	"github.com/Cerjho/canteen-orders/internal/config"
	"github.com/Cerjho/canteen-orders/internal/infrastructure/paymongo"
)

// WebhookHandler receives gateway event deliveries. The gateway retries on
// any non-2xx, so processing outcomes that will not improve on retry
// (ignored event types, unresolvable sessions) still answer 200.
type WebhookHandler struct {
	reconcile *services.ReconcileService
	cfg       config.GatewayConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewWebhookHandler(reconcile *services.ReconcileService, cfg config.GatewayConfig, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{reconcile: reconcile, cfg: cfg, logger: logger, now: time.Now}
}

func (h *WebhookHandler) Handle(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body")
	}

	header := c.Request().Header.Get("Paymongo-Signature")
	if err := paymongo.VerifySignature(payload, header, h.cfg.WebhookSecret, h.cfg.LiveMode, h.now()); err != nil {
		h.logger.Warn("rejected webhook delivery", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusUnauthorized, "signature verification failed")
	}

	event, err := paymongo.ParseEvent(payload)
	if err != nil {
		h.logger.Warn("undecodable webhook payload", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadRequest, "undecodable event payload")
	}

	outcome, err := h.reconcile.ProcessEvent(c.Request().Context(), services.WebhookEvent{
		ID:                event.ID,
		Type:              event.Type,
		CheckoutSessionID: event.CheckoutSessionID,
		PaymentID:         event.PaymentID,
		Metadata:          event.Metadata,
	})
	if err != nil {
		h.logger.Error("webhook processing failed",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.Type),
			slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "event processing failed")
	}

	return c.JSON(http.StatusOK, map[string]string{"outcome": string(outcome)})
}
