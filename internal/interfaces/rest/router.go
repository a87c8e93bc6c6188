package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Cerjho/canteen-orders/internal/config"
	"github.com/Cerjho/canteen-orders/internal/interfaces/rest/middleware"
)

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// NewRouter assembles the echo instance: shared middleware, request
// validation, and the route tree.
func NewRouter(
	cfg *config.Config,
	orders *OrderHandler,
	staff *StaffHandler,
	wallets *WalletHandler,
	webhooks *WebhookHandler,
	logger *slog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus: true,
		LogMethod: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.POST("/webhooks/paymongo", webhooks.Handle)

	auth := middleware.JWT(cfg.Auth.JWTSecret)

	api := e.Group("/api/v1", auth)

	parent := api.Group("", middleware.RequireRoles(middleware.RoleParent))
	parent.POST("/orders", orders.Create)
	parent.POST("/orders/:id/retry-payment", orders.Retry)
	parent.GET("/wallet", wallets.Balance)
	parent.POST("/wallet/topups", wallets.CreateTopup)
	parent.GET("/wallet/topups/:id", wallets.TopupStatus)

	api.GET("/orders/:id", orders.Status,
		middleware.RequireRoles(middleware.RoleParent, middleware.RoleStaff, middleware.RoleAdmin))

	kitchen := api.Group("/staff", middleware.RequireRoles(middleware.RoleStaff, middleware.RoleAdmin))
	kitchen.PATCH("/orders/:id/status", staff.UpdateStatus)
	kitchen.PATCH("/orders/status", staff.BulkUpdateStatus)

	admin := api.Group("/admin", middleware.RequireRoles(middleware.RoleAdmin))
	admin.POST("/orders/:id/refund", staff.Refund)

	return e
}
