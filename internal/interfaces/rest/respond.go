package rest

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Cerjho/canteen-orders/internal/application"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError translates a service error into its HTTP shape. Unclassified
// errors are logged and masked as a generic 500.
func respondError(c echo.Context, logger *slog.Logger, err error) error {
	if svcErr, ok := application.IsServiceError(err); ok {
		if svcErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error("request failed",
				slog.String("path", c.Path()),
				slog.String("code", svcErr.Code),
				slog.Any("error", err))
		}
		return c.JSON(svcErr.HTTPStatus, errorResponse{Code: svcErr.Code, Message: svcErr.Message})
	}

	logger.Error("unclassified request error",
		slog.String("path", c.Path()),
		slog.Any("error", err))
	return c.JSON(http.StatusInternalServerError, errorResponse{
		Code:    application.ErrCodeInternal,
		Message: "an unexpected error occurred",
	})
}
