package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-catalog/internal/auth"
	"github.com/iliyamo/movie-catalog/internal/service"
)

// storeTimeout bounds the store work of a single request.
const storeTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), storeTimeout)
}

// statusFor maps a service error to an HTTP status and the message shown to
// the client.
func statusFor(err error) (int, string) {
	switch service.ErrorCode(err) {
	case service.CodeValidation:
		return http.StatusBadRequest, err.Error()
	case service.CodeAuthentication:
		return http.StatusUnauthorized, err.Error()
	case service.CodeConflict:
		return http.StatusConflict, err.Error()
	case service.CodeNotFound:
		return http.StatusNotFound, err.Error()
	case service.CodeAuthorization:
		de, ok := service.Denied(err)
		if !ok {
			return http.StatusUnauthorized, "unauthorized"
		}
		if de.Decision.Kind == auth.DenyUserNotFound {
			return http.StatusNotFound, de.Error()
		}
		return http.StatusUnauthorized, de.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError renders err as {"error": ...}. Internal failures are logged and
// never leak their cause.
func writeError(c echo.Context, logger *slog.Logger, err error) error {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(c.Request().Context(), "request failed",
			slog.String("route", c.Path()), slog.Any("error", err))
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
