package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nearbytix/nearbytix/internal/service"
)

// ErrorHandler renders every error as {"message": ...}. Handlers normally
// wrap service errors in echo.HTTPError themselves; the sentinel mapping
// here is the safety net for any that escape unwrapped.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	case errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrTicketNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotEventCreator):
		code = http.StatusForbidden
	case errors.Is(err, service.ErrSoldOut),
		errors.Is(err, service.ErrInvalidTransition):
		code = http.StatusConflict
	case errors.Is(err, service.ErrTicketExpired):
		code = http.StatusGone
	}

	_ = c.JSON(code, map[string]string{"message": msg})
}
