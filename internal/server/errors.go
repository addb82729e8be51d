package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"miniswap/internal/dexerr"
)

// JSONErrorHandler renders every error as an ErrorResponse.
func JSONErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind dexerr.Kind) int {
	switch kind {
	case dexerr.KindInvalidAmount, dexerr.KindInvalidAsset:
		return http.StatusBadRequest
	case dexerr.KindInvalidReserves:
		return http.StatusConflict
	case dexerr.KindReadFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
