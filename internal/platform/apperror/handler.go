package apperror

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// HTTPErrorHandler returns an echo error handler that serializes kinded
// errors with their stable code. Wrapped causes (driver errors and the
// like) are only included when includeDetail is true, which production
// configs must not set.
func HTTPErrorHandler(logger zerolog.Logger, includeDetail bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ae *Error
		if errors.As(err, &ae) {
			body := errorBody{Code: ae.Kind, Message: ae.Message}
			if includeDetail && ae.Err != nil {
				body.Detail = ae.Err.Error()
			}
			if ae.Kind == KindDependencyUnavailable {
				logger.Error().Err(ae.Err).Str("path", c.Request().URL.Path).Msg("dependency failure")
			}
			_ = c.JSON(ae.HTTPStatus(), body)
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			_ = c.JSON(he.Code, errorBody{Code: "HTTP_ERROR", Message: msg})
			return
		}

		logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		body := errorBody{Code: "INTERNAL", Message: "internal server error"}
		if includeDetail {
			body.Detail = err.Error()
		}
		_ = c.JSON(http.StatusInternalServerError, body)
	}
}
