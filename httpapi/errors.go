package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MrEthical07/authcore"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler writes err in the error envelope. Rate limits and lockouts
// also get a Retry-After header in whole seconds.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, detail := describe(err)
	if after, ok := authcore.RetryAfter(err); ok {
		c.Response().Header().Set("Retry-After", strconv.Itoa(authcore.RetryAfterSeconds(after)))
	}
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("code", detail.Code).Msg("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorBody{Error: detail})
	}
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Warn().Err(err).Msg("write error response")
	}
}

func describe(err error) (int, errorDetail) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorDetail{Code: httpCode(he.Code), Message: fmt.Sprint(he.Message)}
	}

	status := authcore.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	return status, errorDetail{Code: authcore.ErrorCode(err), Message: msg}
}

func httpCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return "invalid_input"
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	if status >= http.StatusInternalServerError {
		return "internal_error"
	}
	return "http_error"
}
