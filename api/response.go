package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"solarcycle.GO/core/errno"
	"solarcycle.GO/core/logger"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch errno.KindOf(err) {
	case errno.KindNotFound:
		return http.StatusNotFound
	case errno.KindInvalidState:
		return http.StatusConflict
	case errno.KindValidation:
		return http.StatusBadRequest
	case errno.KindLedgerUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorHandler renders errno errors with their mapped status. echo's own
// errors (404 route, 401 auth) keep their status.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = c.JSON(he.Code, ErrorBody{Error: http.StatusText(he.Code), Code: he.Code, Message: msg})
		return
	}

	status := StatusOf(err)
	code, msg := errno.Decode(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	_ = c.JSON(status, ErrorBody{Error: errno.KindOf(err).String(), Code: code, Message: msg})
}

// Validator adapts go-playground/validator to echo.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

func (cv *Validator) Validate(i interface{}) error {
	if err := cv.v.Struct(i); err != nil {
		return errno.ErrValidation.Wrap(err)
	}
	return nil
}

// Bind decodes the request body into v and validates it.
func Bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return errno.ErrBind.Wrap(err)
	}
	return c.Validate(v)
}

// ParamID reads a positive numeric path parameter.
func ParamID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errno.ErrValidation.With("invalid %s %q", name, c.Param(name))
	}
	return uint(id), nil
}
