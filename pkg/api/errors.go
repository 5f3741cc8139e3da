package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/LagoAI/LiebExplorer/pkg/logging"
)

const (
	// ErrInternalServerError means that an internal server error has occurred.
	ErrInternalServerError = "internal_server_error"
	// ErrEntityNotFound means that the instance is not in the registry.
	ErrEntityNotFound = "entity_not_found"
	// ErrBadParameter means that a request parameter or body is invalid.
	ErrBadParameter = "bad_parameter"
)

// APIError is the error body returned to API clients.
type APIError struct {
	// Code is a machine-readable code.
	Code string `json:"code,omitempty"`
	// Message is a human-readable message.
	Message string `json:"message"`
	// Inner is never shown to clients.
	Inner error `json:"-"`
}

// NewAPIError creates a new APIError.
func NewAPIError(code, message string, inner error) *APIError {
	return &APIError{Code: code, Message: message, Inner: inner}
}

// NewBadParameterError returns inner unchanged if it already is an APIError.
func NewBadParameterError(message string, inner error) *APIError {
	if e := ToAPIError(inner); e != nil {
		return e
	}
	return NewAPIError(ErrBadParameter, message, inner)
}

// NewEntityNotFoundError returns inner unchanged if it already is an APIError.
func NewEntityNotFoundError(message string, inner error) *APIError {
	if e := ToAPIError(inner); e != nil {
		return e
	}
	return NewAPIError(ErrEntityNotFound, message, inner)
}

// NewInternalServerError returns inner unchanged if it already is an APIError.
func NewInternalServerError(message string, inner error) *APIError {
	if e := ToAPIError(inner); e != nil {
		return e
	}
	return NewAPIError(ErrInternalServerError, message, inner)
}

func (e *APIError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s %s: %v", e.Code, e.Message, e.Inner)
	}
	return fmt.Sprintf("%s %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *APIError) Unwrap() error {
	return e.Inner
}

// ToAPIError returns the APIError in err's chain, or nil.
func ToAPIError(err error) *APIError {
	var e *APIError
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// ErrResponse is the body of every error response.
type ErrResponse struct {
	Error *APIError `json:"error,omitempty"`
}

var statusByCode = map[string]int{
	ErrBadParameter:        http.StatusBadRequest,
	ErrEntityNotFound:      http.StatusNotFound,
	ErrInternalServerError: http.StatusInternalServerError,
}

// RegisterErrorHandler installs the JSON error handler on e.
func RegisterErrorHandler(e *echo.Echo, logger logging.Interface) {
	if logger == nil {
		logger = logging.Nop()
	}
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		handleError(err, c, logger)
	}
}

func handleError(err error, c echo.Context, logger logging.Interface) {
	if c.Response().Committed {
		return
	}

	var status int
	apiErr := ToAPIError(err)
	var he *echo.HTTPError
	switch {
	case apiErr != nil:
		status = http.StatusInternalServerError
		if s, ok := statusByCode[apiErr.Code]; ok {
			status = s
		}
	case errors.As(err, &he):
		status = he.Code
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		code := ErrInternalServerError
		switch {
		case he.Code == http.StatusNotFound:
			code = ErrEntityNotFound
		case he.Code >= 400 && he.Code < 500:
			code = ErrBadParameter
		}
		apiErr = NewAPIError(code, msg, err)
	default:
		status = http.StatusInternalServerError
		apiErr = NewAPIError(ErrInternalServerError, "an internal server error has occurred", err)
	}

	if status >= http.StatusInternalServerError {
		logger.Errorf("HTTP %s %s failed: %v", c.Request().Method, c.Path(), err)
	} else {
		logger.Debugf("HTTP %s %s rejected: %v", c.Request().Method, c.Path(), err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrResponse{Error: apiErr})
}
