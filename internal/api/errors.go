package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"dashboard/internal/service"
)

// APIError is the JSON error body returned by every endpoint.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

type errorResponse struct {
	Error *APIError `json:"error"`
}

func ErrInvalidParameter(name, value string) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid value for %s", name),
		Details:    map[string]string{"parameter": name, "value": value},
	}
}

// toAPIError maps service and framework errors onto HTTP responses.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var selErr *service.SelectionError
	if errors.As(err, &selErr) {
		return &APIError{
			StatusCode: http.StatusBadRequest,
			Code:       "INVALID_SELECTION",
			Message:    "selection is invalid",
			Details:    selErr.Problems,
		}
	}
	if errors.Is(err, service.ErrNotReady) {
		return &APIError{
			StatusCode: http.StatusServiceUnavailable,
			Code:       "DATASET_LOADING",
			Message:    "dataset is not loaded yet",
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return &APIError{
			StatusCode: he.Code,
			Code:       http.StatusText(he.Code),
			Message:    fmt.Sprint(he.Message),
		}
	}
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "internal server error",
	}
}

// ErrorHandler returns an echo.HTTPErrorHandler writing the error envelope.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		apiErr := toAPIError(err)
		if apiErr.StatusCode >= http.StatusInternalServerError && apiErr.StatusCode != http.StatusServiceUnavailable {
			logger.ErrorContext(c.Request().Context(), "request failed",
				slog.String("path", c.Path()), slog.Any("error", err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(apiErr.StatusCode)
		} else {
			err = c.JSON(apiErr.StatusCode, errorResponse{Error: apiErr})
		}
		if err != nil {
			logger.Error("failed to write error response", slog.Any("error", err))
		}
	}
}
