// Package httputil provides HTTP utility functions for request and response handling.
package httputil

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// errorClass binds a standard sentinel to its HTTP rendering. An empty message means the
// wrapped error text is safe to return to the caller.
type errorClass struct {
	sentinel error
	status   int
	code     string
	message  string
}

// Order matters: the first matching sentinel wins.
var errorClasses = []errorClass{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found", ""},
	{apperrors.ErrGone, http.StatusGone, "gone", "The key material required for this request has been destroyed"},
	{apperrors.ErrUnavailable, http.StatusServiceUnavailable, "service_unavailable", "A required backend is unavailable, retry later"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict", "A conflict occurred with existing data"},
	{apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input", ""},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "A caller identity is required"},
	{apperrors.ErrForbidden, http.StatusForbidden, "forbidden", "You don't have permission to access this resource"},
}

var internalErrorClass = errorClass{
	status:  http.StatusInternalServerError,
	code:    "internal_error",
	message: "An internal error occurred",
}

func classify(err error) errorClass {
	for _, class := range errorClasses {
		if apperrors.Is(err, class.sentinel) {
			return class
		}
	}
	return internalErrorClass
}

// HandleErrorGin maps domain errors to HTTP status codes and returns a JSON response using Gin.
// Messages never echo request text, so detected values cannot leak through error bodies.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	class := classify(err)
	message := class.message
	if message == "" {
		message = err.Error()
	}

	if logger != nil {
		level := slog.LevelWarn
		if class.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		ctx := context.Background()
		if c.Request != nil {
			ctx = c.Request.Context()
		}
		logger.Log(ctx, level, "request failed",
			slog.Int("status_code", class.status),
			slog.String("error_code", class.code),
			slog.Any("error", err),
		)
	}

	c.JSON(class.status, ErrorResponse{Error: class.code, Message: message})
}

// HandleBadRequestGin writes a 400 for bodies or parameters that could not be decoded.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	writeClientError(c, http.StatusBadRequest, "bad_request", "bad request", err, logger)
}

// HandleValidationErrorGin writes a 422 for requests that decoded but failed validation.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	writeClientError(c, http.StatusUnprocessableEntity, "validation_error", "validation failed", err, logger)
}

func writeClientError(c *gin.Context, status int, code, logMsg string, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn(logMsg, slog.Any("error", err))
	}
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}
