// Package response defines the uniform HTTP response envelope.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the single response shape used by every endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    any         `json:"data,omitempty"`
	Errors  []ErrorInfo `json:"errors,omitempty"`
}

// ErrorInfo carries one failure entry of the envelope.
type ErrorInfo struct {
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// Success sends a successful response with the given data.
func Success(c echo.Context, statusCode int, data any, message string) error {
	return c.JSON(statusCode, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a failure response with a single error entry.
func Error(c echo.Context, statusCode int, errorCode, message, details string) error {
	return c.JSON(statusCode, Envelope{
		Success: false,
		Message: message,
		Errors:  []ErrorInfo{{Code: errorCode, Details: details}},
	})
}

// BindingError sends a 400 response for request binding failures.
func BindingError(c echo.Context, errorCode, message string) error {
	return Error(c, http.StatusBadRequest, errorCode, message, "")
}

// Unauthorized sends a 401 response.
func Unauthorized(c echo.Context, errorCode, message string) error {
	return Error(c, http.StatusUnauthorized, errorCode, message, "")
}

// Forbidden sends a 403 response.
func Forbidden(c echo.Context, errorCode, message string) error {
	return Error(c, http.StatusForbidden, errorCode, message, "")
}
