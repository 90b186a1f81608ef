// Package api provides error handling utilities for the JSON endpoints
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	cdserrors "github.com/mantonx/upnpcds/internal/errors"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error   ErrorDetails `json:"error"`
	Success bool         `json:"success"`
}

// ErrorDetails contains detailed error information
type ErrorDetails struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Path      string `json:"path,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HTTPStatus maps an error to the status code of its JSON response.
func HTTPStatus(err error) int {
	switch cdserrors.GetType(err) {
	case cdserrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case cdserrors.ErrorTypeInvalidArgument:
		return http.StatusBadRequest
	case cdserrors.ErrorTypeNotSupported:
		return http.StatusNotImplemented
	case cdserrors.ErrorTypeUpstream:
		// A routed failure keeps the status of what went wrong below it.
		var cErr *cdserrors.CDSError
		if errors.As(err, &cErr) && cErr.Err != nil {
			if inner := HTTPStatus(cErr.Err); inner != http.StatusInternalServerError {
				return inner
			}
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithError sends a structured error response
func RespondWithError(c *gin.Context, message string, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	details := ErrorDetails{
		Code:      string(cdserrors.GetType(err)),
		Message:   message,
		Details:   err.Error(),
		RequestID: c.GetString(RequestIDKey),
	}
	var cErr *cdserrors.CDSError
	if errors.As(err, &cErr) {
		details.Path = cErr.Path
	}

	c.JSON(status, ErrorResponse{Error: details, Success: false})
}

// RespondWithValidationError sends a bad request response for a malformed
// request.
func RespondWithValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error: ErrorDetails{
			Code:      string(cdserrors.ErrorTypeInvalidArgument),
			Message:   message,
			RequestID: c.GetString(RequestIDKey),
		},
	})
}

// ErrorMiddleware recovers from panics in handlers and answers with an
// internal error.
func ErrorMiddleware(logger hclog.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				var err error
				switch v := r.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("%v", v)
				}

				logger.Error("panic recovered",
					"error", err,
					"request_path", c.Request.URL.Path,
					"request_method", c.Request.Method,
					"request_id", c.GetString(RequestIDKey),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Success: false,
					Error: ErrorDetails{
						Code:      string(cdserrors.ErrorTypeInternal),
						Message:   "panic recovered",
						RequestID: c.GetString(RequestIDKey),
					},
				})
			}
		}()
		c.Next()
	}
}
