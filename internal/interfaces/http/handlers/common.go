package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/deckscan/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeError aborts the request with a structured error body.
func writeError(c *gin.Context, statusCode int, code errors.ErrorCode, message, detail string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Code:    string(code),
		Message: message,
		Detail:  detail,
	})
}

// writeAppError maps application errors to HTTP status codes. Errors without
// a code are masked as internal errors.
func writeAppError(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	if stderrors.As(err, &maxBytes) {
		writeError(c, http.StatusRequestEntityTooLarge, errors.ErrCodeBadRequest, "request body too large", "")
		return
	}

	var ae *errors.AppError
	if !stderrors.As(err, &ae) {
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, errors.ErrCodeInternal, "internal server error", "")
		return
	}

	status := errors.HTTPStatusForCode(ae.Code)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	writeError(c, status, ae.Code, ae.Message, ae.Detail)
}
