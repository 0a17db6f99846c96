// Package dto defines the JSON bodies exchanged over HTTP.
package dto

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter *int64 `json:"retry_after,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// NewErrorResponse converts err into a response body. Errors that are not
// AppErrors are reported as internal errors without leaking their text.
func NewErrorResponse(err error) *ErrorResponse {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return &ErrorResponse{Error: string(appErr.Code()), Message: appErr.Message()}
	}
	return &ErrorResponse{
		Error:   string(errors.CodeInternal),
		Message: errors.ErrInternalServer.Message(),
	}
}

// RateLimitedResponse is the body of a 429 reply.
func RateLimitedResponse(retryAfterSeconds int64) *ErrorResponse {
	resp := NewErrorResponse(errors.ErrRateLimitExceeded)
	resp.RetryAfter = &retryAfterSeconds
	return resp
}

// SendError aborts the request with the status and body derived from err.
func SendError(c *gin.Context, err error) {
	resp := NewErrorResponse(err)
	resp.RequestID = c.Writer.Header().Get(constants.HeaderRequestID)
	c.AbortWithStatusJSON(errors.HTTPStatus(err), resp)
}
