package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/kindred/internal/mode"
	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps controller and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case record.IsValidationError(err):
		return http.StatusBadRequest
	case store.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case mode.IsSignInRequired(err):
		return http.StatusForbidden
	case mode.IsRemoteUnavailable(err), errors.Is(err, mode.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
}
