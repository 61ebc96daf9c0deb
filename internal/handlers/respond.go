// Package handlers contains HTTP request handlers for the account service.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharebite/auth-service/internal/logging"
	"github.com/sharebite/auth-service/internal/service"
)

const msgInternal = "internal server error"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string               `json:"message"`
	Errors  []service.FieldError `json:"errors,omitempty"`
}

// MessageResponse is the body of requests that return no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// RespondError aborts the request with a message body.
func RespondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Message: message})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Only sentinel messages reach the client; anything unexpected is logged
// and reported as an internal error.
func respondServiceError(c *gin.Context, logger *slog.Logger, err error) {
	_ = c.Error(err)

	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrAvatarTooLarge):
		RespondError(c, http.StatusRequestEntityTooLarge, "avatar file too large")
	case errors.Is(err, service.ErrAvatarStorageDisabled):
		RespondError(c, http.StatusNotImplemented, "avatar uploads are disabled")
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Message: verr.Error(), Errors: verr.Fields})
	case errors.Is(err, service.ErrInvalidInput):
		RespondError(c, http.StatusBadRequest, service.ErrInvalidInput.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		RespondError(c, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrUserNotFound):
		RespondError(c, http.StatusNotFound, service.ErrUserNotFound.Error())
	case errors.Is(err, service.ErrConflict):
		RespondError(c, http.StatusConflict, service.ErrConflict.Error())
	case errors.Is(err, service.ErrUnavailable):
		logging.LogError(c.Request.Context(), logger, "dependency unavailable", err)
		RespondError(c, http.StatusServiceUnavailable, service.ErrUnavailable.Error())
	default:
		logging.LogError(c.Request.Context(), logger, "request failed", err)
		RespondError(c, http.StatusInternalServerError, msgInternal)
	}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
