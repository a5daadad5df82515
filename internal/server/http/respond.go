package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unityaid/mobile-sync/internal/errs"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps sentinel errors to HTTP status codes. This is the only
// place the taxonomy is translated.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInvalidCredentials),
		errors.Is(err, errs.ErrNotVerified),
		errors.Is(err, errs.ErrAccountDisabled),
		errors.Is(err, errs.ErrUnauthorized),
		errors.Is(err, errs.ErrExpired),
		errors.Is(err, errs.ErrRevoked),
		errors.Is(err, errs.ErrDeviceMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrDeviceLimit):
		return http.StatusConflict
	case errors.Is(err, errs.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the mapped error response. Internal failures are logged
// server-side and the client gets a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
