package handler

import (
	"errors"
	"net/http"

	"sharelink/internal/service"
	"sharelink/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// failWithError maps service error kinds onto HTTP statuses. Upstream detail stays in the log.
func failWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		utils.Fail(c, http.StatusNotFound, "link not found")
	case errors.Is(err, service.ErrExpired):
		utils.Fail(c, http.StatusGone, "link has expired", gin.H{"expired": true})
	case errors.Is(err, service.ErrUnauthorized):
		utils.Fail(c, http.StatusUnauthorized, "missing or invalid token")
	case errors.Is(err, service.ErrForbidden):
		utils.Fail(c, http.StatusForbidden, "you do not have permission to manage this link")
	case errors.Is(err, service.ErrValidation):
		utils.Fail(c, http.StatusBadRequest, err.Error())
	default:
		_ = c.Error(err)
		utils.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
		utils.Fail(c, http.StatusInternalServerError, "service unavailable")
	}
}

// failAccess is failWithError for password-gated reads.
func failAccess(c *gin.Context, err error) {
	if errors.Is(err, service.ErrUnauthorized) {
		utils.Fail(c, http.StatusUnauthorized, "incorrect or missing password", gin.H{"passwordProtected": true})
		return
	}
	failWithError(c, err)
}
