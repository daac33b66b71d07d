package http

import (
	"net/http"

	"github.com/capekei/safra-sub003/internal/log"
	"github.com/capekei/safra-sub003/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeInvalidArticleID   = "INVALID_ARTICLE_ID"
	CodeInvalidLimit       = "INVALID_LIMIT"
	CodeInvalidDecision    = "INVALID_DECISION"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "ARTICLE_NOT_FOUND"
	CodeRouteNotFound      = "NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInternal           = "INTERNAL_ERROR"
)

const genericErrorMessage = "An unexpected error occurred. Please try again later."

// sendJSONError aborts with {message, code}. For 5xx the message is replaced
// by a generic one; the internal error is only logged.
func sendJSONError(c *gin.Context, status int, code, publicMsg string, internalErr error) {
	entry := log.GetLogger().WithFields(logrus.Fields{
		"status":     status,
		"code":       code,
		"path":       c.Request.URL.Path,
		"request_id": c.GetString(requestIDKey),
	})
	if status >= http.StatusInternalServerError {
		entry.WithError(internalErr).Error("Handler error")
		publicMsg = genericErrorMessage
	} else if internalErr != nil {
		entry.WithError(internalErr).Info("Request refused")
	} else {
		entry.Info("Request refused")
	}
	c.AbortWithStatusJSON(status, gin.H{"message": publicMsg, "code": code})
}

// respondError maps workflow errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		sendJSONError(c, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidTransition):
		sendJSONError(c, http.StatusBadRequest, CodeInvalidTransition, err.Error(), nil)
	case errors.Is(err, service.ErrValidation):
		sendJSONError(c, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	case errors.Is(err, service.ErrUnauthorized):
		sendJSONError(c, http.StatusForbidden, CodeForbidden, err.Error(), nil)
	default:
		sendJSONError(c, http.StatusInternalServerError, CodeInternal, "", err)
	}
}
