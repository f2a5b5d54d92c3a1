// Package handlers exposes the lifecycle engine over HTTP.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"coursework-api/internal/auth"
	"coursework-api/internal/errs"
	"coursework-api/internal/lifecycle"
	"coursework-api/internal/middleware"
	"coursework-api/internal/realtime"
	"coursework-api/internal/store"

	"github.com/gin-gonic/gin"
)

// Handler holds the dependencies of every endpoint
type Handler struct {
	service *lifecycle.Service
	store   *store.Store
	issuer  *auth.TokenIssuer
	hub     *realtime.Hub
	logger  *slog.Logger
}

// New creates a Handler
func New(service *lifecycle.Service, st *store.Store, issuer *auth.TokenIssuer, hub *realtime.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, store: st, issuer: issuer, hub: hub, logger: logger}
}

// respondError renders typed errors with their status and hides the rest
func respondError(c *gin.Context, err error) {
	var httpErr errs.HTTPError
	if errors.As(err, &httpErr) {
		c.JSON(httpErr.HTTPStatus(), gin.H{
			"error": httpErr.Error(),
			"code":  httpErr.HTTPCode(),
		})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal server error",
	})
}

// callerID returns the authenticated user or answers 401
func callerID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return "", false
	}
	return userID, true
}

// bind decodes the JSON body or answers 400
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return false
	}
	return true
}
