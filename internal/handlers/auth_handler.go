package handlers

import (
	"log/slog"
	"net/http"

	"coursework-api/internal/auth"
	"coursework-api/internal/errs"
	"coursework-api/internal/middleware"
	"coursework-api/internal/models"

	"github.com/gin-gonic/gin"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token    string        `json:"token"`
	UserID   string        `json:"user_id"`
	Username string        `json:"username"`
	Roles    []models.Role `json:"roles"`
	Message  string        `json:"message"`
}

// Login checks the credentials and issues a token
// POST /api/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request. Username and password are required.",
		})
		return
	}

	user, err := h.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil && !errs.IsNotFound(err) {
		respondError(c, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.Password, req.Password) {
		h.logger.WarnContext(c.Request.Context(), "login failed", slog.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid username or password",
		})
		return
	}

	token, err := h.issuer.GenerateToken(user.ID, user.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	roles := make([]models.Role, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.Role)
	}
	c.JSON(http.StatusOK, LoginResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		Roles:    roles,
		Message:  "Login successful",
	})
}

// Logout revokes the token the request was made with
// POST /api/logout
func (h *Handler) Logout(c *gin.Context) {
	h.issuer.Revoke(middleware.Claims(c))
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
