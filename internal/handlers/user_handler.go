package handlers

import (
	"net/http"

	"coursework-api/internal/models"

	"github.com/gin-gonic/gin"
)

type UserResponse struct {
	ID       string        `json:"id"`
	Username string        `json:"username"`
	Roles    []models.Role `json:"roles"`
}

// GetAllUsers returns all users (protected)
// GET /api/users
func (h *Handler) GetAllUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	// Map to safe response payload
	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		roles := make([]models.Role, 0, len(u.Roles))
		for _, r := range u.Roles {
			roles = append(roles, r.Role)
		}
		resp = append(resp, UserResponse{
			ID:       u.ID,
			Username: u.Username,
			Roles:    roles,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}
