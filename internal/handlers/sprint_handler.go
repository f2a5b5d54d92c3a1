package handlers

import (
	"net/http"

	"coursework-api/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

// ListSprints handles GET /api/projects/:id/sprints
func (h *Handler) ListSprints(c *gin.Context) {
	sprints, err := h.service.ListSprints(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sprints": sprints,
		"count":   len(sprints),
	})
}

// CreateSprint handles POST /api/projects/:id/sprints
func (h *Handler) CreateSprint(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req lifecycle.NewSprint
	if !bind(c, &req) {
		return
	}
	sprint, err := h.service.CreateSprint(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sprint)
}

// GetSprint handles GET /api/sprints/:id
func (h *Handler) GetSprint(c *gin.Context) {
	sprint, err := h.service.GetSprint(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sprint)
}

// PatchSprint handles PATCH /api/sprints/:id
func (h *Handler) PatchSprint(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var edit lifecycle.SprintEdit
	if !bind(c, &edit) {
		return
	}
	sprint, err := h.service.EditSprint(c.Request.Context(), c.Param("id"), userID, edit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sprint)
}

// CloseSprint handles POST /api/sprints/:id/close
func (h *Handler) CloseSprint(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	sprint, err := h.service.CloseSprint(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sprint)
}

// SprintHistory handles GET /api/sprints/:id/history
func (h *Handler) SprintHistory(c *gin.Context) {
	rows, err := h.service.SprintHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"changes": rows,
		"count":   len(rows),
	})
}
