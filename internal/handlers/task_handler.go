package handlers

import (
	"context"
	"net/http"

	"coursework-api/internal/lifecycle"
	"coursework-api/internal/models"

	"github.com/gin-gonic/gin"
)

// CommentRequest represents the payload of a new comment
type CommentRequest struct {
	Body string `json:"body" binding:"required"`
}

// ListTasks handles GET /api/projects/:id/tasks
func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.service.ListTasks(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// CreateUserStory handles POST /api/projects/:id/tasks
func (h *Handler) CreateUserStory(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req lifecycle.NewTask
	if !bind(c, &req) {
		return
	}
	task, err := h.service.CreateUserStory(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// CreateSubtask handles POST /api/tasks/:id/subtasks
func (h *Handler) CreateSubtask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req lifecycle.NewTask
	if !bind(c, &req) {
		return
	}
	task, err := h.service.AddSubtask(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// GetTask handles GET /api/tasks/:id
// The response carries the caller's permissions on the task.
func (h *Handler) GetTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	view, err := h.service.View(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PatchTask handles PATCH /api/tasks/:id
// Only the fields present in the body are changed; null clears nullable fields.
func (h *Handler) PatchTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var edit lifecycle.TaskEdit
	if !bind(c, &edit) {
		return
	}
	task, err := h.service.ApplyEdit(c.Request.Context(), c.Param("id"), userID, edit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/:id
func (h *Handler) DeleteTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteTask(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// SelfAssign handles POST /api/tasks/:id/assignee
func (h *Handler) SelfAssign(c *gin.Context) {
	h.taskAction(c, h.service.SelfAssign)
}

// Unassign handles DELETE /api/tasks/:id/assignee
func (h *Handler) Unassign(c *gin.Context) {
	h.taskAction(c, h.service.Unassign)
}

// Freeze handles POST /api/tasks/:id/freeze
func (h *Handler) Freeze(c *gin.Context) {
	h.taskAction(c, h.service.Freeze)
}

// Unfreeze handles DELETE /api/tasks/:id/freeze
func (h *Handler) Unfreeze(c *gin.Context) {
	h.taskAction(c, h.service.Unfreeze)
}

func (h *Handler) taskAction(c *gin.Context, action func(ctx context.Context, taskID, callerID string) (*models.Task, error)) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	task, err := action(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListComments handles GET /api/tasks/:id/comments
func (h *Handler) ListComments(c *gin.Context) {
	comments, err := h.service.Comments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"count":    len(comments),
	})
}

// AddComment handles POST /api/tasks/:id/comments
func (h *Handler) AddComment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req CommentRequest
	if !bind(c, &req) {
		return
	}
	comment, err := h.service.AddComment(c.Request.Context(), c.Param("id"), userID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Permissions handles GET /api/tasks/:id/permissions
func (h *Handler) Permissions(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	perms, err := h.service.Permissions(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, perms)
}

// TaskHistory handles GET /api/tasks/:id/history
func (h *Handler) TaskHistory(c *gin.Context) {
	rows, err := h.service.TaskHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"changes": rows,
		"count":   len(rows),
	})
}
