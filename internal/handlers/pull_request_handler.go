package handlers

import (
	"net/http"

	"coursework-api/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

// MergeRequest sets the merge state of a linked pull request
type MergeRequest struct {
	Merged *bool `json:"merged" binding:"required"`
}

// LinkPullRequest handles POST /api/tasks/:id/pull-requests
func (h *Handler) LinkPullRequest(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req lifecycle.NewPullRequest
	if !bind(c, &req) {
		return
	}
	pr, err := h.service.LinkPullRequest(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pr)
}

// SetPullRequestMerged handles PATCH /api/pull-requests/:id
func (h *Handler) SetPullRequestMerged(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req MergeRequest
	if !bind(c, &req) {
		return
	}
	pr, err := h.service.SetPullRequestMerged(c.Request.Context(), c.Param("id"), userID, *req.Merged)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pr)
}
