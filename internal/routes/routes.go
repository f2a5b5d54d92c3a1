package routes

import (
	"log/slog"

	"coursework-api/internal/auth"
	"coursework-api/internal/handlers"
	"coursework-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes builds the router with public and protected routes
func SetupRoutes(h *handlers.Handler, issuer *auth.TokenIssuer, logger *slog.Logger) *gin.Engine {
	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS())

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Coursework API is running",
		})
	})

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/login", h.Login)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware(issuer))
	{
		protectedRoutes.POST("/logout", h.Logout)
		protectedRoutes.GET("/users", h.GetAllUsers)
		protectedRoutes.GET("/ws", h.WebSocket)

		// Project scoped collections
		protectedRoutes.GET("/projects/:id/tasks", h.ListTasks)
		protectedRoutes.POST("/projects/:id/tasks", h.CreateUserStory)
		protectedRoutes.GET("/projects/:id/sprints", h.ListSprints)
		protectedRoutes.POST("/projects/:id/sprints", h.CreateSprint)

		// Task endpoints
		protectedRoutes.GET("/tasks/:id", h.GetTask)
		protectedRoutes.PATCH("/tasks/:id", h.PatchTask)
		protectedRoutes.DELETE("/tasks/:id", h.DeleteTask)
		protectedRoutes.POST("/tasks/:id/subtasks", h.CreateSubtask)
		protectedRoutes.POST("/tasks/:id/assignee", h.SelfAssign)
		protectedRoutes.DELETE("/tasks/:id/assignee", h.Unassign)
		protectedRoutes.POST("/tasks/:id/freeze", h.Freeze)
		protectedRoutes.DELETE("/tasks/:id/freeze", h.Unfreeze)
		protectedRoutes.GET("/tasks/:id/comments", h.ListComments)
		protectedRoutes.POST("/tasks/:id/comments", h.AddComment)
		protectedRoutes.GET("/tasks/:id/permissions", h.Permissions)
		protectedRoutes.GET("/tasks/:id/history", h.TaskHistory)
		protectedRoutes.POST("/tasks/:id/pull-requests", h.LinkPullRequest)
		protectedRoutes.PATCH("/pull-requests/:id", h.SetPullRequestMerged)

		// Sprint endpoints
		protectedRoutes.GET("/sprints/:id", h.GetSprint)
		protectedRoutes.PATCH("/sprints/:id", h.PatchSprint)
		protectedRoutes.POST("/sprints/:id/close", h.CloseSprint)
		protectedRoutes.GET("/sprints/:id/history", h.SprintHistory)
	}

	return ginRouter
}
