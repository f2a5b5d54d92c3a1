package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"coursework-api/internal/access"
	"coursework-api/internal/auth"
	"coursework-api/internal/lifecycle"
	"coursework-api/internal/middleware"
	"coursework-api/internal/models"
	"coursework-api/internal/realtime"
	"coursework-api/internal/store"
	"coursework-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type server struct {
	t       *testing.T
	f       *testutil.Fixture
	router  *gin.Engine
	issuer  *auth.TokenIssuer
	hub     *realtime.Hub
	prof    *models.User
	alice   *models.User
	bob     *models.User
	project *models.Project
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := testutil.NewFixture(t)
	st := store.New(f.DB)
	hub := realtime.NewHub()
	logger := slog.New(slog.DiscardHandler)
	svc := lifecycle.NewService(st, access.NewChecker(st, f.Clock()), hub, logger)
	issuer := auth.NewTokenIssuer(auth.Options{
		Secret:   []byte("test-secret"),
		Issuer:   "coursework-api",
		Audience: "coursework-clients",
		TTL:      time.Hour,
	})
	h := New(svc, st, issuer, hub, logger)

	r := gin.New()
	r.POST("/api/login", h.Login)
	api := r.Group("/api", middleware.JWTAuthMiddleware(issuer))
	api.POST("/logout", h.Logout)
	api.GET("/users", h.GetAllUsers)
	api.GET("/ws", h.WebSocket)
	api.GET("/projects/:id/tasks", h.ListTasks)
	api.POST("/projects/:id/tasks", h.CreateUserStory)
	api.POST("/projects/:id/sprints", h.CreateSprint)
	api.GET("/tasks/:id", h.GetTask)
	api.PATCH("/tasks/:id", h.PatchTask)
	api.DELETE("/tasks/:id", h.DeleteTask)
	api.POST("/tasks/:id/subtasks", h.CreateSubtask)
	api.POST("/tasks/:id/assignee", h.SelfAssign)
	api.POST("/tasks/:id/freeze", h.Freeze)
	api.POST("/tasks/:id/comments", h.AddComment)
	api.GET("/tasks/:id/permissions", h.Permissions)
	api.GET("/tasks/:id/history", h.TaskHistory)
	api.POST("/tasks/:id/pull-requests", h.LinkPullRequest)
	api.PATCH("/pull-requests/:id", h.SetPullRequestMerged)
	api.GET("/sprints/:id", h.GetSprint)
	api.POST("/sprints/:id/close", h.CloseSprint)
	api.PATCH("/sprints/:id", h.PatchSprint)

	s := &server{t: t, f: f, router: r, issuer: issuer, hub: hub}
	s.prof = f.User("prof", models.RoleProfessor)
	s.alice = f.User("alice", models.RoleStudent)
	s.bob = f.User("bob", models.RoleStudent)
	s.project = f.Project(s.prof.ID, s.alice.ID, s.bob.ID)
	return s
}

func (s *server) token(u *models.User) string {
	s.t.Helper()
	token, err := s.issuer.GenerateToken(u.ID, u.Username)
	require.NoError(s.t, err)
	return token
}

// do sends a request as u (nil for anonymous) with an optional JSON body
func (s *server) do(u *models.User, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	token := ""
	if u != nil {
		token = s.token(u)
	}
	return s.send(token, method, path, body)
}

func (s *server) doWithToken(token, method, path string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.send(token, method, path, nil)
}

func (s *server) send(token, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(s.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type fakeClient struct {
	messages [][]byte
}

func (c *fakeClient) Send(message []byte) bool {
	c.messages = append(c.messages, message)
	return true
}

func (c *fakeClient) Close() {}
