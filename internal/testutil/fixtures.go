package testutil

import (
	"testing"
	"time"

	"coursework-api/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Password is the plain-text password of every fixture user
const Password = "password123"

// Fixture builds rows directly through gorm for tests
type Fixture struct {
	t  testing.TB
	DB *gorm.DB
	// Now is the reference time sprints are placed around
	Now time.Time
}

// NewFixture opens a fresh in-memory database
func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	db, err := NewInMemoryDB()
	require.NoError(t, err)
	return &Fixture{
		t:   t,
		DB:  db,
		Now: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
}

// Clock returns a clock frozen at f.Now
func (f *Fixture) Clock() func() time.Time {
	return func() time.Time { return f.Now }
}

func (f *Fixture) create(value any) {
	f.t.Helper()
	require.NoError(f.t, f.DB.Create(value).Error)
}

// User creates a user holding roles
func (f *Fixture) User(username string, roles ...models.Role) *models.User {
	f.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(f.t, err)

	u := &models.User{ID: uuid.NewString(), Username: username, Password: string(hash)}
	f.create(u)
	for _, r := range roles {
		f.create(&models.RoleMembership{UserID: u.ID, Role: r})
	}
	return u
}

// Project creates a subject owned by ownerID with one course and one project
func (f *Fixture) Project(ownerID string, memberIDs ...string) *models.Project {
	f.t.Helper()
	subject := &models.Subject{ID: uuid.NewString(), Name: "Software Engineering", OwnerID: ownerID}
	f.create(subject)
	course := &models.Course{ID: uuid.NewString(), SubjectID: subject.ID, Name: "SE 2025"}
	f.create(course)
	project := &models.Project{ID: uuid.NewString(), CourseID: course.ID, Name: "Team 1"}
	f.create(project)
	for _, id := range memberIDs {
		f.Member(project.ID, id)
	}
	return project
}

// Member adds userID to a project team
func (f *Fixture) Member(projectID, userID string) {
	f.t.Helper()
	f.create(&models.ProjectMember{ProjectID: projectID, UserID: userID})
}

// Sprint creates a sprint spanning [start, end]
func (f *Fixture) Sprint(projectID string, start, end time.Time) *models.Sprint {
	f.t.Helper()
	sp := &models.Sprint{ID: uuid.NewString(), ProjectID: projectID, Name: "Sprint", StartDate: start, EndDate: end}
	f.create(sp)
	return sp
}

// PastSprint ends a day before Now
func (f *Fixture) PastSprint(projectID string) *models.Sprint {
	return f.Sprint(projectID, f.Now.AddDate(0, 0, -15), f.Now.AddDate(0, 0, -1))
}

// CurrentSprint contains Now
func (f *Fixture) CurrentSprint(projectID string) *models.Sprint {
	return f.Sprint(projectID, f.Now.AddDate(0, 0, -7), f.Now.AddDate(0, 0, 7))
}

// FutureSprint starts a day after Now
func (f *Fixture) FutureSprint(projectID string) *models.Sprint {
	return f.Sprint(projectID, f.Now.AddDate(0, 0, 1), f.Now.AddDate(0, 0, 15))
}

// Task inserts t, filling ID, type and status when empty
func (f *Fixture) Task(t models.Task) *models.Task {
	f.t.Helper()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Name == "" {
		t.Name = "Task"
	}
	if t.Type == "" {
		t.Type = models.TypeTask
	}
	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	sprints := t.ActiveSprints
	t.ActiveSprints = nil
	require.NoError(f.t, f.DB.Omit("ParentTask", "ChildTasks", "PullRequests", "ActiveSprints").Create(&t).Error)
	if len(sprints) > 0 {
		require.NoError(f.t, f.DB.Model(&t).Association("ActiveSprints").Append(sprints))
	}
	return &t
}

// PullRequest links a pull request to a task
func (f *Fixture) PullRequest(taskID string, merged bool) *models.PullRequest {
	f.t.Helper()
	pr := &models.PullRequest{ID: uuid.NewString(), TaskID: taskID, Number: 1, URL: "https://example.com/pr/1", Merged: merged}
	f.create(pr)
	return pr
}

// Reload reads a task back with every relation the engine uses
func (f *Fixture) Reload(id string) *models.Task {
	f.t.Helper()
	var t models.Task
	err := f.DB.
		Preload("ActiveSprints").
		Preload("PullRequests").
		Preload("ChildTasks").
		Preload("ChildTasks.ActiveSprints").
		Preload("ParentTask").
		Preload("ParentTask.ChildTasks").
		First(&t, "id = ?", id).Error
	require.NoError(f.t, err)
	return &t
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
