package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coursework-api/internal/cache"
	"coursework-api/internal/models"
)

// Directory answers identity and relationship questions about users
type Directory interface {
	RolesOf(ctx context.Context, userID string) ([]models.Role, error)
	IsProjectMember(ctx context.Context, projectID, userID string) (bool, error)
	// CourseOwnerOf returns the owner of the subject the project's course belongs to
	CourseOwnerOf(ctx context.Context, projectID string) (string, error)
}

// Checker evaluates the access matrix for concrete users
type Checker struct {
	dir Directory
	now func() time.Time
}

// NewChecker creates a Checker. A nil clock means time.Now.
func NewChecker(dir Directory, now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{dir: dir, now: now}
}

// WithDirectory returns a checker sharing the clock but reading from dir,
// typically a transaction-bound store.
func (c *Checker) WithDirectory(dir Directory) *Checker {
	return &Checker{dir: dir, now: c.now}
}

// Now returns the checker's current time
func (c *Checker) Now() time.Time {
	return c.now()
}

// Session binds the checker to one caller for the lifetime of one request.
// Directory lookups are memoized inside the session only.
type Session struct {
	checker *Checker
	ctx     context.Context
	userID  string

	roles      cache.Cache[string, []models.Role]
	membership cache.Cache[string, bool]
	owners     cache.Cache[string, string]
}

// Session opens a request-scoped session for userID
func (c *Checker) Session(ctx context.Context, userID string) *Session {
	opts := cache.Options{ConcurrencySafe: false}
	return &Session{
		checker:    c,
		ctx:        ctx,
		userID:     userID,
		roles:      cache.NewSimpleCache[string, []models.Role](opts),
		membership: cache.NewSimpleCache[string, bool](opts),
		owners:     cache.NewSimpleCache[string, string](opts),
	}
}

// UserID returns the caller of the session
func (s *Session) UserID() string {
	return s.userID
}

// Roles returns the caller's roles
func (s *Session) Roles() ([]models.Role, error) {
	return s.roles.GetOrLoad(s.userID, 0, func() ([]models.Role, error) {
		roles, err := s.checker.dir.RolesOf(s.ctx, s.userID)
		if err != nil {
			return nil, fmt.Errorf("load roles: %w", err)
		}
		return roles, nil
	})
}

// IsProjectMember reports whether the caller belongs to projectID
func (s *Session) IsProjectMember(projectID string) (bool, error) {
	return s.membership.GetOrLoad(projectID, 0, func() (bool, error) {
		ok, err := s.checker.dir.IsProjectMember(s.ctx, projectID, s.userID)
		if err != nil {
			return false, fmt.Errorf("load project membership: %w", err)
		}
		return ok, nil
	})
}

// IsCourseOwner reports whether the caller owns the subject above projectID
func (s *Session) IsCourseOwner(projectID string) (bool, error) {
	owner, err := s.owners.GetOrLoad(projectID, 0, func() (string, error) {
		id, err := s.checker.dir.CourseOwnerOf(s.ctx, projectID)
		if err != nil {
			return "", fmt.Errorf("load course owner: %w", err)
		}
		return id, nil
	})
	if err != nil {
		return false, err
	}
	return owner != "" && owner == s.userID, nil
}

// Caller builds the caller context for a task
func (s *Session) Caller(task *models.Task) (CallerContext, error) {
	roles, err := s.Roles()
	if err != nil {
		return CallerContext{}, err
	}
	member, err := s.IsProjectMember(task.ProjectID)
	if err != nil {
		return CallerContext{}, err
	}
	owner, err := s.IsCourseOwner(task.ProjectID)
	if err != nil {
		return CallerContext{}, err
	}
	return CallerContext{
		UserID:          s.userID,
		Roles:           roles,
		IsAssignee:      task.IsAssignedTo(s.userID),
		IsReporter:      task.ReporterID == s.userID,
		IsProjectMember: member,
		IsCourseOwner:   owner,
	}, nil
}

// IsManager reports whether the caller is privileged for projectID
func (s *Session) IsManager(projectID string) (bool, error) {
	caller, err := s.Caller(&models.Task{ProjectID: projectID})
	if err != nil {
		return false, err
	}
	return caller.Privileged(), nil
}

// Evaluate returns nil when the caller may perform capability on task
func (s *Session) Evaluate(capability Capability, task *models.Task) error {
	caller, err := s.Caller(task)
	if err != nil {
		return err
	}
	return Evaluate(capability, task, caller, s.checker.now())
}

// Permissions answers every capability for the caller
func (s *Session) Permissions(task *models.Task) (Permissions, error) {
	caller, err := s.Caller(task)
	if err != nil {
		return nil, err
	}
	return All(task, caller, s.checker.now()), nil
}

// Can reports whether userID may perform capability on task right now.
// Lookup failures are logged and treated as a refusal.
func (c *Checker) Can(ctx context.Context, capability Capability, task *models.Task, userID string) bool {
	caller, err := c.Session(ctx, userID).Caller(task)
	if err != nil {
		slog.WarnContext(ctx, "access lookup failed",
			slog.String("task_id", task.ID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return Can(capability, task, caller, c.now())
}

// Permissions answers every capability for userID on task
func (c *Checker) Permissions(ctx context.Context, task *models.Task, userID string) (Permissions, error) {
	return c.Session(ctx, userID).Permissions(task)
}

// CanEditStatus reports whether userID may change the task status
func (c *Checker) CanEditStatus(ctx context.Context, task *models.Task, userID string) bool {
	return c.Can(ctx, EditStatus, task, userID)
}

// CanEditSprint reports whether userID may change the sprints of the task
func (c *Checker) CanEditSprint(ctx context.Context, task *models.Task, userID string) bool {
	return c.Can(ctx, EditSprint, task, userID)
}

// CanEditType reports whether userID may change the task type
func (c *Checker) CanEditType(ctx context.Context, task *models.Task, userID string) bool {
	return c.Can(ctx, EditType, task, userID)
}

// CanEditEstimation reports whether userID may estimate the task
func (c *Checker) CanEditEstimation(ctx context.Context, task *models.Task, userID string) bool {
	return c.Can(ctx, EditEstimation, task, userID)
}

// CanDelete reports whether userID may delete the task
func (c *Checker) CanDelete(ctx context.Context, task *models.Task, userID string) bool {
	return c.Can(ctx, Delete, task, userID)
}

// CanSelfAssign reports whether userID may take the task
func (c *Checker) CanSelfAssign(ctx context.Context, task *models.Task, userID string) bool {
	return c.Can(ctx, SelfAssign, task, userID)
}

// CanUnassign reports whether userID may drop the task
func (c *Checker) CanUnassign(ctx context.Context, task *models.Task, userID string) bool {
	return c.Can(ctx, Unassign, task, userID)
}

// CanAddSubtask reports whether userID may add a subtask under the task
func (c *Checker) CanAddSubtask(ctx context.Context, task *models.Task, userID string) bool {
	return c.Can(ctx, AddSubtask, task, userID)
}

// CanFreeze reports whether userID may freeze or unfreeze the task
func (c *Checker) CanFreeze(ctx context.Context, task *models.Task, userID string) bool {
	return c.Can(ctx, Freeze, task, userID)
}

// CanComment reports whether userID may comment on the task
func (c *Checker) CanComment(ctx context.Context, task *models.Task, userID string) bool {
	return c.Can(ctx, Comment, task, userID)
}
