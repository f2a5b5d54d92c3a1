package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"coursework-api/internal/access"
	"coursework-api/internal/errs"
	"coursework-api/internal/models"
	"coursework-api/internal/realtime"
	"coursework-api/internal/store"
	"coursework-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Publish(_ context.Context, evt realtime.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

type env struct {
	f       *testutil.Fixture
	svc     *Service
	events  *recorder
	checker *access.Checker

	admin   *models.User
	prof    *models.User
	alice   *models.User
	bob     *models.User
	outside *models.User
	project *models.Project
}

func newEnv(t *testing.T) *env {
	t.Helper()
	f := testutil.NewFixture(t)
	e := &env{f: f, events: &recorder{}}
	e.admin = f.User("admin", models.RoleAdmin)
	e.prof = f.User("prof", models.RoleProfessor)
	e.alice = f.User("alice", models.RoleStudent)
	e.bob = f.User("bob", models.RoleStudent)
	e.outside = f.User("carol", models.RoleStudent)
	e.project = f.Project(e.prof.ID, e.alice.ID, e.bob.ID)

	st := store.New(f.DB)
	e.checker = access.NewChecker(st, f.Clock())
	e.svc = NewService(st, e.checker, e.events, slog.New(slog.DiscardHandler))
	return e
}

func (e *env) task(t models.Task) *models.Task {
	t.ProjectID = e.project.ID
	if t.ReporterID == "" {
		t.ReporterID = e.alice.ID
	}
	return e.f.Task(t)
}

func (e *env) history(t *testing.T) []models.TaskChange {
	t.Helper()
	var rows []models.TaskChange
	require.NoError(t, e.f.DB.Order("created_at asc, id asc").Find(&rows).Error)
	return rows
}

func ruleOf(t *testing.T, err error) string {
	t.Helper()
	var v *errs.DomainRuleViolation
	require.True(t, errors.As(err, &v), "expected a rule violation, got %v", err)
	return v.Rule
}

func status(s models.TaskStatus) *models.TaskStatus { return &s }

func TestApplyEdit_ProfessorDoneWithUnmergedPullRequest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	past := e.f.PastSprint(e.project.ID)
	task := e.task(models.Task{
		Status:        models.StatusInProgress,
		AssigneeID:    &e.alice.ID,
		ActiveSprints: []models.Sprint{*past},
	})
	e.f.PullRequest(task.ID, false)
	loaded := e.f.Reload(task.ID)

	assert.False(t, e.checker.CanEditStatus(ctx, loaded, e.alice.ID), "past-sprint lock")
	assert.True(t, e.checker.CanEditStatus(ctx, loaded, e.prof.ID))

	_, err := e.svc.ApplyEdit(ctx, task.ID, e.prof.ID, TaskEdit{Status: status(models.StatusDone)})
	require.Error(t, err)
	assert.Equal(t, errs.RuleDoneNeedsMerge, ruleOf(t, err))
	assert.False(t, errs.IsDenied(err))
	assert.Empty(t, e.history(t))
	assert.Equal(t, models.StatusInProgress, e.f.Reload(task.ID).Status)
}

func TestApplyEdit_CascadeCompletesUserStory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	story := e.task(models.Task{Type: models.TypeUserStory, Status: models.StatusInProgress})
	e.task(models.Task{ParentTaskID: &story.ID, Status: models.StatusDone})
	second := e.task(models.Task{
		ParentTaskID:     &story.ID,
		Status:           models.StatusVerify,
		AssigneeID:       &e.alice.ID,
		EstimationPoints: testutil.Ptr(3),
	})
	e.f.PullRequest(second.ID, true)

	updated, err := e.svc.ApplyEdit(ctx, second.ID, e.alice.ID, TaskEdit{Status: status(models.StatusDone)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, updated.Status)
	assert.Equal(t, models.StatusDone, e.f.Reload(story.ID).Status)

	rows := e.history(t)
	require.Len(t, rows, 2)
	byTask := map[string]models.TaskChange{}
	for _, r := range rows {
		byTask[r.TaskID] = r
	}
	child, parent := byTask[second.ID], byTask[story.ID]
	assert.Equal(t, models.FieldStatus, child.Field)
	assert.Nil(t, child.CausedByTaskID)
	assert.Equal(t, models.FieldStatus, parent.Field)
	assert.Equal(t, string(models.StatusInProgress), parent.OldValue)
	assert.Equal(t, string(models.StatusDone), parent.NewValue)
	require.NotNil(t, parent.CausedByTaskID)
	assert.Equal(t, second.ID, *parent.CausedByTaskID)
	assert.Equal(t, child.AuthorID, parent.AuthorID)
	assert.True(t, child.CreatedAt.Equal(parent.CreatedAt))

	require.Len(t, e.events.events, 2)
	assert.Equal(t, second.ID, e.events.events[0].TaskID)
	assert.Equal(t, story.ID, e.events.events[1].TaskID)
	assert.ElementsMatch(t, []string{e.alice.ID, e.bob.ID}, e.events.events[0].Recipients)
}

func TestApplyEdit_CascadeSkipsFinishedParent(t *testing.T) {
	e := newEnv(t)
	story := e.task(models.Task{Type: models.TypeUserStory, Status: models.StatusDone})
	child := e.task(models.Task{
		ParentTaskID:     &story.ID,
		Status:           models.StatusVerify,
		AssigneeID:       &e.alice.ID,
		EstimationPoints: testutil.Ptr(1),
	})
	e.f.PullRequest(child.ID, true)

	_, err := e.svc.ApplyEdit(context.Background(), child.ID, e.alice.ID, TaskEdit{Status: status(models.StatusDone)})
	require.NoError(t, err)
	assert.Len(t, e.history(t), 1)
}

func TestApplyEdit_ReopenedChildReopensStory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	story := e.task(models.Task{Type: models.TypeUserStory, Status: models.StatusDone})
	e.task(models.Task{ParentTaskID: &story.ID, Status: models.StatusDone})
	child := e.task(models.Task{
		ParentTaskID:     &story.ID,
		Status:           models.StatusDone,
		AssigneeID:       &e.alice.ID,
		EstimationPoints: testutil.Ptr(2),
	})
	e.f.PullRequest(child.ID, true)

	_, err := e.svc.ApplyEdit(ctx, child.ID, e.alice.ID, TaskEdit{Status: status(models.StatusVerify)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, e.f.Reload(story.ID).Status)

	rows := e.history(t)
	require.Len(t, rows, 2)
	var derived *models.TaskChange
	for i := range rows {
		if rows[i].TaskID == story.ID {
			derived = &rows[i]
		}
	}
	require.NotNil(t, derived)
	assert.Equal(t, models.FieldStatus, derived.Field)
	assert.Equal(t, string(models.StatusDone), derived.OldValue)
	assert.Equal(t, string(models.StatusInProgress), derived.NewValue)
	require.NotNil(t, derived.CausedByTaskID)
	assert.Equal(t, child.ID, *derived.CausedByTaskID)

	require.Len(t, e.events.events, 2)
	assert.Equal(t, story.ID, e.events.events[1].TaskID)

	// finishing it again completes the story again
	_, err = e.svc.ApplyEdit(ctx, child.ID, e.alice.ID, TaskEdit{Status: status(models.StatusDone)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, e.f.Reload(story.ID).Status)
}

func TestApplyEdit_RejectsWholeEdit(t *testing.T) {
	e := newEnv(t)
	task := e.task(models.Task{Name: "Original", Status: models.StatusInProgress, AssigneeID: &e.alice.ID})

	_, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{
		Name:   testutil.Ptr("Renamed"),
		Status: status(models.StatusVerify),
	})
	require.Error(t, err)
	assert.Equal(t, errs.RuleVerifyNeedsPR, ruleOf(t, err))

	assert.Equal(t, "Original", e.f.Reload(task.ID).Name)
	assert.Empty(t, e.history(t))
	assert.Empty(t, e.events.events)
}

func TestApplyEdit_OneRowPerField(t *testing.T) {
	e := newEnv(t)
	task := e.task(models.Task{Status: models.StatusTodo, AssigneeID: &e.alice.ID})
	e.f.PullRequest(task.ID, false)

	updated, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{
		Name:             testutil.Ptr("Login form"),
		Description:      testutil.Ptr("Build it"),
		EstimationPoints: Some(testutil.Ptr(5)),
		Status:           status(models.StatusVerify),
		NewComment:       testutil.Ptr("ready for review"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Login form", updated.Name)
	require.NotNil(t, updated.EstimationPoints)
	assert.Equal(t, 5, *updated.EstimationPoints)

	rows := e.history(t)
	fields := make([]string, 0, len(rows))
	for _, r := range rows {
		fields = append(fields, r.Field)
		assert.True(t, r.CreatedAt.Equal(rows[0].CreatedAt))
	}
	assert.ElementsMatch(t, []string{
		models.FieldName, models.FieldDescription, models.FieldEstimationPoints, models.FieldStatus,
	}, fields)

	comments, err := e.svc.Comments(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "ready for review", comments[0].Body)
}

func TestApplyEdit_NoChangesWritesNothing(t *testing.T) {
	e := newEnv(t)
	task := e.task(models.Task{Name: "Same", AssigneeID: &e.alice.ID})

	_, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{Name: testutil.Ptr("Same")})
	require.NoError(t, err)
	assert.Empty(t, e.history(t))
	assert.Empty(t, e.events.events)
}

func TestApplyEdit_FrozenTaskDeniesStudent(t *testing.T) {
	e := newEnv(t)
	task := e.task(models.Task{AssigneeID: &e.alice.ID, Frozen: true})

	_, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{Name: testutil.Ptr("x")})
	require.Error(t, err)
	assert.True(t, errs.IsDenied(err))

	_, err = e.svc.ApplyEdit(context.Background(), task.ID, e.prof.ID, TaskEdit{Name: testutil.Ptr("x")})
	require.NoError(t, err)
}

func TestApplyEdit_RescueFromPastSprint(t *testing.T) {
	e := newEnv(t)
	past := e.f.PastSprint(e.project.ID)
	current := e.f.CurrentSprint(e.project.ID)
	task := e.task(models.Task{
		Status:        models.StatusInProgress,
		AssigneeID:    &e.alice.ID,
		ActiveSprints: []models.Sprint{*past},
	})

	_, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{Name: testutil.Ptr("x")})
	require.Error(t, err)
	assert.True(t, errs.IsDenied(err))

	updated, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{
		ActiveSprintIDs: &[]string{current.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{current.ID}, updated.SprintIDs())

	rows := e.history(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.FieldSprints, rows[0].Field)
	assert.Equal(t, past.ID, rows[0].OldValue)
	assert.Equal(t, current.ID, rows[0].NewValue)
}

func TestApplyEdit_DoneBlocksRescue(t *testing.T) {
	e := newEnv(t)
	past := e.f.PastSprint(e.project.ID)
	current := e.f.CurrentSprint(e.project.ID)
	task := e.task(models.Task{
		Status:        models.StatusDone,
		AssigneeID:    &e.alice.ID,
		ActiveSprints: []models.Sprint{*past},
	})

	_, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{
		ActiveSprintIDs: &[]string{current.ID},
	})
	require.Error(t, err)
	assert.True(t, errs.IsDenied(err))
}

func TestApplyEdit_DoneWhileLeavingClosedSprint(t *testing.T) {
	e := newEnv(t)
	past := e.f.PastSprint(e.project.ID)
	current := e.f.CurrentSprint(e.project.ID)
	task := e.task(models.Task{
		Status:           models.StatusVerify,
		AssigneeID:       &e.alice.ID,
		EstimationPoints: testutil.Ptr(2),
		ActiveSprints:    []models.Sprint{*past, *current},
	})
	e.f.PullRequest(task.ID, true)

	_, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{
		Status:          status(models.StatusDone),
		ActiveSprintIDs: &[]string{current.ID},
	})
	require.Error(t, err)
	assert.True(t, errs.IsDenied(err))

	_, err = e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{Status: status(models.StatusDone)})
	require.NoError(t, err)
}

func TestApplyEdit_SprintFromOtherProject(t *testing.T) {
	e := newEnv(t)
	other := e.f.Project(e.prof.ID, e.alice.ID)
	foreign := e.f.CurrentSprint(other.ID)
	task := e.task(models.Task{AssigneeID: &e.alice.ID})

	_, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{ActiveSprintIDs: &[]string{foreign.ID}})
	require.Error(t, err)
	assert.Equal(t, errs.RuleSprintProject, ruleOf(t, err))
}

func TestApplyEdit_TypeChanges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	task := e.task(models.Task{AssigneeID: &e.alice.ID, EstimationPoints: testutil.Ptr(3)})
	story := models.TypeUserStory
	bug := models.TypeBug

	updated, err := e.svc.ApplyEdit(ctx, task.ID, e.alice.ID, TaskEdit{Type: &story})
	require.NoError(t, err)
	assert.Equal(t, models.TypeUserStory, updated.Type)
	assert.Nil(t, updated.EstimationPoints)
	assert.Equal(t, models.StatusBacklog, updated.Status)
	fields := []string{}
	for _, r := range e.history(t) {
		fields = append(fields, r.Field)
	}
	assert.ElementsMatch(t, []string{models.FieldType, models.FieldEstimationPoints, models.FieldStatus}, fields)

	bugTask := e.task(models.Task{Type: models.TypeBug, AssigneeID: &e.alice.ID})
	task2 := models.TypeTask
	_, err = e.svc.ApplyEdit(ctx, bugTask.ID, e.admin.ID, TaskEdit{Type: &task2})
	assert.Equal(t, errs.RuleTypeLocked, ruleOf(t, err))

	parent := e.task(models.Task{Type: models.TypeUserStory, Status: models.StatusBacklog})
	sub := e.task(models.Task{ParentTaskID: &parent.ID, AssigneeID: &e.alice.ID})
	_, err = e.svc.ApplyEdit(ctx, sub.ID, e.alice.ID, TaskEdit{Type: &story})
	assert.Equal(t, errs.RuleSubtaskNotStory, ruleOf(t, err))

	_, err = e.svc.ApplyEdit(ctx, sub.ID, e.alice.ID, TaskEdit{Type: &bug})
	require.NoError(t, err)

	_, err = e.svc.ApplyEdit(ctx, parent.ID, e.admin.ID, TaskEdit{Type: &task2})
	assert.Equal(t, errs.RuleTypeLocked, ruleOf(t, err))
}

func TestApplyEdit_TaskWithPullRequestCannotBecomeStory(t *testing.T) {
	e := newEnv(t)
	task := e.task(models.Task{Status: models.StatusInProgress, AssigneeID: &e.alice.ID})
	e.f.PullRequest(task.ID, false)
	story := models.TypeUserStory

	_, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{Type: &story})
	require.Error(t, err)
	assert.Equal(t, errs.RuleStoryPullRequest, ruleOf(t, err))
	assert.Empty(t, e.history(t))
	assert.Empty(t, e.events.events)

	reloaded := e.f.Reload(task.ID)
	assert.Equal(t, models.TypeTask, reloaded.Type)
	assert.Equal(t, models.StatusInProgress, reloaded.Status)
}

func TestApplyEdit_BecomingStoryWithStatusIsRejected(t *testing.T) {
	e := newEnv(t)
	task := e.task(models.Task{Status: models.StatusInProgress, AssigneeID: &e.alice.ID})
	story := models.TypeUserStory

	_, err := e.svc.ApplyEdit(context.Background(), task.ID, e.alice.ID, TaskEdit{Type: &story, Status: status(models.StatusTodo)})
	assert.Equal(t, errs.RuleStoryStatusDerived, ruleOf(t, err))
	assert.Empty(t, e.history(t))
}

func TestApplyEdit_StoryEstimationAndStatusAreDerived(t *testing.T) {
	e := newEnv(t)
	story := e.task(models.Task{Type: models.TypeUserStory, Status: models.StatusBacklog})

	_, err := e.svc.ApplyEdit(context.Background(), story.ID, e.admin.ID, TaskEdit{EstimationPoints: Some(testutil.Ptr(8))})
	assert.Equal(t, errs.RuleStoryEstimation, ruleOf(t, err))

	_, err = e.svc.ApplyEdit(context.Background(), story.ID, e.admin.ID, TaskEdit{Status: status(models.StatusDone)})
	assert.Equal(t, errs.RuleStoryStatusDerived, ruleOf(t, err))
}

func TestApplyEdit_AssigneeRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	task := e.task(models.Task{})

	_, err := e.svc.ApplyEdit(ctx, task.ID, e.alice.ID, TaskEdit{AssigneeID: Some(&e.bob.ID)})
	require.Error(t, err)
	assert.True(t, errs.IsDenied(err), "students cannot assign others")

	_, err = e.svc.ApplyEdit(ctx, task.ID, e.prof.ID, TaskEdit{AssigneeID: Some(&e.outside.ID)})
	assert.Equal(t, errs.RuleAssigneeNotMember, ruleOf(t, err))

	updated, err := e.svc.ApplyEdit(ctx, task.ID, e.prof.ID, TaskEdit{AssigneeID: Some(&e.bob.ID)})
	require.NoError(t, err)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, e.bob.ID, *updated.AssigneeID)

	updated, err = e.svc.Unassign(ctx, task.ID, e.bob.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.AssigneeID)
}

func TestSelfAssign_SecondStudentFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	task := e.task(models.Task{})

	updated, err := e.svc.SelfAssign(ctx, task.ID, e.alice.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsAssignedTo(e.alice.ID))

	_, err = e.svc.SelfAssign(ctx, task.ID, e.bob.ID)
	require.Error(t, err)
	assert.Equal(t, errs.RuleAlreadyAssigned, ruleOf(t, err))
	assert.True(t, e.f.Reload(task.ID).IsAssignedTo(e.alice.ID))

	_, err = e.svc.SelfAssign(ctx, e.task(models.Task{}).ID, e.outside.ID)
	assert.True(t, errs.IsDenied(err))
}

func TestDeleteTask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	story := e.task(models.Task{Type: models.TypeUserStory, Status: models.StatusBacklog})
	child := e.task(models.Task{ParentTaskID: &story.ID, Status: models.StatusVerify, AssigneeID: &e.alice.ID})
	for _, caller := range []string{e.admin.ID, e.prof.ID, e.alice.ID} {
		err := e.svc.DeleteTask(ctx, story.ID, caller)
		assert.Equal(t, errs.RuleDeleteStoryChildren, ruleOf(t, err))
	}

	err := e.svc.DeleteTask(ctx, child.ID, e.alice.ID)
	assert.Equal(t, errs.RuleDeleteStatus, ruleOf(t, err))

	todo := e.task(models.Task{ParentTaskID: &story.ID, AssigneeID: &e.alice.ID})
	assert.True(t, errs.IsDenied(e.svc.DeleteTask(ctx, todo.ID, e.bob.ID)))
	require.NoError(t, e.svc.DeleteTask(ctx, todo.ID, e.alice.ID))
	_, err = e.svc.GetTask(ctx, todo.ID)
	assert.True(t, errs.IsNotFound(err))

	lonely := e.task(models.Task{Type: models.TypeUserStory, Status: models.StatusBacklog})
	require.NoError(t, e.svc.DeleteTask(ctx, lonely.ID, e.bob.ID))
}

func TestDeleteTask_DetachesSprintsAndOrphansChildren(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sp := e.f.CurrentSprint(e.project.ID)
	story := e.task(models.Task{Type: models.TypeUserStory, Status: models.StatusBacklog, ActiveSprints: []models.Sprint{*sp}})

	require.NoError(t, e.svc.DeleteTask(ctx, story.ID, e.admin.ID))

	var links int64
	require.NoError(t, e.f.DB.Table("task_sprints").Where("task_id = ?", story.ID).Count(&links).Error)
	assert.Zero(t, links)
}

func TestFreeze(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	task := e.task(models.Task{AssigneeID: &e.alice.ID})

	_, err := e.svc.Freeze(ctx, task.ID, e.alice.ID)
	assert.True(t, errs.IsDenied(err))

	updated, err := e.svc.Freeze(ctx, task.ID, e.prof.ID)
	require.NoError(t, err)
	assert.True(t, updated.Frozen)

	_, err = e.svc.Freeze(ctx, task.ID, e.prof.ID)
	assert.Equal(t, errs.RuleAlreadyFrozen, ruleOf(t, err))

	perms, err := e.svc.Permissions(ctx, task.ID, e.alice.ID)
	require.NoError(t, err)
	for c, ok := range perms {
		assert.False(t, ok, c.String())
	}

	updated, err = e.svc.Unfreeze(ctx, task.ID, e.admin.ID)
	require.NoError(t, err)
	assert.False(t, updated.Frozen)

	rows := e.history(t)
	require.Len(t, rows, 2)
	assert.Equal(t, models.FieldFrozen, rows[0].Field)
}

func TestCreateUserStoryAndSubtask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.CreateUserStory(ctx, e.project.ID, e.outside.ID, NewTask{Name: "Login"})
	assert.True(t, errs.IsDenied(err))

	_, err = e.svc.CreateUserStory(ctx, e.project.ID, e.alice.ID, NewTask{Name: "Login", EstimationPoints: testutil.Ptr(3)})
	assert.Equal(t, errs.RuleStoryEstimation, ruleOf(t, err))

	story, err := e.svc.CreateUserStory(ctx, e.project.ID, e.alice.ID, NewTask{Name: "Login"})
	require.NoError(t, err)
	assert.Equal(t, models.TypeUserStory, story.Type)
	assert.Equal(t, models.StatusBacklog, story.Status)
	assert.Equal(t, e.alice.ID, story.ReporterID)

	sub, err := e.svc.AddSubtask(ctx, story.ID, e.bob.ID, NewTask{Name: "Form", Type: models.TypeBug, AssigneeID: &e.bob.ID})
	require.NoError(t, err)
	assert.Equal(t, models.TypeBug, sub.Type)
	assert.Equal(t, models.StatusTodo, sub.Status)
	require.NotNil(t, sub.ParentTaskID)
	assert.Equal(t, story.ID, *sub.ParentTaskID)
	assert.True(t, sub.IsAssignedTo(e.bob.ID))

	_, err = e.svc.AddSubtask(ctx, sub.ID, e.bob.ID, NewTask{Name: "Nested"})
	assert.Equal(t, errs.RuleSubtaskParent, ruleOf(t, err))

	_, err = e.svc.AddSubtask(ctx, story.ID, e.bob.ID, NewTask{Name: "Story", Type: models.TypeUserStory})
	assert.Equal(t, errs.RuleSubtaskType, ruleOf(t, err))

	_, err = e.svc.AddSubtask(ctx, story.ID, e.bob.ID, NewTask{Name: "For alice", AssigneeID: &e.alice.ID})
	assert.True(t, errs.IsDenied(err))

	history, err := e.svc.TaskHistory(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestAddSubtask_ReopensFinishedStory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	story := e.task(models.Task{Type: models.TypeUserStory, Status: models.StatusDone})
	e.task(models.Task{ParentTaskID: &story.ID, Status: models.StatusDone})

	sub, err := e.svc.AddSubtask(ctx, story.ID, e.bob.ID, NewTask{Name: "Follow-up"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, e.f.Reload(story.ID).Status)

	history, err := e.svc.TaskHistory(ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.FieldStatus, history[0].Field)
	assert.Equal(t, string(models.StatusDone), history[0].OldValue)
	assert.Equal(t, string(models.StatusInProgress), history[0].NewValue)
	assert.Equal(t, e.bob.ID, history[0].AuthorID)
	require.NotNil(t, history[0].CausedByTaskID)
	assert.Equal(t, sub.ID, *history[0].CausedByTaskID)

	require.Len(t, e.events.events, 2)
	assert.Equal(t, realtime.TaskCreated, e.events.events[0].Type)
	assert.Equal(t, realtime.TaskUpdated, e.events.events[1].Type)
	assert.Equal(t, story.ID, e.events.events[1].TaskID)
}

func TestDenials_DoNotNameTheAllowedRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	task := e.task(models.Task{AssigneeID: &e.alice.ID})
	story := e.task(models.Task{Type: models.TypeUserStory, Status: models.StatusBacklog})
	start := e.f.Now

	_, freezeErr := e.svc.Freeze(ctx, task.ID, e.alice.ID)
	_, assignErr := e.svc.AddSubtask(ctx, story.ID, e.alice.ID, NewTask{Name: "For bob", AssigneeID: &e.bob.ID})
	_, sprintErr := e.svc.CreateSprint(ctx, e.project.ID, e.alice.ID, NewSprint{Name: "S1", StartDate: start, EndDate: start.AddDate(0, 0, 7)})

	for _, err := range []error{freezeErr, assignErr, sprintErr} {
		require.True(t, errs.IsDenied(err), "%v", err)
		msg := strings.ToLower(err.Error())
		assert.NotContains(t, msg, "manager")
		assert.NotContains(t, msg, "professor")
		assert.NotContains(t, msg, "admin")
	}
}

func TestAddComment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	task := e.task(models.Task{})

	_, err := e.svc.AddComment(ctx, task.ID, e.outside.ID, "hi")
	assert.True(t, errs.IsDenied(err))

	_, err = e.svc.AddComment(ctx, task.ID, e.bob.ID, "  ")
	var invalid *errs.InvalidInput
	assert.True(t, errors.As(err, &invalid))

	c, err := e.svc.AddComment(ctx, task.ID, e.bob.ID, "looks good")
	require.NoError(t, err)
	assert.Equal(t, e.bob.ID, c.AuthorID)
	require.Len(t, e.events.events, 1)
	assert.Equal(t, realtime.TaskCommented, e.events.events[0].Type)
}

func TestView(t *testing.T) {
	e := newEnv(t)
	future := e.f.FutureSprint(e.project.ID)
	task := e.task(models.Task{AssigneeID: &e.alice.ID, ActiveSprints: []models.Sprint{*future}})

	view, err := e.svc.View(context.Background(), task.ID, e.alice.ID)
	require.NoError(t, err)
	assert.True(t, view.InFutureSprintOnly)
	assert.False(t, view.InPastSprintOnly)
	assert.True(t, view.Permissions[access.EditStatus])
	assert.False(t, view.Permissions[access.Freeze])
}
