package lifecycle

import (
	"context"
	"log/slog"
	"strings"

	"coursework-api/internal/access"
	"coursework-api/internal/errs"
	"coursework-api/internal/models"
	"coursework-api/internal/realtime"
	"coursework-api/internal/store"
)

// TaskView is a task as seen by one caller
type TaskView struct {
	*models.Task
	Permissions        access.Permissions `json:"permissions"`
	InPastSprintOnly   bool               `json:"inPastSprintOnly"`
	InFutureSprintOnly bool               `json:"inFutureSprintOnly"`
}

// GetTask loads a task with its relations
func (s *Service) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return s.store.GetTask(ctx, taskID)
}

// View loads a task together with what callerID may do with it
func (s *Service) View(ctx context.Context, taskID, callerID string) (*TaskView, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	perms, err := s.checker.Permissions(ctx, task, callerID)
	if err != nil {
		return nil, err
	}
	now := s.checker.Now()
	return &TaskView{
		Task:               task,
		Permissions:        perms,
		InPastSprintOnly:   task.InPastSprintOnly(now),
		InFutureSprintOnly: task.InFutureSprintOnly(now),
	}, nil
}

// Permissions answers every capability of callerID on a task
func (s *Service) Permissions(ctx context.Context, taskID, callerID string) (access.Permissions, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.checker.Permissions(ctx, task, callerID)
}

// ListTasks returns the tasks of a project by rank
func (s *Service) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, projectID)
}

// TaskHistory returns the audit trail of a task, newest first
func (s *Service) TaskHistory(ctx context.Context, taskID string) ([]models.TaskChange, error) {
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.TaskHistory(ctx, taskID)
}

// Comments returns the comments of a task, oldest first
func (s *Service) Comments(ctx context.Context, taskID string) ([]models.Comment, error) {
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, taskID)
}

// SelfAssign makes callerID the assignee of an unassigned task
func (s *Service) SelfAssign(ctx context.Context, taskID, callerID string) (*models.Task, error) {
	id := callerID
	return s.ApplyEdit(ctx, taskID, callerID, TaskEdit{AssigneeID: Some(&id)})
}

// Unassign clears the assignee of a task
func (s *Service) Unassign(ctx context.Context, taskID, callerID string) (*models.Task, error) {
	return s.ApplyEdit(ctx, taskID, callerID, TaskEdit{AssigneeID: Some[*string](nil)})
}

// AddComment posts a comment on a task
func (s *Service) AddComment(ctx context.Context, taskID, callerID, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errs.Invalid("body", "must not be empty")
	}

	var (
		comment *models.Comment
		evt     realtime.Event
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := s.checker.WithDirectory(tx).Session(ctx, callerID).Evaluate(access.Comment, task); err != nil {
			return err
		}
		now := s.checker.Now()
		comment = &models.Comment{ID: newID(), TaskID: task.ID, AuthorID: callerID, Body: body, CreatedAt: now}
		if err := tx.CreateComment(ctx, comment); err != nil {
			return err
		}
		evt = realtime.Event{
			Type:       realtime.TaskCommented,
			ProjectID:  task.ProjectID,
			TaskID:     task.ID,
			UserID:     callerID,
			OccurredAt: now,
		}
		return nil
	})
	if err != nil {
		s.rejected(ctx, "addComment", taskID, callerID, err)
		return nil, err
	}
	s.notify(ctx, evt)
	return comment, nil
}

// DeleteTask removes a task. Its sprint memberships are detached and its
// subtasks become top-level tasks.
func (s *Service) DeleteTask(ctx context.Context, taskID, callerID string) error {
	var evt realtime.Event
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		task, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := s.checker.WithDirectory(tx).Session(ctx, callerID).Evaluate(access.Delete, task); err != nil {
			return err
		}
		if err := tx.DeleteTask(ctx, task); err != nil {
			return err
		}
		evt = realtime.Event{
			Type:       realtime.TaskDeleted,
			ProjectID:  task.ProjectID,
			TaskID:     task.ID,
			UserID:     callerID,
			OccurredAt: s.checker.Now(),
		}
		return nil
	})
	if err != nil {
		s.rejected(ctx, "deleteTask", taskID, callerID, err)
		return err
	}
	s.notify(ctx, evt)
	s.logger.InfoContext(ctx, "task deleted",
		slog.String("task_id", taskID),
		slog.String("caller_id", callerID),
	)
	return nil
}

// Freeze locks a task against student edits
func (s *Service) Freeze(ctx context.Context, taskID, callerID string) (*models.Task, error) {
	return s.setFrozen(ctx, taskID, callerID, true)
}

// Unfreeze lifts a freeze
func (s *Service) Unfreeze(ctx context.Context, taskID, callerID string) (*models.Task, error) {
	return s.setFrozen(ctx, taskID, callerID, false)
}

func (s *Service) setFrozen(ctx context.Context, taskID, callerID string, frozen bool) (*models.Task, error) {
	var (
		updated *models.Task
		evt     realtime.Event
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		task, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := s.checker.WithDirectory(tx).Session(ctx, callerID).Evaluate(access.Freeze, task); err != nil {
			return err
		}
		if task.Frozen == frozen {
			if frozen {
				return errs.Violation(errs.RuleAlreadyFrozen, "task is already frozen")
			}
			return errs.Violation(errs.RuleNotFrozen, "task is not frozen")
		}

		now := s.checker.Now()
		if err := tx.UpdateTaskColumns(ctx, task.ID, map[string]any{"frozen": frozen}); err != nil {
			return err
		}
		a := newAudit(callerID, now)
		a.taskChange(task.ID, models.FieldFrozen, boolValue(task.Frozen), boolValue(frozen))
		if err := a.write(ctx, tx); err != nil {
			return err
		}
		if updated, err = tx.GetTask(ctx, task.ID); err != nil {
			return err
		}
		evt = realtime.Event{
			Type:       realtime.TaskUpdated,
			ProjectID:  task.ProjectID,
			TaskID:     task.ID,
			UserID:     callerID,
			Fields:     []string{models.FieldFrozen},
			OccurredAt: now,
		}
		return nil
	})
	if err != nil {
		s.rejected(ctx, "setFrozen", taskID, callerID, err)
		return nil, err
	}
	s.notify(ctx, evt)
	s.logger.InfoContext(ctx, "task freeze changed",
		slog.String("task_id", taskID),
		slog.String("caller_id", callerID),
		slog.Bool("frozen", frozen),
	)
	return updated, nil
}

func boolValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// CreateUserStory adds a top-level user story to a project. Project members
// and course managers may create one.
func (s *Service) CreateUserStory(ctx context.Context, projectID, callerID string, in NewTask) (*models.Task, error) {
	if in.Type != "" && in.Type != models.TypeUserStory {
		return nil, errs.Invalid("type", "a top-level task must be a USER_STORY")
	}
	if in.EstimationPoints != nil {
		return nil, errs.Violation(errs.RuleStoryEstimation, "cannot estimate a user story directly")
	}

	task := &models.Task{
		ProjectID:   projectID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Type:        models.TypeUserStory,
		Status:      models.StatusBacklog,
		ReporterID:  callerID,
		Rank:        in.Rank,
	}
	created, err := s.create(ctx, task, callerID, in.AssigneeID, func(tx *store.Store, session *access.Session) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		caller, err := session.Caller(task)
		if err != nil {
			return err
		}
		if !caller.IsProjectMember && !caller.Privileged() {
			return errs.Denied("createUserStory", "not a member of the project")
		}
		return nil
	})
	if err != nil {
		s.rejected(ctx, "createUserStory", projectID, callerID, err)
		return nil, err
	}
	return created, nil
}

// AddSubtask creates a TASK or BUG under a user story
func (s *Service) AddSubtask(ctx context.Context, parentID, callerID string, in NewTask) (*models.Task, error) {
	typ := in.Type
	if typ == "" {
		typ = models.TypeTask
	}
	if !typ.Valid() {
		return nil, errs.Invalid("type", "unknown task type")
	}
	if in.EstimationPoints != nil && *in.EstimationPoints <= 0 {
		return nil, errs.Violation(errs.RuleEstimationPositive, "estimation must be greater than zero")
	}

	task := &models.Task{
		Name:             strings.TrimSpace(in.Name),
		Description:      in.Description,
		Type:             typ,
		Status:           models.StatusTodo,
		EstimationPoints: in.EstimationPoints,
		ReporterID:       callerID,
		ParentTaskID:     &parentID,
		Rank:             in.Rank,
	}
	created, err := s.create(ctx, task, callerID, in.AssigneeID, func(tx *store.Store, session *access.Session) error {
		parent, err := tx.LockTask(ctx, parentID)
		if err != nil {
			return err
		}
		if err := session.Evaluate(access.AddSubtask, parent); err != nil {
			return err
		}
		if err := parent.CheckAddSubtask(typ); err != nil {
			return err
		}
		task.ProjectID = parent.ProjectID
		return nil
	})
	if err != nil {
		s.rejected(ctx, "addSubtask", parentID, callerID, err)
		return nil, err
	}
	return created, nil
}

// create runs the shared part of task creation: the caller-specific check,
// the optional initial assignee, the insert and the creation audit row. A
// DONE parent story is reopened in the same transaction.
func (s *Service) create(
	ctx context.Context,
	task *models.Task,
	callerID string,
	assigneeID *string,
	check func(tx *store.Store, session *access.Session) error,
) (*models.Task, error) {
	if task.Name == "" {
		return nil, errs.Invalid("name", "must not be empty")
	}

	var created, reopened *models.Task
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		session := s.checker.WithDirectory(tx).Session(ctx, callerID)
		if err := check(tx, session); err != nil {
			return err
		}

		if assigneeID != nil {
			if *assigneeID != callerID {
				manager, err := session.IsManager(task.ProjectID)
				if err != nil {
					return err
				}
				if !manager {
					return errs.Denied(access.EditAssignee.String(), "not permitted on this task")
				}
			}
			ok, err := tx.IsProjectMember(ctx, task.ProjectID, *assigneeID)
			if err != nil {
				return err
			}
			if !ok {
				return errs.Violation(errs.RuleAssigneeNotMember, "the assignee must be a member of the project")
			}
			task.AssigneeID = assigneeID
		}

		now := s.checker.Now()
		task.ID = newID()
		task.CreatedAt = now
		task.UpdatedAt = now
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		a := newAudit(callerID, now)
		a.taskChange(task.ID, models.FieldCreated, "", string(task.Type))
		if task.ParentTaskID != nil {
			a.taskChange(task.ID, models.FieldParentTask, "", *task.ParentTaskID)
			parent, err := tx.GetTask(ctx, *task.ParentTaskID)
			if err != nil {
				return err
			}
			// a finished story with a new open subtask is in progress again
			if parent.Type == models.TypeUserStory && parent.Status == models.StatusDone {
				if err := deriveStoryStatus(ctx, tx, a, parent, task.ID, models.StatusInProgress); err != nil {
					return err
				}
				reopened = parent
			}
		}
		if err := a.write(ctx, tx); err != nil {
			return err
		}
		var err error
		created, err = tx.GetTask(ctx, task.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, realtime.Event{
		Type:       realtime.TaskCreated,
		ProjectID:  created.ProjectID,
		TaskID:     created.ID,
		UserID:     callerID,
		OccurredAt: created.CreatedAt,
	})
	if reopened != nil {
		s.notify(ctx, realtime.Event{
			Type:       realtime.TaskUpdated,
			ProjectID:  reopened.ProjectID,
			TaskID:     reopened.ID,
			UserID:     callerID,
			Fields:     []string{models.FieldStatus},
			OccurredAt: created.CreatedAt,
		})
	}
	s.logger.InfoContext(ctx, "task created",
		slog.String("task_id", created.ID),
		slog.String("type", string(created.Type)),
		slog.String("caller_id", callerID),
	)
	return created, nil
}
