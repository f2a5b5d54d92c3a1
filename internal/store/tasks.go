package store

import (
	"context"
	"fmt"

	"coursework-api/internal/errs"
	"coursework-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withTaskGraph preloads everything the guards and the access matrix read
func withTaskGraph(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ActiveSprints").
		Preload("PullRequests").
		Preload("ChildTasks").
		Preload("ChildTasks.ActiveSprints").
		Preload("ParentTask").
		Preload("ParentTask.ChildTasks")
}

// GetTask loads a task with its sprints, pull requests, children and parent
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	if err := withTaskGraph(s.db.WithContext(ctx)).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err, "task", id)
	}
	return &t, nil
}

// LockTask loads a task like GetTask and, on databases that support it,
// holds a row lock until the surrounding transaction ends.
func (s *Store) LockTask(ctx context.Context, id string) (*models.Task, error) {
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t models.Task
	if err := withTaskGraph(db).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err, "task", id)
	}
	return &t, nil
}

// ListTasks returns the tasks of a project ordered by rank
func (s *Store) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Preload("ActiveSprints").
		Preload("PullRequests").
		Preload("ChildTasks").
		Where("project_id = ?", projectID).
		Order("rank asc, created_at asc").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask inserts a task row without touching associations
func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// UpdateTaskColumns writes the given columns of a task. Nil values clear the column.
func (s *Store) UpdateTaskColumns(ctx context.Context, id string, columns map[string]any) error {
	if len(columns) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return fmt.Errorf("failed to update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NewNotFound("task", id)
	}
	return nil
}

// ReplaceTaskSprints sets the sprint membership of a task
func (s *Store) ReplaceTaskSprints(ctx context.Context, t *models.Task, sprints []models.Sprint) error {
	assoc := s.db.WithContext(ctx).Model(t).Association("ActiveSprints")
	var err error
	if len(sprints) == 0 {
		err = assoc.Clear()
	} else {
		err = assoc.Replace(sprints)
	}
	if err != nil {
		return fmt.Errorf("failed to update task sprints: %w", err)
	}
	return nil
}

// DeleteTask removes a task, detaches its sprints and orphans its children.
// Audit rows are kept.
func (s *Store) DeleteTask(ctx context.Context, t *models.Task) error {
	db := s.db.WithContext(ctx)
	if err := db.Model(t).Association("ActiveSprints").Clear(); err != nil {
		return fmt.Errorf("failed to detach sprints: %w", err)
	}
	if err := db.Model(&models.Task{}).Where("parent_task_id = ?", t.ID).Update("parent_task_id", nil).Error; err != nil {
		return fmt.Errorf("failed to orphan subtasks: %w", err)
	}
	if err := db.Where("task_id = ?", t.ID).Delete(&models.PullRequest{}).Error; err != nil {
		return fmt.Errorf("failed to delete pull requests: %w", err)
	}
	if err := db.Where("task_id = ?", t.ID).Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}
	if err := db.Omit(clause.Associations).Delete(&models.Task{ID: t.ID}).Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// LinkPullRequest attaches a pull request to a task
func (s *Store) LinkPullRequest(ctx context.Context, pr *models.PullRequest) error {
	if err := s.db.WithContext(ctx).Create(pr).Error; err != nil {
		return fmt.Errorf("failed to link pull request: %w", err)
	}
	return nil
}

// GetPullRequest loads a pull request by ID
func (s *Store) GetPullRequest(ctx context.Context, id string) (*models.PullRequest, error) {
	var pr models.PullRequest
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&pr).Error; err != nil {
		return nil, notFound(err, "pull request", id)
	}
	return &pr, nil
}

// SetPullRequestMerged records the merge state of a pull request
func (s *Store) SetPullRequestMerged(ctx context.Context, id string, merged bool) error {
	if err := s.db.WithContext(ctx).Model(&models.PullRequest{}).Where("id = ?", id).Update("merged", merged).Error; err != nil {
		return fmt.Errorf("failed to update pull request: %w", err)
	}
	return nil
}

// CreateComment stores a comment
func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListComments returns the comments of a task, oldest first
func (s *Store) ListComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	var comments []models.Comment
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at asc").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}
	return comments, nil
}

// AppendTaskChanges writes audit rows. Rows are never updated afterwards.
func (s *Store) AppendTaskChanges(ctx context.Context, changes []models.TaskChange) error {
	if len(changes) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&changes).Error; err != nil {
		return fmt.Errorf("failed to write task history: %w", err)
	}
	return nil
}

// TaskHistory returns the audit rows of a task, newest first
func (s *Store) TaskHistory(ctx context.Context, taskID string) ([]models.TaskChange, error) {
	var rows []models.TaskChange
	err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at desc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch task history: %w", err)
	}
	return rows, nil
}
