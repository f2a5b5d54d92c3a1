package store

import (
	"context"
	"fmt"

	"coursework-api/internal/errs"
	"coursework-api/internal/models"
)

// GetSprint loads a sprint by ID
func (s *Store) GetSprint(ctx context.Context, id string) (*models.Sprint, error) {
	var sp models.Sprint
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sp).Error; err != nil {
		return nil, notFound(err, "sprint", id)
	}
	return &sp, nil
}

// SprintsByIDs loads sprints by ID. Unknown IDs are reported as NotFound.
func (s *Store) SprintsByIDs(ctx context.Context, ids []string) ([]models.Sprint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var sprints []models.Sprint
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&sprints).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sprints: %w", err)
	}
	found := make(map[string]bool, len(sprints))
	for _, sp := range sprints {
		found[sp.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, errs.NewNotFound("sprint", id)
		}
	}
	return sprints, nil
}

// ListSprints returns the sprints of a project by start date
func (s *Store) ListSprints(ctx context.Context, projectID string) ([]models.Sprint, error) {
	var sprints []models.Sprint
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("start_date asc").Find(&sprints).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sprints: %w", err)
	}
	return sprints, nil
}

// CreateSprint inserts a sprint
func (s *Store) CreateSprint(ctx context.Context, sp *models.Sprint) error {
	if err := s.db.WithContext(ctx).Create(sp).Error; err != nil {
		return fmt.Errorf("failed to create sprint: %w", err)
	}
	return nil
}

// UpdateSprintColumns writes the given columns of a sprint
func (s *Store) UpdateSprintColumns(ctx context.Context, id string, columns map[string]any) error {
	if len(columns) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Sprint{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return fmt.Errorf("failed to update sprint: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NewNotFound("sprint", id)
	}
	return nil
}

// AppendSprintChanges writes sprint audit rows
func (s *Store) AppendSprintChanges(ctx context.Context, changes []models.SprintChange) error {
	if len(changes) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&changes).Error; err != nil {
		return fmt.Errorf("failed to write sprint history: %w", err)
	}
	return nil
}

// SprintHistory returns the audit rows of a sprint, newest first
func (s *Store) SprintHistory(ctx context.Context, sprintID string) ([]models.SprintChange, error) {
	var rows []models.SprintChange
	if err := s.db.WithContext(ctx).Where("sprint_id = ?", sprintID).Order("created_at desc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sprint history: %w", err)
	}
	return rows, nil
}
