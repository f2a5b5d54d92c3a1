// Package store persists the coursework model with gorm.
package store

import (
	"context"
	"errors"
	"fmt"

	"coursework-api/internal/errs"
	"coursework-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps a gorm handle. Inside Transaction the handle is the transaction.
type Store struct {
	db *gorm.DB
}

// New creates a Store on db
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn in a single database transaction.
// Returning an error from fn rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func notFound(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NewNotFound(resource, id)
	}
	return fmt.Errorf("failed to fetch %s: %w", resource, err)
}

// RolesOf implements access.Directory
func (s *Store) RolesOf(ctx context.Context, userID string) ([]models.Role, error) {
	var rows []models.RoleMembership
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	roles := make([]models.Role, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, r.Role)
	}
	return roles, nil
}

// IsProjectMember implements access.Directory
func (s *Store) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// CourseOwnerOf implements access.Directory.
// An unknown project resolves to no owner.
func (s *Store) CourseOwnerOf(ctx context.Context, projectID string) (string, error) {
	var owner string
	err := s.db.WithContext(ctx).
		Table("projects").
		Select("subjects.owner_id").
		Joins("JOIN courses ON courses.id = projects.course_id").
		Joins("JOIN subjects ON subjects.id = courses.subject_id").
		Where("projects.id = ?", projectID).
		Limit(1).
		Scan(&owner).Error
	if err != nil {
		return "", fmt.Errorf("failed to resolve course owner: %w", err)
	}
	return owner, nil
}

// ProjectMemberIDs returns the user IDs of a project team
func (s *Store) ProjectMemberIDs(ctx context.Context, projectID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ?", projectID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project members: %w", err)
	}
	return ids, nil
}

// GetProject loads a project by ID
func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err, "project", id)
	}
	return &p, nil
}

// GetUserByUsername loads a user with roles by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Preload("Roles").Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, "user", username)
	}
	return &u, nil
}

// ListUsers returns every user with roles
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Preload("Roles").Order("username asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	return users, nil
}

// Upsert inserts or replaces any model row by primary key
func (s *Store) Upsert(ctx context.Context, value any) error {
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(value).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %T: %w", value, err)
	}
	return nil
}
