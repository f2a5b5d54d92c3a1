package models

import (
	"time"
)

// Audited field names
const (
	FieldName             = "name"
	FieldDescription      = "description"
	FieldType             = "type"
	FieldStatus           = "status"
	FieldEstimationPoints = "estimationPoints"
	FieldAssignee         = "assignee"
	FieldReporter         = "reporter"
	FieldRank             = "rank"
	FieldSprints          = "activeSprints"
	FieldFrozen           = "frozen"
	FieldParentTask       = "parentTask"
	FieldCreated          = "created"
	FieldPullRequest      = "pullRequest"

	FieldStartDate    = "startDate"
	FieldEndDate      = "endDate"
	FieldManualStatus = "manualStatus"
)

// TaskChange is an append-only audit row for one field of a task.
// CausedByTaskID is set when the change was derived from another task's edit.
type TaskChange struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	TaskID         string    `json:"taskId" gorm:"not null;index"`
	AuthorID       string    `json:"authorId" gorm:"not null"`
	Field          string    `json:"field" gorm:"not null"`
	OldValue       string    `json:"oldValue"`
	NewValue       string    `json:"newValue"`
	CausedByTaskID *string   `json:"causedByTaskId,omitempty"`
	CreatedAt      time.Time `json:"createdAt" gorm:"not null;index"`
}

// TableName specifies the table name for TaskChange Model
func (TaskChange) TableName() string {
	return "task_changes"
}

// SprintChange is an append-only audit row for one field of a sprint
type SprintChange struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	SprintID  string    `json:"sprintId" gorm:"not null;index"`
	AuthorID  string    `json:"authorId" gorm:"not null"`
	Field     string    `json:"field" gorm:"not null"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`
}

// TableName specifies the table name for SprintChange Model
func (SprintChange) TableName() string {
	return "sprint_changes"
}

// All returns every model for migrations
func All() []any {
	return []any{
		&User{},
		&RoleMembership{},
		&Subject{},
		&Course{},
		&Project{},
		&ProjectMember{},
		&Sprint{},
		&Task{},
		&PullRequest{},
		&Comment{},
		&TaskChange{},
		&SprintChange{},
	}
}
