package models

import (
	"time"
)

// TaskType represents the type of a task (user story, task, bug)
type TaskType string

const (
	TypeUserStory TaskType = "USER_STORY"
	TypeTask      TaskType = "TASK"
	TypeBug       TaskType = "BUG"
)

// Valid reports whether t is a known task type
func (t TaskType) Valid() bool {
	return t == TypeUserStory || t == TypeTask || t == TypeBug
}

// TaskStatus represents the status of a task
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "BACKLOG"
	StatusDefined    TaskStatus = "DEFINED"
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "INPROGRESS"
	StatusVerify     TaskStatus = "VERIFY"
	StatusDone       TaskStatus = "DONE"
)

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusDefined, StatusTodo, StatusInProgress, StatusVerify, StatusDone:
		return true
	}
	return false
}

// Task represents a work item of a project.
//
// Relations are referenced by ID. ActiveSprints, PullRequests, ChildTasks and
// ParentTask are only populated when the store preloads them.
type Task struct {
	ID               string     `json:"id" gorm:"primaryKey"`
	ProjectID        string     `json:"projectId" gorm:"not null;index"`
	Name             string     `json:"name" gorm:"not null"`
	Description      string     `json:"description"`
	Type             TaskType   `json:"type" gorm:"not null;default:'USER_STORY'"`
	Status           TaskStatus `json:"status" gorm:"not null;default:'BACKLOG'"`
	EstimationPoints *int       `json:"estimationPoints"`
	AssigneeID       *string    `json:"assigneeId" gorm:"index"`
	ReporterID       string     `json:"reporterId" gorm:"not null"`
	ParentTaskID     *string    `json:"parentTaskId" gorm:"index"`
	Frozen           bool       `json:"frozen" gorm:"not null;default:false"`
	Rank             int        `json:"rank"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`

	ParentTask    *Task         `json:"-" gorm:"foreignKey:ParentTaskID"`
	ChildTasks    []Task        `json:"childTasks,omitempty" gorm:"foreignKey:ParentTaskID"`
	ActiveSprints []Sprint      `json:"activeSprints,omitempty" gorm:"many2many:task_sprints;"`
	PullRequests  []PullRequest `json:"pullRequests,omitempty" gorm:"foreignKey:TaskID"`
}

// TableName specifies the table name for Task Model
func (Task) TableName() string {
	return "tasks"
}

// IsAssignedTo reports whether userID is the current assignee
func (t *Task) IsAssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// SprintIDs returns the IDs of the sprints the task belongs to
func (t *Task) SprintIDs() []string {
	ids := make([]string, 0, len(t.ActiveSprints))
	for _, s := range t.ActiveSprints {
		ids = append(ids, s.ID)
	}
	return ids
}

// PullRequest is an external pull request linked to a task
type PullRequest struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	TaskID    string    `json:"taskId" gorm:"not null;index"`
	Number    int       `json:"number"`
	URL       string    `json:"url"`
	Merged    bool      `json:"merged" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for PullRequest Model
func (PullRequest) TableName() string {
	return "pull_requests"
}

// Comment is a discussion entry on a task
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	TaskID    string    `json:"taskId" gorm:"not null;index"`
	AuthorID  string    `json:"authorId" gorm:"not null"`
	Body      string    `json:"body" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Comment Model
func (Comment) TableName() string {
	return "comments"
}
