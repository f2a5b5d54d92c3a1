package lifecycle

import (
	"bytes"
	"encoding/json"

	"coursework-api/internal/models"
)

// Optional distinguishes "not sent" from "sent as null" in a partial update
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a set Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// UnmarshalJSON marks the value as set, including an explicit null
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// TaskEdit is a partial update of a task. Nil pointers and unset Optionals
// leave the field untouched.
type TaskEdit struct {
	Name             *string            `json:"name"`
	Description      *string            `json:"description"`
	Type             *models.TaskType   `json:"type"`
	ReporterID       *string            `json:"reporterId"`
	AssigneeID       Optional[*string]  `json:"assigneeId"`
	EstimationPoints Optional[*int]     `json:"estimationPoints"`
	Status           *models.TaskStatus `json:"status"`
	Rank             *int               `json:"rank"`
	ActiveSprintIDs  *[]string          `json:"activeSprintIds"`
	NewComment       *string            `json:"newComment"`
}

// NewTask describes a user story or subtask to create
type NewTask struct {
	Name             string          `json:"name" binding:"required"`
	Description      string          `json:"description"`
	Type             models.TaskType `json:"type"`
	EstimationPoints *int            `json:"estimationPoints"`
	AssigneeID       *string         `json:"assigneeId"`
	Rank             int             `json:"rank"`
}
