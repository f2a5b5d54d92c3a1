package realtime

import (
	"context"
	"time"
)

// Event types pushed to clients
const (
	TaskCreated   = "task_created"
	TaskUpdated   = "task_updated"
	TaskDeleted   = "task_deleted"
	TaskCommented = "task_commented"
	SprintCreated = "sprint_created"
	SprintUpdated = "sprint_updated"
)

// Event describes a committed change. Recipients are the users whose
// connections should receive it and are not serialized.
type Event struct {
	Type       string    `json:"type"`
	ProjectID  string    `json:"projectId"`
	TaskID     string    `json:"taskId,omitempty"`
	SprintID   string    `json:"sprintId,omitempty"`
	UserID     string    `json:"userId"`
	Fields     []string  `json:"fields,omitempty"`
	Version    int       `json:"version"`
	OccurredAt time.Time `json:"occurredAt"`
	Recipients []string  `json:"-"`
}

// Publisher delivers events after the change is committed
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Discard drops every event
type Discard struct{}

// Publish implements Publisher
func (Discard) Publish(context.Context, Event) error { return nil }
