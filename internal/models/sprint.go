package models

import (
	"time"
)

// SprintStatus represents the lifecycle state of a sprint
type SprintStatus string

const (
	SprintDraft  SprintStatus = "DRAFT"
	SprintActive SprintStatus = "ACTIVE"
	SprintClosed SprintStatus = "CLOSED"
)

// Sprint is a time box of a project.
//
// ManualStatus only ever holds an override (CLOSED) or nothing. Everything else
// reads EffectiveStatus.
type Sprint struct {
	ID           string       `json:"id" gorm:"primaryKey"`
	ProjectID    string       `json:"projectId" gorm:"not null;index"`
	Name         string       `json:"name" gorm:"not null"`
	StartDate    time.Time    `json:"startDate" gorm:"not null"`
	EndDate      time.Time    `json:"endDate" gorm:"not null"`
	ManualStatus SprintStatus `json:"manualStatus,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// TableName specifies the table name for Sprint Model
func (Sprint) TableName() string {
	return "sprints"
}

// EffectiveStatus resolves the sprint state at now.
// A manual close wins over any date arithmetic.
func (s *Sprint) EffectiveStatus(now time.Time) SprintStatus {
	if s.ManualStatus == SprintClosed {
		return SprintClosed
	}
	if now.Before(s.StartDate) {
		return SprintDraft
	}
	if now.After(s.EndDate) {
		return SprintClosed
	}
	return SprintActive
}

// ValidRange reports whether the end date is strictly after the start date
func (s *Sprint) ValidRange() bool {
	return s.EndDate.After(s.StartDate)
}

// InPastSprintOnly reports whether every sprint of the task is closed at now.
// User stories and tasks without sprints are never past-only.
func (t *Task) InPastSprintOnly(now time.Time) bool {
	return t.allSprints(now, SprintClosed)
}

// InFutureSprintOnly reports whether every sprint of the task is still a draft at now.
// User stories and tasks without sprints are never future-only.
func (t *Task) InFutureSprintOnly(now time.Time) bool {
	return t.allSprints(now, SprintDraft)
}

func (t *Task) allSprints(now time.Time, status SprintStatus) bool {
	if t.Type == TypeUserStory || len(t.ActiveSprints) == 0 {
		return false
	}
	for i := range t.ActiveSprints {
		if t.ActiveSprints[i].EffectiveStatus(now) != status {
			return false
		}
	}
	return true
}
