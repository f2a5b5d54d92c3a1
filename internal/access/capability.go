// Package access decides whether a user may perform a given action on a task.
//
// The decision is split in two: Authorize looks only at the caller (role,
// relationship to the task, freeze and sprint-time locks) and Legal looks only
// at the task. Can combines both and is what presentation code should call.
package access

import (
	"fmt"
)

// Capability is a mutating action on a task
type Capability int

const (
	EditStatus Capability = iota
	EditSprint
	EditType
	EditEstimation
	Delete
	SelfAssign
	Unassign
	AddSubtask
	Freeze
	Comment
	EditDetails
	EditAssignee
	EditReporter
)

var capabilityNames = [...]string{
	EditStatus:     "editStatus",
	EditSprint:     "editSprint",
	EditType:       "editType",
	EditEstimation: "editEstimation",
	Delete:         "delete",
	SelfAssign:     "selfAssign",
	Unassign:       "unassign",
	AddSubtask:     "addSubtask",
	Freeze:         "freeze",
	Comment:        "comment",
	EditDetails:    "editDetails",
	EditAssignee:   "editAssignee",
	EditReporter:   "editReporter",
}

func (c Capability) String() string {
	if c < 0 || int(c) >= len(capabilityNames) {
		return fmt.Sprintf("Capability(%d)", int(c))
	}
	return capabilityNames[c]
}

// MarshalText renders the capability by name, so maps keyed by it encode cleanly
func (c Capability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// AllCapabilities lists every capability in declaration order
func AllCapabilities() []Capability {
	all := make([]Capability, 0, len(capabilityNames))
	for i := range capabilityNames {
		all = append(all, Capability(i))
	}
	return all
}

// Permissions is the full yes/no answer for one caller and one task
type Permissions map[Capability]bool

// pastSprintLocked lists capabilities a student loses once the task only
// belongs to closed sprints. EditSprint is handled separately.
func pastSprintLocked(c Capability) bool {
	switch c {
	case EditStatus, EditType, EditEstimation, Delete, Unassign, SelfAssign, EditDetails:
		return true
	}
	return false
}

// managerOnly lists capabilities never granted to students
func managerOnly(c Capability) bool {
	switch c {
	case Freeze, EditAssignee, EditReporter:
		return true
	}
	return false
}
