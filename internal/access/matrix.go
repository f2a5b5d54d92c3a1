package access

import (
	"slices"
	"time"

	"coursework-api/internal/errs"
	"coursework-api/internal/models"
)

// CallerContext is everything about the caller the matrix needs for one task.
// It is computed once per request and never cached across requests.
type CallerContext struct {
	UserID          string
	Roles           []models.Role
	IsAssignee      bool
	IsReporter      bool
	IsProjectMember bool
	IsCourseOwner   bool
}

// HasRole reports whether the caller holds role
func (c CallerContext) HasRole(role models.Role) bool {
	return slices.Contains(c.Roles, role)
}

// Privileged is true for admins and for the professor owning the task's subject.
// Privileged callers bypass the frozen and sprint-time locks.
func (c CallerContext) Privileged() bool {
	if c.HasRole(models.RoleAdmin) {
		return true
	}
	return c.HasRole(models.RoleProfessor) && c.IsCourseOwner
}

// Can reports whether the caller may perform capability on the task at now
func Can(capability Capability, task *models.Task, caller CallerContext, now time.Time) bool {
	return Authorize(capability, task, caller, now) == nil && Legal(capability, task) == nil
}

// Authorize checks the caller side of the matrix and returns an
// *errs.AuthorizationDenied when the caller is not allowed.
func Authorize(capability Capability, task *models.Task, caller CallerContext, now time.Time) error {
	if caller.Privileged() {
		return nil
	}
	name := capability.String()

	if managerOnly(capability) {
		return errs.Denied(name, "not permitted on this task")
	}
	if task.Frozen {
		return errs.Denied(name, "task is frozen")
	}

	pastOnly := task.InPastSprintOnly(now)
	if pastOnly && pastSprintLocked(capability) {
		return errs.Denied(name, "task belongs only to closed sprints")
	}

	switch capability {
	case EditStatus, EditType, EditEstimation, Unassign:
		if !caller.IsAssignee {
			return errs.Denied(name, "only the assignee may do this")
		}
	case SelfAssign, AddSubtask, Comment, EditDetails:
		if !caller.IsProjectMember {
			return errs.Denied(name, "not a member of the project")
		}
	case EditSprint:
		if !caller.IsProjectMember {
			return errs.Denied(name, "not a member of the project")
		}
		if pastOnly && task.Status == models.StatusDone {
			return errs.Denied(name, "task is done and belongs only to closed sprints")
		}
		if task.Type == models.TypeUserStory && task.HasChildInSprint() {
			return errs.Denied(name, "subtasks already decide the sprints of this user story")
		}
	case Delete:
		if task.Type == models.TypeUserStory {
			if !caller.IsProjectMember {
				return errs.Denied(name, "not a member of the project")
			}
		} else if !caller.IsAssignee {
			return errs.Denied(name, "only the assignee may do this")
		}
	}
	return nil
}

// Legal checks the task side of the matrix and returns an
// *errs.DomainRuleViolation when nobody could perform the capability.
func Legal(capability Capability, task *models.Task) error {
	switch capability {
	case EditStatus:
		if !task.CanEditStatus() {
			return errs.Violation(errs.RuleStoryStatusDerived, "cannot change status of a user story directly")
		}
	case EditType:
		if task.Type == models.TypeUserStory && len(task.ChildTasks) > 0 {
			return errs.Violation(errs.RuleTypeLocked, "cannot change type of a user story with subtasks")
		}
		if !task.CanChangeType() {
			return errs.Violation(errs.RuleTypeLocked, "cannot change type of a %s", task.Type)
		}
	case EditEstimation:
		return task.CheckEstimation(nil)
	case Delete:
		return task.CheckDelete()
	case SelfAssign:
		return task.CheckSelfAssign()
	case Unassign:
		return task.CheckUnassign()
	case AddSubtask:
		return task.CheckAddSubtask(models.TypeTask)
	}
	return nil
}

// Evaluate returns the first failure for capability, authorization first
func Evaluate(capability Capability, task *models.Task, caller CallerContext, now time.Time) error {
	if err := Authorize(capability, task, caller, now); err != nil {
		return err
	}
	return Legal(capability, task)
}

// All answers every capability for the caller
func All(task *models.Task, caller CallerContext, now time.Time) Permissions {
	perms := make(Permissions, len(capabilityNames))
	for _, c := range AllCapabilities() {
		perms[c] = Can(c, task, caller, now)
	}
	return perms
}
