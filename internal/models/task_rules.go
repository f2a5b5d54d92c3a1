package models

import (
	"coursework-api/internal/errs"
)

// Structural rules over a single task. They never look at who is asking.

// CanMoveToVerify reports whether the task has a pull request to review
func (t *Task) CanMoveToVerify() bool {
	return len(t.PullRequests) > 0
}

// CanMoveToDone reports whether the task is complete enough to be DONE
func (t *Task) CanMoveToDone() bool {
	return t.doneBlocker() == nil
}

// AllPullRequestsMerged is false when there are no pull requests
func (t *Task) AllPullRequestsMerged() bool {
	if len(t.PullRequests) == 0 {
		return false
	}
	for _, pr := range t.PullRequests {
		if !pr.Merged {
			return false
		}
	}
	return true
}

// AllChildrenDone is false when there are no children
func (t *Task) AllChildrenDone() bool {
	if len(t.ChildTasks) == 0 {
		return false
	}
	for i := range t.ChildTasks {
		if t.ChildTasks[i].Status != StatusDone {
			return false
		}
	}
	return true
}

// HasChildInSprint reports whether any child task is placed in a sprint
func (t *Task) HasChildInSprint() bool {
	for i := range t.ChildTasks {
		if len(t.ChildTasks[i].ActiveSprints) > 0 {
			return true
		}
	}
	return false
}

func (t *Task) doneBlocker() error {
	if t.Type == TypeUserStory {
		if !t.AllChildrenDone() {
			return errs.Violation(errs.RuleDoneNeedsChildren, "cannot move to DONE: not every subtask is DONE")
		}
		return nil
	}
	if len(t.PullRequests) == 0 {
		return errs.Violation(errs.RuleDoneNeedsPR, "cannot move to DONE: task has no pull request")
	}
	if !t.AllPullRequestsMerged() {
		return errs.Violation(errs.RuleDoneNeedsMerge, "cannot move to DONE: task has no merged pull request")
	}
	if t.EstimationPoints == nil || *t.EstimationPoints <= 0 {
		return errs.Violation(errs.RuleDoneNeedsEstimation, "cannot move to DONE: task is not estimated")
	}
	return nil
}

// CanEditStatus is false for user stories, whose status follows their subtasks
func (t *Task) CanEditStatus() bool {
	return t.Type != TypeUserStory
}

// CheckStatusChange validates moving the task to status to
func (t *Task) CheckStatusChange(to TaskStatus) error {
	if !t.CanEditStatus() {
		return errs.Violation(errs.RuleStoryStatusDerived, "cannot change status of a user story directly")
	}
	switch to {
	case StatusVerify:
		if !t.CanMoveToVerify() {
			return errs.Violation(errs.RuleVerifyNeedsPR, "cannot move to VERIFY: task has no pull request")
		}
	case StatusDone:
		return t.doneBlocker()
	}
	return nil
}

// CanChangeType reports whether the task type is editable at all
func (t *Task) CanChangeType() bool {
	return t.Type == TypeTask
}

// CheckTypeChange validates converting the task to type to
func (t *Task) CheckTypeChange(to TaskType) error {
	if t.Type == TypeUserStory && len(t.ChildTasks) > 0 {
		return errs.Violation(errs.RuleTypeLocked, "cannot change type of a user story with subtasks")
	}
	if !t.CanChangeType() {
		return errs.Violation(errs.RuleTypeLocked, "cannot change type of a %s", t.Type)
	}
	if to == TypeUserStory && t.ParentTaskID != nil {
		return errs.Violation(errs.RuleSubtaskNotStory, "a subtask cannot become a user story")
	}
	if to == TypeUserStory && len(t.PullRequests) > 0 {
		return errs.Violation(errs.RuleStoryPullRequest, "a task with pull requests cannot become a user story")
	}
	return nil
}

// CanEditEstimation is false for user stories, whose estimation is an aggregate
func (t *Task) CanEditEstimation() bool {
	return t.Type != TypeUserStory
}

// CheckEstimation validates setting the estimation to points
func (t *Task) CheckEstimation(points *int) error {
	if !t.CanEditEstimation() {
		return errs.Violation(errs.RuleStoryEstimation, "cannot estimate a user story directly")
	}
	if points != nil && *points <= 0 {
		return errs.Violation(errs.RuleEstimationPositive, "estimation must be greater than zero")
	}
	return nil
}

// CanDelete reports whether the task may be removed
func (t *Task) CanDelete() bool {
	return t.CheckDelete() == nil
}

// CheckDelete validates removing the task
func (t *Task) CheckDelete() error {
	if t.Type == TypeUserStory {
		if len(t.ChildTasks) > 0 {
			return errs.Violation(errs.RuleDeleteStoryChildren, "cannot delete a user story that has subtasks")
		}
		return nil
	}
	if t.Status != StatusTodo && t.Status != StatusInProgress {
		return errs.Violation(errs.RuleDeleteStatus, "cannot delete a task in status %s", t.Status)
	}
	return nil
}

// CheckSelfAssign validates taking an unassigned task
func (t *Task) CheckSelfAssign() error {
	if t.AssigneeID != nil {
		return errs.Violation(errs.RuleAlreadyAssigned, "task is already assigned")
	}
	return nil
}

// CheckUnassign validates clearing the assignee
func (t *Task) CheckUnassign() error {
	if t.AssigneeID == nil {
		return errs.Violation(errs.RuleNotAssigned, "task has no assignee")
	}
	return nil
}

// CheckAddSubtask validates creating a subtask of type typ under the task
func (t *Task) CheckAddSubtask(typ TaskType) error {
	if t.Type != TypeUserStory {
		return errs.Violation(errs.RuleSubtaskParent, "subtasks can only be added to a user story")
	}
	if typ != TypeTask && typ != TypeBug {
		return errs.Violation(errs.RuleSubtaskType, "a subtask must be a TASK or a BUG")
	}
	return nil
}
