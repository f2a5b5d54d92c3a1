package models

import (
	"errors"
	"testing"

	"coursework-api/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func points(n int) *int { return &n }

func ruleOf(t *testing.T, err error) string {
	t.Helper()
	var v *errs.DomainRuleViolation
	require.True(t, errors.As(err, &v), "expected a rule violation, got %v", err)
	return v.Rule
}

func TestTask_CanMoveToVerify(t *testing.T) {
	task := Task{Type: TypeTask}
	assert.False(t, task.CanMoveToVerify())
	assert.Equal(t, errs.RuleVerifyNeedsPR, ruleOf(t, task.CheckStatusChange(StatusVerify)))

	task.PullRequests = []PullRequest{{Merged: false}}
	assert.True(t, task.CanMoveToVerify())
	assert.NoError(t, task.CheckStatusChange(StatusVerify))
}

func TestTask_CanMoveToDone(t *testing.T) {
	tests := []struct {
		name string
		task Task
		rule string
	}{
		{"no pull request", Task{Type: TypeTask, EstimationPoints: points(3)}, errs.RuleDoneNeedsPR},
		{"unmerged", Task{Type: TypeTask, EstimationPoints: points(3), PullRequests: []PullRequest{{Merged: true}, {Merged: false}}}, errs.RuleDoneNeedsMerge},
		{"no estimation", Task{Type: TypeBug, PullRequests: []PullRequest{{Merged: true}}}, errs.RuleDoneNeedsEstimation},
		{"zero estimation", Task{Type: TypeBug, EstimationPoints: points(0), PullRequests: []PullRequest{{Merged: true}}}, errs.RuleDoneNeedsEstimation},
		{"complete", Task{Type: TypeTask, EstimationPoints: points(1), PullRequests: []PullRequest{{Merged: true}}}, ""},
		{"story without children", Task{Type: TypeUserStory}, errs.RuleDoneNeedsChildren},
		{"story with open child", Task{Type: TypeUserStory, ChildTasks: []Task{{Status: StatusDone}, {Status: StatusVerify}}}, errs.RuleDoneNeedsChildren},
		{"story with finished children", Task{Type: TypeUserStory, ChildTasks: []Task{{Status: StatusDone}}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rule == "", tt.task.CanMoveToDone())
			if tt.rule != "" {
				assert.Equal(t, tt.rule, ruleOf(t, tt.task.doneBlocker()))
			}
		})
	}
}

func TestProperty_UnmergedPullRequestBlocksDone(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "prs")
		task := Task{
			Type:             rapid.SampledFrom([]TaskType{TypeTask, TypeBug}).Draw(t, "type"),
			EstimationPoints: points(rapid.IntRange(1, 13).Draw(t, "estimation")),
		}
		allMerged := true
		for i := 0; i < n; i++ {
			merged := rapid.Bool().Draw(t, "merged")
			allMerged = allMerged && merged
			task.PullRequests = append(task.PullRequests, PullRequest{Merged: merged})
		}
		if task.CanMoveToDone() != allMerged {
			t.Fatalf("CanMoveToDone=%v with allMerged=%v", task.CanMoveToDone(), allMerged)
		}
	})
}

func TestTask_CheckTypeChange(t *testing.T) {
	parent := "story-1"
	tests := []struct {
		name string
		task Task
		to   TaskType
		rule string
	}{
		{"task to bug", Task{Type: TypeTask}, TypeBug, ""},
		{"task to story", Task{Type: TypeTask}, TypeUserStory, ""},
		{"subtask to story", Task{Type: TypeTask, ParentTaskID: &parent}, TypeUserStory, errs.RuleSubtaskNotStory},
		{"task with pull request to story", Task{Type: TypeTask, PullRequests: []PullRequest{{}}}, TypeUserStory, errs.RuleStoryPullRequest},
		{"task with pull request to bug", Task{Type: TypeTask, PullRequests: []PullRequest{{}}}, TypeBug, ""},
		{"bug to task", Task{Type: TypeBug}, TypeTask, errs.RuleTypeLocked},
		{"story to task", Task{Type: TypeUserStory}, TypeTask, errs.RuleTypeLocked},
		{"story with children", Task{Type: TypeUserStory, ChildTasks: []Task{{}}}, TypeTask, errs.RuleTypeLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.CheckTypeChange(tt.to)
			if tt.rule == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.rule, ruleOf(t, err))
		})
	}
}

func TestTask_CheckDelete(t *testing.T) {
	for _, s := range []TaskStatus{StatusTodo, StatusInProgress} {
		assert.NoError(t, (&Task{Type: TypeTask, Status: s}).CheckDelete(), s)
	}
	for _, s := range []TaskStatus{StatusBacklog, StatusDefined, StatusVerify, StatusDone} {
		assert.Equal(t, errs.RuleDeleteStatus, ruleOf(t, (&Task{Type: TypeBug, Status: s}).CheckDelete()), s)
	}
	assert.NoError(t, (&Task{Type: TypeUserStory, Status: StatusDone}).CheckDelete())
	story := Task{Type: TypeUserStory, ChildTasks: []Task{{}}}
	assert.False(t, story.CanDelete())
	assert.Equal(t, errs.RuleDeleteStoryChildren, ruleOf(t, story.CheckDelete()))
}

func TestTask_Estimation(t *testing.T) {
	assert.NoError(t, (&Task{Type: TypeTask}).CheckEstimation(points(2)))
	assert.Equal(t, errs.RuleEstimationPositive, ruleOf(t, (&Task{Type: TypeTask}).CheckEstimation(points(-1))))
	assert.Equal(t, errs.RuleStoryEstimation, ruleOf(t, (&Task{Type: TypeUserStory}).CheckEstimation(nil)))
}

func TestTask_Assignment(t *testing.T) {
	user := "u-1"
	free := Task{}
	taken := Task{AssigneeID: &user}

	assert.NoError(t, free.CheckSelfAssign())
	assert.Equal(t, errs.RuleAlreadyAssigned, ruleOf(t, taken.CheckSelfAssign()))
	assert.NoError(t, taken.CheckUnassign())
	assert.Equal(t, errs.RuleNotAssigned, ruleOf(t, free.CheckUnassign()))
	assert.True(t, taken.IsAssignedTo(user))
	assert.False(t, free.IsAssignedTo(user))
}

func TestTask_CheckAddSubtask(t *testing.T) {
	story := Task{Type: TypeUserStory}
	assert.NoError(t, story.CheckAddSubtask(TypeTask))
	assert.NoError(t, story.CheckAddSubtask(TypeBug))
	assert.Equal(t, errs.RuleSubtaskType, ruleOf(t, story.CheckAddSubtask(TypeUserStory)))
	assert.Equal(t, errs.RuleSubtaskParent, ruleOf(t, (&Task{Type: TypeTask}).CheckAddSubtask(TypeTask)))
}

func TestTask_HasChildInSprint(t *testing.T) {
	story := Task{Type: TypeUserStory, ChildTasks: []Task{{}, {}}}
	assert.False(t, story.HasChildInSprint())
	story.ChildTasks[1].ActiveSprints = []Sprint{{ID: "s"}}
	assert.True(t, story.HasChildInSprint())
}
