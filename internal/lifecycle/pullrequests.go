package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"coursework-api/internal/access"
	"coursework-api/internal/errs"
	"coursework-api/internal/models"
	"coursework-api/internal/realtime"
	"coursework-api/internal/store"
)

// NewPullRequest links an external pull request to a task
type NewPullRequest struct {
	Number int    `json:"number" binding:"required"`
	URL    string `json:"url" binding:"required"`
	Merged bool   `json:"merged"`
}

func pullRequestValue(pr *models.PullRequest) string {
	state := "open"
	if pr.Merged {
		state = "merged"
	}
	return fmt.Sprintf("#%d %s", pr.Number, state)
}

// LinkPullRequest attaches a pull request to a task. User stories have no
// pull requests of their own.
func (s *Service) LinkPullRequest(ctx context.Context, taskID, callerID string, in NewPullRequest) (*models.PullRequest, error) {
	if in.Number <= 0 {
		return nil, errs.Invalid("number", "must be positive")
	}
	if strings.TrimSpace(in.URL) == "" {
		return nil, errs.Invalid("url", "must not be empty")
	}

	var (
		pr  *models.PullRequest
		evt realtime.Event
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		task, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := s.checker.WithDirectory(tx).Session(ctx, callerID).Evaluate(access.EditDetails, task); err != nil {
			return err
		}
		if task.Type == models.TypeUserStory {
			return errs.Violation(errs.RuleStoryPullRequest, "pull requests belong to the subtasks of a user story")
		}

		now := s.checker.Now()
		pr = &models.PullRequest{
			ID:        newID(),
			TaskID:    task.ID,
			Number:    in.Number,
			URL:       strings.TrimSpace(in.URL),
			Merged:    in.Merged,
			CreatedAt: now,
		}
		if err := tx.LinkPullRequest(ctx, pr); err != nil {
			return err
		}
		a := newAudit(callerID, now)
		a.taskChange(task.ID, models.FieldPullRequest, "", pullRequestValue(pr))
		if err := a.write(ctx, tx); err != nil {
			return err
		}
		evt = realtime.Event{
			Type:       realtime.TaskUpdated,
			ProjectID:  task.ProjectID,
			TaskID:     task.ID,
			UserID:     callerID,
			Fields:     a.fields(),
			OccurredAt: now,
		}
		return nil
	})
	if err != nil {
		s.rejected(ctx, "linkPullRequest", taskID, callerID, err)
		return nil, err
	}
	s.notify(ctx, evt)
	return pr, nil
}

// SetPullRequestMerged records that a linked pull request was merged or reopened
func (s *Service) SetPullRequestMerged(ctx context.Context, pullRequestID, callerID string, merged bool) (*models.PullRequest, error) {
	var (
		pr  *models.PullRequest
		evt realtime.Event
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		pr, err = tx.GetPullRequest(ctx, pullRequestID)
		if err != nil {
			return err
		}
		task, err := tx.LockTask(ctx, pr.TaskID)
		if err != nil {
			return err
		}
		if err := s.checker.WithDirectory(tx).Session(ctx, callerID).Evaluate(access.EditDetails, task); err != nil {
			return err
		}
		if pr.Merged == merged {
			return nil
		}

		before := pullRequestValue(pr)
		pr.Merged = merged
		if err := tx.SetPullRequestMerged(ctx, pr.ID, merged); err != nil {
			return err
		}
		now := s.checker.Now()
		a := newAudit(callerID, now)
		a.taskChange(task.ID, models.FieldPullRequest, before, pullRequestValue(pr))
		if err := a.write(ctx, tx); err != nil {
			return err
		}
		evt = realtime.Event{
			Type:       realtime.TaskUpdated,
			ProjectID:  task.ProjectID,
			TaskID:     task.ID,
			UserID:     callerID,
			Fields:     a.fields(),
			OccurredAt: now,
		}
		return nil
	})
	if err != nil {
		s.rejected(ctx, "setPullRequestMerged", pullRequestID, callerID, err)
		return nil, err
	}
	if evt.Type != "" {
		s.notify(ctx, evt)
	}
	return pr, nil
}
