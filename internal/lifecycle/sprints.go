package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"coursework-api/internal/access"
	"coursework-api/internal/errs"
	"coursework-api/internal/models"
	"coursework-api/internal/realtime"
	"coursework-api/internal/store"
)

const manageSprint = "manageSprint"

// SprintView is a sprint with its status resolved at read time
type SprintView struct {
	*models.Sprint
	Status models.SprintStatus `json:"status"`
}

// NewSprint describes a sprint to create
type NewSprint struct {
	Name      string    `json:"name" binding:"required"`
	StartDate time.Time `json:"startDate" binding:"required"`
	EndDate   time.Time `json:"endDate" binding:"required"`
}

// SprintEdit is a partial update of a sprint. Status only accepts CLOSED.
type SprintEdit struct {
	Name      *string              `json:"name"`
	StartDate *time.Time           `json:"startDate"`
	EndDate   *time.Time           `json:"endDate"`
	Status    *models.SprintStatus `json:"status"`
}

func (s *Service) view(sp *models.Sprint) *SprintView {
	return &SprintView{Sprint: sp, Status: sp.EffectiveStatus(s.checker.Now())}
}

// GetSprint loads a sprint with its effective status
func (s *Service) GetSprint(ctx context.Context, sprintID string) (*SprintView, error) {
	sp, err := s.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	return s.view(sp), nil
}

// ListSprints returns the sprints of a project with their effective status
func (s *Service) ListSprints(ctx context.Context, projectID string) ([]*SprintView, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	sprints, err := s.store.ListSprints(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]*SprintView, 0, len(sprints))
	for i := range sprints {
		out = append(out, s.view(&sprints[i]))
	}
	return out, nil
}

// SprintHistory returns the audit trail of a sprint, newest first
func (s *Service) SprintHistory(ctx context.Context, sprintID string) ([]models.SprintChange, error) {
	if _, err := s.store.GetSprint(ctx, sprintID); err != nil {
		return nil, err
	}
	return s.store.SprintHistory(ctx, sprintID)
}

func requireManager(session *access.Session, projectID string) error {
	ok, err := session.IsManager(projectID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Denied(manageSprint, "not permitted on this project")
	}
	return nil
}

// CreateSprint adds a sprint to a project. Only course managers may.
func (s *Service) CreateSprint(ctx context.Context, projectID, callerID string, in NewSprint) (*SprintView, error) {
	sp := &models.Sprint{
		ProjectID: projectID,
		Name:      strings.TrimSpace(in.Name),
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
	}
	if sp.Name == "" {
		return nil, errs.Invalid("name", "must not be empty")
	}
	if !sp.ValidRange() {
		return nil, errs.Violation(errs.RuleSprintRange, "sprint must end after it starts")
	}

	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		if err := requireManager(s.checker.WithDirectory(tx).Session(ctx, callerID), projectID); err != nil {
			return err
		}
		now := s.checker.Now()
		sp.ID = newID()
		sp.CreatedAt = now
		sp.UpdatedAt = now
		if err := tx.CreateSprint(ctx, sp); err != nil {
			return err
		}
		a := newAudit(callerID, now)
		a.sprintChange(sp.ID, models.FieldCreated, "", sp.Name)
		return a.write(ctx, tx)
	})
	if err != nil {
		s.rejected(ctx, "createSprint", projectID, callerID, err)
		return nil, err
	}

	s.notify(ctx, realtime.Event{
		Type:       realtime.SprintCreated,
		ProjectID:  projectID,
		SprintID:   sp.ID,
		UserID:     callerID,
		OccurredAt: sp.CreatedAt,
	})
	s.logger.InfoContext(ctx, "sprint created",
		slog.String("sprint_id", sp.ID),
		slog.String("project_id", projectID),
		slog.String("caller_id", callerID),
	)
	return s.view(sp), nil
}

// CloseSprint closes a sprint for good
func (s *Service) CloseSprint(ctx context.Context, sprintID, callerID string) (*SprintView, error) {
	closed := models.SprintClosed
	return s.EditSprint(ctx, sprintID, callerID, SprintEdit{Status: &closed})
}

// EditSprint renames, reschedules or closes a sprint. A manually closed
// sprint cannot be changed any more.
func (s *Service) EditSprint(ctx context.Context, sprintID, callerID string, edit SprintEdit) (*SprintView, error) {
	if edit.Status != nil && *edit.Status != models.SprintClosed {
		return nil, errs.Invalid("status", "only CLOSED can be set on a sprint")
	}

	var (
		updated *models.Sprint
		fields  []string
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		sp, err := tx.GetSprint(ctx, sprintID)
		if err != nil {
			return err
		}
		if err := requireManager(s.checker.WithDirectory(tx).Session(ctx, callerID), sp.ProjectID); err != nil {
			return err
		}
		if sp.ManualStatus == models.SprintClosed {
			return errs.Violation(errs.RuleSprintClosed, "sprint is closed")
		}

		now := s.checker.Now()
		a := newAudit(callerID, now)
		next := *sp
		columns := map[string]any{}

		if edit.Name != nil {
			name := strings.TrimSpace(*edit.Name)
			if name == "" {
				return errs.Invalid("name", "must not be empty")
			}
			if name != sp.Name {
				next.Name = name
				columns["name"] = name
				a.sprintChange(sp.ID, models.FieldName, sp.Name, name)
			}
		}
		if edit.StartDate != nil && !edit.StartDate.Equal(sp.StartDate) {
			next.StartDate = *edit.StartDate
			columns["start_date"] = *edit.StartDate
			a.sprintChange(sp.ID, models.FieldStartDate, timeValue(sp.StartDate), timeValue(*edit.StartDate))
		}
		if edit.EndDate != nil && !edit.EndDate.Equal(sp.EndDate) {
			next.EndDate = *edit.EndDate
			columns["end_date"] = *edit.EndDate
			a.sprintChange(sp.ID, models.FieldEndDate, timeValue(sp.EndDate), timeValue(*edit.EndDate))
		}
		if !next.ValidRange() {
			return errs.Violation(errs.RuleSprintRange, "sprint must end after it starts")
		}
		if edit.Status != nil {
			columns["manual_status"] = string(models.SprintClosed)
			a.sprintChange(sp.ID, models.FieldManualStatus, string(sp.ManualStatus), string(models.SprintClosed))
		}

		if len(columns) == 0 {
			updated = sp
			return nil
		}
		if err := tx.UpdateSprintColumns(ctx, sp.ID, columns); err != nil {
			return err
		}
		if err := a.write(ctx, tx); err != nil {
			return err
		}
		for _, c := range a.sprint {
			fields = append(fields, c.Field)
		}
		updated, err = tx.GetSprint(ctx, sp.ID)
		return err
	})
	if err != nil {
		s.rejected(ctx, "editSprint", sprintID, callerID, err)
		return nil, err
	}

	if len(fields) > 0 {
		s.notify(ctx, realtime.Event{
			Type:       realtime.SprintUpdated,
			ProjectID:  updated.ProjectID,
			SprintID:   updated.ID,
			UserID:     callerID,
			Fields:     fields,
			OccurredAt: s.checker.Now(),
		})
		s.logger.InfoContext(ctx, "sprint updated",
			slog.String("sprint_id", sprintID),
			slog.String("caller_id", callerID),
			slog.Any("fields", fields),
		)
	}
	return s.view(updated), nil
}
