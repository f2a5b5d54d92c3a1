package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"coursework-api/internal/access"
	"coursework-api/internal/errs"
	"coursework-api/internal/models"
	"coursework-api/internal/realtime"
	"coursework-api/internal/store"
)

// ApplyEdit authorizes, validates and writes a partial update of a task in a
// single transaction. Either every requested field is written with one audit
// row each, or nothing is.
func (s *Service) ApplyEdit(ctx context.Context, taskID, callerID string, edit TaskEdit) (*models.Task, error) {
	var (
		updated *models.Task
		events  []realtime.Event
		fields  []string
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		task, err := tx.LockTask(ctx, taskID)
		if err != nil {
			return err
		}
		now := s.checker.Now()
		caller, err := s.checker.WithDirectory(tx).Session(ctx, callerID).Caller(task)
		if err != nil {
			return err
		}

		p := &editPlan{
			task:   task,
			edit:   edit,
			caller: caller,
			now:    now,
			audit:  newAudit(callerID, now),
		}
		if err := p.diff(); err != nil {
			return err
		}
		if err := p.authorize(); err != nil {
			return err
		}
		if err := p.validate(ctx, tx); err != nil {
			return err
		}
		if p.empty() {
			updated = task
			return nil
		}
		if err := p.apply(ctx, tx); err != nil {
			return err
		}
		if updated, err = tx.GetTask(ctx, taskID); err != nil {
			return err
		}
		events = p.events()
		fields = p.audit.fields()
		return nil
	})
	if err != nil {
		s.rejected(ctx, "applyEdit", taskID, callerID, err)
		return nil, err
	}

	for _, evt := range events {
		s.notify(ctx, evt)
	}
	if len(events) > 0 {
		s.logger.InfoContext(ctx, "task edit applied",
			slog.String("task_id", taskID),
			slog.String("caller_id", callerID),
			slog.Any("fields", fields),
		)
	}
	return updated, nil
}

// fieldChange is one column write and its audit values
type fieldChange struct {
	field    string
	column   string
	value    any
	oldValue string
	newValue string
}

// editPlan is the validated shape of one ApplyEdit call
type editPlan struct {
	task   *models.Task
	edit   TaskEdit
	caller access.CallerContext
	now    time.Time
	audit  *audit

	caps    []access.Capability
	changes []fieldChange

	newType    *models.TaskType
	newStatus  *models.TaskStatus
	estimation Optional[*int]
	assignee   Optional[*string]
	reporter   *string
	sprintIDs  []string
	sprints    []models.Sprint
	comment    string

	cascaded *models.Task
}

func (p *editPlan) require(c access.Capability) {
	if !slices.Contains(p.caps, c) {
		p.caps = append(p.caps, c)
	}
}

func (p *editPlan) set(c access.Capability, fc fieldChange) {
	p.require(c)
	p.changes = append(p.changes, fc)
}

func (p *editPlan) empty() bool {
	return len(p.changes) == 0 && p.sprintIDs == nil && p.comment == ""
}

// diff keeps only the fields whose value actually changes
func (p *editPlan) diff() error {
	t, e := p.task, p.edit

	if e.Name != nil {
		name := strings.TrimSpace(*e.Name)
		if name == "" {
			return errs.Invalid("name", "must not be empty")
		}
		if name != t.Name {
			p.set(access.EditDetails, fieldChange{models.FieldName, "name", name, t.Name, name})
		}
	}
	if e.Description != nil && *e.Description != t.Description {
		p.set(access.EditDetails, fieldChange{models.FieldDescription, "description", *e.Description, t.Description, *e.Description})
	}
	if e.Rank != nil && *e.Rank != t.Rank {
		p.set(access.EditDetails, fieldChange{models.FieldRank, "rank", *e.Rank, strconv.Itoa(t.Rank), strconv.Itoa(*e.Rank)})
	}
	if e.Type != nil {
		if !e.Type.Valid() {
			return errs.Invalid("type", fmt.Sprintf("unknown task type %q", *e.Type))
		}
		if *e.Type != t.Type {
			p.newType = e.Type
			p.set(access.EditType, fieldChange{models.FieldType, "type", string(*e.Type), string(t.Type), string(*e.Type)})
		}
	}
	if e.ReporterID != nil && *e.ReporterID != t.ReporterID {
		if *e.ReporterID == "" {
			return errs.Invalid("reporterId", "must not be empty")
		}
		p.reporter = e.ReporterID
		p.set(access.EditReporter, fieldChange{models.FieldReporter, "reporter_id", *e.ReporterID, t.ReporterID, *e.ReporterID})
	}
	if e.AssigneeID.Set && !sameString(e.AssigneeID.Value, t.AssigneeID) {
		p.assignee = e.AssigneeID
		p.set(p.assigneeCapability(), fieldChange{
			models.FieldAssignee, "assignee_id", nullable(e.AssigneeID.Value),
			strValue(t.AssigneeID), strValue(e.AssigneeID.Value),
		})
	}
	if e.EstimationPoints.Set && !sameInt(e.EstimationPoints.Value, t.EstimationPoints) {
		p.estimation = e.EstimationPoints
		p.set(access.EditEstimation, fieldChange{
			models.FieldEstimationPoints, "estimation_points", nullable(e.EstimationPoints.Value),
			intValue(t.EstimationPoints), intValue(e.EstimationPoints.Value),
		})
	}
	if e.Status != nil {
		if !e.Status.Valid() {
			return errs.Invalid("status", fmt.Sprintf("unknown task status %q", *e.Status))
		}
		if *e.Status != t.Status {
			p.newStatus = e.Status
			p.set(access.EditStatus, fieldChange{models.FieldStatus, "status", string(*e.Status), string(t.Status), string(*e.Status)})
		}
	}
	if e.ActiveSprintIDs != nil {
		ids := slices.Compact(slices.Sorted(slices.Values(*e.ActiveSprintIDs)))
		if sprintSet(ids) != sprintSet(t.SprintIDs()) {
			p.sprintIDs = ids
			p.require(access.EditSprint)
		}
	}
	if e.NewComment != nil {
		body := strings.TrimSpace(*e.NewComment)
		if body == "" {
			return errs.Invalid("newComment", "must not be empty")
		}
		p.comment = body
		p.require(access.Comment)
	}
	return nil
}

// assigneeCapability maps an assignee change to the capability it exercises.
// Taking an unassigned task is a self-assign and dropping your own task is an
// unassign. Anything else is assigning someone.
func (p *editPlan) assigneeCapability() access.Capability {
	next, current := p.edit.AssigneeID.Value, p.task.AssigneeID
	switch {
	case next != nil && *next == p.caller.UserID && (current == nil || !p.caller.Privileged()):
		return access.SelfAssign
	case next == nil && current != nil && *current == p.caller.UserID:
		return access.Unassign
	}
	return access.EditAssignee
}

// removesClosedSprint reports whether the edit drops a sprint that is closed at now
func (p *editPlan) removesClosedSprint() bool {
	if p.sprintIDs == nil {
		return false
	}
	for i := range p.task.ActiveSprints {
		sp := &p.task.ActiveSprints[i]
		if !slices.Contains(p.sprintIDs, sp.ID) && sp.EffectiveStatus(p.now) == models.SprintClosed {
			return true
		}
	}
	return false
}

func (p *editPlan) authorize() error {
	for _, c := range p.caps {
		if err := access.Authorize(c, p.task, p.caller, p.now); err != nil {
			return err
		}
	}
	if !p.caller.Privileged() && p.newStatus != nil && *p.newStatus == models.StatusDone && p.removesClosedSprint() {
		return errs.Denied(access.EditSprint.String(), "cannot finish a task while moving it out of a closed sprint")
	}
	return nil
}

// projected is the task as it would look after the type and estimation edits.
// A new user story starts over in BACKLOG.
func (p *editPlan) projected() *models.Task {
	next := *p.task
	if p.newType != nil {
		next.Type = *p.newType
		if next.Type == models.TypeUserStory {
			next.EstimationPoints = nil
			next.Status = models.StatusBacklog
		}
	}
	if p.estimation.Set {
		next.EstimationPoints = p.estimation.Value
	}
	return &next
}

func (p *editPlan) validate(ctx context.Context, tx *store.Store) error {
	for _, c := range p.caps {
		if err := access.Legal(c, p.task); err != nil {
			return err
		}
	}

	if p.newType != nil {
		if err := p.task.CheckTypeChange(*p.newType); err != nil {
			return err
		}
	}
	next := p.projected()
	if p.estimation.Set && p.estimation.Value != nil {
		if err := next.CheckEstimation(p.estimation.Value); err != nil {
			return err
		}
	}
	if p.newStatus != nil {
		if err := next.CheckStatusChange(*p.newStatus); err != nil {
			return err
		}
	}

	if p.assignee.Set && p.assignee.Value != nil {
		ok, err := tx.IsProjectMember(ctx, p.task.ProjectID, *p.assignee.Value)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Violation(errs.RuleAssigneeNotMember, "the assignee must be a member of the project")
		}
	}
	if p.reporter != nil {
		ok, err := canReport(ctx, tx, p.task.ProjectID, *p.reporter)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Violation(errs.RuleReporterNotMember, "the reporter must belong to the project")
		}
	}

	if p.sprintIDs != nil {
		sprints, err := tx.SprintsByIDs(ctx, p.sprintIDs)
		if err != nil {
			return err
		}
		for _, sp := range sprints {
			if sp.ProjectID != p.task.ProjectID {
				return errs.Violation(errs.RuleSprintProject, "sprint %s belongs to another project", sp.ID)
			}
		}
		p.sprints = sprints
	}
	return nil
}

// canReport is true for project members and the course owner
func canReport(ctx context.Context, tx *store.Store, projectID, userID string) (bool, error) {
	member, err := tx.IsProjectMember(ctx, projectID, userID)
	if err != nil || member {
		return member, err
	}
	owner, err := tx.CourseOwnerOf(ctx, projectID)
	if err != nil {
		return false, err
	}
	return owner == userID, nil
}

func (p *editPlan) apply(ctx context.Context, tx *store.Store) error {
	t := p.task
	columns := make(map[string]any, len(p.changes)+1)
	for _, c := range p.changes {
		columns[c.column] = c.value
		p.audit.taskChange(t.ID, c.field, c.oldValue, c.newValue)
	}
	if p.newType != nil && *p.newType == models.TypeUserStory {
		// a user story carries no estimation of its own
		if t.EstimationPoints != nil && !p.estimation.Set {
			columns["estimation_points"] = nil
			p.audit.taskChange(t.ID, models.FieldEstimationPoints, intValue(t.EstimationPoints), "")
		}
		if t.Status != models.StatusBacklog {
			columns["status"] = string(models.StatusBacklog)
			p.audit.taskChange(t.ID, models.FieldStatus, string(t.Status), string(models.StatusBacklog))
		}
	}
	if err := tx.UpdateTaskColumns(ctx, t.ID, columns); err != nil {
		return err
	}

	if p.sprintIDs != nil {
		before := sprintSet(t.SprintIDs())
		if err := tx.ReplaceTaskSprints(ctx, t, p.sprints); err != nil {
			return err
		}
		p.audit.taskChange(t.ID, models.FieldSprints, before, sprintSet(p.sprintIDs))
	}

	if p.comment != "" {
		err := tx.CreateComment(ctx, &models.Comment{
			ID:        newID(),
			TaskID:    t.ID,
			AuthorID:  p.audit.authorID,
			Body:      p.comment,
			CreatedAt: p.now,
		})
		if err != nil {
			return err
		}
	}

	if err := p.cascade(ctx, tx); err != nil {
		return err
	}
	return p.audit.write(ctx, tx)
}

// cascade keeps the parent user story in step with its children. The story
// completes once its last open child is DONE and reopens when a DONE child
// moves back. The derived row shares author and timestamp and points at the
// child.
func (p *editPlan) cascade(ctx context.Context, tx *store.Store) error {
	if p.newStatus == nil || p.task.ParentTaskID == nil {
		return nil
	}
	parent := p.task.ParentTask
	if parent == nil || parent.Type != models.TypeUserStory {
		return nil
	}

	var next models.TaskStatus
	switch {
	case *p.newStatus == models.StatusDone && parent.Status != models.StatusDone:
		for i := range parent.ChildTasks {
			child := &parent.ChildTasks[i]
			if child.ID != p.task.ID && child.Status != models.StatusDone {
				return nil
			}
		}
		next = models.StatusDone
	case *p.newStatus != models.StatusDone && parent.Status == models.StatusDone:
		next = models.StatusInProgress
	default:
		return nil
	}

	if err := deriveStoryStatus(ctx, tx, p.audit, parent, p.task.ID, next); err != nil {
		return err
	}
	p.cascaded = parent
	return nil
}

// deriveStoryStatus writes a status change on a user story caused by one of
// its children
func deriveStoryStatus(ctx context.Context, tx *store.Store, a *audit, story *models.Task, childID string, next models.TaskStatus) error {
	if err := tx.UpdateTaskColumns(ctx, story.ID, map[string]any{"status": string(next)}); err != nil {
		return err
	}
	a.derivedTaskChange(story.ID, childID, models.FieldStatus, string(story.Status), string(next))
	return nil
}

func (p *editPlan) events() []realtime.Event {
	base := realtime.Event{
		ProjectID:  p.task.ProjectID,
		TaskID:     p.task.ID,
		UserID:     p.audit.authorID,
		OccurredAt: p.now,
	}
	var out []realtime.Event
	if fields := p.audit.fields(); len(fields) > 0 {
		evt := base
		evt.Type = realtime.TaskUpdated
		evt.Fields = fields
		out = append(out, evt)
	}
	if p.comment != "" {
		evt := base
		evt.Type = realtime.TaskCommented
		out = append(out, evt)
	}
	if p.cascaded != nil {
		evt := base
		evt.Type = realtime.TaskUpdated
		evt.TaskID = p.cascaded.ID
		evt.Fields = []string{models.FieldStatus}
		out = append(out, evt)
	}
	return out
}

// nullable turns a typed nil pointer into an untyped nil so gorm writes NULL
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
