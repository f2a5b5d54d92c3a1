// Package lifecycle applies edits to tasks and sprints: it authorizes them,
// checks they are legal, writes them with their audit trail in one
// transaction and publishes the result.
package lifecycle

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"coursework-api/internal/access"
	"coursework-api/internal/models"
	"coursework-api/internal/realtime"
	"coursework-api/internal/store"

	"github.com/google/uuid"
)

// Service is the single entry point for task and sprint mutations
type Service struct {
	store     *store.Store
	checker   *access.Checker
	publisher realtime.Publisher
	logger    *slog.Logger
}

// NewService wires the service. A nil publisher discards events and a nil
// logger uses slog.Default.
func NewService(st *store.Store, checker *access.Checker, pub realtime.Publisher, logger *slog.Logger) *Service {
	if pub == nil {
		pub = realtime.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, checker: checker, publisher: pub, logger: logger}
}

// Checker exposes the access checker for read-only permission queries
func (s *Service) Checker() *access.Checker {
	return s.checker
}

func newID() string {
	return uuid.NewString()
}

// audit collects change rows sharing one author and one timestamp
type audit struct {
	authorID string
	at       time.Time
	task     []models.TaskChange
	sprint   []models.SprintChange
}

func newAudit(authorID string, at time.Time) *audit {
	return &audit{authorID: authorID, at: at}
}

func (a *audit) taskChange(taskID, field, oldValue, newValue string) {
	a.task = append(a.task, models.TaskChange{
		ID:        newID(),
		TaskID:    taskID,
		AuthorID:  a.authorID,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		CreatedAt: a.at,
	})
}

func (a *audit) derivedTaskChange(taskID, causedBy, field, oldValue, newValue string) {
	a.taskChange(taskID, field, oldValue, newValue)
	a.task[len(a.task)-1].CausedByTaskID = &causedBy
}

func (a *audit) sprintChange(sprintID, field, oldValue, newValue string) {
	a.sprint = append(a.sprint, models.SprintChange{
		ID:        newID(),
		SprintID:  sprintID,
		AuthorID:  a.authorID,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		CreatedAt: a.at,
	})
}

func (a *audit) fields() []string {
	var out []string
	for _, c := range a.task {
		if c.CausedByTaskID == nil && !slices.Contains(out, c.Field) {
			out = append(out, c.Field)
		}
	}
	return out
}

func (a *audit) write(ctx context.Context, tx *store.Store) error {
	if err := tx.AppendTaskChanges(ctx, a.task); err != nil {
		return err
	}
	return tx.AppendSprintChanges(ctx, a.sprint)
}

func strValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func intValue(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sprintSet(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return strings.Join(slices.Compact(sorted), ",")
}

func timeValue(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// notify publishes after commit. Delivery problems never fail the request.
func (s *Service) notify(ctx context.Context, evt realtime.Event) {
	members, err := s.store.ProjectMemberIDs(ctx, evt.ProjectID)
	if err != nil {
		s.logger.WarnContext(ctx, "resolve event recipients failed", slog.String("error", err.Error()))
	}
	if !slices.Contains(members, evt.UserID) {
		members = append(members, evt.UserID)
	}
	evt.Recipients = members
	evt.Version = 1
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", evt.Type),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) rejected(ctx context.Context, op, targetID, callerID string, err error) {
	s.logger.WarnContext(ctx, "lifecycle operation rejected",
		slog.String("op", op),
		slog.String("target_id", targetID),
		slog.String("caller_id", callerID),
		slog.String("error", err.Error()),
	)
}
