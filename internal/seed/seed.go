// Package seed loads demo data from a YAML file into the database.
//
// References between entries use usernames and the IDs given in the file, so
// the same file can be applied again to reset the data it describes.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"coursework-api/internal/auth"
	"coursework-api/internal/models"
	"coursework-api/internal/store"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// File is the top-level structure of a seed file
type File struct {
	Users    []User    `yaml:"users"`
	Subjects []Subject `yaml:"subjects"`
}

type User struct {
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Roles    []models.Role `yaml:"roles"`
}

type Subject struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Owner   string   `yaml:"owner"`
	Courses []Course `yaml:"courses"`
}

type Course struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	Projects []Project `yaml:"projects"`
}

type Project struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
	Sprints []Sprint `yaml:"sprints"`
	Tasks   []Task   `yaml:"tasks"`
}

type Sprint struct {
	ID     string    `yaml:"id"`
	Name   string    `yaml:"name"`
	Start  time.Time `yaml:"start"`
	End    time.Time `yaml:"end"`
	Closed bool      `yaml:"closed"`
}

type Task struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Type         models.TaskType   `yaml:"type"`
	Status       models.TaskStatus `yaml:"status"`
	Reporter     string            `yaml:"reporter"`
	Assignee     string            `yaml:"assignee"`
	Estimation   *int              `yaml:"estimation"`
	Parent       string            `yaml:"parent"`
	Frozen       bool              `yaml:"frozen"`
	Rank         int               `yaml:"rank"`
	Sprints      []string          `yaml:"sprints"`
	PullRequests []PullRequest     `yaml:"pullRequests"`
}

type PullRequest struct {
	Number int    `yaml:"number"`
	URL    string `yaml:"url"`
	Merged bool   `yaml:"merged"`
}

// Load reads a seed file from path
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a seed file and checks its references
func Decode(r io.Reader) (*File, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// UserID derives the stable ID of a seeded user
func UserID(username string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("coursework-user:"+username)).String()
}

// Validate reports every broken reference or unknown enum value
func (f *File) Validate() error {
	var problems []error
	users := map[string]bool{}
	for _, u := range f.Users {
		if u.Username == "" || u.Password == "" {
			problems = append(problems, errors.New("user needs a username and a password"))
		}
		users[u.Username] = true
		for _, r := range u.Roles {
			if !r.Valid() {
				problems = append(problems, fmt.Errorf("user %s: unknown role %q", u.Username, r))
			}
		}
	}
	knownUser := func(where, name string) {
		if name != "" && !users[name] {
			problems = append(problems, fmt.Errorf("%s: unknown user %q", where, name))
		}
	}

	for _, s := range f.Subjects {
		knownUser("subject "+s.ID, s.Owner)
		for _, c := range s.Courses {
			for _, p := range c.Projects {
				sprints := map[string]bool{}
				for _, sp := range p.Sprints {
					sprints[sp.ID] = true
					if !sp.End.After(sp.Start) {
						problems = append(problems, fmt.Errorf("sprint %s: end must be after start", sp.ID))
					}
				}
				for _, m := range p.Members {
					knownUser("project "+p.ID, m)
				}
				tasks := map[string]bool{}
				for _, t := range p.Tasks {
					tasks[t.ID] = true
				}
				for _, t := range p.Tasks {
					where := "task " + t.ID
					knownUser(where, t.Reporter)
					knownUser(where, t.Assignee)
					if t.Reporter == "" {
						problems = append(problems, fmt.Errorf("%s: reporter is required", where))
					}
					if t.Type != "" && !t.Type.Valid() {
						problems = append(problems, fmt.Errorf("%s: unknown type %q", where, t.Type))
					}
					if t.Status != "" && !t.Status.Valid() {
						problems = append(problems, fmt.Errorf("%s: unknown status %q", where, t.Status))
					}
					if t.Parent != "" && !tasks[t.Parent] {
						problems = append(problems, fmt.Errorf("%s: unknown parent %q", where, t.Parent))
					}
					for _, id := range t.Sprints {
						if !sprints[id] {
							problems = append(problems, fmt.Errorf("%s: unknown sprint %q", where, id))
						}
					}
				}
			}
		}
	}
	return errors.Join(problems...)
}

// Apply writes the file into st in one transaction
func Apply(ctx context.Context, st *store.Store, f *File) error {
	return st.Transaction(ctx, func(tx *store.Store) error {
		for _, u := range f.Users {
			hash, err := auth.HashPassword(u.Password)
			if err != nil {
				return err
			}
			id := UserID(u.Username)
			if err := tx.Upsert(ctx, &models.User{ID: id, Username: u.Username, Password: hash}); err != nil {
				return err
			}
			for _, r := range u.Roles {
				if err := tx.Upsert(ctx, &models.RoleMembership{UserID: id, Role: r}); err != nil {
					return err
				}
			}
		}

		for _, s := range f.Subjects {
			if err := tx.Upsert(ctx, &models.Subject{ID: s.ID, Name: s.Name, OwnerID: UserID(s.Owner)}); err != nil {
				return err
			}
			for _, c := range s.Courses {
				if err := tx.Upsert(ctx, &models.Course{ID: c.ID, SubjectID: s.ID, Name: c.Name}); err != nil {
					return err
				}
				for _, p := range c.Projects {
					if err := applyProject(ctx, tx, p, c.ID); err != nil {
						return fmt.Errorf("project %s: %w", p.ID, err)
					}
				}
			}
		}
		return nil
	})
}

func applyProject(ctx context.Context, tx *store.Store, p Project, courseID string) error {
	if err := tx.Upsert(ctx, &models.Project{ID: p.ID, CourseID: courseID, Name: p.Name}); err != nil {
		return err
	}
	for _, m := range p.Members {
		if err := tx.Upsert(ctx, &models.ProjectMember{ProjectID: p.ID, UserID: UserID(m)}); err != nil {
			return err
		}
	}

	sprints := map[string]models.Sprint{}
	for _, s := range p.Sprints {
		sp := models.Sprint{ID: s.ID, ProjectID: p.ID, Name: s.Name, StartDate: s.Start.UTC(), EndDate: s.End.UTC()}
		if s.Closed {
			sp.ManualStatus = models.SprintClosed
		}
		if err := tx.Upsert(ctx, &sp); err != nil {
			return err
		}
		sprints[s.ID] = sp
	}

	// parents before subtasks
	ordered := make([]Task, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.Parent == "" {
			ordered = append(ordered, t)
		}
	}
	for _, t := range p.Tasks {
		if t.Parent != "" {
			ordered = append(ordered, t)
		}
	}

	for _, t := range ordered {
		task := &models.Task{
			ID:               t.ID,
			ProjectID:        p.ID,
			Name:             t.Name,
			Description:      t.Description,
			Type:             t.Type,
			Status:           t.Status,
			EstimationPoints: t.Estimation,
			ReporterID:       UserID(t.Reporter),
			Frozen:           t.Frozen,
			Rank:             t.Rank,
		}
		if task.Type == "" {
			task.Type = models.TypeTask
		}
		if task.Status == "" {
			task.Status = models.StatusTodo
		}
		if t.Assignee != "" {
			id := UserID(t.Assignee)
			task.AssigneeID = &id
		}
		if t.Parent != "" {
			parent := t.Parent
			task.ParentTaskID = &parent
		}
		if err := tx.Upsert(ctx, task); err != nil {
			return err
		}

		linked := make([]models.Sprint, 0, len(t.Sprints))
		for _, id := range t.Sprints {
			linked = append(linked, sprints[id])
		}
		if err := tx.ReplaceTaskSprints(ctx, task, linked); err != nil {
			return err
		}
		for _, pr := range t.PullRequests {
			row := &models.PullRequest{
				ID:     fmt.Sprintf("%s-pr-%d", t.ID, pr.Number),
				TaskID: t.ID,
				Number: pr.Number,
				URL:    pr.URL,
				Merged: pr.Merged,
			}
			if err := tx.Upsert(ctx, row); err != nil {
				return err
			}
		}
	}
	return nil
}
