package motion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

type meta struct {
	NextCursor string `json:"nextCursor,omitempty"`
	PageSize   int    `json:"pageSize,omitempty"`
}

type status struct {
	Name string `json:"name"`
}

type label struct {
	Name string `json:"name"`
}

type ref struct {
	ID string `json:"id"`
}

type project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	WorkspaceID string  `json:"workspaceId"`
	Status      *status `json:"status,omitempty"`
	UpdatedTime string  `json:"updatedTime,omitempty"`
}

type task struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	StartOn               string  `json:"startOn,omitempty"`
	DueDate               string  `json:"dueDate,omitempty"`
	Completed             bool    `json:"completed"`
	Status                *status `json:"status,omitempty"`
	Labels                []label `json:"labels,omitempty"`
	Project               *ref    `json:"project,omitempty"`
	ParentRecurringTaskID string  `json:"parentRecurringTaskId,omitempty"`
	UpdatedTime           string  `json:"updatedTime,omitempty"`
}

type projectsPage struct {
	Projects []project `json:"projects"`
	Meta     meta      `json:"meta"`
}

type tasksPage struct {
	Tasks []task `json:"tasks"`
	Meta  meta   `json:"meta"`
}

type autoScheduled struct {
	StartDate string `json:"startDate,omitempty"`
}

type taskRequest struct {
	Name          string         `json:"name,omitempty"`
	WorkspaceID   string         `json:"workspaceId,omitempty"`
	ProjectID     string         `json:"projectId,omitempty"`
	StartOn       string         `json:"startOn,omitempty"`
	DueDate       string         `json:"dueDate,omitempty"`
	Duration      int            `json:"duration,omitempty"`
	Status        string         `json:"status,omitempty"`
	AutoScheduled *autoScheduled `json:"autoScheduled,omitempty"`
	Labels        *[]string      `json:"labels,omitempty"`
}

type projectRequest struct {
	Name        string `json:"name"`
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// ListEntities lists the projects of a workspace, or the tasks of a
// workspace optionally narrowed to one project
func (c *Client) ListEntities(ctx context.Context, scope domain.Scope, t domain.EntityType) ([]domain.SyncEntity, error) {
	switch t {
	case domain.TypeProject:
		return c.listProjects(ctx, scope.Container)
	case domain.TypeTask:
		return c.listTasks(ctx, scope.Container, scope.ParentID)
	default:
		return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, t)
	}
}

func (c *Client) listProjects(ctx context.Context, workspaceID string) ([]domain.SyncEntity, error) {
	q := url.Values{}
	q.Set("workspaceId", workspaceID)

	var entities []domain.SyncEntity
	err := c.paginate(ctx, "/projects", q, func(data []byte) (string, error) {
		var page projectsPage
		if err := json.Unmarshal(data, &page); err != nil {
			return "", fmt.Errorf("decoding projects: %v: %w", err, domain.ErrValidation)
		}
		for _, p := range page.Projects {
			e := domain.SyncEntity{
				ID:        p.ID,
				Title:     p.Name,
				UpdatedAt: parseTimestamp(p.UpdatedTime),
				ParentID:  p.WorkspaceID,
			}
			if p.Status != nil {
				e.Status = p.Status.Name
			}
			entities = append(entities, e)
		}
		return page.Meta.NextCursor, nil
	})
	return entities, err
}

func (c *Client) listTasks(ctx context.Context, workspaceID, projectID string) ([]domain.SyncEntity, error) {
	q := url.Values{}
	q.Set("workspaceId", workspaceID)
	if projectID != "" {
		q.Set("projectId", projectID)
	}

	var entities []domain.SyncEntity
	err := c.paginate(ctx, "/tasks", q, func(data []byte) (string, error) {
		var page tasksPage
		if err := json.Unmarshal(data, &page); err != nil {
			return "", fmt.Errorf("decoding tasks: %v: %w", err, domain.ErrValidation)
		}
		for _, tk := range page.Tasks {
			entities = append(entities, c.toEntity(tk))
		}
		return page.Meta.NextCursor, nil
	})
	return entities, err
}

func (c *Client) toEntity(tk task) domain.SyncEntity {
	e := domain.SyncEntity{
		ID:        tk.ID,
		Title:     tk.Name,
		Completed: tk.Completed,
		UpdatedAt: parseTimestamp(tk.UpdatedTime),
		Recurring: tk.ParentRecurringTaskID != "",
	}
	if tk.Status != nil {
		e.Status = tk.Status.Name
	}
	if tk.Project != nil {
		e.ParentID = tk.Project.ID
	}
	for _, l := range tk.Labels {
		e.Labels = append(e.Labels, l.Name)
	}
	// malformed dates are dropped rather than failing the listing
	e.StartDate, _ = domain.ParseDate(tk.StartOn, c.loc)
	e.DueDate, _ = domain.ParseDate(tk.DueDate, c.loc)
	return e
}

// CreateEntity creates a project or task in workspace f.Container. Tasks
// go into project f.ParentID when set, start today unless a start date is
// given and are auto-scheduled.
func (c *Client) CreateEntity(ctx context.Context, t domain.EntityType, f domain.Fields) (domain.SyncEntity, error) {
	if f.Title == "" {
		return domain.SyncEntity{}, fmt.Errorf("%w: %s needs a title", domain.ErrValidation, t)
	}

	switch t {
	case domain.TypeProject:
		var p project
		if err := c.do(ctx, "POST", "/projects", projectRequest{Name: f.Title, WorkspaceID: f.Container}, &p); err != nil {
			return domain.SyncEntity{}, err
		}
		if p.ID == "" {
			return domain.SyncEntity{}, fmt.Errorf("%w: motion returned no project id", domain.ErrValidation)
		}
		return domain.SyncEntity{ID: p.ID, Title: p.Name, ParentID: p.WorkspaceID, UpdatedAt: parseTimestamp(p.UpdatedTime)}, nil

	case domain.TypeTask:
		start := f.StartDate
		if start == "" {
			start = c.today()
		}
		req := taskRequest{
			Name:          f.Title,
			WorkspaceID:   f.Container,
			ProjectID:     f.ParentID,
			StartOn:       string(start),
			DueDate:       string(f.DueDate),
			Duration:      c.duration,
			AutoScheduled: &autoScheduled{StartDate: string(start)},
		}
		if s := statusName(f); s != domain.RemoteTodo {
			req.Status = s
		}
		if len(f.Labels) > 0 {
			labels := append([]string(nil), f.Labels...)
			req.Labels = &labels
		}

		var tk task
		if err := c.do(ctx, "POST", "/tasks", req, &tk); err != nil {
			return domain.SyncEntity{}, err
		}
		if tk.ID == "" {
			return domain.SyncEntity{}, fmt.Errorf("%w: motion returned no task id", domain.ErrValidation)
		}
		return c.toEntity(tk), nil

	default:
		return domain.SyncEntity{}, fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, t)
	}
}

// UpdateEntity renames a project or patches a task's name, status,
// dates and, when f.SetLabels is true, its labels
func (c *Client) UpdateEntity(ctx context.Context, t domain.EntityType, id string, f domain.Fields) error {
	switch t {
	case domain.TypeProject:
		return c.do(ctx, "PATCH", "/projects/"+url.PathEscape(id), projectRequest{Name: f.Title}, nil)
	case domain.TypeTask:
		req := taskRequest{
			Name:    f.Title,
			StartOn: string(f.StartDate),
			DueDate: string(f.DueDate),
		}
		if f.Status != "" || f.Completed {
			req.Status = statusName(f)
		}
		if f.SetLabels {
			labels := append([]string{}, f.Labels...)
			req.Labels = &labels
		}
		return c.do(ctx, "PATCH", "/tasks/"+url.PathEscape(id), req, nil)
	default:
		return fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, t)
	}
}

func statusName(f domain.Fields) string {
	if f.Completed {
		return domain.RemoteCompleted
	}
	if f.Status == "" {
		return domain.RemoteTodo
	}
	return f.Status
}
