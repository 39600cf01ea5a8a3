package craft

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

type document struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	LastModifiedAt string `json:"lastModifiedAt,omitempty"`
}

type documentsResponse struct {
	Documents []document `json:"documents"`
}

type taskInfo struct {
	State        string          `json:"state,omitempty"`
	ScheduleDate string          `json:"scheduleDate,omitempty"`
	DeadlineDate string          `json:"deadlineDate,omitempty"`
	Repeat       json.RawMessage `json:"repeat,omitempty"`
}

type taskLocation struct {
	Type       string `json:"type"`
	DocumentID string `json:"documentId,omitempty"`
}

type task struct {
	ID             string        `json:"id,omitempty"`
	Markdown       string        `json:"markdown,omitempty"`
	Location       *taskLocation `json:"location,omitempty"`
	TaskInfo       *taskInfo     `json:"taskInfo,omitempty"`
	LastModifiedAt string        `json:"lastModifiedAt,omitempty"`
}

type tasksResponse struct {
	Tasks []task `json:"tasks"`
}

type tasksAddRequest struct {
	Tasks []task `json:"tasks"`
}

type tasksUpdateRequest struct {
	TasksToUpdate []task `json:"tasksToUpdate"`
}

type documentsUpdateRequest struct {
	DocumentsToUpdate []document `json:"documentsToUpdate"`
}

// ListEntities lists the documents of a folder (projects) or the tasks of
// a document or the inbox (tasks)
func (c *Client) ListEntities(ctx context.Context, scope domain.Scope, t domain.EntityType) ([]domain.SyncEntity, error) {
	switch t {
	case domain.TypeProject:
		return c.listDocuments(ctx, scope.Container)
	case domain.TypeTask:
		return c.listTasks(ctx, scope.Container)
	default:
		return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, t)
	}
}

func (c *Client) listDocuments(ctx context.Context, folderID string) ([]domain.SyncEntity, error) {
	q := url.Values{}
	if folderID != "" {
		q.Set("folderId", folderID)
	}
	var resp documentsResponse
	if err := c.do(ctx, "GET", c.spacePath("/documents?%s", q.Encode()), nil, &resp); err != nil {
		return nil, err
	}

	entities := make([]domain.SyncEntity, 0, len(resp.Documents))
	for _, d := range resp.Documents {
		entities = append(entities, domain.SyncEntity{
			ID:        d.ID,
			Title:     strings.TrimSpace(d.Title),
			UpdatedAt: parseTimestamp(d.LastModifiedAt),
			ParentID:  folderID,
		})
	}
	return entities, nil
}

func (c *Client) listTasks(ctx context.Context, container string) ([]domain.SyncEntity, error) {
	q := url.Values{}
	if container == "" || container == InboxContainer {
		q.Set("scope", "inbox")
	} else {
		q.Set("scope", "document")
		q.Set("documentId", container)
	}
	var resp tasksResponse
	if err := c.do(ctx, "GET", c.spacePath("/tasks?%s", q.Encode()), nil, &resp); err != nil {
		return nil, err
	}

	entities := make([]domain.SyncEntity, 0, len(resp.Tasks))
	for _, tk := range resp.Tasks {
		entities = append(entities, c.toEntity(tk, container))
	}
	return entities, nil
}

func (c *Client) toEntity(tk task, container string) domain.SyncEntity {
	e := domain.SyncEntity{
		ID:        tk.ID,
		Title:     taskTitle(tk.Markdown),
		Status:    string(domain.LocalTodo),
		UpdatedAt: parseTimestamp(tk.LastModifiedAt),
		ParentID:  container,
	}
	if info := tk.TaskInfo; info != nil {
		if info.State != "" {
			e.Status = info.State
		}
		e.Completed = info.State == string(domain.LocalDone)
		// malformed dates are dropped rather than failing the listing
		e.StartDate, _ = domain.ParseDate(info.ScheduleDate, c.loc)
		e.DueDate, _ = domain.ParseDate(info.DeadlineDate, c.loc)
		e.Recurring = len(info.Repeat) > 0 && string(info.Repeat) != "null"
	}
	return e
}

// taskTitle strips checkbox markdown from a task line
func taskTitle(markdown string) string {
	s := strings.TrimSpace(markdown)
	for _, prefix := range []string{"- [ ] ", "- [x] ", "- [X] ", "- "} {
		if strings.HasPrefix(s, prefix) {
			return strings.TrimSpace(s[len(prefix):])
		}
	}
	return s
}

// CreateEntity creates a task in the document or inbox named by
// f.Container. Projects are never created in Craft.
func (c *Client) CreateEntity(ctx context.Context, t domain.EntityType, f domain.Fields) (domain.SyncEntity, error) {
	if t != domain.TypeTask {
		return domain.SyncEntity{}, fmt.Errorf("%w: craft %s creation is not supported", domain.ErrValidation, t)
	}
	if f.Title == "" {
		return domain.SyncEntity{}, fmt.Errorf("%w: task needs a title", domain.ErrValidation)
	}

	loc := &taskLocation{Type: "inbox"}
	if f.Container != "" && f.Container != InboxContainer {
		loc = &taskLocation{Type: "document", DocumentID: f.Container}
	}
	start := f.StartDate
	if start == "" {
		start = c.today()
	}

	req := tasksAddRequest{Tasks: []task{{
		Markdown: f.Title,
		Location: loc,
		TaskInfo: &taskInfo{
			State:        stateOf(f),
			ScheduleDate: string(start),
			DeadlineDate: string(f.DueDate),
		},
	}}}

	var resp tasksResponse
	if err := c.do(ctx, "POST", c.spacePath("/tasks"), req, &resp); err != nil {
		return domain.SyncEntity{}, err
	}
	if len(resp.Tasks) == 0 || resp.Tasks[0].ID == "" {
		return domain.SyncEntity{}, fmt.Errorf("%w: craft returned no task id", domain.ErrValidation)
	}
	return c.toEntity(resp.Tasks[0], f.Container), nil
}

// UpdateEntity patches a task's text, state and dates, or renames a
// project document
func (c *Client) UpdateEntity(ctx context.Context, t domain.EntityType, id string, f domain.Fields) error {
	switch t {
	case domain.TypeProject:
		req := documentsUpdateRequest{DocumentsToUpdate: []document{{ID: id, Title: f.Title}}}
		return c.do(ctx, "PATCH", c.spacePath("/documents"), req, nil)
	case domain.TypeTask:
		req := tasksUpdateRequest{TasksToUpdate: []task{{
			ID:       id,
			Markdown: f.Title,
			TaskInfo: &taskInfo{
				State:        stateOf(f),
				ScheduleDate: string(f.StartDate),
				DeadlineDate: string(f.DueDate),
			},
		}}}
		return c.do(ctx, "PATCH", c.spacePath("/tasks"), req, nil)
	default:
		return fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, t)
	}
}

func stateOf(f domain.Fields) string {
	switch domain.LocalStatus(f.Status) {
	case domain.LocalDone, domain.LocalCanceled:
		return f.Status
	}
	if f.Completed {
		return string(domain.LocalDone)
	}
	return string(domain.LocalTodo)
}
