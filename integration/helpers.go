//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// TempDBPath creates a temporary database path for testing
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// TempConfigPath creates a temporary config file path for testing
func TempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.toml")
}

type craftDoc struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	LastModifiedAt string `json:"lastModifiedAt,omitempty"`
	folder         string
}

type craftTaskInfo struct {
	State        string `json:"state,omitempty"`
	ScheduleDate string `json:"scheduleDate,omitempty"`
	DeadlineDate string `json:"deadlineDate,omitempty"`
}

type craftLocation struct {
	Type       string `json:"type"`
	DocumentID string `json:"documentId,omitempty"`
}

type craftTask struct {
	ID             string         `json:"id,omitempty"`
	Markdown       string         `json:"markdown,omitempty"`
	Location       *craftLocation `json:"location,omitempty"`
	TaskInfo       *craftTaskInfo `json:"taskInfo,omitempty"`
	LastModifiedAt string         `json:"lastModifiedAt,omitempty"`
}

// FakeCraft serves the subset of the Craft space API the client uses
type FakeCraft struct {
	*httptest.Server

	mu    sync.Mutex
	docs  []*craftDoc
	tasks []*craftTask
	seq   int
	posts int
}

// NewFakeCraft starts a Craft server for space
func NewFakeCraft(t *testing.T, space string) *FakeCraft {
	t.Helper()
	f := &FakeCraft{}
	prefix := "/spaces/" + space

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+prefix+"/documents", f.listDocuments)
	mux.HandleFunc("PATCH "+prefix+"/documents", f.updateDocuments)
	mux.HandleFunc("GET "+prefix+"/tasks", f.listTasks)
	mux.HandleFunc("POST "+prefix+"/tasks", f.addTasks)
	mux.HandleFunc("PATCH "+prefix+"/tasks", f.updateTasks)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// AddDocument places a document in folder
func (f *FakeCraft) AddDocument(id, title, folder string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, &craftDoc{ID: id, Title: title, LastModifiedAt: stamp(), folder: folder})
}

// AddTask places a task in a document, or the inbox when doc is empty
func (f *FakeCraft) AddTask(id, title, doc, state, schedule string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc := &craftLocation{Type: "inbox"}
	if doc != "" {
		loc = &craftLocation{Type: "document", DocumentID: doc}
	}
	f.tasks = append(f.tasks, &craftTask{
		ID:             id,
		Markdown:       "- [ ] " + title,
		Location:       loc,
		TaskInfo:       &craftTaskInfo{State: state, ScheduleDate: schedule},
		LastModifiedAt: stamp(),
	})
}

// Task returns a copy of the task titled title in doc
func (f *FakeCraft) Task(doc, title string) (craftTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tk := range f.tasks {
		if tk.Location.DocumentID == doc && strings.HasSuffix(tk.Markdown, title) {
			return *tk, true
		}
	}
	return craftTask{}, false
}

// Posts returns how many task creations were received
func (f *FakeCraft) Posts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

func (f *FakeCraft) listDocuments(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder := r.URL.Query().Get("folderId")
	docs := []craftDoc{}
	for _, d := range f.docs {
		if folder == "" || d.folder == folder {
			docs = append(docs, *d)
		}
	}
	writeJSON(w, map[string]interface{}{"documents": docs})
}

func (f *FakeCraft) updateDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentsToUpdate []craftDoc `json:"documentsToUpdate"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range req.DocumentsToUpdate {
		for _, d := range f.docs {
			if d.ID == u.ID {
				d.Title = u.Title
				d.LastModifiedAt = stamp()
			}
		}
	}
	writeJSON(w, map[string]interface{}{})
}

func (f *FakeCraft) listTasks(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := r.URL.Query()
	tasks := []craftTask{}
	for _, tk := range f.tasks {
		switch q.Get("scope") {
		case "inbox":
			if tk.Location.Type != "inbox" {
				continue
			}
		case "document":
			if tk.Location.DocumentID != q.Get("documentId") {
				continue
			}
		}
		tasks = append(tasks, *tk)
	}
	writeJSON(w, map[string]interface{}{"tasks": tasks})
}

func (f *FakeCraft) addTasks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tasks []craftTask `json:"tasks"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	created := []craftTask{}
	for _, tk := range req.Tasks {
		f.seq++
		f.posts++
		tk.ID = fmt.Sprintf("craft-new-%d", f.seq)
		tk.LastModifiedAt = stamp()
		f.tasks = append(f.tasks, &tk)
		created = append(created, tk)
	}
	writeJSON(w, map[string]interface{}{"tasks": created})
}

func (f *FakeCraft) updateTasks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TasksToUpdate []craftTask `json:"tasksToUpdate"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range req.TasksToUpdate {
		for _, tk := range f.tasks {
			if tk.ID != u.ID {
				continue
			}
			if u.Markdown != "" {
				tk.Markdown = u.Markdown
			}
			if u.TaskInfo != nil {
				tk.TaskInfo = u.TaskInfo
			}
			tk.LastModifiedAt = stamp()
		}
	}
	writeJSON(w, map[string]interface{}{})
}

type motionStatus struct {
	Name string `json:"name"`
}

type motionRef struct {
	ID string `json:"id"`
}

type motionProject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspaceId"`
	UpdatedTime string `json:"updatedTime,omitempty"`
}

type motionTask struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	StartOn     string        `json:"startOn,omitempty"`
	DueDate     string        `json:"dueDate,omitempty"`
	Completed   bool          `json:"completed"`
	Status      *motionStatus `json:"status,omitempty"`
	Project     *motionRef    `json:"project,omitempty"`
	UpdatedTime string        `json:"updatedTime,omitempty"`
	workspace   string
}

type motionTaskRequest struct {
	Name        string `json:"name"`
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
	StartOn     string `json:"startOn"`
	DueDate     string `json:"dueDate"`
	Status      string `json:"status"`
}

// FakeMotion serves the subset of the Motion API the client uses. Task
// listings are paged two at a time to exercise cursor handling.
type FakeMotion struct {
	*httptest.Server

	mu       sync.Mutex
	projects []*motionProject
	tasks    []*motionTask
	seq      int
	posts    int
}

// NewFakeMotion starts a Motion server that expects apiKey
func NewFakeMotion(t *testing.T, apiKey string) *FakeMotion {
	t.Helper()
	f := &FakeMotion{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects", f.listProjects)
	mux.HandleFunc("POST /projects", f.createProject)
	mux.HandleFunc("PATCH /projects/{id}", f.updateProject)
	mux.HandleFunc("GET /tasks", f.listTasks)
	mux.HandleFunc("POST /tasks", f.createTask)
	mux.HandleFunc("PATCH /tasks/{id}", f.updateTask)

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != apiKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

// AddProject places a project in workspace
func (f *FakeMotion) AddProject(id, name, workspace string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, &motionProject{ID: id, Name: name, WorkspaceID: workspace, UpdatedTime: stamp()})
}

// AddTask places a task in a project of workspace
func (f *FakeMotion) AddTask(id, name, workspace, project, status, startOn string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, &motionTask{
		ID:          id,
		Name:        name,
		StartOn:     startOn,
		Status:      &motionStatus{Name: status},
		Completed:   status == "Completed",
		Project:     &motionRef{ID: project},
		UpdatedTime: stamp(),
		workspace:   workspace,
	})
}

// Project returns a copy of the project with id
func (f *FakeMotion) Project(id string) (motionProject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.ID == id {
			return *p, true
		}
	}
	return motionProject{}, false
}

// ProjectByName returns a copy of the project named name
func (f *FakeMotion) ProjectByName(name string) (motionProject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.Name == name {
			return *p, true
		}
	}
	return motionProject{}, false
}

// Task returns a copy of the task named name
func (f *FakeMotion) Task(name string) (motionTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tk := range f.tasks {
		if tk.Name == name {
			return *tk, true
		}
	}
	return motionTask{}, false
}

// CompleteTask marks the task named name completed a minute from now so
// the change is newer than anything already synced
func (f *FakeMotion) CompleteTask(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tk := range f.tasks {
		if tk.Name == name {
			tk.Status = &motionStatus{Name: "Completed"}
			tk.Completed = true
			tk.UpdatedTime = time.Now().Add(time.Minute).UTC().Format(time.RFC3339)
			return true
		}
	}
	return false
}

// Posts returns how many creations were received
func (f *FakeMotion) Posts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

func (f *FakeMotion) listProjects(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws := r.URL.Query().Get("workspaceId")
	projects := []motionProject{}
	for _, p := range f.projects {
		if p.WorkspaceID == ws {
			projects = append(projects, *p)
		}
	}
	writeJSON(w, map[string]interface{}{"projects": projects, "meta": map[string]string{}})
}

func (f *FakeMotion) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		WorkspaceID string `json:"workspaceId"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.posts++
	p := &motionProject{ID: fmt.Sprintf("motion-prj-%d", f.seq), Name: req.Name, WorkspaceID: req.WorkspaceID, UpdatedTime: stamp()}
	f.projects = append(f.projects, p)
	writeJSON(w, p)
}

func (f *FakeMotion) updateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.ID == r.PathValue("id") {
			p.Name = req.Name
			p.UpdatedTime = stamp()
			writeJSON(w, p)
			return
		}
	}
	http.Error(w, "no such project", http.StatusNotFound)
}

func (f *FakeMotion) listTasks(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := r.URL.Query()

	var matching []motionTask
	for _, tk := range f.tasks {
		if tk.workspace != q.Get("workspaceId") {
			continue
		}
		if pid := q.Get("projectId"); pid != "" && (tk.Project == nil || tk.Project.ID != pid) {
			continue
		}
		matching = append(matching, *tk)
	}

	offset := 0
	fmt.Sscanf(q.Get("cursor"), "%d", &offset)
	end := min(offset+2, len(matching))
	page := []motionTask{}
	if offset < end {
		page = matching[offset:end]
	}
	next := ""
	if end < len(matching) {
		next = fmt.Sprint(end)
	}
	writeJSON(w, map[string]interface{}{"tasks": page, "meta": map[string]string{"nextCursor": next}})
}

func (f *FakeMotion) createTask(w http.ResponseWriter, r *http.Request) {
	var req motionTaskRequest
	if !readJSON(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.posts++
	status := req.Status
	if status == "" {
		status = "Todo"
	}
	tk := &motionTask{
		ID:          fmt.Sprintf("motion-task-%d", f.seq),
		Name:        req.Name,
		StartOn:     req.StartOn,
		DueDate:     req.DueDate,
		Status:      &motionStatus{Name: status},
		Completed:   status == "Completed",
		UpdatedTime: stamp(),
		workspace:   req.WorkspaceID,
	}
	if req.ProjectID != "" {
		tk.Project = &motionRef{ID: req.ProjectID}
	}
	f.tasks = append(f.tasks, tk)
	writeJSON(w, tk)
}

func (f *FakeMotion) updateTask(w http.ResponseWriter, r *http.Request) {
	var req motionTaskRequest
	if !readJSON(w, r, &req) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tk := range f.tasks {
		if tk.ID != r.PathValue("id") {
			continue
		}
		if req.Name != "" {
			tk.Name = req.Name
		}
		if req.Status != "" {
			tk.Status = &motionStatus{Name: req.Status}
			tk.Completed = req.Status == "Completed"
		}
		tk.StartOn = req.StartOn
		tk.DueDate = req.DueDate
		tk.UpdatedTime = stamp()
		writeJSON(w, tk)
		return
	}
	http.Error(w, "no such task", http.StatusNotFound)
}

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
