package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
	"github.com/hochfrequenz/tasklink/internal/mapping"
)

// fakeEntity is an entity stored by fakeService
type fakeEntity struct {
	domain.SyncEntity
	typ       domain.EntityType
	container string
}

type call struct {
	op     string
	typ    domain.EntityType
	id     string
	fields domain.Fields
}

// fakeService is an in-memory service. Local fakes put tasks in the
// container named by Fields.Container; remote fakes also keep ParentID.
type fakeService struct {
	name     string
	entities []*fakeEntity
	nextID   int
	calls    []call
	clock    func() time.Time
	// defaultStart is filled in for tasks created without a start date
	defaultStart domain.Date

	listErr   map[string]error
	createErr map[string]error
	updateErr map[string]error
}

func newFakeService(name string, clock func() time.Time) *fakeService {
	return &fakeService{
		name:      name,
		clock:     clock,
		listErr:   make(map[string]error),
		createErr: make(map[string]error),
		updateErr: make(map[string]error),
	}
}

func (f *fakeService) add(t domain.EntityType, container string, e domain.SyncEntity) *fakeEntity {
	fe := &fakeEntity{SyncEntity: e, typ: t, container: container}
	f.entities = append(f.entities, fe)
	return fe
}

func (f *fakeService) get(id string) *fakeEntity {
	for _, e := range f.entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (f *fakeService) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (f *fakeService) ListEntities(_ context.Context, scope domain.Scope, t domain.EntityType) ([]domain.SyncEntity, error) {
	if err := f.listErr[scope.Container+"/"+scope.ParentID]; err != nil {
		return nil, err
	}
	var out []domain.SyncEntity
	for _, e := range f.entities {
		if e.typ != t || e.container != scope.Container {
			continue
		}
		if scope.ParentID != "" && e.ParentID != scope.ParentID {
			continue
		}
		out = append(out, e.SyncEntity)
	}
	return out, nil
}

func (f *fakeService) CreateEntity(_ context.Context, t domain.EntityType, fields domain.Fields) (domain.SyncEntity, error) {
	f.calls = append(f.calls, call{op: "create", typ: t, fields: fields})
	if err := f.createErr[fields.Title]; err != nil {
		return domain.SyncEntity{}, err
	}
	f.nextID++
	now := f.clock()
	start := fields.StartDate
	if start == "" && t == domain.TypeTask {
		start = f.defaultStart
	}
	e := domain.SyncEntity{
		ID:        fmt.Sprintf("%s-new-%d", f.name, f.nextID),
		Title:     fields.Title,
		Status:    fields.Status,
		Completed: fields.Completed,
		StartDate: start,
		DueDate:   fields.DueDate,
		ParentID:  fields.ParentID,
		Labels:    fields.Labels,
		UpdatedAt: &now,
	}
	f.add(t, fields.Container, e)
	return e, nil
}

func (f *fakeService) UpdateEntity(_ context.Context, t domain.EntityType, id string, fields domain.Fields) error {
	f.calls = append(f.calls, call{op: "update", typ: t, id: id, fields: fields})
	if err := f.updateErr[id]; err != nil {
		return err
	}
	e := f.get(id)
	if e == nil {
		return fmt.Errorf("%s %s: %w", t, id, domain.ErrNotFound)
	}
	if fields.Title != "" {
		e.Title = fields.Title
	}
	if fields.Status != "" {
		e.Status = fields.Status
		e.Completed = fields.Completed
	}
	if fields.StartDate != "" || fields.DueDate != "" {
		e.StartDate = fields.StartDate
		e.DueDate = fields.DueDate
	}
	if fields.SetLabels {
		e.Labels = append([]string(nil), fields.Labels...)
	}
	now := f.clock()
	e.UpdatedAt = &now
	return nil
}

// memBackend is an in-memory mapping.Persistence
type memBackend struct {
	rows     map[domain.MappingKey]domain.MappingEntry
	readErr  error
	writeErr error
	nextID   int
}

func newMemBackend() *memBackend {
	return &memBackend{rows: make(map[domain.MappingKey]domain.MappingEntry)}
}

func (m *memBackend) ReadAll(context.Context) ([]domain.MappingEntry, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []domain.MappingEntry
	for _, e := range m.rows {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out, nil
}

func (m *memBackend) WriteOne(_ context.Context, e domain.MappingEntry) (string, error) {
	if m.writeErr != nil {
		return "", m.writeErr
	}
	if prev, ok := m.rows[e.Key()]; ok {
		e.RecordID = prev.RecordID
	} else {
		m.nextID++
		e.RecordID = fmt.Sprintf("rec-%d", m.nextID)
	}
	m.rows[e.Key()] = e
	return e.RecordID, nil
}

// pairs returns the persisted (type, local, remote) triples
func (m *memBackend) pairs() []string {
	var out []string
	for _, e := range m.rows {
		out = append(out, fmt.Sprintf("%s:%s=%s", e.Type, e.LocalID, e.RemoteID))
	}
	sort.Strings(out)
	return out
}

var errBoom = errors.New("boom")

// harness wires an orchestrator to fakes with a controllable clock
type harness struct {
	local   *fakeService
	remote  *fakeService
	backend *memBackend
	orch    *Orchestrator
	now     time.Time
}

const (
	projectsFolder    = "folder-projects"
	projectsWorkspace = "ws-life"
	areasFolder       = "folder-areas"
	areasWorkspace    = "ws-private"
	inbox             = "inbox"
)

func newHarness(opts Options) *harness {
	h := &harness{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }
	h.local = newFakeService("craft", clock)
	h.remote = newFakeService("motion", clock)
	h.backend = newMemBackend()

	if opts.ProjectsFolder == "" {
		opts.ProjectsFolder = projectsFolder
	}
	if opts.ProjectsWorkspace == "" {
		opts.ProjectsWorkspace = projectsWorkspace
	}
	logger := log.New(io.Discard, "", 0)
	h.orch = New(h.local, h.remote, mapping.NewStore(h.backend, logger), opts, logger)
	h.orch.now = clock
	return h
}

func (h *harness) run() domain.RunResult {
	r := h.orch.Run(context.Background())
	h.now = h.now.Add(15 * time.Minute)
	return r
}

// project adds a linked-by-title project pair and returns their ids
func (h *harness) project(title string) (localID, remoteID string) {
	localID = "doc-" + title
	remoteID = "prj-" + title
	h.local.add(domain.TypeProject, projectsFolder, domain.SyncEntity{ID: localID, Title: title})
	h.remote.add(domain.TypeProject, projectsWorkspace, domain.SyncEntity{ID: remoteID, Title: title, ParentID: projectsWorkspace})
	return localID, remoteID
}

func tp(t time.Time) *time.Time { return &t }
