// Package reconcile drives a sync pass between the local (Craft) and
// remote (Motion) services.
//
// A pass walks LOADING, PROJECTS, TASKS, AREAS and PERSIST in order. A
// phase-level error moves the pass to FAILED and skips the remaining
// phases; per-entity errors are collected in the run result and never
// stop the pass.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
	"github.com/hochfrequenz/tasklink/internal/mapping"
)

// Client is the capability set the orchestrator needs from a service
type Client interface {
	ListEntities(ctx context.Context, scope domain.Scope, t domain.EntityType) ([]domain.SyncEntity, error)
	CreateEntity(ctx context.Context, t domain.EntityType, f domain.Fields) (domain.SyncEntity, error)
	UpdateEntity(ctx context.Context, t domain.EntityType, id string, f domain.Fields) error
}

// MappingStore loads and writes mapping entries
type MappingStore interface {
	Load(ctx context.Context) (*mapping.Index, error)
	Upsert(ctx context.Context, e domain.MappingEntry) (domain.MappingEntry, error)
}

// Options names the containers reconciled on each side
type Options struct {
	// ProjectsFolder holds one local document per project
	ProjectsFolder string
	// ProjectsWorkspace holds the remote projects
	ProjectsWorkspace string

	// AreasFolder holds one local document per area, optional
	AreasFolder string
	// AreasWorkspace holds remote area tasks; empty disables AREAS
	AreasWorkspace string
	// AreaLabels restricts the area documents taken into account
	AreaLabels []string
	// InboxContainer is where remote area tasks without an area land
	InboxContainer string

	// CreateCompleted also creates counterparts for closed entities
	CreateCompleted bool
}

// Orchestrator runs sync passes
type Orchestrator struct {
	local  Client
	remote Client
	store  MappingStore
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

// New creates an Orchestrator. A nil logger uses the default logger.
func New(local, remote Client, store MappingStore, opts Options, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		local:  local,
		remote: remote,
		store:  store,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// passState is the working set threaded through the phases of one pass
type passState struct {
	index    *mapping.Index
	result   domain.RunResult
	projects []projectPair
}

// projectPair is a linked project whose tasks are reconciled in TASKS
type projectPair struct {
	local  domain.SyncEntity
	remote domain.SyncEntity
}

type phase struct {
	name domain.Phase
	run  func(ctx context.Context, st *passState) error
}

// Run executes one full pass and returns its summary
func (o *Orchestrator) Run(ctx context.Context) domain.RunResult {
	st := &passState{
		result: domain.RunResult{
			RunID:     domain.NewRunID(),
			StartedAt: o.now(),
		},
	}

	phases := []phase{
		{domain.PhaseLoading, o.loadPhase},
		{domain.PhaseProjects, o.projectsPhase},
		{domain.PhaseTasks, o.tasksPhase},
		{domain.PhaseAreas, o.areasPhase},
		{domain.PhasePersist, o.persistPhase},
	}

	st.result.Phase = domain.PhaseDone
	for _, p := range phases {
		if err := p.run(ctx, st); err != nil {
			o.logger.Printf("sync %s failed in %s: %v", st.result.RunID, p.name, err)
			st.result.Phase = domain.PhaseFailed
			st.result.FailedPhase = p.name
			st.result.Failure = err.Error()
			break
		}
	}

	if st.index != nil {
		st.result.MappedProjects = len(st.index.Entries(domain.TypeProject))
	}
	st.result.FinishedAt = o.now()
	o.logger.Printf("sync %s %s: %s", st.result.RunID, st.result.Outcome(), st.result.Notes())
	return st.result
}

func (o *Orchestrator) loadPhase(ctx context.Context, st *passState) error {
	ix, err := o.store.Load(ctx)
	if ix == nil {
		ix = mapping.NewIndex()
	}
	st.index = ix
	if err != nil {
		// treat as first run; existing counterparts are re-linked by title
		// where possible and re-created otherwise
		o.recordError(st, domain.PhaseLoading, "mappings", err)
	}
	return nil
}

func (o *Orchestrator) persistPhase(ctx context.Context, st *passState) error {
	var failed int
	var firstErr error
	for _, e := range st.index.Dirty() {
		stored, err := o.store.Upsert(ctx, e)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		// Put cannot fail here: stored has the same ids as e
		st.index.Put(stored)
		st.index.Clean(stored.Key())
	}
	if firstErr != nil {
		return fmt.Errorf("persisting %d mappings: %w", failed, firstErr)
	}
	return nil
}

func (o *Orchestrator) recordError(st *passState, p domain.Phase, entity string, err error) {
	o.logger.Printf("%s: %s: %v", p, entity, err)
	st.result.Errors = append(st.result.Errors, domain.EntityError{
		Phase:   p,
		Entity:  entity,
		Kind:    domain.KindOf(err),
		Message: err.Error(),
	})
}

func entityName(t domain.EntityType, e domain.SyncEntity) string {
	if e.Title == "" {
		return fmt.Sprintf("%s %s", t, e.ID)
	}
	return fmt.Sprintf("%s %q", t, e.Title)
}
