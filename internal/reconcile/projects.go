package reconcile

import (
	"context"
	"fmt"

	"github.com/hochfrequenz/tasklink/internal/domain"
	"github.com/hochfrequenz/tasklink/internal/matcher"
)

// projectsCategory is the category recorded on project mappings
const projectsCategory = "projects"

func (o *Orchestrator) projectsPhase(ctx context.Context, st *passState) error {
	local, err := o.local.ListEntities(ctx, domain.Scope{Container: o.opts.ProjectsFolder}, domain.TypeProject)
	if err != nil {
		return fmt.Errorf("listing local projects: %w", err)
	}
	remote, err := o.remote.ListEntities(ctx, domain.Scope{Container: o.opts.ProjectsWorkspace}, domain.TypeProject)
	if err != nil {
		return fmt.Errorf("listing remote projects: %w", err)
	}
	local = o.valid(st, domain.PhaseProjects, domain.TypeProject, local)
	remote = o.valid(st, domain.PhaseProjects, domain.TypeProject, remote)

	remoteByID := indexByID(remote)
	counts := st.result.CountsFor(domain.TypeProject)

	for _, l := range local {
		entry, ok := st.index.Get(domain.TypeProject, l.ID)
		if !ok {
			continue
		}
		r, ok := remoteByID[entry.RemoteID]
		if !ok {
			o.logger.Printf("project %q: remote %s not listed, skipping", l.Title, entry.RemoteID)
			counts.Skipped++
			continue
		}
		o.reconcilePair(ctx, st, domain.PhaseProjects, domain.TypeProject, entry, l, r)
		st.projects = append(st.projects, projectPair{local: l, remote: r})
	}

	res := matcher.Match(domain.TypeProject, local, remote, st.index)
	for _, p := range res.Matched {
		if _, err := o.link(ctx, st, domain.TypeProject, projectsCategory, p.Local, p.Remote); err != nil {
			o.recordError(st, domain.PhaseProjects, entityName(domain.TypeProject, p.Local), err)
			continue
		}
		counts.Linked++
		st.projects = append(st.projects, projectPair{local: p.Local, remote: p.Remote})
	}

	for _, l := range res.Unmatched {
		created, err := o.remote.CreateEntity(ctx, domain.TypeProject, domain.Fields{
			Title:     l.Title,
			Container: o.opts.ProjectsWorkspace,
		})
		if err != nil {
			o.recordError(st, domain.PhaseProjects, entityName(domain.TypeProject, l), err)
			continue
		}
		counts.Created++
		o.logger.Printf("created remote project %q (%s)", l.Title, created.ID)

		if _, err := o.link(ctx, st, domain.TypeProject, projectsCategory, l, created); err != nil {
			o.recordError(st, domain.PhaseProjects, entityName(domain.TypeProject, l), err)
			continue
		}
		st.projects = append(st.projects, projectPair{local: l, remote: created})
	}

	// remote projects without a local document are left alone
	return nil
}

func (o *Orchestrator) tasksPhase(ctx context.Context, st *passState) error {
	for _, p := range st.projects {
		b := bucket{
			category:        p.local.Title,
			localContainer:  p.local.ID,
			remoteContainer: o.opts.ProjectsWorkspace,
			remoteParent:    p.remote.ID,
		}

		local, err := o.local.ListEntities(ctx, domain.Scope{Container: p.local.ID}, domain.TypeTask)
		if err != nil {
			o.recordError(st, domain.PhaseTasks, entityName(domain.TypeProject, p.local), fmt.Errorf("listing local tasks: %w", err))
			continue
		}
		remote, err := o.remote.ListEntities(ctx, domain.Scope{Container: o.opts.ProjectsWorkspace, ParentID: p.remote.ID}, domain.TypeTask)
		if err != nil {
			o.recordError(st, domain.PhaseTasks, entityName(domain.TypeProject, p.local), fmt.Errorf("listing remote tasks: %w", err))
			continue
		}

		local = o.syncable(st, domain.PhaseTasks, local)
		remote = o.syncable(st, domain.PhaseTasks, remote)

		o.reconcileMapped(ctx, st, domain.PhaseTasks, local, indexByID(remote), nil)
		o.reconcileUnmapped(ctx, st, domain.PhaseTasks, b, local, remote)
	}
	return nil
}

// valid drops entities that fail validation, recording each
func (o *Orchestrator) valid(st *passState, p domain.Phase, t domain.EntityType, entities []domain.SyncEntity) []domain.SyncEntity {
	out := entities[:0:0]
	for _, e := range entities {
		if err := e.Validate(); err != nil {
			o.recordError(st, p, entityName(t, e), err)
			continue
		}
		out = append(out, e)
	}
	return out
}

// syncable drops invalid tasks and tasks of recurring series
func (o *Orchestrator) syncable(st *passState, p domain.Phase, tasks []domain.SyncEntity) []domain.SyncEntity {
	tasks = o.valid(st, p, domain.TypeTask, tasks)
	out := tasks[:0:0]
	for _, t := range tasks {
		if t.Recurring {
			continue
		}
		out = append(out, t)
	}
	return out
}

func indexByID(entities []domain.SyncEntity) map[string]domain.SyncEntity {
	m := make(map[string]domain.SyncEntity, len(entities))
	for _, e := range entities {
		m[e.ID] = e
	}
	return m
}
