package reconcile

import (
	"context"
	"time"

	"github.com/hochfrequenz/tasklink/internal/conflict"
	"github.com/hochfrequenz/tasklink/internal/domain"
	"github.com/hochfrequenz/tasklink/internal/matcher"
	"github.com/hochfrequenz/tasklink/internal/translate"
)

// bucket is one category of tasks reconciled together
type bucket struct {
	category        string
	localContainer  string
	remoteContainer string
	remoteParent    string
	// label is the remote label carried by tasks of this bucket
	label string
}

// pairHook runs after a mapped pair was reconciled
type pairHook func(entry domain.MappingEntry, local, remote domain.SyncEntity)

// reconcileMapped handles local tasks that already have a mapping.
// Counterparts missing from remoteByID are skipped.
func (o *Orchestrator) reconcileMapped(ctx context.Context, st *passState, p domain.Phase, local []domain.SyncEntity, remoteByID map[string]domain.SyncEntity, after pairHook) {
	counts := st.result.CountsFor(domain.TypeTask)
	for _, l := range local {
		entry, ok := st.index.Get(domain.TypeTask, l.ID)
		if !ok {
			continue
		}
		r, ok := remoteByID[entry.RemoteID]
		if !ok {
			counts.Skipped++
			continue
		}
		entry = o.reconcilePair(ctx, st, p, domain.TypeTask, entry, l, r)
		if after != nil {
			after(entry, l, r)
		}
	}
}

// reconcileUnmapped links same-titled tasks and creates counterparts for
// the rest
func (o *Orchestrator) reconcileUnmapped(ctx context.Context, st *passState, p domain.Phase, b bucket, local, remote []domain.SyncEntity) {
	counts := st.result.CountsFor(domain.TypeTask)
	res := matcher.Match(domain.TypeTask, local, remote, st.index)

	for _, pair := range res.Matched {
		entry, err := o.link(ctx, st, domain.TypeTask, b.category, pair.Local, pair.Remote)
		if err != nil {
			o.recordError(st, p, entityName(domain.TypeTask, pair.Local), err)
			continue
		}
		counts.Linked++
		o.reconcilePair(ctx, st, p, domain.TypeTask, entry, pair.Local, pair.Remote)
	}

	for _, l := range res.Unmatched {
		if !o.opts.CreateCompleted && translate.IsClosed(l, domain.SideLocal) {
			counts.Skipped++
			continue
		}
		f := translate.LocalToRemoteFields(l)
		f.Container = b.remoteContainer
		f.ParentID = b.remoteParent
		if b.label != "" {
			f.Labels = []string{b.label}
			f.SetLabels = true
		}

		created, err := o.remote.CreateEntity(ctx, domain.TypeTask, f)
		if err != nil {
			o.recordError(st, p, entityName(domain.TypeTask, l), err)
			continue
		}
		counts.Created++
		l = o.adoptDefaults(ctx, st, p, domain.SideLocal, l, created)
		if _, err := o.link(ctx, st, domain.TypeTask, b.category, l, created); err != nil {
			o.recordError(st, p, entityName(domain.TypeTask, l), err)
		}
	}

	for _, r := range res.UnmatchedRemote {
		if !o.opts.CreateCompleted && translate.IsClosed(r, domain.SideRemote) {
			counts.Skipped++
			continue
		}
		f := translate.RemoteToLocalFields(r)
		f.Container = b.localContainer

		created, err := o.local.CreateEntity(ctx, domain.TypeTask, f)
		if err != nil {
			o.recordError(st, p, entityName(domain.TypeTask, r), err)
			continue
		}
		counts.Created++
		r = o.adoptDefaults(ctx, st, p, domain.SideRemote, r, created)
		if _, err := o.link(ctx, st, domain.TypeTask, b.category, created, r); err != nil {
			o.recordError(st, p, entityName(domain.TypeTask, r), err)
		}
	}
}

// adoptDefaults copies dates the target service filled in on creation,
// such as a start date of today, back to the origin entity so the new
// pair starts out in agreement
func (o *Orchestrator) adoptDefaults(ctx context.Context, st *passState, p domain.Phase, origin domain.Side, e, created domain.SyncEntity) domain.SyncEntity {
	if translate.ScheduleEqual(e, created) {
		return e
	}

	var err error
	if origin == domain.SideLocal {
		err = o.local.UpdateEntity(ctx, domain.TypeTask, e.ID, translate.FieldsFrom(created, domain.SideRemote))
	} else {
		err = o.remote.UpdateEntity(ctx, domain.TypeTask, e.ID, translate.FieldsFrom(created, domain.SideLocal))
	}
	if err != nil {
		o.recordError(st, p, entityName(domain.TypeTask, e), err)
		return e
	}
	e.StartDate = created.StartDate
	e.DueDate = created.DueDate
	return e
}

// link records a new pair and writes it immediately. A failed write is
// left dirty for PERSIST to retry.
func (o *Orchestrator) link(ctx context.Context, st *passState, t domain.EntityType, category string, l, r domain.SyncEntity) (domain.MappingEntry, error) {
	e := domain.MappingEntry{
		LocalID:         l.ID,
		RemoteID:        r.ID,
		Type:            t,
		Category:        category,
		Title:           l.Title,
		LastSyncedAt:    o.now().UTC(),
		LocalUpdatedAt:  l.UpdatedAt,
		RemoteUpdatedAt: r.UpdatedAt,
	}
	if err := st.index.Put(e); err != nil {
		return e, err
	}

	stored, err := o.store.Upsert(ctx, e)
	if err != nil {
		o.logger.Printf("writing mapping %s deferred: %v", e.Key(), err)
		st.index.Touch(e)
		return e, nil
	}
	st.index.Put(stored)
	return stored, nil
}

// reconcilePair brings a mapped pair into agreement and returns the
// refreshed entry. When only one side changed since the last sync that
// side wins; otherwise the conflict resolver decides.
func (o *Orchestrator) reconcilePair(ctx context.Context, st *passState, p domain.Phase, t domain.EntityType, entry domain.MappingEntry, l, r domain.SyncEntity) domain.MappingEntry {
	observed := entry
	observed.Title = l.Title
	if l.UpdatedAt != nil {
		observed.LocalUpdatedAt = l.UpdatedAt
	}
	if r.UpdatedAt != nil {
		observed.RemoteUpdatedAt = r.UpdatedAt
	}

	if !differs(t, l, r) {
		if observed.Title != entry.Title ||
			!sameTime(observed.LocalUpdatedAt, entry.LocalUpdatedAt) ||
			!sameTime(observed.RemoteUpdatedAt, entry.RemoteUpdatedAt) {
			observed.LastSyncedAt = o.now().UTC()
			st.index.Touch(observed)
			return observed
		}
		return entry
	}

	localChanged := changedSince(l.UpdatedAt, entry.LocalUpdatedAt, entry.LastSyncedAt)
	remoteChanged := changedSince(r.UpdatedAt, entry.RemoteUpdatedAt, entry.LastSyncedAt)

	var winner domain.Side
	switch {
	case localChanged && !remoteChanged:
		winner = domain.SideLocal
	case remoteChanged && !localChanged:
		winner = domain.SideRemote
	default:
		winner = conflict.Resolve(l.UpdatedAt, r.UpdatedAt)
		st.result.Conflicts++
	}

	var err error
	if winner == domain.SideLocal {
		err = o.remote.UpdateEntity(ctx, t, r.ID, fieldsFor(t, l, domain.SideLocal))
	} else {
		err = o.local.UpdateEntity(ctx, t, l.ID, fieldsFor(t, r, domain.SideRemote))
		observed.Title = r.Title
	}
	if err != nil {
		o.recordError(st, p, entityName(t, l), err)
		return entry
	}
	st.result.CountsFor(t).Updated++

	observed.LastSyncedAt = o.now().UTC()
	st.index.Touch(observed)
	return observed
}

func differs(t domain.EntityType, l, r domain.SyncEntity) bool {
	if t == domain.TypeProject {
		return l.Title != r.Title
	}
	return !translate.TitleEqual(l, r) || !translate.StatusEqual(l, r) || !translate.ScheduleEqual(l, r)
}

func fieldsFor(t domain.EntityType, e domain.SyncEntity, from domain.Side) domain.Fields {
	if t == domain.TypeProject {
		return domain.Fields{Title: e.Title}
	}
	return translate.FieldsFrom(e, from)
}

// changedSince reports whether a side was modified after it was last
// observed. A side without a timestamp is never considered changed.
func changedSince(observed, stored *time.Time, lastSynced time.Time) bool {
	if observed == nil {
		return false
	}
	if stored != nil {
		return observed.After(*stored)
	}
	if lastSynced.IsZero() {
		return true
	}
	return observed.After(lastSynced)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
