package reconcile

import (
	"context"
	"fmt"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

// inboxCategory is the category of tasks that sit in no area
const inboxCategory = "inbox"

// areasPhase reconciles the area axis: local area documents plus the
// inbox against remote tasks bucketed by their area label
func (o *Orchestrator) areasPhase(ctx context.Context, st *passState) error {
	if o.opts.AreasWorkspace == "" {
		return nil
	}

	buckets, err := o.areaBuckets(ctx, st)
	if err != nil {
		return err
	}
	areas := make(map[string]bool)
	for _, b := range buckets {
		if b.label != "" {
			areas[b.label] = true
		}
	}

	remote, err := o.remote.ListEntities(ctx, domain.Scope{Container: o.opts.AreasWorkspace}, domain.TypeTask)
	if err != nil {
		return fmt.Errorf("listing remote area tasks: %w", err)
	}
	remote = o.syncable(st, domain.PhaseAreas, remote)
	remoteByID := indexByID(remote)

	// remote tasks go to the bucket of their first area label
	remoteByBucket := make(map[string][]domain.SyncEntity)
	for _, r := range remote {
		label := ""
		for _, l := range r.Labels {
			if areas[l] {
				label = l
				break
			}
		}
		remoteByBucket[label] = append(remoteByBucket[label], r)
	}

	for _, b := range buckets {
		local, err := o.local.ListEntities(ctx, domain.Scope{Container: b.localContainer}, domain.TypeTask)
		if err != nil {
			o.recordError(st, domain.PhaseAreas, "area "+b.category, fmt.Errorf("listing local tasks: %w", err))
			continue
		}
		local = o.syncable(st, domain.PhaseAreas, local)

		o.reconcileMapped(ctx, st, domain.PhaseAreas, local, remoteByID, func(entry domain.MappingEntry, l, r domain.SyncEntity) {
			o.maintainArea(ctx, st, b, areas, entry, l, r)
		})
		o.reconcileUnmapped(ctx, st, domain.PhaseAreas, b, local, remoteByBucket[b.label])
	}
	return nil
}

// areaBuckets lists the area documents, honoring the label allow-list,
// and appends the inbox bucket
func (o *Orchestrator) areaBuckets(ctx context.Context, st *passState) ([]bucket, error) {
	var buckets []bucket
	if o.opts.AreasFolder != "" {
		docs, err := o.local.ListEntities(ctx, domain.Scope{Container: o.opts.AreasFolder}, domain.TypeProject)
		if err != nil {
			return nil, fmt.Errorf("listing area documents: %w", err)
		}
		docs = o.valid(st, domain.PhaseAreas, domain.TypeProject, docs)

		allowed := make(map[string]bool)
		for _, l := range o.opts.AreaLabels {
			allowed[l] = true
		}
		for _, d := range docs {
			if len(allowed) > 0 && !allowed[d.Title] {
				continue
			}
			buckets = append(buckets, bucket{
				category:        d.Title,
				localContainer:  d.ID,
				remoteContainer: o.opts.AreasWorkspace,
				label:           d.Title,
			})
		}
	}

	buckets = append(buckets, bucket{
		category:        inboxCategory,
		localContainer:  o.opts.InboxContainer,
		remoteContainer: o.opts.AreasWorkspace,
	})
	return buckets, nil
}

// maintainArea makes the remote area label follow the local document the
// task lives in. Labels that name no area are preserved.
func (o *Orchestrator) maintainArea(ctx context.Context, st *passState, b bucket, areas map[string]bool, entry domain.MappingEntry, l, r domain.SyncEntity) {
	var kept []string
	hasDesired := false
	stale := false
	for _, label := range r.Labels {
		switch {
		case !areas[label]:
			kept = append(kept, label)
		case label == b.label:
			hasDesired = true
		default:
			stale = true
		}
	}

	if (b.label == "" || hasDesired) && !stale {
		o.moveCategory(st, entry, b.category)
		return
	}

	labels := kept
	if b.label != "" {
		labels = append(labels, b.label)
	}
	err := o.remote.UpdateEntity(ctx, domain.TypeTask, r.ID, domain.Fields{Labels: labels, SetLabels: true})
	if err != nil {
		o.recordError(st, domain.PhaseAreas, entityName(domain.TypeTask, l), fmt.Errorf("updating area label: %w", err))
		return
	}
	st.result.Tasks.Updated++
	o.logger.Printf("task %q moved to %s", l.Title, b.category)
	o.moveCategory(st, entry, b.category)
}

func (o *Orchestrator) moveCategory(st *passState, entry domain.MappingEntry, category string) {
	if entry.Category == category {
		return
	}
	entry.Category = category
	st.index.Touch(entry)
}
