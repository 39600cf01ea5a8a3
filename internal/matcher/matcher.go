// Package matcher pairs unmapped entities across the two services by
// exact title within one category.
package matcher

import "github.com/hochfrequenz/tasklink/internal/domain"

// Existing answers whether an id is already part of a mapping
type Existing interface {
	MappedLocal(t domain.EntityType, localID string) bool
	MappedRemote(t domain.EntityType, remoteID string) bool
}

// Pair is a local entity and the remote entity it should be linked to
type Pair struct {
	Local  domain.SyncEntity
	Remote domain.SyncEntity
}

// Result holds the outcome of one Match call
type Result struct {
	Matched         []Pair
	Unmatched       []domain.SyncEntity
	UnmatchedRemote []domain.SyncEntity
}

// Match aligns local and remote entities of one type and category.
//
// Entities already present in existing are ignored. For every other
// local entity the first remote entity in listing order with the same
// title that is neither mapped nor claimed earlier in this call becomes
// its pair. Local entities without a candidate end up in Unmatched and
// unclaimed remote entities in UnmatchedRemote, both in input order.
func Match(t domain.EntityType, local, remote []domain.SyncEntity, existing Existing) Result {
	byTitle := make(map[string][]int)
	for i, r := range remote {
		if existing != nil && existing.MappedRemote(t, r.ID) {
			continue
		}
		byTitle[r.Title] = append(byTitle[r.Title], i)
	}

	claimed := make(map[int]bool)
	var res Result
	for _, l := range local {
		if existing != nil && existing.MappedLocal(t, l.ID) {
			continue
		}
		idx := -1
		for _, i := range byTitle[l.Title] {
			if !claimed[i] {
				idx = i
				break
			}
		}
		if idx < 0 {
			res.Unmatched = append(res.Unmatched, l)
			continue
		}
		claimed[idx] = true
		res.Matched = append(res.Matched, Pair{Local: l, Remote: remote[idx]})
	}

	for i, r := range remote {
		if claimed[i] {
			continue
		}
		if existing != nil && existing.MappedRemote(t, r.ID) {
			continue
		}
		res.UnmatchedRemote = append(res.UnmatchedRemote, r)
	}
	return res
}
