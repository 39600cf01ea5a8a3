// Package mapping holds the in-memory mapping index used during a sync
// pass and the store that loads and persists it.
package mapping

import (
	"fmt"
	"sort"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

// Index is the working set of mapping entries for one pass. It is not
// safe for concurrent use; a pass is single threaded.
type Index struct {
	byLocal  map[domain.MappingKey]domain.MappingEntry
	byRemote map[domain.RemoteKey]domain.MappingKey
	dirty    map[domain.MappingKey]bool
}

// NewIndex creates an empty Index
func NewIndex() *Index {
	return &Index{
		byLocal:  make(map[domain.MappingKey]domain.MappingEntry),
		byRemote: make(map[domain.RemoteKey]domain.MappingKey),
		dirty:    make(map[domain.MappingKey]bool),
	}
}

// Put inserts or replaces the entry keyed by (type, localId). It fails
// with ErrDuplicateMapping when the remote id is already owned by another
// local id.
func (ix *Index) Put(e domain.MappingEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	key := e.Key()
	if owner, ok := ix.byRemote[e.RemoteKey()]; ok && owner != key {
		return fmt.Errorf("%w: %s %s already linked to %s", domain.ErrDuplicateMapping, e.Type, e.RemoteID, owner.LocalID)
	}
	if prev, ok := ix.byLocal[key]; ok && prev.RemoteID != e.RemoteID {
		delete(ix.byRemote, prev.RemoteKey())
	}
	ix.byLocal[key] = e
	ix.byRemote[e.RemoteKey()] = key
	return nil
}

// Get returns the entry for a local id
func (ix *Index) Get(t domain.EntityType, localID string) (domain.MappingEntry, bool) {
	e, ok := ix.byLocal[domain.MappingKey{Type: t, LocalID: localID}]
	return e, ok
}

// ByRemote returns the entry for a remote id
func (ix *Index) ByRemote(t domain.EntityType, remoteID string) (domain.MappingEntry, bool) {
	key, ok := ix.byRemote[domain.RemoteKey{Type: t, RemoteID: remoteID}]
	if !ok {
		return domain.MappingEntry{}, false
	}
	return ix.byLocal[key], true
}

// MappedLocal reports whether the local id takes part in a mapping
func (ix *Index) MappedLocal(t domain.EntityType, localID string) bool {
	_, ok := ix.byLocal[domain.MappingKey{Type: t, LocalID: localID}]
	return ok
}

// MappedRemote reports whether the remote id takes part in a mapping
func (ix *Index) MappedRemote(t domain.EntityType, remoteID string) bool {
	_, ok := ix.byRemote[domain.RemoteKey{Type: t, RemoteID: remoteID}]
	return ok
}

// Touch stores e and marks it for the next flush
func (ix *Index) Touch(e domain.MappingEntry) error {
	if err := ix.Put(e); err != nil {
		return err
	}
	ix.dirty[e.Key()] = true
	return nil
}

// Clean removes the dirty mark from key
func (ix *Index) Clean(key domain.MappingKey) {
	delete(ix.dirty, key)
}

// Dirty returns entries changed since they were last written, in key order
func (ix *Index) Dirty() []domain.MappingEntry {
	var out []domain.MappingEntry
	for key := range ix.dirty {
		if e, ok := ix.byLocal[key]; ok {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out
}

// Entries returns all entries of type t, or of every type when t is empty
func (ix *Index) Entries(t domain.EntityType) []domain.MappingEntry {
	var out []domain.MappingEntry
	for key, e := range ix.byLocal {
		if t == "" || key.Type == t {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out
}

// Len returns the number of entries
func (ix *Index) Len() int {
	return len(ix.byLocal)
}

func sortEntries(entries []domain.MappingEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type < entries[j].Type
		}
		return entries[i].LocalID < entries[j].LocalID
	})
}
