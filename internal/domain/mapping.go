package domain

import (
	"fmt"
	"time"
)

// MappingKey identifies a mapping by the local side of the pair
type MappingKey struct {
	Type    EntityType
	LocalID string
}

// String returns a readable form for logs
func (k MappingKey) String() string {
	return fmt.Sprintf("%s:%s", k.Type, k.LocalID)
}

// RemoteKey identifies a mapping by the remote side of the pair
type RemoteKey struct {
	Type     EntityType
	RemoteID string
}

// MappingEntry correlates one local entity with its remote counterpart
type MappingEntry struct {
	LocalID         string
	RemoteID        string
	Type            EntityType
	Category        string
	Title           string
	LastSyncedAt    time.Time
	LocalUpdatedAt  *time.Time
	RemoteUpdatedAt *time.Time

	// RecordID is the id of the backing record, empty until first written
	RecordID string
}

// Key returns the local-side key
func (e MappingEntry) Key() MappingKey {
	return MappingKey{Type: e.Type, LocalID: e.LocalID}
}

// RemoteKey returns the remote-side key
func (e MappingEntry) RemoteKey() RemoteKey {
	return RemoteKey{Type: e.Type, RemoteID: e.RemoteID}
}

// Validate checks the fields required for persistence
func (e MappingEntry) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: mapping has invalid type %q", ErrValidation, e.Type)
	}
	if e.LocalID == "" || e.RemoteID == "" {
		return fmt.Errorf("%w: mapping %s needs both ids", ErrValidation, e.Key())
	}
	return nil
}

// TimePtr returns a pointer to a copy of t, or nil for the zero time
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
