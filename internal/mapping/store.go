package mapping

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

// Persistence is the durable backend behind the mapping store
type Persistence interface {
	// ReadAll returns every persisted entry
	ReadAll(ctx context.Context) ([]domain.MappingEntry, error)
	// WriteOne creates or updates the backing record of e and returns
	// its record id
	WriteOne(ctx context.Context, e domain.MappingEntry) (string, error)
}

// Store loads and persists mapping entries
type Store struct {
	backend Persistence
	logger  *log.Logger
	now     func() time.Time
}

// NewStore creates a Store over backend. A nil logger uses the default
// logger.
func NewStore(backend Persistence, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{backend: backend, logger: logger, now: time.Now}
}

// Load reads all entries into a fresh Index. A read failure is logged
// and returned alongside an empty, usable index so the pass can continue
// as if no prior state existed. Rows that would break uniqueness are
// dropped; the first one read wins.
func (s *Store) Load(ctx context.Context) (*Index, error) {
	ix := NewIndex()

	entries, err := s.backend.ReadAll(ctx)
	if err != nil {
		s.logger.Printf("mapping load failed, continuing with empty state: %v", err)
		return ix, fmt.Errorf("loading mappings: %w", err)
	}

	for _, e := range entries {
		if ix.MappedLocal(e.Type, e.LocalID) {
			s.logger.Printf("dropping duplicate mapping row for %s", e.Key())
			continue
		}
		if err := ix.Put(e); err != nil {
			s.logger.Printf("dropping mapping row %s: %v", e.Key(), err)
		}
	}
	return ix, nil
}

// Upsert durably writes e. A new backing record is created when e has no
// record id, otherwise the existing record is updated. The returned entry
// carries the record id and a LastSyncedAt stamp.
func (s *Store) Upsert(ctx context.Context, e domain.MappingEntry) (domain.MappingEntry, error) {
	if err := e.Validate(); err != nil {
		return e, err
	}
	if e.LastSyncedAt.IsZero() {
		e.LastSyncedAt = s.now().UTC()
	}
	id, err := s.backend.WriteOne(ctx, e)
	if err != nil {
		return e, fmt.Errorf("writing mapping %s: %w", e.Key(), err)
	}
	if id != "" {
		e.RecordID = id
	}
	return e, nil
}

// List returns every persisted entry sorted by type and local id
func (s *Store) List(ctx context.Context) ([]domain.MappingEntry, error) {
	entries, err := s.backend.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}
