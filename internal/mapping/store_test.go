package mapping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

type memPersistence struct {
	rows    []domain.MappingEntry
	readErr error
	nextID  int
	writes  int
}

func (m *memPersistence) ReadAll(context.Context) ([]domain.MappingEntry, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]domain.MappingEntry(nil), m.rows...), nil
}

func (m *memPersistence) WriteOne(_ context.Context, e domain.MappingEntry) (string, error) {
	m.writes++
	if e.RecordID == "" {
		m.nextID++
		e.RecordID = fmt.Sprintf("rec-%d", m.nextID)
		m.rows = append(m.rows, e)
		return e.RecordID, nil
	}
	for i := range m.rows {
		if m.rows[i].RecordID == e.RecordID {
			m.rows[i] = e
		}
	}
	return e.RecordID, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestStore_LoadFailsSoft(t *testing.T) {
	s := NewStore(&memPersistence{readErr: errors.New("collection unreachable")}, quietLogger())

	ix, err := s.Load(context.Background())
	if err == nil {
		t.Error("Load should report the read failure")
	}
	if ix == nil {
		t.Fatal("Load must return a usable index on failure")
	}
	if ix.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ix.Len())
	}
}

func TestStore_LoadDropsDuplicates(t *testing.T) {
	p := &memPersistence{rows: []domain.MappingEntry{
		entry(domain.TypeTask, "c1", "m1"),
		entry(domain.TypeTask, "c1", "m9"),
		entry(domain.TypeTask, "c2", "m1"),
		entry(domain.TypeTask, "c3", "m3"),
	}}
	s := NewStore(p, quietLogger())

	ix, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ix.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ix.Len())
	}
	if got, _ := ix.Get(domain.TypeTask, "c1"); got.RemoteID != "m1" {
		t.Errorf("first row should win, got %s", got.RemoteID)
	}
}

func TestStore_UpsertCreatesThenUpdates(t *testing.T) {
	p := &memPersistence{}
	s := NewStore(p, quietLogger())
	ctx := context.Background()

	e, err := s.Upsert(ctx, entry(domain.TypeTask, "c1", "m1"))
	if err != nil {
		t.Fatal(err)
	}
	if e.RecordID == "" {
		t.Fatal("Upsert should set RecordID")
	}
	if e.LastSyncedAt.IsZero() {
		t.Error("Upsert should stamp LastSyncedAt")
	}

	e.Title = "Trip Plan"
	e.LastSyncedAt = time.Time{}
	if _, err := s.Upsert(ctx, e); err != nil {
		t.Fatal(err)
	}
	if len(p.rows) != 1 {
		t.Errorf("rows = %d, want 1", len(p.rows))
	}
	if p.rows[0].Title != "Trip Plan" {
		t.Errorf("Title = %q, want Trip Plan", p.rows[0].Title)
	}
}

func TestStore_UpsertRejectsInvalid(t *testing.T) {
	p := &memPersistence{}
	s := NewStore(p, quietLogger())

	_, err := s.Upsert(context.Background(), domain.MappingEntry{Type: domain.TypeTask, LocalID: "c1"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
	if p.writes != 0 {
		t.Error("invalid entry must not reach the backend")
	}
}
