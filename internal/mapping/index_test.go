package mapping

import (
	"errors"
	"testing"

	"github.com/hochfrequenz/tasklink/internal/domain"
)

func entry(t domain.EntityType, local, remote string) domain.MappingEntry {
	return domain.MappingEntry{Type: t, LocalID: local, RemoteID: remote}
}

func TestIndex_PutAndLookup(t *testing.T) {
	ix := NewIndex()
	if err := ix.Put(entry(domain.TypeTask, "c1", "m1")); err != nil {
		t.Fatal(err)
	}

	got, ok := ix.Get(domain.TypeTask, "c1")
	if !ok || got.RemoteID != "m1" {
		t.Errorf("Get(c1) = %+v, %v", got, ok)
	}
	got, ok = ix.ByRemote(domain.TypeTask, "m1")
	if !ok || got.LocalID != "c1" {
		t.Errorf("ByRemote(m1) = %+v, %v", got, ok)
	}
	if ix.MappedLocal(domain.TypeProject, "c1") {
		t.Error("lookup must be scoped by type")
	}
}

func TestIndex_RejectsDuplicateRemote(t *testing.T) {
	ix := NewIndex()
	if err := ix.Put(entry(domain.TypeTask, "c1", "m1")); err != nil {
		t.Fatal(err)
	}

	err := ix.Put(entry(domain.TypeTask, "c2", "m1"))
	if !errors.Is(err, domain.ErrDuplicateMapping) {
		t.Fatalf("Put duplicate remote error = %v, want ErrDuplicateMapping", err)
	}

	// same remote id under another type is fine
	if err := ix.Put(entry(domain.TypeProject, "c2", "m1")); err != nil {
		t.Errorf("cross-type Put error = %v", err)
	}
}

func TestIndex_ReplaceRemoteID(t *testing.T) {
	ix := NewIndex()
	ix.Put(entry(domain.TypeTask, "c1", "m1"))
	if err := ix.Put(entry(domain.TypeTask, "c1", "m2")); err != nil {
		t.Fatal(err)
	}

	if ix.MappedRemote(domain.TypeTask, "m1") {
		t.Error("stale remote id should be released")
	}
	if ix.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ix.Len())
	}
}

func TestIndex_DirtyTracking(t *testing.T) {
	ix := NewIndex()
	ix.Put(entry(domain.TypeTask, "c1", "m1"))
	ix.Touch(entry(domain.TypeTask, "c2", "m2"))
	ix.Touch(entry(domain.TypeProject, "p1", "r1"))

	dirty := ix.Dirty()
	if len(dirty) != 2 {
		t.Fatalf("Dirty() = %d entries, want 2", len(dirty))
	}
	if dirty[0].Type != domain.TypeProject {
		t.Errorf("Dirty() should be ordered by type, got %s first", dirty[0].Type)
	}

	ix.Clean(dirty[0].Key())
	if len(ix.Dirty()) != 1 {
		t.Errorf("Dirty() after Clean = %d, want 1", len(ix.Dirty()))
	}
}

func TestIndex_Entries(t *testing.T) {
	ix := NewIndex()
	ix.Put(entry(domain.TypeTask, "b", "1"))
	ix.Put(entry(domain.TypeTask, "a", "2"))
	ix.Put(entry(domain.TypeProject, "p", "3"))

	tasks := ix.Entries(domain.TypeTask)
	if len(tasks) != 2 || tasks[0].LocalID != "a" {
		t.Errorf("Entries(task) = %+v", tasks)
	}
	if len(ix.Entries("")) != 3 {
		t.Errorf("Entries(all) = %d, want 3", len(ix.Entries("")))
	}
}
