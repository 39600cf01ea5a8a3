package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/tasklink/internal/domain"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	runs     []domain.RunResult
	mappings []domain.MappingEntry
	err      error
}

func (f *fakeSource) List(context.Context) ([]domain.MappingEntry, error) {
	return f.mappings, f.err
}

func (f *fakeSource) ListRuns(context.Context, int) ([]domain.RunResult, error) {
	return f.runs, f.err
}

func testSource() *fakeSource {
	return &fakeSource{
		runs: []domain.RunResult{
			{RunID: "r2", StartedAt: now.Add(-5 * time.Minute), FinishedAt: now.Add(-5*time.Minute + time.Second), Tasks: domain.Counts{Created: 2}},
			{RunID: "r1", StartedAt: now.Add(-time.Hour), Failure: "listing remote projects: boom", FailedPhase: domain.PhaseProjects},
		},
		mappings: []domain.MappingEntry{
			{Type: domain.TypeProject, LocalID: "doc-1", RemoteID: "prj-1", Title: "Travel", Category: "projects", LastSyncedAt: now},
			{Type: domain.TypeTask, LocalID: "t1", RemoteID: "r1", Title: "Trip Plan", Category: "Travel", LastSyncedAt: now},
			{Type: domain.TypeTask, LocalID: "t2", RemoteID: "r2", Title: "Call bank", Category: "inbox", LastSyncedAt: now},
		},
	}
}

func loadedModel(t *testing.T, cfg ModelConfig) Model {
	t.Helper()
	model := NewModel(cfg)
	model.now = func() time.Time { return now }
	model.width = 140
	model.height = 40

	msg := model.refreshCmd()()
	updated, _ := model.Update(msg)
	return updated.(Model)
}

func press(m Model, key tea.KeyMsg) Model {
	updated, _ := m.Update(key)
	return updated.(Model)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_LoadsData(t *testing.T) {
	model := loadedModel(t, ModelConfig{Source: testSource()})

	if len(model.runs) != 2 || len(model.mappings) != 3 {
		t.Fatalf("loaded %d runs, %d mappings", len(model.runs), len(model.mappings))
	}
	if !model.lastRefresh.Equal(now) {
		t.Errorf("lastRefresh = %v", model.lastRefresh)
	}

	view := model.View()
	for _, want := range []string{"Last sync: 5 minutes ago (Success)", "Projects: 1", "Tasks: 2", "projects: listing remote projects"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestModel_TabSwitching(t *testing.T) {
	model := loadedModel(t, ModelConfig{Source: testSource()})

	if model.activeTab != tabRuns {
		t.Fatalf("initial activeTab = %d, want %d", model.activeTab, tabRuns)
	}

	model = press(model, tea.KeyMsg{Type: tea.KeyTab})
	if model.activeTab != tabMappings {
		t.Errorf("after tab: activeTab = %d, want %d", model.activeTab, tabMappings)
	}
	if !strings.Contains(model.View(), "Trip Plan") {
		t.Error("mappings view should list Trip Plan")
	}

	model = press(model, tea.KeyMsg{Type: tea.KeyTab})
	if model.activeTab != tabRuns {
		t.Errorf("tab should wrap around, got %d", model.activeTab)
	}
}

func TestModel_TypeFilter(t *testing.T) {
	model := loadedModel(t, ModelConfig{Source: testSource()})
	model = press(model, tea.KeyMsg{Type: tea.KeyTab})

	wants := []struct {
		filter domain.EntityType
		count  int
	}{
		{domain.TypeProject, 1},
		{domain.TypeTask, 2},
		{"", 3},
	}
	for _, w := range wants {
		model = press(model, runes("f"))
		if model.typeFilter != w.filter {
			t.Errorf("typeFilter = %q, want %q", model.typeFilter, w.filter)
		}
		if got := len(model.visibleMappings()); got != w.count {
			t.Errorf("visible mappings for %q = %d, want %d", w.filter, got, w.count)
		}
	}
}

func TestModel_ScrollBounds(t *testing.T) {
	model := loadedModel(t, ModelConfig{Source: testSource()})

	model = press(model, runes("k"))
	if model.selectedRow != 0 {
		t.Errorf("selectedRow = %d, want 0", model.selectedRow)
	}
	for i := 0; i < 5; i++ {
		model = press(model, runes("j"))
	}
	if model.selectedRow != 1 {
		t.Errorf("selectedRow = %d, want 1 (last run)", model.selectedRow)
	}
}

func TestModel_RefreshError(t *testing.T) {
	src := testSource()
	model := loadedModel(t, ModelConfig{Source: src})

	src.err = errors.New("database is locked")
	updated, _ := model.Update(model.refreshCmd()())
	model = updated.(Model)

	if len(model.runs) != 2 {
		t.Error("failed refresh should keep previous data")
	}
	if !strings.Contains(model.View(), "Refresh failed: database is locked") {
		t.Error("View() should show the refresh error")
	}
}

func TestModel_TriggerSync(t *testing.T) {
	var triggered int
	model := loadedModel(t, ModelConfig{Source: testSource(), Trigger: func() error {
		triggered++
		return nil
	}})

	updated, cmd := model.Update(runes("s"))
	model = updated.(Model)
	if cmd == nil {
		t.Fatal("s should return a command")
	}
	updated, _ = model.Update(cmd())
	model = updated.(Model)

	if triggered != 1 {
		t.Errorf("trigger calls = %d, want 1", triggered)
	}
	if model.statusMsg != "Sync requested" {
		t.Errorf("statusMsg = %q", model.statusMsg)
	}
}

func TestModel_TriggerNotConfigured(t *testing.T) {
	model := loadedModel(t, ModelConfig{Source: testSource()})
	model = press(model, runes("s"))
	if model.statusMsg != "Sync trigger not configured" {
		t.Errorf("statusMsg = %q", model.statusMsg)
	}
}

func TestModel_QuitCommand(t *testing.T) {
	model := NewModel(ModelConfig{})
	_, cmd := model.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"a long title here", 10, "a long ..."},
		{"Café au lait", 7, "Café..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
