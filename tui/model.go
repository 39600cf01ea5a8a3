// Package tui is a terminal dashboard over the run log and the mapping
// table.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/tasklink/internal/domain"
)

const (
	tabRuns = iota
	tabMappings
	tabCount
)

// DataSource supplies the dashboard data
type DataSource interface {
	List(ctx context.Context) ([]domain.MappingEntry, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error)
}

// Model is the TUI application model
type Model struct {
	source  DataSource
	trigger func() error

	// Data
	runs     []domain.RunResult
	mappings []domain.MappingEntry

	// UI state
	width       int
	height      int
	activeTab   int
	selectedRow int
	scroll      int
	typeFilter  domain.EntityType
	statusMsg   string

	// Refresh
	lastRefresh time.Time
	refreshErr  error
	now         func() time.Time
}

// ModelConfig holds the collaborators of the TUI model
type ModelConfig struct {
	Source DataSource
	// Trigger requests a sync pass, optional
	Trigger func() error
}

// NewModel creates a new TUI model
func NewModel(cfg ModelConfig) Model {
	return Model{
		source:    cfg.Source,
		trigger:   cfg.Trigger,
		activeTab: tabRuns,
		now:       time.Now,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(),
		tickCmd(),
	)
}

// TickMsg triggers a refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// DataMsg carries freshly loaded data
type DataMsg struct {
	Runs     []domain.RunResult
	Mappings []domain.MappingEntry
	Err      error
}

// TriggeredMsg reports the outcome of a sync request
type TriggeredMsg struct {
	Err error
}

func (m Model) refreshCmd() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		if source == nil {
			return DataMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		runs, err := source.ListRuns(ctx, 50)
		if err != nil {
			return DataMsg{Err: err}
		}
		mappings, err := source.List(ctx)
		if err != nil {
			return DataMsg{Err: err}
		}
		return DataMsg{Runs: runs, Mappings: mappings}
	}
}

func (m Model) triggerCmd() tea.Cmd {
	trigger := m.trigger
	return func() tea.Msg {
		return TriggeredMsg{Err: trigger()}
	}
}

// visibleMappings applies the type filter
func (m Model) visibleMappings() []domain.MappingEntry {
	if m.typeFilter == "" {
		return m.mappings
	}
	var out []domain.MappingEntry
	for _, e := range m.mappings {
		if e.Type == m.typeFilter {
			out = append(out, e)
		}
	}
	return out
}

func (m Model) rowCount() int {
	if m.activeTab == tabMappings {
		return len(m.visibleMappings())
	}
	return len(m.runs)
}

// maxVisible is the number of table rows that fit on screen
func (m Model) maxVisible() int {
	if m.height <= 10 {
		return 5
	}
	return m.height - 10
}
