package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/tasklink/internal/domain"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.statusMsg = "Refreshing..."
			return m, m.refreshCmd()
		case "s":
			if m.trigger == nil {
				m.statusMsg = "Sync trigger not configured"
				return m, nil
			}
			m.statusMsg = "Requesting sync..."
			return m, m.triggerCmd()
		case "j", "down":
			if m.selectedRow < m.rowCount()-1 {
				m.selectedRow++
			}
			if m.selectedRow >= m.scroll+m.maxVisible() {
				m.scroll = m.selectedRow - m.maxVisible() + 1
			}
		case "k", "up":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			if m.selectedRow < m.scroll {
				m.scroll = m.selectedRow
			}
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			m.selectedRow = 0
			m.scroll = 0
		case "f":
			// Cycle the mapping type filter
			if m.activeTab == tabMappings {
				switch m.typeFilter {
				case "":
					m.typeFilter = domain.TypeProject
				case domain.TypeProject:
					m.typeFilter = domain.TypeTask
				default:
					m.typeFilter = ""
				}
				m.selectedRow = 0
				m.scroll = 0
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.refreshCmd(), tickCmd())

	case DataMsg:
		m.refreshErr = msg.Err
		if msg.Err == nil {
			m.runs = msg.Runs
			m.mappings = msg.Mappings
			m.lastRefresh = m.now()
			if m.statusMsg == "Refreshing..." {
				m.statusMsg = ""
			}
		}
		if n := m.rowCount(); m.selectedRow >= n {
			m.selectedRow = max(n-1, 0)
		}

	case TriggeredMsg:
		if msg.Err != nil {
			m.statusMsg = "Error: " + msg.Err.Error()
		} else {
			m.statusMsg = "Sync requested"
		}
	}

	return m, nil
}
