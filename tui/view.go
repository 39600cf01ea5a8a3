package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/hochfrequenz/tasklink/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255"))

	tabActiveStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	selectedStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("238"))

	successStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	dimmedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(headerStyle.Width(m.width).Render(m.header()))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	var section string
	switch m.activeTab {
	case tabRuns:
		section = m.renderRuns()
	case tabMappings:
		section = m.renderMappings()
	}
	b.WriteString(sectionStyle.Width(m.width - 2).Render(section))
	b.WriteString("\n")

	if m.refreshErr != nil {
		b.WriteString(errorStyle.Render(" Refresh failed: " + m.refreshErr.Error()))
		b.WriteString("\n")
	} else if m.statusMsg != "" {
		style := dimmedStyle
		if strings.HasPrefix(m.statusMsg, "Error") {
			style = warningStyle
		}
		b.WriteString(style.Render(" " + m.statusMsg))
		b.WriteString("\n")
	}

	statusBar := " [tab]switch [j/k]scroll [r]efresh [s]ync [q]uit "
	if m.activeTab == tabMappings {
		statusBar = " [tab]switch [j/k]scroll [f]ilter [r]efresh [s]ync [q]uit "
	}
	b.WriteString(statusBarStyle.Width(m.width).Render(statusBar))

	return b.String()
}

func (m Model) header() string {
	var projects, tasks int
	for _, e := range m.mappings {
		if e.Type == domain.TypeProject {
			projects++
		} else {
			tasks++
		}
	}

	last := "never"
	if len(m.runs) > 0 {
		r := m.runs[0]
		last = fmt.Sprintf("%s (%s)", humanize.RelTime(r.StartedAt, m.now(), "ago", "from now"), r.Outcome())
	}
	return fmt.Sprintf(" tasklink │ Last sync: %s │ Projects: %d │ Tasks: %d ", last, projects, tasks)
}

func (m Model) renderTabs() string {
	names := []string{"Runs", "Mappings"}
	var tabs []string
	for i, name := range names {
		if i == m.activeTab {
			tabs = append(tabs, tabActiveStyle.Render(name))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(name))
		}
	}
	return " " + strings.Join(tabs, "  ")
}

func outcomeStyle(o domain.Outcome) lipgloss.Style {
	switch o {
	case domain.OutcomeError:
		return errorStyle
	case domain.OutcomeWarning:
		return warningStyle
	default:
		return successStyle
	}
}

func (m Model) renderRuns() string {
	if len(m.runs) == 0 {
		return dimmedStyle.Render("No sync runs recorded yet")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-16s %-8s %8s %7s %7s %7s %9s  %s\n",
		"STARTED", "OUTCOME", "DURATION", "CREATED", "UPDATED", "LINKED", "CONFLICTS", "NOTES"))

	end := min(m.scroll+m.maxVisible(), len(m.runs))
	for i := m.scroll; i < end; i++ {
		r := m.runs[i]
		t := r.Totals()
		started := humanize.RelTime(r.StartedAt, m.now(), "ago", "from now")
		notes := r.Notes()
		if r.Failure != "" {
			notes = fmt.Sprintf("%s: %s", r.FailedPhase, r.Failure)
		}
		line := fmt.Sprintf("%-16s %-8s %8s %7d %7d %7d %9d  %s",
			truncate(started, 16),
			outcomeStyle(r.Outcome()).Render(fmt.Sprintf("%-8s", r.Outcome())),
			r.Duration().Round(10*time.Millisecond),
			t.Created, t.Updated, t.Linked, r.Conflicts,
			truncate(notes, max(m.width-80, 20)))
		if i == m.selectedRow {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.selectedRow < len(m.runs) {
		if errs := m.runs[m.selectedRow].Errors; len(errs) > 0 {
			b.WriteString("\n")
			b.WriteString(warningStyle.Render(fmt.Sprintf("%d errors in selected run:", len(errs))))
			b.WriteString("\n")
			for _, e := range errs[:min(len(errs), 5)] {
				b.WriteString(dimmedStyle.Render("  " + truncate(e.String(), m.width-8)))
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderMappings() string {
	entries := m.visibleMappings()
	filter := "all"
	if m.typeFilter != "" {
		filter = string(m.typeFilter)
	}

	var b strings.Builder
	b.WriteString(dimmedStyle.Render(fmt.Sprintf("Filter: %s (%d)", filter, len(entries))))
	b.WriteString("\n")
	if len(entries) == 0 {
		b.WriteString(dimmedStyle.Render("No mappings"))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%-7s %-30s %-18s %-14s %-14s %s\n",
		"TYPE", "TITLE", "CATEGORY", "LOCAL", "REMOTE", "SYNCED"))

	end := min(m.scroll+m.maxVisible(), len(entries))
	for i := m.scroll; i < end; i++ {
		e := entries[i]
		line := fmt.Sprintf("%-7s %-30s %-18s %-14s %-14s %s",
			e.Type,
			truncate(e.Title, 30),
			truncate(e.Category, 18),
			truncate(e.LocalID, 14),
			truncate(e.RemoteID, 14),
			humanize.RelTime(e.LastSyncedAt, m.now(), "ago", "from now"))
		if i == m.selectedRow {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if n <= 3 || len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
