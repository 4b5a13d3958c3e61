package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"venuerag/internal/domain"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	paneStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func listWidth(total int) int {
	return min(36, max(16, total/3))
}

func (m Model) View() string {
	if !m.sized {
		return "Loading..."
	}
	title := titleStyle.Render("Venues") + mutedStyle.Render(filterLabel(m.filter))
	list := paneStyle.Width(listWidth(m.width)).Height(m.details.Height).Render(m.renderList())
	details := paneStyle.Render(m.details.View())

	return strings.Join([]string{
		title,
		mutedStyle.Render(m.overview),
		lipgloss.JoinHorizontal(lipgloss.Top, list, details),
		paneStyle.Render(m.input.View()),
		statusStyle.Render(m.status),
		m.help.View(m.keys),
	}, "\n")
}

func (m Model) renderList() string {
	if len(m.venues) == 0 {
		return mutedStyle.Render("Nothing to show.")
	}
	lines := make([]string, len(m.venues))
	for i, v := range m.venues {
		line := fmt.Sprintf("%2d. %s", i+1, v.Name)
		if i == m.selected {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetails() string {
	if len(m.venues) == 0 {
		return "Press enter to search."
	}
	v := m.venues[m.selected]

	var b strings.Builder
	b.WriteString(titleStyle.Render(v.Name))
	fmt.Fprintf(&b, "  (%d/%d)\n", m.selected+1, len(m.venues))
	field := func(label, value string) {
		if value != "" {
			b.WriteString(mutedStyle.Render(label+": ") + value + "\n")
		}
	}
	field("Type", v.Type)
	field("Destination", v.Destination)
	field("Budget", v.Budget)
	if v.Rating != nil {
		field("Rating", fmt.Sprintf("%.1f", *v.Rating))
	}
	field("Address", v.Address)
	field("Location", v.GeoLocation)
	field("Hours", v.OpeningHours)
	field("Tags", strings.Join(v.Tags, ", "))
	field("Suitable for", strings.Join(v.SuitableFor, ", "))
	b.WriteString("\n")
	b.WriteString(highlightBestSentence(v.Description, m.query))
	return b.String()
}

func filterLabel(f domain.Filter) string {
	var parts []string
	if f.Destination != "" {
		parts = append(parts, "destination="+f.Destination)
	}
	if f.Budget != "" {
		parts = append(parts, "budget="+f.Budget)
	}
	if len(f.Interests) > 0 {
		parts = append(parts, "interests="+strings.Join(f.Interests, ","))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  " + strings.Join(parts, " ")
}
